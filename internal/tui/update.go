package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-app/parley/internal/client"
	"github.com/parley-app/parley/internal/model/chat"
)

type conversationsLoadedMsg struct {
	conversations []chat.Conversation
	err           error
}

type conversationCreatedMsg struct {
	conversation chat.Conversation
	err          error
}

type pageLoadedMsg struct {
	page  client.ConversationPage
	older bool
	err   error
}

type sendFinishedMsg struct {
	conversationID string
	result         client.SendResult
	err            error
}

type deleteTickMsg struct{ pending *client.PendingDelete }

type deleteCommittedMsg struct {
	conversationID string
	err            error
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case conversationsLoadedMsg:
		return m.handleConversationsLoaded(msg)
	case conversationCreatedMsg:
		return m.handleConversationCreated(msg)
	case pageLoadedMsg:
		return m.handlePageLoaded(msg)
	case sendFinishedMsg:
		return m.handleSendFinished(msg)
	case deleteTickMsg:
		return m.handleDeleteTick(msg)
	case deleteCommittedMsg:
		if msg.err != nil {
			m.status = "Delete failed"
			return m, m.loadConversations()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	transcriptWidth := msg.Width - listWidth - 4
	if transcriptWidth < 20 {
		transcriptWidth = 20
	}
	transcriptHeight := msg.Height - m.textarea.Height() - 4
	if transcriptHeight < 4 {
		transcriptHeight = 4
	}

	if !m.ready {
		m.viewport = newViewport(transcriptWidth, transcriptHeight)
		m.ready = true
	} else {
		m.viewport.Width = transcriptWidth
		m.viewport.Height = transcriptHeight
	}
	m.textarea.SetWidth(transcriptWidth)
	m.refreshTranscript(false)
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.SwitchPane):
		if m.focus == paneComposer {
			m.focus = paneList
			m.textarea.Blur()
		} else {
			m.focus = paneComposer
			m.textarea.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewConv):
		return m, m.createConversation()

	case key.Matches(msg, m.keys.CancelSend):
		if m.controller.Cancel() {
			m.status = "Cancelling..."
		}
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		return m.startRetry()

	case key.Matches(msg, m.keys.DeleteConv):
		return m.startDelete()

	case key.Matches(msg, m.keys.Undo):
		if m.pendingDelete != nil && m.pendingDelete.Undo(time.Now()) {
			m.status = "Delete undone"
		}
		return m, nil

	case key.Matches(msg, m.keys.OlderPage):
		return m.startOlderPage()
	}

	if m.focus == paneList {
		return m.handleListKey(msg)
	}
	return m.handleComposerKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visibleConversations()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
			return m.switchConversation()
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(visible)-1 {
			m.selected++
			return m.switchConversation()
		}
	}
	return m, nil
}

func (m Model) handleComposerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Send) {
		return m.startSend()
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// startSend runs the optimistic path: provisional message appears at once,
// input is disabled until the send resolves.
func (m Model) startSend() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.textarea.Value())
	conversationID := m.activeConversationID()
	if content == "" || conversationID == "" || m.controller.InFlight() {
		return m, nil
	}

	ctx, prov, err := m.controller.Begin(context.Background(), conversationID, content)
	if err != nil {
		return m, nil
	}

	m.textarea.Reset()
	m.status = ""
	m.refreshTranscript(true)
	return m, tea.Batch(m.sendMessage(ctx, prov), m.spinner.Tick)
}

// startRetry resends the failed provisional, reusing the saved message id
// so the server never duplicates the user turn.
func (m Model) startRetry() (tea.Model, tea.Cmd) {
	if m.controller.InFlight() {
		return m, nil
	}
	ctx, prov, err := m.controller.Retry(context.Background())
	if err != nil {
		return m, nil
	}
	m.status = ""
	m.refreshTranscript(true)
	return m, tea.Batch(m.sendMessage(ctx, prov), m.spinner.Tick)
}

// startDelete hides the conversation immediately and opens the undo
// window; the server delete happens only at expiry.
func (m Model) startDelete() (tea.Model, tea.Cmd) {
	conversationID := m.activeConversationID()
	if conversationID == "" {
		return m, nil
	}
	if m.pendingDelete != nil && !m.pendingDelete.Undone() {
		// One pending delete at a time.
		return m, nil
	}

	pd := client.NewPendingDelete(conversationID, time.Now())
	m.pendingDelete = pd
	m.status = "Conversation deleted - ctrl+u to undo"
	if m.selected >= len(m.visibleConversations()) && m.selected > 0 {
		m.selected--
	}

	model, cmd := m.switchConversation()
	tick := tea.Tick(client.UndoWindow, func(time.Time) tea.Msg {
		return deleteTickMsg{pending: pd}
	})
	return model, tea.Batch(cmd, tick)
}

func (m Model) handleDeleteTick(msg deleteTickMsg) (tea.Model, tea.Cmd) {
	// Each tick names the pending delete it armed. A tick from an undone
	// delete that was since replaced by a newer one must not touch it.
	if m.pendingDelete != msg.pending {
		return m, nil
	}
	if !msg.pending.ShouldCommit(time.Now()) {
		m.pendingDelete = nil
		return m, nil
	}

	m.pendingDelete = nil
	m.removeConversation(msg.pending.ConversationID)
	return m, m.commitDelete(msg.pending.ConversationID)
}

func (m *Model) removeConversation(conversationID string) {
	kept := m.conversations[:0]
	for _, conv := range m.conversations {
		if conv.ID != conversationID {
			kept = append(kept, conv)
		}
	}
	m.conversations = kept
	if m.selected >= len(m.conversations) && m.selected > 0 {
		m.selected = len(m.conversations) - 1
	}
}

func (m Model) startOlderPage() (tea.Model, tea.Cmd) {
	conversationID := m.activeConversationID()
	if conversationID == "" || m.loadingOlder || !m.timeline.HasMore() {
		return m, nil
	}
	m.loadingOlder = true
	return m, m.loadOlderPage(conversationID, m.timeline.NextCursor())
}

// switchConversation resets per-conversation state so no page from the
// previous conversation leaks into the new one.
func (m Model) switchConversation() (tea.Model, tea.Cmd) {
	conversationID := m.activeConversationID()
	m.controller.Reset()
	m.timeline.Reset(conversationID)
	m.prevNewestID = ""
	m.loadingOlder = false
	m.refreshTranscript(false)
	if conversationID == "" {
		return m, nil
	}
	return m, m.loadLatestPage(conversationID)
}

func (m Model) handleConversationsLoaded(msg conversationsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = "Could not reach server"
		return m, nil
	}
	m.conversations = msg.conversations
	if m.selected >= len(m.conversations) {
		m.selected = 0
	}

	current := m.timeline.ConversationID()
	if current == "" {
		return m.switchConversation()
	}
	// Reloads can reorder the list; keep the selection pinned to the
	// conversation whose transcript is on screen.
	for i, conv := range m.visibleConversations() {
		if conv.ID == current {
			m.selected = i
			return m, nil
		}
	}
	// The on-screen conversation is gone (deleted elsewhere); its
	// transcript must not linger under an unrelated selection.
	return m.switchConversation()
}

func (m Model) handleConversationCreated(msg conversationCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = "Could not create conversation"
		return m, nil
	}
	m.conversations = append([]chat.Conversation{msg.conversation}, m.conversations...)
	m.selected = 0
	m.focus = paneComposer
	m.textarea.Focus()
	return m.switchConversation()
}

func (m Model) handlePageLoaded(msg pageLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.older {
		m.loadingOlder = false
	}
	if msg.err != nil {
		m.status = "Could not load messages"
		return m, nil
	}
	if msg.page.Conversation.ID != m.timeline.ConversationID() {
		// Stale response from a conversation we already left.
		return m, nil
	}

	if msg.older {
		m.timeline.ApplyOlderPage(msg.page)
		// Reading position is preserved: no scroll on history expansion.
		m.refreshTranscript(false)
	} else {
		m.timeline.ApplyLatestPage(msg.page)
		m.refreshTranscript(true)
	}
	return m, nil
}

func (m Model) handleSendFinished(msg sendFinishedMsg) (tea.Model, tea.Cmd) {
	if msg.conversationID != m.timeline.ConversationID() {
		return m, nil
	}

	m.controller.Finish(msg.err)
	if msg.err != nil {
		if client.IsCancelled(msg.err) {
			m.status = "Send cancelled"
		} else {
			m.status = ""
		}
		m.refreshTranscript(true)
		return m, nil
	}

	// Confirmed rows arrive via refetch, never a manual merge; the list
	// reload picks up the conversation's new last-message stamp.
	m.refreshTranscript(true)
	return m, tea.Batch(m.loadLatestPage(msg.conversationID), m.loadConversations())
}

// refreshTranscript recomputes the viewport content from timeline state
// and applies the auto-scroll rule: jump to bottom only when the newest
// entry changed.
func (m *Model) refreshTranscript(allowScroll bool) {
	if !m.ready {
		return
	}
	entries := m.timeline.Entries(m.controller.Provisional())
	m.viewport.SetContent(m.renderTranscript(entries))

	newest := client.NewestID(entries)
	if allowScroll && client.AutoScroll(m.prevNewestID, newest) {
		m.viewport.GotoBottom()
	}
	m.prevNewestID = newest
}

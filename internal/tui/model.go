// Package tui is the terminal client: a bubbletea program over the client
// package's send controller, timeline and delete grace window. All network
// work runs inside tea.Cmds; the Update loop itself never blocks.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parley-app/parley/internal/client"
	"github.com/parley-app/parley/internal/model/chat"
)

type pane int

const (
	paneList pane = iota
	paneComposer
)

// Model is the whole UI state.
type Model struct {
	api  *client.Client
	keys KeyMap

	width  int
	height int
	ready  bool
	focus  pane

	// Conversation list.
	conversations []chat.Conversation
	selected      int
	pendingDelete *client.PendingDelete

	// Active transcript.
	timeline     *client.Timeline
	controller   *client.SendController
	prevNewestID string
	loadingOlder bool

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	status string
}

func NewModel(api *client.Client) Model {
	ta := textarea.New()
	ta.Placeholder = "Write a message..."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return Model{
		api:        api,
		keys:       DefaultKeyMap(),
		focus:      paneComposer,
		timeline:   client.NewTimeline(""),
		controller: client.NewSendController(),
		textarea:   ta,
		spinner:    sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadConversations(), textarea.Blink)
}

// activeConversationID is the id of the selected, visible conversation.
func (m Model) activeConversationID() string {
	visible := m.visibleConversations()
	if len(visible) == 0 || m.selected >= len(visible) {
		return ""
	}
	return visible[m.selected].ID
}

// visibleConversations hides a pending-delete item so it cannot be
// selected while the undo window runs.
func (m Model) visibleConversations() []chat.Conversation {
	if m.pendingDelete == nil || m.pendingDelete.Undone() {
		return m.conversations
	}
	visible := make([]chat.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		if !m.pendingDelete.Hides(conv.ID) {
			visible = append(visible, conv)
		}
	}
	return visible
}

// loadConversations fetches the conversation list.
func (m Model) loadConversations() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		conversations, err := api.ListConversations(context.Background())
		return conversationsLoadedMsg{conversations: conversations, err: err}
	}
}

func (m Model) createConversation() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		conv, err := api.CreateConversation(context.Background(), "")
		return conversationCreatedMsg{conversation: conv, err: err}
	}
}

func (m Model) loadLatestPage(conversationID string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		page, err := api.GetConversation(context.Background(), conversationID, "", 0)
		return pageLoadedMsg{page: page, err: err}
	}
}

func (m Model) loadOlderPage(conversationID, cursor string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		page, err := api.GetConversation(context.Background(), conversationID, cursor, 0)
		return pageLoadedMsg{page: page, older: true, err: err}
	}
}

func (m Model) sendMessage(ctx context.Context, prov client.Provisional) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		result, err := api.SendMessage(ctx, prov.Message.ConversationID, prov.Message.Content, prov.RetryMessageID)
		return sendFinishedMsg{conversationID: prov.Message.ConversationID, result: result, err: err}
	}
}

func (m Model) commitDelete(conversationID string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		err := api.DeleteConversation(context.Background(), conversationID)
		return deleteCommittedMsg{conversationID: conversationID, err: err}
	}
}

package client

import (
	"sort"

	"github.com/parley-app/parley/internal/model/chat"
)

// Entry is one row of the rendered transcript: a confirmed or provisional
// message plus its transient decoration.
type Entry struct {
	chat.Message
	Pending bool
	Failed  bool
	Reason  string
}

// Timeline reconciles server-confirmed pages with the optimistic overlay.
// The visible list is recomputed from its inputs on every change; nothing
// confirmed is ever mutated in place. It belongs to exactly one
// conversation; switching conversations requires Reset.
type Timeline struct {
	conversationID string
	byID           map[string]chat.Message
	hasMore        bool
	nextCursor     string
}

func NewTimeline(conversationID string) *Timeline {
	return &Timeline{
		conversationID: conversationID,
		byID:           make(map[string]chat.Message),
	}
}

func (t *Timeline) ConversationID() string { return t.conversationID }
func (t *Timeline) HasMore() bool          { return t.hasMore }
func (t *Timeline) NextCursor() string     { return t.nextCursor }

// Reset discards all cached pages, switching the timeline to a new
// conversation. Stale pages must never leak across conversations.
func (t *Timeline) Reset(conversationID string) {
	t.conversationID = conversationID
	t.byID = make(map[string]chat.Message)
	t.hasMore = false
	t.nextCursor = ""
}

// ApplyLatestPage merges the newest backward page (a cursor-less fetch or
// post-send refetch). The pagination boundary replaces the previous one
// only when the timeline was empty, so an already-expanded history keeps
// its deeper cursor.
func (t *Timeline) ApplyLatestPage(page ConversationPage) {
	if page.Conversation.ID != t.conversationID {
		return
	}
	if len(t.byID) == 0 {
		t.hasMore = page.HasMore
		t.nextCursor = page.NextCursor
	}
	t.merge(page.Messages)
}

// ApplyOlderPage merges a backward page fetched with the stored cursor and
// advances the boundary. Newer entries are untouched.
func (t *Timeline) ApplyOlderPage(page ConversationPage) {
	if page.Conversation.ID != t.conversationID {
		return
	}
	t.hasMore = page.HasMore
	t.nextCursor = page.NextCursor
	t.merge(page.Messages)
}

func (t *Timeline) merge(messages []chat.Message) {
	for _, msg := range messages {
		t.byID[msg.ID] = msg
	}
}

// Entries recomputes the visible transcript: confirmed messages in
// (createdAt, id) order, with the provisional overlay either appended at
// the end or, when the server already persisted the turn, folded into the
// confirmed row as a failure annotation.
func (t *Timeline) Entries(prov *Provisional) []Entry {
	confirmed := make([]chat.Message, 0, len(t.byID))
	for _, msg := range t.byID {
		confirmed = append(confirmed, msg)
	}
	sort.Slice(confirmed, func(i, j int) bool { return confirmed[i].Less(confirmed[j]) })

	entries := make([]Entry, 0, len(confirmed)+1)
	annotated := false
	for _, msg := range confirmed {
		entry := Entry{Message: msg}
		if prov != nil && prov.Failed && prov.RetryMessageID == msg.ID {
			entry.Failed = true
			entry.Reason = prov.Reason
			annotated = true
		}
		entries = append(entries, entry)
	}

	if prov != nil && !annotated {
		entries = append(entries, Entry{
			Message: prov.Message,
			Pending: !prov.Failed,
			Failed:  prov.Failed,
			Reason:  prov.Reason,
		})
	}
	return entries
}

// NewestID returns the id of the last visible entry, the key for the
// auto-scroll decision.
func NewestID(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].ID
}

// AutoScroll reports whether the viewport should jump to the bottom: only
// when the newest entry changed (an append), never when history expanded
// upward under a stable newest message.
func AutoScroll(prevNewestID, newestID string) bool {
	return newestID != "" && newestID != prevNewestID
}

package client

import "time"

// UndoWindow is how long a deleted conversation can be brought back before
// the irreversible server delete is issued.
const UndoWindow = 5 * time.Second

// PendingDelete is a client-owned deferred deletion. The conversation
// disappears from the list (and becomes unselectable) immediately; the
// store is only touched once the window lapses without an undo.
type PendingDelete struct {
	ConversationID string
	Deadline       time.Time
	undone         bool
}

func NewPendingDelete(conversationID string, now time.Time) *PendingDelete {
	return &PendingDelete{
		ConversationID: conversationID,
		Deadline:       now.Add(UndoWindow),
	}
}

// Undo cancels the deletion if the window is still open. The item resumes
// exactly as before: no reload is needed because nothing was deleted yet.
func (p *PendingDelete) Undo(now time.Time) bool {
	if p.undone || !now.Before(p.Deadline) {
		return false
	}
	p.undone = true
	return true
}

// Undone reports whether the deletion was taken back.
func (p *PendingDelete) Undone() bool { return p.undone }

// ShouldCommit reports whether the window lapsed with the deletion still
// standing, meaning the real delete must now be issued.
func (p *PendingDelete) ShouldCommit(now time.Time) bool {
	return !p.undone && !now.Before(p.Deadline)
}

// Hides reports whether the given conversation must be hidden from the
// list right now.
func (p *PendingDelete) Hides(conversationID string) bool {
	return p != nil && !p.undone && p.ConversationID == conversationID
}

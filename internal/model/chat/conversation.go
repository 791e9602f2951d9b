package chat

import "time"

// Conversation groups an ordered exchange of user and assistant turns.
// Seq is the per-store display counter used for default titles.
type Conversation struct {
	ID            string     `json:"id"`
	Seq           int64      `json:"seq"`
	Title         string     `json:"title"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
}

package chat

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MaxContentLength bounds message content in runes.
const MaxContentLength = 10000

var (
	ErrEmptyContent   = errors.New("message content is required")
	ErrContentTooLong = fmt.Errorf("message content exceeds %d characters", MaxContentLength)
	ErrInvalidRole    = errors.New("role must be user or assistant")
)

// Message is a single persisted turn. Messages within a conversation are
// totally ordered by (CreatedAt, ID).
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ValidateContent enforces the 1..MaxContentLength bound.
func ValidateContent(content string) error {
	if content == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// ValidateRole accepts exactly the two persisted roles.
func ValidateRole(role string) error {
	if role != RoleUser && role != RoleAssistant {
		return ErrInvalidRole
	}
	return nil
}

// Less reports whether m sorts before other in transcript order.
func (m Message) Less(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

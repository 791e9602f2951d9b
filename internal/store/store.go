package store

import (
	"context"
	"errors"
	"time"

	"github.com/parley-app/parley/internal/model/chat"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// Page is one backward slice of a conversation's transcript. Messages are
// ascending (oldest first) so callers can prepend the page as-is.
type Page struct {
	Messages   []chat.Message
	HasMore    bool
	NextCursor *chat.Cursor
}

// Store is the durable source of truth for conversations and messages.
type Store interface {
	CreateConversation(ctx context.Context, title string) (chat.Conversation, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, error)
	ListConversations(ctx context.Context) ([]chat.Conversation, error)
	RenameConversation(ctx context.Context, id, title string) (chat.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	DeleteConversation(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, conversationID, role, content string) (chat.Message, error)
	GetMessage(ctx context.Context, id string) (chat.Message, error)
	FindRecentUserMessage(ctx context.Context, conversationID, content string, window time.Duration) (chat.Message, error)
	ListAllMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	ListMessagesPage(ctx context.Context, conversationID string, cursor *chat.Cursor, limit int) (Page, error)

	Close() error
}

// Package chat orchestrates the send pipeline: idempotent user-message
// resolution, history assembly, the provider call, and the success-only
// assistant write.
package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/parley-app/parley/internal/executor"
	"github.com/parley-app/parley/internal/model/chat"
	"github.com/parley-app/parley/internal/provider"
	"github.com/parley-app/parley/internal/store"
)

// DuplicateWindow bounds the lookback search for duplicate user
// submissions. A deliberate resend of identical text after the window is
// treated as a new message.
const DuplicateWindow = 5 * time.Minute

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// SendResult is the success shape of one send: the (possibly reused) user
// message and the freshly persisted assistant reply.
type SendResult struct {
	Message chat.Message `json:"message"`
	Reply   chat.Message `json:"reply"`
}

// ConversationPage is a conversation plus one backward slice of its
// transcript.
type ConversationPage struct {
	Conversation chat.Conversation `json:"conversation"`
	Messages     []chat.Message    `json:"messages"`
	HasMore      bool              `json:"hasMore"`
	NextCursor   string            `json:"nextCursor,omitempty"`
}

// Service owns conversation lifecycle and the send pipeline. The provider
// is injected once at construction; no business logic branches on which
// implementation is behind it.
type Service struct {
	store    store.Store
	provider provider.Provider
	exec     *executor.Executor
	logger   *zap.Logger
}

func NewService(st store.Store, p provider.Provider, exec *executor.Executor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, provider: p, exec: exec, logger: logger}
}

// CreateConversation makes a new conversation; empty titles get the
// sequential "Conversation #N" default from the store counter.
func (s *Service) CreateConversation(ctx context.Context, title string) (chat.Conversation, error) {
	if len(title) > 200 {
		return chat.Conversation{}, validationError("title exceeds 200 characters")
	}
	return s.store.CreateConversation(ctx, title)
}

// ListConversations returns all conversations, newest first.
func (s *Service) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// GetConversationPage fetches the conversation and one backward transcript
// page. An undecodable cursor is a validation failure, never treated as
// start-of-list.
func (s *Service) GetConversationPage(ctx context.Context, id, cursorToken string, limit int) (ConversationPage, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return ConversationPage{}, s.mapStoreError(err)
	}

	var cursor *chat.Cursor
	if cursorToken != "" {
		decoded, err := chat.DecodeCursor(cursorToken)
		if err != nil {
			return ConversationPage{}, validationError("%v", err)
		}
		cursor = &decoded
	}

	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	page, err := s.store.ListMessagesPage(ctx, id, cursor, limit)
	if err != nil {
		return ConversationPage{}, err
	}

	result := ConversationPage{
		Conversation: conv,
		Messages:     page.Messages,
		HasMore:      page.HasMore,
	}
	if page.NextCursor != nil {
		result.NextCursor = page.NextCursor.Encode()
	}
	return result, nil
}

// RenameConversation updates the human label.
func (s *Service) RenameConversation(ctx context.Context, id, title string) (chat.Conversation, error) {
	if title == "" {
		return chat.Conversation{}, validationError("title is required")
	}
	if len(title) > 200 {
		return chat.Conversation{}, validationError("title exceeds 200 characters")
	}
	conv, err := s.store.RenameConversation(ctx, id, title)
	if err != nil {
		return chat.Conversation{}, s.mapStoreError(err)
	}
	return conv, nil
}

// DeleteConversation removes the conversation and all owned messages.
// Irreversible at this layer; any undo window lives in the client.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return s.mapStoreError(err)
	}
	return nil
}

// SendMessage runs one send through the pipeline. retryOfMessageID, when
// set, names an already-persisted user message from a failed earlier
// attempt; the pipeline reuses it instead of writing a duplicate.
//
// The user message is the only write guaranteed before the provider call.
// The assistant reply and the conversation's last-message stamp are
// written together, only on full success.
func (s *Service) SendMessage(ctx context.Context, conversationID, content, retryOfMessageID string) (SendResult, error) {
	if err := chat.ValidateContent(content); err != nil {
		return SendResult{}, validationError("%v", err)
	}

	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return SendResult{}, s.mapStoreError(err)
	}

	userMsg, err := s.resolveUserMessage(ctx, conversationID, content, retryOfMessageID)
	if err != nil {
		return SendResult{}, err
	}

	history, err := s.store.ListAllMessages(ctx, conversationID)
	if err != nil {
		return SendResult{}, err
	}

	turns := make([]provider.Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, provider.Turn{Role: msg.Role, Content: msg.Content})
	}

	completion, err := s.exec.Complete(ctx, s.provider, turns)
	if err != nil {
		if ctx.Err() == context.Canceled || errors.Is(err, context.Canceled) {
			s.logger.Info("send cancelled",
				zap.String("conversation", conversationID),
				zap.String("message", userMsg.ID))
			return SendResult{}, ErrCancelled
		}
		s.logger.Warn("completion provider failed",
			zap.String("conversation", conversationID),
			zap.String("message", userMsg.ID),
			zap.Error(err))
		return SendResult{}, &UpstreamError{UserMessageID: userMsg.ID, Err: err}
	}

	reply, err := s.store.CreateMessage(ctx, conversationID, chat.RoleAssistant, completion)
	if err != nil {
		return SendResult{}, err
	}
	if err := s.store.TouchConversation(ctx, conversationID, reply.CreatedAt); err != nil {
		return SendResult{}, err
	}

	s.logger.Info("send completed",
		zap.String("conversation", conversationID),
		zap.String("message", userMsg.ID),
		zap.String("reply", reply.ID),
		zap.String("provider", s.provider.Name()))
	return SendResult{Message: userMsg, Reply: reply}, nil
}

// resolveUserMessage picks the user turn for this send, in priority order:
// explicit retry reference, recent identical submission, fresh insert.
func (s *Service) resolveUserMessage(ctx context.Context, conversationID, content, retryOfMessageID string) (chat.Message, error) {
	if retryOfMessageID != "" {
		msg, err := s.store.GetMessage(ctx, retryOfMessageID)
		if err == nil && msg.ConversationID == conversationID && msg.Role == chat.RoleUser {
			return msg, nil
		}
		if err != nil && !errors.Is(err, store.ErrMessageNotFound) {
			return chat.Message{}, err
		}
		// Unknown or mismatched reference: fall through to the duplicate
		// search rather than failing the send.
	}

	msg, err := s.store.FindRecentUserMessage(ctx, conversationID, content, DuplicateWindow)
	if err == nil {
		s.logger.Debug("reusing duplicate user message",
			zap.String("conversation", conversationID),
			zap.String("message", msg.ID))
		return msg, nil
	}
	if !errors.Is(err, store.ErrMessageNotFound) {
		return chat.Message{}, err
	}

	return s.store.CreateMessage(ctx, conversationID, chat.RoleUser, content)
}

func (s *Service) mapStoreError(err error) error {
	if errors.Is(err, store.ErrConversationNotFound) {
		return ErrNotFound
	}
	return err
}

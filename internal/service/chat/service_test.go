package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parley-app/parley/internal/executor"
	model "github.com/parley-app/parley/internal/model/chat"
	"github.com/parley-app/parley/internal/provider"
	chat "github.com/parley-app/parley/internal/service/chat"
	"github.com/parley-app/parley/internal/store"
)

// flaky fails a fixed number of times with transient errors, then replies.
type flaky struct {
	failures int
	calls    int
	reply    string
	delay    time.Duration
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Complete(ctx context.Context, _ []provider.Turn) (string, error) {
	f.calls++
	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	if f.calls <= f.failures {
		return "", provider.Transient(errors.New("upstream 502"))
	}
	return f.reply, nil
}

func newTestService(t *testing.T, p provider.Provider) (*chat.Service, *store.SQLite) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	exec := executor.New(
		executor.WithTimeout(2*time.Second),
		executor.WithBackoff(time.Millisecond, time.Millisecond),
	)
	return chat.NewService(st, p, exec, nil), st
}

func mustCreateConversation(t *testing.T, svc *chat.Service) model.Conversation {
	t.Helper()
	conv, err := svc.CreateConversation(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}
	return conv
}

func TestSendMessageHappyPath(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMock("", 10*time.Millisecond))
	ctx := context.Background()
	conv := mustCreateConversation(t, svc)

	result, err := svc.SendMessage(ctx, conv.ID, "Hello", "")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if result.Message.Role != model.RoleUser || result.Message.Content != "Hello" {
		t.Fatalf("unexpected user message: %+v", result.Message)
	}
	if result.Reply.Role != model.RoleAssistant || result.Reply.Content != provider.DefaultMockReply {
		t.Fatalf("unexpected reply: %+v", result.Reply)
	}

	page, err := svc.GetConversationPage(ctx, conv.ID, "", 20)
	if err != nil {
		t.Fatalf("GetConversationPage err: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("expected exactly 2 messages, got %d", len(page.Messages))
	}
	if page.HasMore {
		t.Fatal("two messages must fit the first page")
	}
	if page.Conversation.LastMessageAt == nil {
		t.Fatal("lastMessageAt must be stamped after a successful send")
	}
	if !page.Conversation.LastMessageAt.Equal(result.Reply.CreatedAt) {
		t.Fatalf("lastMessageAt %v must match reply time %v",
			page.Conversation.LastMessageAt, result.Reply.CreatedAt)
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMock("", 0))
	if _, err := svc.SendMessage(context.Background(), "missing", "hi", ""); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMock("", 0))
	conv := mustCreateConversation(t, svc)

	if _, err := svc.SendMessage(context.Background(), conv.ID, "", ""); !errors.Is(err, chat.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDuplicateSubmissionReusesUserMessage(t *testing.T) {
	svc, st := newTestService(t, provider.NewMock("", 0))
	ctx := context.Background()
	conv := mustCreateConversation(t, svc)

	first, err := svc.SendMessage(ctx, conv.ID, "same text", "")
	if err != nil {
		t.Fatalf("first send err: %v", err)
	}
	second, err := svc.SendMessage(ctx, conv.ID, "same text", "")
	if err != nil {
		t.Fatalf("second send err: %v", err)
	}

	if second.Message.ID != first.Message.ID {
		t.Fatalf("duplicate within the window must reuse the message: %s vs %s",
			second.Message.ID, first.Message.ID)
	}

	history, err := st.ListAllMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("ListAllMessages err: %v", err)
	}
	users := 0
	for _, msg := range history {
		if msg.Role == model.RoleUser {
			users++
		}
	}
	if users != 1 {
		t.Fatalf("expected exactly one persisted user message, got %d", users)
	}
}

func TestUpstreamFailureCarriesPersistedMessageID(t *testing.T) {
	// Three transient failures exhaust 1 try + 2 retries.
	p := &flaky{failures: 3, reply: "late"}
	svc, st := newTestService(t, p)
	ctx := context.Background()
	conv := mustCreateConversation(t, svc)

	_, err := svc.SendMessage(ctx, conv.ID, "try me", "")
	var upstream *chat.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.UserMessageID == "" {
		t.Fatal("upstream failure must name the persisted user message")
	}

	saved, err := st.GetMessage(ctx, upstream.UserMessageID)
	if err != nil {
		t.Fatalf("user message must be persisted, got %v", err)
	}
	if saved.Content != "try me" {
		t.Fatalf("wrong persisted content %q", saved.Content)
	}

	history, _ := st.ListAllMessages(ctx, conv.ID)
	if len(history) != 1 {
		t.Fatalf("no assistant message may be written on failure, got %d rows", len(history))
	}

	conv2, _ := st.GetConversation(ctx, conv.ID)
	if conv2.LastMessageAt != nil {
		t.Fatal("lastMessageAt must not move on failure")
	}
}

func TestRetryAfterUpstreamFailureReusesIdentity(t *testing.T) {
	p := &flaky{failures: 3, reply: "recovered"}
	svc, st := newTestService(t, p)
	ctx := context.Background()
	conv := mustCreateConversation(t, svc)

	_, err := svc.SendMessage(ctx, conv.ID, "retry me", "")
	var upstream *chat.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}

	result, err := svc.SendMessage(ctx, conv.ID, "retry me", upstream.UserMessageID)
	if err != nil {
		t.Fatalf("retry err: %v", err)
	}
	if result.Message.ID != upstream.UserMessageID {
		t.Fatalf("retry must reuse the saved message: %s vs %s",
			result.Message.ID, upstream.UserMessageID)
	}
	if result.Reply.Content != "recovered" {
		t.Fatalf("unexpected reply %q", result.Reply.Content)
	}

	history, _ := st.ListAllMessages(ctx, conv.ID)
	if len(history) != 2 {
		t.Fatalf("expected one user + one assistant message, got %d", len(history))
	}
}

func TestCancellationSuppressesAssistantWrite(t *testing.T) {
	p := &flaky{reply: "too late", delay: time.Minute}
	svc, st := newTestService(t, p)
	conv := mustCreateConversation(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := svc.SendMessage(ctx, conv.ID, "never answered", "")
	if !errors.Is(err, chat.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	history, listErr := st.ListAllMessages(context.Background(), conv.ID)
	if listErr != nil {
		t.Fatalf("ListAllMessages err: %v", listErr)
	}
	if len(history) != 1 || history[0].Role != model.RoleUser {
		t.Fatalf("only the user message may survive a cancel, got %+v", history)
	}
}

func TestGetConversationPageRejectsBadCursor(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMock("", 0))
	conv := mustCreateConversation(t, svc)

	_, err := svc.GetConversationPage(context.Background(), conv.ID, "%%%garbage%%%", 20)
	if !errors.Is(err, chat.ErrValidation) {
		t.Fatalf("bad cursor must be a validation failure, got %v", err)
	}
}

func TestRenameAndDelete(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMock("", 0))
	ctx := context.Background()
	conv := mustCreateConversation(t, svc)

	renamed, err := svc.RenameConversation(ctx, conv.ID, "new title")
	if err != nil {
		t.Fatalf("RenameConversation err: %v", err)
	}
	if renamed.Title != "new title" {
		t.Fatalf("rename did not stick: %q", renamed.Title)
	}
	if _, err := svc.RenameConversation(ctx, conv.ID, ""); !errors.Is(err, chat.ErrValidation) {
		t.Fatalf("empty title must fail validation, got %v", err)
	}

	if err := svc.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation err: %v", err)
	}
	if err := svc.DeleteConversation(ctx, conv.ID); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

package client

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/parley-app/parley/internal/model/chat"
)

// ProvisionalPrefix distinguishes locally synthesized message ids from
// store-assigned ones. Provisional messages never reach the store.
const ProvisionalPrefix = "pending-"

var (
	ErrSendInFlight = errors.New("a send is already in flight for this conversation")
	ErrNothingToDo  = errors.New("no failed send to retry")
)

// Provisional is the optimistic user turn shown before the server
// confirms it, plus the transient failure decoration that never persists.
type Provisional struct {
	Message chat.Message
	Failed  bool
	Reason  string
	// RetryMessageID is the server-persisted user message to reuse when
	// this send is retried; set from an upstream-failure response.
	RetryMessageID string
}

// SendController owns the lifecycle of at most one in-flight send for the
// active conversation view. It is driven from the UI loop and is not
// safe for concurrent use.
type SendController struct {
	inFlight    bool
	cancel      context.CancelFunc
	provisional *Provisional
}

func NewSendController() *SendController {
	return &SendController{}
}

// InFlight reports whether a send is outstanding; input stays disabled
// while it is.
func (c *SendController) InFlight() bool { return c.inFlight }

// Provisional returns the current optimistic or failed overlay, nil when
// the transcript is fully confirmed.
func (c *SendController) Provisional() *Provisional { return c.provisional }

// Begin starts a send: synthesizes the provisional message, records a
// fresh cancellation handle and returns the context the network call must
// use. If the previous send of this exact content failed, its saved
// message id is carried over so the server reuses the persisted turn.
func (c *SendController) Begin(parent context.Context, conversationID, content string) (context.Context, Provisional, error) {
	if c.inFlight {
		return nil, Provisional{}, ErrSendInFlight
	}

	retryID := ""
	if c.provisional != nil && c.provisional.Failed && c.provisional.Message.Content == content {
		retryID = c.provisional.RetryMessageID
	}

	prov := Provisional{
		Message: chat.Message{
			ID:             ProvisionalPrefix + uuid.NewString(),
			ConversationID: conversationID,
			Role:           chat.RoleUser,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		},
		RetryMessageID: retryID,
	}

	ctx, cancel := context.WithCancel(parent)
	c.inFlight = true
	c.cancel = cancel
	c.provisional = &prov
	return ctx, prov, nil
}

// Retry restarts the failed send, reusing the provisional identity and the
// saved server message id.
func (c *SendController) Retry(parent context.Context) (context.Context, Provisional, error) {
	if c.provisional == nil || !c.provisional.Failed {
		return nil, Provisional{}, ErrNothingToDo
	}
	failed := *c.provisional
	c.provisional = nil
	ctx, prov, err := c.Begin(parent, failed.Message.ConversationID, failed.Message.Content)
	if err != nil {
		c.provisional = &failed
		return nil, Provisional{}, err
	}
	// Begin only carries the retry id when content matches a failed
	// provisional it still holds, so restore it explicitly here.
	c.provisional.RetryMessageID = failed.RetryMessageID
	prov.RetryMessageID = failed.RetryMessageID
	return ctx, prov, err
}

// Cancel aborts the in-flight send. Reports whether there was one.
func (c *SendController) Cancel() bool {
	if !c.inFlight || c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Finish resolves the in-flight send. On success the provisional is
// discarded: the confirmed rows arrive via refetch, never a manual merge.
// On failure the provisional stays visible, annotated with a short reason
// and the server-reported saved message id for the next retry.
func (c *SendController) Finish(err error) {
	c.inFlight = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if err == nil {
		c.provisional = nil
		return
	}
	if c.provisional == nil {
		return
	}

	c.provisional.Failed = true
	c.provisional.Reason = FailureReason(err)
	if saved := SavedMessageID(err); saved != "" {
		c.provisional.RetryMessageID = saved
	}
}

// Reset drops all state, used when the active conversation changes.
func (c *SendController) Reset() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = false
	c.provisional = nil
}

// DismissFailure clears a failed provisional without retrying it.
func (c *SendController) DismissFailure() {
	if c.provisional != nil && c.provisional.Failed {
		c.provisional = nil
	}
}

package provider

import (
	"context"
	"time"
)

// DefaultMockReply is what the mock provider says when no reply is
// configured.
const DefaultMockReply = "This is a mock response from the assistant."

// Mock is the local stub provider used for development and tests. It
// returns a canned reply after an optional delay and honors cancellation
// while waiting.
type Mock struct {
	Reply string
	Delay time.Duration
}

// NewMock builds a mock provider; empty reply falls back to
// DefaultMockReply.
func NewMock(reply string, delay time.Duration) *Mock {
	if reply == "" {
		reply = DefaultMockReply
	}
	return &Mock{Reply: reply, Delay: delay}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Complete(ctx context.Context, turns []Turn) (string, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return m.Reply, nil
}

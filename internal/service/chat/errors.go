package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the target conversation (or message) does not exist.
	ErrNotFound = errors.New("conversation not found")
	// ErrValidation marks malformed input; wrap it with detail.
	ErrValidation = errors.New("validation failed")
	// ErrCancelled means the caller aborted the send mid-flight. The user
	// message, once written, stays written.
	ErrCancelled = errors.New("send cancelled")
)

// UpstreamError reports that the provider was unreachable after the full
// retry budget. UserMessageID is the already-persisted user turn so the
// client can retry without resubmitting content.
type UpstreamError struct {
	UserMessageID string
	Err           error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion provider unavailable: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Package provider defines the completion provider contract. Exactly one
// implementation is active per process, chosen from configuration at
// startup; the pipeline only ever sees the interface.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Turn is one prior exchange passed to the provider as context.
type Turn struct {
	Role    string
	Content string
}

// Provider produces a single completion for an ordered sequence of turns.
type Provider interface {
	Name() string
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// ProviderFunc adapts a bare function to the Provider interface.
type ProviderFunc func(ctx context.Context, turns []Turn) (string, error)

func (f ProviderFunc) Name() string { return "func" }

func (f ProviderFunc) Complete(ctx context.Context, turns []Turn) (string, error) {
	return f(ctx, turns)
}

// Kind classifies a provider failure for retry decisions.
type Kind int

const (
	// KindTransient covers network-level and 5xx-class failures; eligible
	// for retry.
	KindTransient Kind = iota
	// KindBadRequest covers 4xx-class failures; never retried.
	KindBadRequest
	// KindUnknown covers anything unclassified; never retried.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Error is the normalized failure shape every implementation must emit.
// Provider-specific error types never cross the adapter boundary.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s failure: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable provider failure.
func Transient(err error) *Error { return &Error{Kind: KindTransient, Err: err} }

// BadRequest wraps err as a non-retryable client-class failure.
func BadRequest(err error) *Error { return &Error{Kind: KindBadRequest, Err: err} }

// Unknown wraps err as an unclassified, non-retryable failure.
func Unknown(err error) *Error { return &Error{Kind: KindUnknown, Err: err} }

// IsTransient reports whether err is a retryable provider failure.
// Cancellation and deadline errors are never transient.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindTransient
}

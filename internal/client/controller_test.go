package client_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parley-app/parley/internal/client"
	"github.com/parley-app/parley/internal/model/chat"
)

func TestBeginSynthesizesProvisional(t *testing.T) {
	c := client.NewSendController()

	ctx, prov, err := c.Begin(context.Background(), "conv-1", "hello")
	if err != nil {
		t.Fatalf("Begin err: %v", err)
	}
	if !strings.HasPrefix(prov.Message.ID, client.ProvisionalPrefix) {
		t.Fatalf("provisional id %q must carry the prefix", prov.Message.ID)
	}
	if prov.Message.Role != chat.RoleUser || prov.Message.Content != "hello" {
		t.Fatalf("unexpected provisional %+v", prov.Message)
	}
	if ctx.Err() != nil {
		t.Fatal("send context must start alive")
	}
	if !c.InFlight() {
		t.Fatal("controller must report in flight")
	}
}

func TestBeginRejectsConcurrentSend(t *testing.T) {
	c := client.NewSendController()
	if _, _, err := c.Begin(context.Background(), "conv-1", "one"); err != nil {
		t.Fatalf("Begin err: %v", err)
	}
	if _, _, err := c.Begin(context.Background(), "conv-1", "two"); !errors.Is(err, client.ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight, got %v", err)
	}
}

func TestCancelAbortsContext(t *testing.T) {
	c := client.NewSendController()
	ctx, _, err := c.Begin(context.Background(), "conv-1", "hello")
	if err != nil {
		t.Fatalf("Begin err: %v", err)
	}

	if !c.Cancel() {
		t.Fatal("Cancel must report an in-flight send")
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatal("cancel must abort the send context")
	}
	if !c.InFlight() {
		t.Fatal("cancel alone does not resolve the send; Finish does")
	}
}

func TestFinishSuccessDiscardsProvisional(t *testing.T) {
	c := client.NewSendController()
	if _, _, err := c.Begin(context.Background(), "conv-1", "hello"); err != nil {
		t.Fatalf("Begin err: %v", err)
	}

	c.Finish(nil)
	if c.InFlight() {
		t.Fatal("send resolved, input must re-enable")
	}
	if c.Provisional() != nil {
		t.Fatal("success must discard the provisional in favor of refetched data")
	}
}

func TestFinishFailureAnnotatesProvisional(t *testing.T) {
	c := client.NewSendController()
	if _, _, err := c.Begin(context.Background(), "conv-1", "hello"); err != nil {
		t.Fatalf("Begin err: %v", err)
	}

	c.Finish(&client.APIError{Status: 502, Kind: client.KindUpstream, SavedMessageID: "srv-42"})

	prov := c.Provisional()
	if prov == nil || !prov.Failed {
		t.Fatal("failure must keep the provisional, marked failed")
	}
	if prov.RetryMessageID != "srv-42" {
		t.Fatalf("saved id not attached: %q", prov.RetryMessageID)
	}
	if prov.Reason == "" || strings.Contains(prov.Reason, "502") {
		t.Fatalf("reason must be a short phrase, got %q", prov.Reason)
	}
}

func TestRetryReusesSavedMessageID(t *testing.T) {
	c := client.NewSendController()
	if _, _, err := c.Begin(context.Background(), "conv-1", "hello"); err != nil {
		t.Fatalf("Begin err: %v", err)
	}
	c.Finish(&client.APIError{Status: 502, Kind: client.KindUpstream, SavedMessageID: "srv-42"})

	_, prov, err := c.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry err: %v", err)
	}
	if prov.RetryMessageID != "srv-42" {
		t.Fatalf("retry must carry the saved id, got %q", prov.RetryMessageID)
	}
	if prov.Message.Content != "hello" {
		t.Fatalf("retry must resend the same content, got %q", prov.Message.Content)
	}
	if !c.InFlight() {
		t.Fatal("retry must open a new in-flight send")
	}
}

func TestRetryWithoutFailureIsNoop(t *testing.T) {
	c := client.NewSendController()
	if _, _, err := c.Retry(context.Background()); !errors.Is(err, client.ErrNothingToDo) {
		t.Fatalf("expected ErrNothingToDo, got %v", err)
	}
}

func TestCancelledSendNeverLooksGeneric(t *testing.T) {
	c := client.NewSendController()
	ctx, _, err := c.Begin(context.Background(), "conv-1", "hello")
	if err != nil {
		t.Fatalf("Begin err: %v", err)
	}
	c.Cancel()
	<-ctx.Done()
	c.Finish(context.Canceled)

	prov := c.Provisional()
	if prov == nil || prov.Reason != "Cancelled" {
		t.Fatalf("cancellation must surface as Cancelled, got %+v", prov)
	}
}

func TestResetDropsEverything(t *testing.T) {
	c := client.NewSendController()
	ctx, _, err := c.Begin(context.Background(), "conv-1", "hello")
	if err != nil {
		t.Fatalf("Begin err: %v", err)
	}

	c.Reset()
	if c.InFlight() || c.Provisional() != nil {
		t.Fatal("reset must clear all state")
	}
	if !errors.Is(ctx.Err(), context.Canceled) {
		t.Fatal("reset must cancel the outstanding send")
	}
}

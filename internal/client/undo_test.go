package client_test

import (
	"testing"
	"time"

	"github.com/parley-app/parley/internal/client"
)

func TestUndoWithinWindow(t *testing.T) {
	now := time.Now()
	pd := client.NewPendingDelete("conv-1", now)

	if !pd.Hides("conv-1") {
		t.Fatal("pending item must be hidden immediately")
	}
	if pd.Hides("conv-2") {
		t.Fatal("other conversations stay visible")
	}

	if !pd.Undo(now.Add(client.UndoWindow / 2)) {
		t.Fatal("undo inside the window must succeed")
	}
	if pd.Hides("conv-1") {
		t.Fatal("undone item must reappear")
	}
	if pd.ShouldCommit(now.Add(client.UndoWindow * 2)) {
		t.Fatal("an undone delete must never commit")
	}
}

func TestUndoAfterWindowFails(t *testing.T) {
	now := time.Now()
	pd := client.NewPendingDelete("conv-1", now)

	if pd.Undo(now.Add(client.UndoWindow)) {
		t.Fatal("undo at the deadline must fail")
	}
	if !pd.ShouldCommit(now.Add(client.UndoWindow)) {
		t.Fatal("expired window must commit the delete")
	}
}

func TestShouldCommitBeforeDeadline(t *testing.T) {
	now := time.Now()
	pd := client.NewPendingDelete("conv-1", now)

	if pd.ShouldCommit(now.Add(client.UndoWindow - time.Millisecond)) {
		t.Fatal("must not commit while the window is open")
	}
}

func TestDoubleUndo(t *testing.T) {
	now := time.Now()
	pd := client.NewPendingDelete("conv-1", now)

	if !pd.Undo(now) {
		t.Fatal("first undo must succeed")
	}
	if pd.Undo(now) {
		t.Fatal("second undo must report nothing to do")
	}
	if !pd.Undone() {
		t.Fatal("undone state must stick")
	}
}

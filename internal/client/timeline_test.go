package client_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/parley-app/parley/internal/client"
	"github.com/parley-app/parley/internal/model/chat"
)

func makeMessages(convID string, n int, start time.Time) []chat.Message {
	messages := make([]chat.Message, n)
	for i := range messages {
		messages[i] = chat.Message{
			ID:             fmt.Sprintf("msg-%s-%03d", convID, i),
			ConversationID: convID,
			Role:           chat.RoleUser,
			Content:        fmt.Sprintf("m%03d", i),
			CreatedAt:      start.Add(time.Duration(i) * time.Second),
		}
	}
	return messages
}

func page(convID string, messages []chat.Message, hasMore bool, next string) client.ConversationPage {
	return client.ConversationPage{
		Conversation: chat.Conversation{ID: convID},
		Messages:     messages,
		HasMore:      hasMore,
		NextCursor:   next,
	}
}

func TestTimelineMergesPagesWithoutDuplicates(t *testing.T) {
	base := time.Now().UTC()
	all := makeMessages("c1", 10, base)

	tl := client.NewTimeline("c1")
	tl.ApplyLatestPage(page("c1", all[5:], true, "cur-5"))
	// Overlapping refetch must not duplicate anything.
	tl.ApplyLatestPage(page("c1", all[5:], true, "cur-5"))
	tl.ApplyOlderPage(page("c1", all[:5], false, ""))

	entries := tl.Entries(nil)
	if len(entries) != 10 {
		t.Fatalf("expected 10 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if want := fmt.Sprintf("m%03d", i); entry.Content != want {
			t.Fatalf("order broken at %d: got %s want %s", i, entry.Content, want)
		}
	}
	if tl.HasMore() {
		t.Fatal("older page said no more history")
	}
}

func TestTimelineOlderPageKeepsNewestStable(t *testing.T) {
	base := time.Now().UTC()
	all := makeMessages("c1", 8, base)

	tl := client.NewTimeline("c1")
	tl.ApplyLatestPage(page("c1", all[4:], true, "cur"))
	newestBefore := client.NewestID(tl.Entries(nil))

	tl.ApplyOlderPage(page("c1", all[:4], false, ""))
	newestAfter := client.NewestID(tl.Entries(nil))

	if newestBefore != newestAfter {
		t.Fatal("history expansion must not change the newest entry")
	}
	if client.AutoScroll(newestBefore, newestAfter) {
		t.Fatal("no auto-scroll on a backward page load")
	}
}

func TestAutoScrollOnlyOnAppend(t *testing.T) {
	if !client.AutoScroll("", "m1") {
		t.Fatal("first message must scroll")
	}
	if !client.AutoScroll("m1", "m2") {
		t.Fatal("append must scroll")
	}
	if client.AutoScroll("m2", "m2") {
		t.Fatal("unchanged newest must not scroll")
	}
	if client.AutoScroll("m2", "") {
		t.Fatal("empty transcript must not scroll")
	}
}

func TestTimelineIgnoresForeignPages(t *testing.T) {
	tl := client.NewTimeline("c1")
	tl.ApplyLatestPage(page("other", makeMessages("other", 3, time.Now().UTC()), false, ""))

	if len(tl.Entries(nil)) != 0 {
		t.Fatal("a page from another conversation must never leak in")
	}
}

func TestTimelineResetDiscardsCachedPages(t *testing.T) {
	tl := client.NewTimeline("c1")
	tl.ApplyLatestPage(page("c1", makeMessages("c1", 5, time.Now().UTC()), true, "cur"))

	tl.Reset("c2")
	if len(tl.Entries(nil)) != 0 {
		t.Fatal("reset must drop the previous conversation's pages")
	}
	if tl.HasMore() || tl.NextCursor() != "" {
		t.Fatal("reset must drop the pagination boundary")
	}
	if tl.ConversationID() != "c2" {
		t.Fatalf("timeline now belongs to c2, got %s", tl.ConversationID())
	}
}

func TestEntriesAppendsProvisional(t *testing.T) {
	base := time.Now().UTC()
	tl := client.NewTimeline("c1")
	tl.ApplyLatestPage(page("c1", makeMessages("c1", 2, base), false, ""))

	prov := &client.Provisional{
		Message: chat.Message{
			ID:        client.ProvisionalPrefix + "x",
			Role:      chat.RoleUser,
			Content:   "optimistic",
			CreatedAt: base.Add(time.Hour),
		},
	}

	entries := tl.Entries(prov)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	last := entries[len(entries)-1]
	if !last.Pending || last.Content != "optimistic" {
		t.Fatalf("provisional must render pending at the end, got %+v", last)
	}
}

func TestEntriesFoldsFailureIntoConfirmedRow(t *testing.T) {
	base := time.Now().UTC()
	confirmed := makeMessages("c1", 3, base)
	tl := client.NewTimeline("c1")
	tl.ApplyLatestPage(page("c1", confirmed, false, ""))

	// The server persisted the user turn before the provider failed; after
	// a refetch the confirmed row exists, so the annotation attaches to it
	// instead of duplicating the message.
	prov := &client.Provisional{
		Message: chat.Message{
			ID:      client.ProvisionalPrefix + "x",
			Role:    chat.RoleUser,
			Content: confirmed[2].Content,
		},
		Failed:         true,
		Reason:         "Assistant unavailable",
		RetryMessageID: confirmed[2].ID,
	}

	entries := tl.Entries(prov)
	if len(entries) != 3 {
		t.Fatalf("expected no duplicate rows, got %d entries", len(entries))
	}
	last := entries[len(entries)-1]
	if !last.Failed || last.Reason != "Assistant unavailable" {
		t.Fatalf("annotation must fold into the confirmed row, got %+v", last)
	}
	if last.ID != confirmed[2].ID {
		t.Fatal("the confirmed identity wins over the provisional one")
	}
}

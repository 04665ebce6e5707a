package history

import (
	"context"
	"testing"

	"github.com/prtysh-bhb/estatechat/internal/core"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	rec, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func TestRecorderRoundTrip(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	msgs := []core.Message{
		{ID: 1, Conversation: "7", Text: "hello", Time: "3:04PM"},
		{ID: 2, Conversation: "7", Text: "hi back", Time: "3:05PM"},
		{ID: 3, Conversation: "9", Text: "elsewhere", Time: "3:06PM"},
	}
	for _, m := range msgs {
		if err := rec.RecordMessage(ctx, m); err != nil {
			t.Fatalf("record message %d: %v", m.ID, err)
		}
	}

	got, err := rec.Recent(ctx, "7", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != 1 || got[0].Text != "hello" || got[1].ID != 2 {
		t.Fatalf("unexpected order or content: %+v", got)
	}
}

func TestRecorderRecentHonorsLimit(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		msg := core.Message{ID: i, Conversation: "7", Text: "m", Time: "3:04PM"}
		if err := rec.RecordMessage(ctx, msg); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := rec.Recent(ctx, "7", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 5 {
		t.Fatalf("unexpected window: %+v", got)
	}
}

func TestRecorderUnknownConversationIsEmpty(t *testing.T) {
	rec := openTestRecorder(t)

	got, err := rec.Recent(context.Background(), "ghost", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d messages, want 0", len(got))
	}
}

package data

import (
	"context"
	"testing"
	"time"
)

func TestTypingSetAndGet(t *testing.T) {
	c := testDB(t)
	ctx := context.Background()
	_ = c.TypingCollection().Drop(ctx)

	typing := NewTypingStore(c.TypingCollection())

	// absent row reads as nil, not an error
	state, err := typing.Get(ctx, "bo@x.com", "la@x.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil for missing row, got %+v", state)
	}

	first := time.Now().UTC().Truncate(time.Millisecond)
	if err := typing.Set(ctx, "Bo@X.com", "la@x.com", true, first); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	state, err = typing.Get(ctx, "bo@x.com", "la@x.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state == nil || !state.IsTyping || !state.UpdatedAt.Equal(first) {
		t.Fatalf("unexpected state: %+v", state)
	}

	// the row is upserted in place, not duplicated
	second := first.Add(5 * time.Second)
	if err := typing.Set(ctx, "bo@x.com", "la@x.com", false, second); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}
	state, err = typing.Get(ctx, "bo@x.com", "la@x.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state == nil || state.IsTyping || !state.UpdatedAt.Equal(second) {
		t.Fatalf("unexpected state after update: %+v", state)
	}

	// directional: the reverse row is independent
	state, err = typing.Get(ctx, "la@x.com", "bo@x.com")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil reverse row, got %+v", state)
	}
}

package unread

import "testing"

func TestMarkUnreadIdempotent(t *testing.T) {
	a := NewAggregator()
	a.MarkUnread(42, "m1")
	a.MarkUnread(42, "m1")
	a.MarkUnread(42, "m1")
	if got := a.Count(42); got != 1 {
		t.Errorf("Count(42) = %d after redelivered marks, want 1", got)
	}

	a.MarkUnread(42, "m2")
	if got := a.Count(42); got != 2 {
		t.Errorf("Count(42) = %d, want 2", got)
	}
}

func TestCountsArePerConversation(t *testing.T) {
	a := NewAggregator()
	a.MarkUnread(1, "m1")
	a.MarkUnread(2, "m2")
	a.MarkUnread(2, "m3")

	if got := a.Count(1); got != 1 {
		t.Errorf("Count(1) = %d, want 1", got)
	}
	if got := a.Count(2); got != 2 {
		t.Errorf("Count(2) = %d, want 2", got)
	}
	if got := a.Total(); got != 3 {
		t.Errorf("Total() = %d, want 3", got)
	}
}

func TestClear(t *testing.T) {
	a := NewAggregator()
	a.MarkUnread(1, "m1")
	a.MarkUnread(2, "m2")

	a.Clear(1)
	if got := a.Count(1); got != 0 {
		t.Errorf("Count(1) = %d after Clear, want 0", got)
	}
	if got := a.Count(2); got != 1 {
		t.Errorf("Count(2) = %d, Clear(1) must not touch it", got)
	}

	// Clearing an unknown conversation is harmless.
	a.Clear(99)
	if got := a.Total(); got != 1 {
		t.Errorf("Total() = %d, want 1", got)
	}
}

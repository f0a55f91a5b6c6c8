package recurrence

import (
	"testing"
	"time"
)

func TestTracker_WindowExpiry(t *testing.T) {
	now := time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(5 * time.Minute)
	tr.now = func() time.Time { return now }

	if tr.WasRecentlyInteracted("a.md") {
		t.Error("fresh tracker should report no interaction")
	}

	tr.MarkInteracted("a.md")
	if !tr.WasRecentlyInteracted("a.md") {
		t.Error("expected suppression immediately after mark")
	}

	now = now.Add(4 * time.Minute)
	if !tr.WasRecentlyInteracted("a.md") {
		t.Error("expected suppression inside the window")
	}

	now = now.Add(2 * time.Minute)
	if tr.WasRecentlyInteracted("a.md") {
		t.Error("expected no suppression after the window")
	}

	// Expired entry was evicted; a second check stays false.
	if tr.WasRecentlyInteracted("a.md") {
		t.Error("evicted entry should stay gone")
	}
}

func TestTracker_PerPath(t *testing.T) {
	tr := NewTracker(5 * time.Minute)
	tr.MarkInteracted("a.md")
	if tr.WasRecentlyInteracted("b.md") {
		t.Error("interaction on a.md must not suppress b.md")
	}
}

func TestTracker_SetWindow(t *testing.T) {
	now := time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(5 * time.Minute)
	tr.now = func() time.Time { return now }

	tr.MarkInteracted("a.md")
	now = now.Add(10 * time.Minute)
	if tr.WasRecentlyInteracted("a.md") {
		t.Fatal("outside 5m window")
	}

	// A wider window applies to entries marked afterwards.
	tr.SetWindow(30 * time.Minute)
	tr.MarkInteracted("a.md")
	now = now.Add(10 * time.Minute)
	if !tr.WasRecentlyInteracted("a.md") {
		t.Error("inside 30m window")
	}
}

func TestTracker_ClearAll(t *testing.T) {
	tr := NewTracker(5 * time.Minute)
	tr.MarkInteracted("a.md")
	tr.MarkInteracted("b.md")
	tr.ClearAll()
	if tr.WasRecentlyInteracted("a.md") || tr.WasRecentlyInteracted("b.md") {
		t.Error("entries should be gone after ClearAll")
	}
}

package recurrence

import (
	"sync"
	"time"
)

// Tracker remembers, per note path, when the user last confirmed an
// interaction, and suppresses repeated prompts inside a bounded window.
// Entries are process-lifetime only; a fresh process re-prompts.
type Tracker struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewTracker creates a tracker with the given suppression window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window:  window,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkInteracted records now() against the path.
func (t *Tracker) MarkInteracted(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[path] = t.now()
}

// WasRecentlyInteracted reports whether the path saw an interaction within
// the window. Expired entries are evicted lazily as a side effect.
func (t *Tracker) WasRecentlyInteracted(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.entries[path]
	if !ok {
		return false
	}
	if t.now().Sub(at) > t.window {
		delete(t.entries, path)
		return false
	}
	return true
}

// SetWindow changes the suppression window for subsequent checks. Existing
// entries keep their absolute timestamps; only the comparison threshold moves.
func (t *Tracker) SetWindow(window time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = window
}

// ClearAll drops every entry. Used at teardown.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]time.Time)
}

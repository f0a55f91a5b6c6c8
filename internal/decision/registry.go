// Package decision bridges the recurrence engine's blocking choice prompts to
// asynchronous UI clients: a prompt becomes a pending decision announced over
// the event stream, resolved later by an HTTP call.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/halvard/jera/internal/recurrence"
)

// EventSink publishes an event to connected UI clients.
type EventSink interface {
	Publish(eventType string, data interface{})
}

// Pending describes an unresolved decision, as surfaced to clients.
type Pending struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

type pendingEntry struct {
	view Pending
	ch   chan recurrence.Choice
}

// Registry tracks in-flight decisions by ID.
type Registry struct {
	mu      sync.Mutex
	seq     uint64
	pending map[string]*pendingEntry
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*pendingEntry)}
}

// open registers a new pending decision and returns its ID and answer channel.
func (r *Registry) open(req recurrence.Request) (string, chan recurrence.Choice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", nil, fmt.Errorf("decision: registry closed")
	}
	r.seq++
	id := fmt.Sprintf("d%06d", r.seq)
	entry := &pendingEntry{
		view: Pending{
			ID:          id,
			Kind:        string(req.Kind),
			Path:        req.Path,
			Description: req.Description,
		},
		ch: make(chan recurrence.Choice, 1),
	}
	r.pending[id] = entry
	return id, entry.ch, nil
}

// Resolve answers a pending decision. It reports whether the ID was known.
func (r *Registry) Resolve(id string, choice recurrence.Choice) bool {
	r.mu.Lock()
	entry, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	entry.ch <- choice
	return true
}

// abandon drops a pending decision without answering it.
func (r *Registry) abandon(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// List returns the currently pending decisions, for clients reconnecting to
// the event stream.
func (r *Registry) List() []Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Pending, 0, len(r.pending))
	for _, e := range r.pending {
		out = append(out, e.view)
	}
	return out
}

// Close resolves every pending decision as cancel and rejects new ones.
// Used at teardown so no prompt waits past shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.pending
	r.pending = make(map[string]*pendingEntry)
	r.closed = true
	r.mu.Unlock()
	for _, e := range entries {
		e.ch <- recurrence.ChoiceCancel
	}
}

// Prompter implements recurrence.Prompter over the registry and event stream.
type Prompter struct {
	reg    *Registry
	sink   EventSink
	logger *slog.Logger
}

// NewPrompter creates a prompter that announces decisions via sink.
func NewPrompter(reg *Registry, sink EventSink, logger *slog.Logger) *Prompter {
	return &Prompter{reg: reg, sink: sink, logger: logger}
}

// RequestChoice publishes a decision.requested event and blocks until a
// client resolves it or ctx is cancelled. There is no timeout: an unanswered
// prompt waits indefinitely.
func (p *Prompter) RequestChoice(ctx context.Context, req recurrence.Request) (recurrence.Choice, error) {
	id, ch, err := p.reg.open(req)
	if err != nil {
		return recurrence.ChoiceCancel, err
	}

	p.sink.Publish("decision.requested", Pending{
		ID:          id,
		Kind:        string(req.Kind),
		Path:        req.Path,
		Description: req.Description,
	})
	p.logger.Debug("decision: requested",
		slog.String("id", id),
		slog.String("path", req.Path),
		slog.String("kind", string(req.Kind)))

	select {
	case choice := <-ch:
		return choice, nil
	case <-ctx.Done():
		p.reg.abandon(id)
		return recurrence.ChoiceCancel, ctx.Err()
	}
}

package recurrence

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/halvard/jera/internal/models"
)

// Outcome classifies how the orchestrator resolved a trigger.
type Outcome int

const (
	// OutcomeNotApplicable means the note is not subject to recurrence
	// prompting (feature disabled, not markdown, no rule, or terminal).
	OutcomeNotApplicable Outcome = iota
	// OutcomeSuppressed means a recent interaction skipped the prompt.
	OutcomeSuppressed
	// OutcomeProceed means the user chose to keep the series as one.
	OutcomeProceed
	// OutcomeSplit means a successor was spawned and the note detached.
	OutcomeSplit
	// OutcomeCancelled means the user abandoned the pending change.
	OutcomeCancelled
)

// MetadataSource resolves the latest known frontmatter for a note. The
// backing cache may lag raw file writes.
type MetadataSource interface {
	Frontmatter(path string) (map[string]interface{}, error)
}

// Orchestrator decides, per note and pending mutation, whether to prompt the
// user, spawn a successor, strip the rule, or proceed silently. It holds the
// only piece of cross-trigger coordination in the engine: a per-note in-flight
// prompt guard that coalesces concurrent triggers into the first prompt's
// outcome, so two overlapping triggers cannot double-spawn or double-cancel.
type Orchestrator struct {
	settings Settings
	store    *Store
	tracker  *Tracker
	prompter Prompter
	meta     MetadataSource
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightPrompt
}

type inflightPrompt struct {
	done   chan struct{}
	choice Choice
	err    error
}

// NewOrchestrator wires the recurrence state machine.
func NewOrchestrator(settings Settings, store *Store, tracker *Tracker, prompter Prompter, meta MetadataSource, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		settings: settings,
		store:    store,
		tracker:  tracker,
		prompter: prompter,
		meta:     meta,
		logger:   logger,
		inflight: make(map[string]*inflightPrompt),
	}
}

// applicable implements the NotApplicable gate, in evaluation order.
func (o *Orchestrator) applicable(path string, occ models.Occurrence) bool {
	if !o.settings.Enabled {
		return false
	}
	if !strings.HasSuffix(path, ".md") {
		return false
	}
	if !occ.HasRule() {
		return false
	}
	// Terminal notes are not subject to edit-scope prompts; they go through
	// the terminal-transition flow instead.
	if o.settings.IsTerminal(occ.Status) {
		return false
	}
	return true
}

// HandleFocus runs the focus trigger for a note the user just opened.
// No mutation is pending, so every choice is informational: split spawns the
// successor, everything else only records the interaction.
func (o *Orchestrator) HandleFocus(ctx context.Context, path string) Outcome {
	return o.handleInteraction(ctx, path, KindFocus, "opening")
}

// HandleContentEdit runs the content-modification trigger. The edit has
// already landed, so cancel cannot undo it; cancel therefore only records the
// interaction to stop immediate re-prompts. This asymmetry with field
// mutations is deliberate.
func (o *Orchestrator) HandleContentEdit(ctx context.Context, path string) Outcome {
	return o.handleInteraction(ctx, path, KindEditing, "editing the contents of")
}

func (o *Orchestrator) handleInteraction(ctx context.Context, path string, kind PromptKind, desc string) Outcome {
	fm, err := o.meta.Frontmatter(path)
	if err != nil || fm == nil {
		return OutcomeNotApplicable
	}
	occ := models.OccurrenceFrom(fm)
	if !o.applicable(path, occ) {
		return OutcomeNotApplicable
	}
	if o.tracker.WasRecentlyInteracted(path) {
		// Refresh the window while the user keeps working on the note.
		o.tracker.MarkInteracted(path)
		return OutcomeSuppressed
	}

	choice := o.prompt(ctx, Request{Kind: kind, Path: path, Description: desc})
	o.tracker.MarkInteracted(path)

	switch choice {
	case ChoiceSplit:
		o.split(path, fm)
		return OutcomeSplit
	case ChoiceUpdateAll:
		return OutcomeProceed
	default:
		return OutcomeCancelled
	}
}

// GateFieldMutation runs the frontmatter-mutation trigger and reports whether
// the pending mutation may be applied. snapshot must be captured before the
// mutation. Cancel blocks the mutation; split spawns a successor from the
// pre-mutation snapshot and lets the now-detached note take the change.
func (o *Orchestrator) GateFieldMutation(ctx context.Context, path, desc string, snapshot map[string]interface{}) bool {
	occ := models.OccurrenceFrom(snapshot)
	if !o.applicable(path, occ) {
		return true
	}
	if o.tracker.WasRecentlyInteracted(path) {
		return true
	}

	choice := o.prompt(ctx, Request{Kind: KindEditing, Path: path, Description: desc})
	o.tracker.MarkInteracted(path)

	switch choice {
	case ChoiceSplit:
		o.split(path, snapshot)
		return true
	case ChoiceUpdateAll:
		return true
	default:
		return false
	}
}

// split spawns the successor and makes sure the source ends up rule-free even
// when successor creation could not complete.
func (o *Orchestrator) split(path string, snapshot map[string]interface{}) {
	res := o.store.CreateSuccessor(path, snapshot, "")
	if !res.Handled {
		if err := o.store.ClearRuleFields(path); err != nil {
			o.logger.Warn("recurrence: clear rule after failed split",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
}

// HandleTerminalTransition runs whenever a note with a rule moves into a
// terminal status, and retroactively from the healing scan. It is
// unconditional bookkeeping: no prompt, no suppression check. The note is
// guaranteed not to remain both terminal and rule-bearing. It reports whether
// the note was processed.
func (o *Orchestrator) HandleTerminalTransition(path string, snapshot map[string]interface{}, prevStatus string) bool {
	if !o.settings.Enabled {
		return false
	}
	occ := models.OccurrenceFrom(snapshot)
	if !occ.HasRule() {
		return false
	}

	res := o.store.CreateSuccessor(path, snapshot, prevStatus)
	if !res.Handled {
		if err := o.store.ClearRuleFields(path); err != nil {
			o.logger.Warn("recurrence: clear rule after failed successor",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return false
		}
	}
	return true
}

// prompt shows the decision dialog, coalescing concurrent triggers for the
// same note into one pending prompt. Prompt transport failures degrade to
// cancel, the least destructive choice.
func (o *Orchestrator) prompt(ctx context.Context, req Request) Choice {
	o.mu.Lock()
	if p, ok := o.inflight[req.Path]; ok {
		o.mu.Unlock()
		select {
		case <-p.done:
			if p.err != nil {
				return ChoiceCancel
			}
			return p.choice
		case <-ctx.Done():
			return ChoiceCancel
		}
	}
	p := &inflightPrompt{done: make(chan struct{})}
	o.inflight[req.Path] = p
	o.mu.Unlock()

	choice, err := o.prompter.RequestChoice(ctx, req)

	o.mu.Lock()
	delete(o.inflight, req.Path)
	o.mu.Unlock()

	p.choice, p.err = choice, err
	close(p.done)

	if err != nil {
		o.logger.Warn("recurrence: prompt failed",
			slog.String("path", req.Path),
			slog.String("error", err.Error()))
		return ChoiceCancel
	}
	return choice
}

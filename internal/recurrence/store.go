package recurrence

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/halvard/jera/internal/frontmatter"
	"github.com/halvard/jera/internal/models"
	"github.com/halvard/jera/internal/storage"
)

// Notifier delivers a transient, non-blocking user notice.
type Notifier func(text string)

// Store reads and writes the recurrence-relevant fields of notes without
// disturbing unrelated frontmatter or the note body.
type Store struct {
	fs            storage.Provider
	defaultStatus string
	logger        *slog.Logger
	notify        Notifier
	touched       func(path string)
	now           func() time.Time
}

// StoreOption configures optional Store collaborators.
type StoreOption func(*Store)

// WithNotifier routes transient failure notices to fn.
func WithNotifier(fn Notifier) StoreOption {
	return func(s *Store) { s.notify = fn }
}

// WithTouched registers a hook invoked for every path the store writes,
// so self-inflicted watcher events can be suppressed.
func WithTouched(fn func(path string)) StoreOption {
	return func(s *Store) { s.touched = fn }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an occurrence store. defaultStatus is assigned to newly
// spawned occurrences.
func NewStore(fs storage.Provider, defaultStatus string, logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		fs:            fs,
		defaultStatus: defaultStatus,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) touch(path string) {
	if s.touched != nil {
		s.touched(path)
	}
}

func (s *Store) note(text string) {
	if s.notify != nil {
		s.notify(text)
	}
}

// ComputeNextOccurrence returns the first occurrence of rule strictly after
// anchor. It never fails outward: a malformed or exhausted rule yields
// ok=false and a logged warning.
func (s *Store) ComputeNextOccurrence(rule string, anchor time.Time) (time.Time, bool) {
	next, err := NextAfter(rule, anchor)
	if err != nil {
		s.logger.Warn("recurrence: rule evaluation failed",
			slog.String("rule", rule),
			slog.String("error", err.Error()))
		return time.Time{}, false
	}
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// SuccessorResult is the outcome of a CreateSuccessor call.
type SuccessorResult struct {
	// Created is true when a new occurrence file was written.
	Created bool
	// Handled is true when the series invariant is satisfied afterwards:
	// either a successor exists (created now or already present) or the
	// stale rule was cleared. False means an I/O failure left the note
	// untouched and the caller should clean up.
	Handled bool
	// Path is the successor's vault path, when known.
	Path string
}

var dateSuffixRe = regexp.MustCompile(` \d{4}-\d{2}-\d{2}$`)

// successorPath derives the successor's vault path by stripping any trailing
// " YYYY-MM-DD" suffix from the source base name and appending the new date.
// It also returns the date-free base name used as the successor's title.
func successorPath(path string, date time.Time) (string, string) {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), ".md")
	base = dateSuffixRe.ReplaceAllString(base, "")
	name := base + " " + date.Format("2006-01-02") + ".md"
	if dir == "." {
		return name, base
	}
	return filepath.Join(dir, name), base
}

// CreateSuccessor spawns the next occurrence of the recurring note at path.
// fm is the frontmatter snapshot to evaluate (captured before any pending
// mutation); prevStatus is informational only and appears in logs.
//
// The successor duplicates the source's raw content, then receives a targeted
// patch of scheduled/title/status. The rule fields are stripped from the
// source once a successor exists or is known unreachable. A target file that
// already exists satisfies the invariant: nothing new is written but the
// source rule is still cleared. A partial failure after the successor file is
// written is accepted as-is; there is no rollback.
func (s *Store) CreateSuccessor(path string, fm map[string]interface{}, prevStatus string) SuccessorResult {
	occ := models.OccurrenceFrom(fm)
	if !occ.HasRule() {
		return SuccessorResult{}
	}

	anchor := s.now()
	if occ.Scheduled != "" {
		if t, ok := ParseScheduled(occ.Scheduled); ok {
			anchor = t
		}
	}

	next, ok := s.ComputeNextOccurrence(occ.Rule, anchor)
	if !ok {
		// Stale or malformed rule: clearing it beats retrying forever.
		s.logger.Warn("recurrence: no next occurrence, clearing rule",
			slog.String("path", path),
			slog.String("rule", occ.Rule))
		if err := s.ClearRuleFields(path); err != nil {
			s.logger.Warn("recurrence: clear rule failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return SuccessorResult{}
		}
		return SuccessorResult{Handled: true}
	}

	succPath, baseTitle := successorPath(path, next)

	exists, err := s.fs.Exists(succPath)
	if err != nil {
		s.logger.Warn("recurrence: successor existence check failed",
			slog.String("path", succPath),
			slog.String("error", err.Error()))
		return SuccessorResult{}
	}
	if exists {
		s.logger.Info("recurrence: successor already exists, stripping rule",
			slog.String("source", path),
			slog.String("successor", succPath))
		if err := s.ClearRuleFields(path); err != nil {
			s.logger.Warn("recurrence: clear rule failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return SuccessorResult{Path: succPath}
		}
		return SuccessorResult{Handled: true, Path: succPath}
	}

	raw, err := s.fs.Read(path)
	if err != nil {
		s.logger.Warn("recurrence: read source failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		s.note("Could not create the next occurrence of " + path)
		return SuccessorResult{}
	}

	if err := s.fs.Write(succPath, raw); err != nil {
		s.logger.Warn("recurrence: write successor failed",
			slog.String("path", succPath),
			slog.String("error", err.Error()))
		s.note("Could not create the next occurrence of " + path)
		return SuccessorResult{}
	}
	s.touch(succPath)

	// Targeted patch of only the fields that distinguish the new occurrence;
	// every other key and the body ride through untouched.
	patched, changed, err := frontmatter.Patch(raw, func(d *frontmatter.Doc) {
		d.Set(models.ScheduledField, next.Format("2006-01-02T15:04:05"))
		d.Set(models.TitleField, baseTitle)
		d.Set(models.StatusField, s.defaultStatus)
	})
	if err == nil && changed {
		err = s.fs.Write(succPath, patched)
	}
	if err != nil {
		// Accepted as-is: the duplicated file stands, no rollback.
		s.logger.Warn("recurrence: successor field patch failed",
			slog.String("path", succPath),
			slog.String("error", err.Error()))
	} else {
		s.touch(succPath)
	}

	s.logger.Info("recurrence: successor created",
		slog.String("source", path),
		slog.String("successor", succPath),
		slog.String("scheduled", next.Format("2006-01-02T15:04:05")),
		slog.String("previous_status", prevStatus))

	if err := s.ClearRuleFields(path); err != nil {
		s.logger.Warn("recurrence: clear rule failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}

	return SuccessorResult{Created: true, Handled: true, Path: succPath}
}

// ClearRuleFields removes both recurrence rule field names from the note.
// Idempotent: a note without the fields is left byte-identical.
func (s *Store) ClearRuleFields(path string) error {
	raw, err := s.fs.Read(path)
	if err != nil {
		return err
	}
	out, changed, err := frontmatter.Patch(raw, func(d *frontmatter.Doc) {
		d.Remove(models.RuleField)
		d.Remove(models.LegacyRuleField)
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := s.fs.Write(path, out); err != nil {
		return err
	}
	s.touch(path)
	return nil
}

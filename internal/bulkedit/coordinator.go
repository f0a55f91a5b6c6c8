// Package bulkedit applies metadata mutations across sets of notes, funneling
// every recurrence-bearing note through the orchestrator before the field
// patch lands.
package bulkedit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halvard/jera/internal/frontmatter"
	"github.com/halvard/jera/internal/index"
	"github.com/halvard/jera/internal/models"
	"github.com/halvard/jera/internal/parser"
	"github.com/halvard/jera/internal/recurrence"
	"github.com/halvard/jera/internal/storage"
)

// Coordinator is the entry point other surfaces (HTTP API, MCP tools) call
// for bulk metadata mutations. Per-file failures are aggregated without
// aborting the batch; the returned count covers files actually mutated,
// excluding those skipped by cancel or error.
type Coordinator struct {
	fs       storage.Provider
	db       *index.DB
	orch     *recurrence.Orchestrator
	settings recurrence.Settings
	logger   *slog.Logger
	notify   recurrence.Notifier
	touched  func(path string)
	settle   time.Duration
}

// Option configures optional Coordinator collaborators.
type Option func(*Coordinator)

// WithNotifier routes transient failure notices to fn.
func WithNotifier(fn recurrence.Notifier) Option {
	return func(c *Coordinator) { c.notify = fn }
}

// WithTouched registers a hook invoked for every path the coordinator writes.
func WithTouched(fn func(path string)) Option {
	return func(c *Coordinator) { c.touched = fn }
}

// WithSettleDelay sets the pause between setting a rule on a terminal note
// and spawning its successor, giving the metadata cache time to re-index.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.settle = d }
}

// NewCoordinator creates a bulk mutation coordinator.
func NewCoordinator(fs storage.Provider, db *index.DB, orch *recurrence.Orchestrator, settings recurrence.Settings, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		fs:       fs,
		db:       db,
		orch:     orch,
		settings: settings,
		logger:   logger,
		settle:   250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) touch(path string) {
	if c.touched != nil {
		c.touched(path)
	}
}

func (c *Coordinator) note(text string) {
	if c.notify != nil {
		c.notify(text)
	}
}

// snapshot reads and parses the current state of a note.
func (c *Coordinator) snapshot(path string) ([]byte, map[string]interface{}, error) {
	raw, err := c.fs.Read(path)
	if err != nil {
		return nil, nil, err
	}
	res, err := parser.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, res.Frontmatter, nil
}

// apply patches the note on disk and refreshes the index entry.
func (c *Coordinator) apply(path string, raw []byte, fn func(*frontmatter.Doc)) error {
	patched, changed, err := frontmatter.Patch(raw, fn)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := c.fs.Write(path, patched); err != nil {
		return err
	}
	c.touch(path)
	if err := index.IndexFile(c.db, path, patched); err != nil {
		c.logger.Warn("bulkedit: reindex failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return nil
}

// ApplyFieldMutation routes the mutation through the orchestrator for each
// note and applies fn to those that pass the gate. desc frames the decision
// prompt, e.g. "changing the scheduled time of".
func (c *Coordinator) ApplyFieldMutation(ctx context.Context, paths []string, desc string, fn func(*frontmatter.Doc)) int {
	count := 0
	for _, path := range paths {
		_, fm, err := c.snapshot(path)
		if err != nil {
			c.logger.Warn("bulkedit: snapshot failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			c.note("Could not update " + path)
			continue
		}

		if !c.orch.GateFieldMutation(ctx, path, desc, fm) {
			continue // user cancelled: zero effect for this note
		}

		// Re-read after the gate: a split strips the rule from this note.
		raw, err := c.fs.Read(path)
		if err != nil {
			c.logger.Warn("bulkedit: re-read failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			c.note("Could not update " + path)
			continue
		}
		if err := c.apply(path, raw, fn); err != nil {
			c.logger.Warn("bulkedit: patch failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			c.note("Could not update " + path)
			continue
		}
		count++
	}
	return count
}

// SetStatus sets the status field on every note. A transition into a
// configured terminal status first runs the successor flow for each
// rule-bearing note; that path is unconditional bookkeeping and never
// prompts.
func (c *Coordinator) SetStatus(ctx context.Context, paths []string, status string) int {
	if !c.settings.IsTerminal(status) {
		return c.ApplyFieldMutation(ctx, paths, "changing the status of",
			func(d *frontmatter.Doc) { d.Set(models.StatusField, status) })
	}

	count := 0
	for _, path := range paths {
		_, fm, err := c.snapshot(path)
		if err != nil {
			c.logger.Warn("bulkedit: snapshot failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			c.note("Could not update " + path)
			continue
		}

		occ := models.OccurrenceFrom(fm)
		if occ.HasRule() {
			c.orch.HandleTerminalTransition(path, fm, occ.Status)
		}

		raw, err := c.fs.Read(path)
		if err != nil {
			c.note("Could not update " + path)
			continue
		}
		if err := c.apply(path, raw, func(d *frontmatter.Doc) {
			d.Set(models.StatusField, status)
		}); err != nil {
			c.logger.Warn("bulkedit: status patch failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			c.note("Could not update " + path)
			continue
		}
		count++
	}
	return count
}

// SetRule sets the recurrence rule, migrating any legacy field name. Setting
// a rule on a note already in terminal status retroactively spawns the next
// occurrence after a short settle delay.
func (c *Coordinator) SetRule(ctx context.Context, paths []string, rule string) int {
	count := c.ApplyFieldMutation(ctx, paths, "changing the recurrence rule of",
		func(d *frontmatter.Doc) {
			d.Set(models.RuleField, rule)
			d.Remove(models.LegacyRuleField)
		})

	var retro []string
	for _, path := range paths {
		_, fm, err := c.snapshot(path)
		if err != nil {
			continue
		}
		occ := models.OccurrenceFrom(fm)
		if occ.HasRule() && c.settings.IsTerminal(occ.Status) {
			retro = append(retro, path)
		}
	}
	if len(retro) == 0 {
		return count
	}

	// Let the metadata cache settle before spawning.
	select {
	case <-time.After(c.settle):
	case <-ctx.Done():
		return count
	}
	for _, path := range retro {
		_, fm, err := c.snapshot(path)
		if err != nil {
			continue
		}
		occ := models.OccurrenceFrom(fm)
		c.orch.HandleTerminalTransition(path, fm, occ.Status)
	}
	return count
}

// ClearRule removes both rule field names from every note.
func (c *Coordinator) ClearRule(ctx context.Context, paths []string) int {
	return c.ApplyFieldMutation(ctx, paths, "removing the recurrence rule of",
		func(d *frontmatter.Doc) {
			d.Remove(models.RuleField)
			d.Remove(models.LegacyRuleField)
		})
}

// AddTag appends tag to each note's frontmatter tag list.
func (c *Coordinator) AddTag(ctx context.Context, paths []string, tag string) int {
	return c.ApplyFieldMutation(ctx, paths, fmt.Sprintf("adding tag %q to", tag),
		func(d *frontmatter.Doc) {
			tags := d.StringList(models.TagsField)
			for _, t := range tags {
				if t == tag {
					return
				}
			}
			d.SetStringList(models.TagsField, append(tags, tag))
		})
}

// RemoveTag deletes tag from each note's frontmatter tag list.
func (c *Coordinator) RemoveTag(ctx context.Context, paths []string, tag string) int {
	return c.ApplyFieldMutation(ctx, paths, fmt.Sprintf("removing tag %q from", tag),
		func(d *frontmatter.Doc) {
			tags := d.StringList(models.TagsField)
			var out []string
			for _, t := range tags {
				if t != tag {
					out = append(out, t)
				}
			}
			if len(out) == len(tags) {
				return
			}
			d.SetStringList(models.TagsField, out)
		})
}

// SetField sets an arbitrary scalar frontmatter field. The rule and status
// fields have dedicated entry points with extra semantics.
func (c *Coordinator) SetField(ctx context.Context, paths []string, key, value string) int {
	switch key {
	case models.RuleField, models.LegacyRuleField:
		return c.SetRule(ctx, paths, value)
	case models.StatusField:
		return c.SetStatus(ctx, paths, value)
	}
	desc := fmt.Sprintf("changing %s of", key)
	if key == models.ScheduledField {
		desc = "changing the scheduled time of"
	}
	return c.ApplyFieldMutation(ctx, paths, desc,
		func(d *frontmatter.Doc) { d.Set(key, value) })
}

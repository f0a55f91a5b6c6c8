package bulkedit

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halvard/jera/internal/index"
	"github.com/halvard/jera/internal/parser"
	"github.com/halvard/jera/internal/recurrence"
	"github.com/halvard/jera/internal/storage"
	"github.com/halvard/jera/internal/testutil"
)

type scriptedPrompter struct {
	choice recurrence.Choice
	calls  atomic.Int32
}

func (p *scriptedPrompter) RequestChoice(ctx context.Context, req recurrence.Request) (recurrence.Choice, error) {
	p.calls.Add(1)
	return p.choice, nil
}

// nilMeta satisfies recurrence.MetadataSource; bulk mutations pass explicit
// snapshots, so the orchestrator never consults it here.
type nilMeta struct{}

func (nilMeta) Frontmatter(string) (map[string]interface{}, error) { return nil, nil }

type fixture struct {
	coord    *Coordinator
	fs       storage.Provider
	db       *index.DB
	prompter *scriptedPrompter
}

func newFixture(t *testing.T, choice recurrence.Choice) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	_, fs := testutil.TestVault(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	settings := recurrence.Settings{
		Enabled:          true,
		TerminalStatuses: []string{"complete", "wont-do"},
		DefaultStatus:    "open",
	}
	store := recurrence.NewStore(fs, "open", logger)
	tracker := recurrence.NewTracker(5 * time.Minute)
	prompter := &scriptedPrompter{choice: choice}
	orch := recurrence.NewOrchestrator(settings, store, tracker, prompter, nilMeta{}, logger)

	coord := NewCoordinator(fs, db, orch, settings, logger,
		WithSettleDelay(time.Millisecond))
	return &fixture{coord: coord, fs: fs, db: db, prompter: prompter}
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	if err := f.fs.Write(path, []byte(content)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := index.IndexFile(f.db, path, []byte(content)); err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
}

func (f *fixture) frontmatter(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	raw, err := f.fs.Read(path)
	if err != nil {
		t.Fatalf("Read %s: %v", path, err)
	}
	res, err := parser.Parse(raw)
	if err != nil {
		t.Fatalf("Parse %s: %v", path, err)
	}
	return res.Frontmatter
}

const recurring = "---\ntitle: standup 2025-01-20\nstatus: open\nscheduled: 2025-01-20T09:00:00\nrecurrenceRule: FREQ=WEEKLY;BYDAY=MO\n---\nbody\n"

func TestAddTag_PlainNoteNoPrompt(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceCancel)
	f.write(t, "plain.md", "---\ntitle: Plain\n---\nbody\n")

	n := f.coord.AddTag(context.Background(), []string{"plain.md"}, "work")
	if n != 1 {
		t.Fatalf("affected = %d, want 1", n)
	}
	if f.prompter.calls.Load() != 0 {
		t.Error("non-recurring note must not prompt")
	}

	fm := f.frontmatter(t, "plain.md")
	tags, _ := fm["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "work" {
		t.Errorf("tags = %v", tags)
	}

	// The index entry follows the write.
	row, err := f.db.GetNote("plain.md")
	if err != nil || row == nil {
		t.Fatalf("GetNote: %v, %v", row, err)
	}
	if len(row.Tags) != 1 || row.Tags[0] != "work" {
		t.Errorf("indexed tags = %v", row.Tags)
	}
}

func TestAddTag_AlreadyPresentIsNoop(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceUpdateAll)
	f.write(t, "tagged.md", "---\ntitle: Tagged\ntags:\n  - work\n---\nbody\n")

	before, _ := f.fs.Read("tagged.md")
	n := f.coord.AddTag(context.Background(), []string{"tagged.md"}, "work")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	after, _ := f.fs.Read("tagged.md")
	if string(before) != string(after) {
		t.Error("duplicate tag rewrote the file")
	}
}

func TestAddTag_CancelBlocksRecurringNote(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceCancel)
	f.write(t, "standup 2025-01-20.md", recurring)

	n := f.coord.AddTag(context.Background(), []string{"standup 2025-01-20.md"}, "work")
	if n != 0 {
		t.Fatalf("affected = %d, want 0", n)
	}
	fm := f.frontmatter(t, "standup 2025-01-20.md")
	if _, ok := fm["tags"]; ok {
		t.Error("cancel must leave the note untouched")
	}
}

func TestAddTag_SplitDetachesThenApplies(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceSplit)
	f.write(t, "standup 2025-01-20.md", recurring)

	n := f.coord.AddTag(context.Background(), []string{"standup 2025-01-20.md"}, "work")
	if n != 1 {
		t.Fatalf("affected = %d, want 1", n)
	}

	// Successor spawned from the pre-mutation snapshot, without the new tag.
	succ := f.frontmatter(t, "standup 2025-01-27.md")
	if _, ok := succ["tags"]; ok {
		t.Error("successor must not receive the pending tag")
	}
	if succ["recurrenceRule"] != "FREQ=WEEKLY;BYDAY=MO" {
		t.Errorf("successor rule = %v", succ["recurrenceRule"])
	}

	// Source is detached and carries the tag.
	src := f.frontmatter(t, "standup 2025-01-20.md")
	if _, ok := src["recurrenceRule"]; ok {
		t.Error("source still carries the rule")
	}
	tags, _ := src["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "work" {
		t.Errorf("source tags = %v", tags)
	}
}

func TestRemoveTag(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceUpdateAll)
	f.write(t, "tagged.md", "---\ntitle: Tagged\ntags:\n  - work\n  - home\n---\nbody\n")

	n := f.coord.RemoveTag(context.Background(), []string{"tagged.md"}, "work")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	fm := f.frontmatter(t, "tagged.md")
	tags, _ := fm["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "home" {
		t.Errorf("tags = %v", tags)
	}
}

func TestSetStatus_NonTerminalGoesThroughGate(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceUpdateAll)
	f.write(t, "standup 2025-01-20.md", recurring)

	n := f.coord.SetStatus(context.Background(), []string{"standup 2025-01-20.md"}, "in-progress")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	if f.prompter.calls.Load() != 1 {
		t.Errorf("prompter calls = %d, want 1", f.prompter.calls.Load())
	}
	fm := f.frontmatter(t, "standup 2025-01-20.md")
	if fm["status"] != "in-progress" {
		t.Errorf("status = %v", fm["status"])
	}
	if fm["recurrenceRule"] != "FREQ=WEEKLY;BYDAY=MO" {
		t.Error("non-terminal change must keep the rule")
	}
}

func TestSetStatus_TerminalSpawnsWithoutPrompt(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceCancel) // a prompt would cancel; none may fire
	f.write(t, "standup 2025-01-20.md", recurring)

	n := f.coord.SetStatus(context.Background(), []string{"standup 2025-01-20.md"}, "complete")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	if f.prompter.calls.Load() != 0 {
		t.Errorf("terminal transition prompted %d times", f.prompter.calls.Load())
	}

	src := f.frontmatter(t, "standup 2025-01-20.md")
	if src["status"] != "complete" {
		t.Errorf("status = %v", src["status"])
	}
	if _, ok := src["recurrenceRule"]; ok {
		t.Error("completed note still carries the rule")
	}

	succ := f.frontmatter(t, "standup 2025-01-27.md")
	if succ["status"] != "open" {
		t.Errorf("successor status = %v", succ["status"])
	}
	if succ["scheduled"] != "2025-01-27T09:00:00" {
		t.Errorf("successor scheduled = %v", succ["scheduled"])
	}
}

func TestSetStatus_TerminalPlainNote(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceCancel)
	f.write(t, "plain.md", "---\ntitle: Plain\nstatus: open\n---\nbody\n")

	n := f.coord.SetStatus(context.Background(), []string{"plain.md"}, "complete")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	fm := f.frontmatter(t, "plain.md")
	if fm["status"] != "complete" {
		t.Errorf("status = %v", fm["status"])
	}
}

func TestSetRule_MigratesLegacyField(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceUpdateAll)
	f.write(t, "old.md", "---\ntitle: Old\nstatus: open\nrecurrence: FREQ=MONTHLY\n---\nbody\n")

	n := f.coord.SetRule(context.Background(), []string{"old.md"}, "FREQ=WEEKLY")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	fm := f.frontmatter(t, "old.md")
	if fm["recurrenceRule"] != "FREQ=WEEKLY" {
		t.Errorf("rule = %v", fm["recurrenceRule"])
	}
	if _, ok := fm["recurrence"]; ok {
		t.Error("legacy field must be removed on write")
	}
}

func TestSetRule_OnTerminalNoteSpawnsRetroactively(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceCancel)
	f.write(t, "done 2025-01-20.md", "---\ntitle: done 2025-01-20\nstatus: complete\nscheduled: 2025-01-20T09:00:00\n---\nbody\n")

	n := f.coord.SetRule(context.Background(), []string{"done 2025-01-20.md"}, "FREQ=DAILY")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	if ok, _ := f.fs.Exists("done 2025-01-21.md"); !ok {
		t.Error("retroactive successor not created")
	}
	src := f.frontmatter(t, "done 2025-01-20.md")
	if _, ok := src["recurrenceRule"]; ok {
		t.Error("terminal note should be detached after the spawn")
	}
}

func TestClearRule(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceUpdateAll)
	f.write(t, "both.md", "---\ntitle: Both\nstatus: open\nrecurrenceRule: FREQ=DAILY\nrecurrence: FREQ=WEEKLY\n---\nbody\n")

	n := f.coord.ClearRule(context.Background(), []string{"both.md"})
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	fm := f.frontmatter(t, "both.md")
	if _, ok := fm["recurrenceRule"]; ok {
		t.Error("rule not cleared")
	}
	if _, ok := fm["recurrence"]; ok {
		t.Error("legacy field not cleared")
	}
}

func TestSetField_ArbitraryKey(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceUpdateAll)
	f.write(t, "plain.md", "---\ntitle: Plain\n---\nbody\n")

	n := f.coord.SetField(context.Background(), []string{"plain.md"}, "priority", "high")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	fm := f.frontmatter(t, "plain.md")
	if fm["priority"] != "high" {
		t.Errorf("priority = %v", fm["priority"])
	}
}

func TestSetField_DelegatesStatusSemantics(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceCancel)
	f.write(t, "standup 2025-01-20.md", recurring)

	n := f.coord.SetField(context.Background(), []string{"standup 2025-01-20.md"}, "status", "complete")
	if n != 1 {
		t.Fatalf("affected = %d", n)
	}
	// Terminal semantics apply: no prompt, successor spawned.
	if f.prompter.calls.Load() != 0 {
		t.Errorf("prompter calls = %d", f.prompter.calls.Load())
	}
	if ok, _ := f.fs.Exists("standup 2025-01-27.md"); !ok {
		t.Error("successor not created via SetField delegation")
	}
}

func TestBatch_PartialFailureContinues(t *testing.T) {
	f := newFixture(t, recurrence.ChoiceUpdateAll)
	f.write(t, "a.md", "---\ntitle: A\n---\nbody\n")
	f.write(t, "c.md", "---\ntitle: C\n---\nbody\n")

	n := f.coord.AddTag(context.Background(), []string{"a.md", "missing.md", "c.md"}, "work")
	if n != 2 {
		t.Errorf("affected = %d, want 2 (missing file skipped)", n)
	}
}

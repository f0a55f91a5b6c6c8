package recurrence

import (
	"context"
	"testing"
	"time"

	"github.com/halvard/jera/internal/parser"
	"github.com/halvard/jera/internal/storage"
)

// staticCandidates is a CandidateSource backed by a fixed slice.
type staticCandidates []string

func (s staticCandidates) HealingCandidates([]string) ([]string, error) {
	return s, nil
}

func newScannerFixture(t *testing.T, candidates []string) (*Scanner, storage.Provider) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	logger := testLogger()
	store := NewStore(fs, "open", logger)
	tracker := NewTracker(5 * time.Minute)
	meta := &mapMeta{m: make(map[string]map[string]interface{})}
	orch := NewOrchestrator(testSettings(), store, tracker, &scriptedPrompter{choice: ChoiceCancel}, meta, logger)
	return NewScanner(testSettings(), orch, staticCandidates(candidates), fs, logger), fs
}

func TestScanAndHeal_SpawnsMissingSuccessors(t *testing.T) {
	stuck := "standup 2025-01-20.md"
	scanner, fs := newScannerFixture(t, []string{stuck})
	_ = fs.Write(stuck, []byte("---\ntitle: standup 2025-01-20\nstatus: complete\nscheduled: 2025-01-20T09:00:00\nrecurrenceRule: FREQ=WEEKLY;BYDAY=MO\n---\nbody\n"))

	healed, err := scanner.ScanAndHeal(context.Background())
	if err != nil {
		t.Fatalf("ScanAndHeal: %v", err)
	}
	if healed != 1 {
		t.Errorf("healed = %d, want 1", healed)
	}
	if ok, _ := fs.Exists("standup 2025-01-27.md"); !ok {
		t.Error("successor not created")
	}
	raw, _ := fs.Read(stuck)
	res, _ := parser.Parse(raw)
	if _, ok := res.Frontmatter["recurrenceRule"]; ok {
		t.Error("healed note still carries the rule")
	}
}

func TestScanAndHeal_ReVerifiesAgainstFile(t *testing.T) {
	// The index thinks this note is stuck, but the file on disk has already
	// been detached. The candidate must be skipped.
	lagged := "fresh.md"
	scanner, fs := newScannerFixture(t, []string{lagged})
	_ = fs.Write(lagged, []byte("---\ntitle: Fresh\nstatus: complete\n---\nbody\n"))

	healed, err := scanner.ScanAndHeal(context.Background())
	if err != nil {
		t.Fatalf("ScanAndHeal: %v", err)
	}
	if healed != 0 {
		t.Errorf("healed = %d, want 0", healed)
	}
}

func TestScanAndHeal_SkipsMissingFiles(t *testing.T) {
	scanner, _ := newScannerFixture(t, []string{"gone.md"})
	healed, err := scanner.ScanAndHeal(context.Background())
	if err != nil {
		t.Fatalf("ScanAndHeal: %v", err)
	}
	if healed != 0 {
		t.Errorf("healed = %d, want 0", healed)
	}
}

func TestScanAndHeal_Idempotent(t *testing.T) {
	stuck := "daily 2025-01-20.md"
	scanner, fs := newScannerFixture(t, []string{stuck})
	_ = fs.Write(stuck, []byte("---\ntitle: Daily\nstatus: complete\nscheduled: 2025-01-20T09:00:00\nrecurrenceRule: FREQ=DAILY\n---\nbody\n"))

	if healed, err := scanner.ScanAndHeal(context.Background()); err != nil || healed != 1 {
		t.Fatalf("first scan: healed=%d err=%v", healed, err)
	}
	// The rule is gone from the file now; a second pass finds nothing to do.
	if healed, err := scanner.ScanAndHeal(context.Background()); err != nil || healed != 0 {
		t.Errorf("second scan: healed=%d err=%v", healed, err)
	}
}

func TestScanAndHeal_Disabled(t *testing.T) {
	scanner, _ := newScannerFixture(t, []string{"x.md"})
	scanner.settings.Enabled = false
	healed, err := scanner.ScanAndHeal(context.Background())
	if err != nil || healed != 0 {
		t.Errorf("disabled scan: healed=%d err=%v", healed, err)
	}
}

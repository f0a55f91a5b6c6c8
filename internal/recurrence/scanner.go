package recurrence

import (
	"context"
	"log/slog"

	"github.com/halvard/jera/internal/models"
	"github.com/halvard/jera/internal/parser"
	"github.com/halvard/jera/internal/storage"
)

// CandidateSource lists notes that look like they need healing: rule present
// while the status sits in the terminal set.
type CandidateSource interface {
	HealingCandidates(terminalStatuses []string) ([]string, error)
}

// Scanner retroactively enforces the series invariant: no note may stay both
// terminal and rule-bearing. It replays the terminal-transition flow for
// every candidate, healing notes that were completed while the engine was
// not running or whose successor creation partially failed.
type Scanner struct {
	settings Settings
	orch     *Orchestrator
	index    CandidateSource
	fs       storage.Provider
	logger   *slog.Logger
}

// NewScanner creates a healing scanner.
func NewScanner(settings Settings, orch *Orchestrator, index CandidateSource, fs storage.Provider, logger *slog.Logger) *Scanner {
	return &Scanner{
		settings: settings,
		orch:     orch,
		index:    index,
		fs:       fs,
		logger:   logger,
	}
}

// ScanAndHeal enumerates candidates and heals each one, returning the number
// of notes processed. Candidates are re-verified against the raw file before
// healing, since the index may lag. Not safe for concurrent invocation; a
// single scheduled run is expected.
func (s *Scanner) ScanAndHeal(ctx context.Context) (int, error) {
	if !s.settings.Enabled {
		return 0, nil
	}

	candidates, err := s.index.HealingCandidates(s.settings.TerminalStatuses)
	if err != nil {
		return 0, err
	}

	healed := 0
	for _, path := range candidates {
		select {
		case <-ctx.Done():
			return healed, ctx.Err()
		default:
		}

		raw, err := s.fs.Read(path)
		if err != nil {
			s.logger.Warn("heal: read failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		res, err := parser.Parse(raw)
		if err != nil {
			s.logger.Warn("heal: parse failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		occ := models.OccurrenceFrom(res.Frontmatter)
		if !occ.HasRule() || !s.settings.IsTerminal(occ.Status) {
			continue // index lagged behind the file
		}

		if s.orch.HandleTerminalTransition(path, res.Frontmatter, "") {
			healed++
		}
	}

	if healed > 0 {
		s.logger.Info("heal: scan complete", slog.Int("healed", healed))
	}
	return healed, nil
}

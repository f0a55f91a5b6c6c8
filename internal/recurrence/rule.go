// Package recurrence implements the lifecycle engine for recurring notes:
// computing next occurrences, spawning successor notes, prompting for
// scope-of-edit decisions, and healing series whose successor is missing.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Settings is the immutable configuration shared by the recurrence components.
type Settings struct {
	// Enabled turns the whole engine on or off.
	Enabled bool
	// TerminalStatuses marks a note as done for recurrence purposes.
	TerminalStatuses []string
	// DefaultStatus is assigned to newly spawned occurrences.
	DefaultStatus string
}

// IsTerminal reports whether status is in the configured terminal set.
func (s Settings) IsTerminal(status string) bool {
	for _, t := range s.TerminalStatuses {
		if t == status {
			return true
		}
	}
	return false
}

// NextAfter evaluates an RFC-5545 style rule seeded with dtstart = anchor and
// returns the first occurrence strictly after anchor. Seeding with the anchor
// rather than wall-clock now keeps relative frequencies ("monthly") tied to
// the event's own date. A zero time with nil error means the rule is valid
// but yields nothing further.
func NextAfter(ruleText string, anchor time.Time) (time.Time, error) {
	text := strings.TrimSpace(ruleText)
	text = strings.TrimPrefix(text, "RRULE:")

	opt, err := rrule.StrToROption(text)
	if err != nil {
		return time.Time{}, fmt.Errorf("recurrence: parse rule %q: %w", ruleText, err)
	}
	opt.Dtstart = anchor

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, fmt.Errorf("recurrence: build rule %q: %w", ruleText, err)
	}
	return r.After(anchor, false), nil
}

// scheduledFormats are the date shapes accepted in the scheduled field.
var scheduledFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
}

// ParseScheduled parses the scheduled frontmatter value.
func ParseScheduled(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range scheduledFormats {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

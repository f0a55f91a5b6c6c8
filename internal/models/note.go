// Package models defines the domain types for Jera.
package models

import "time"

// Frontmatter field names the recurrence engine reads and writes. RuleField
// is the canonical key; LegacyRuleField is read-compatible but never written
// by new code.
const (
	RuleField       = "recurrenceRule"
	LegacyRuleField = "recurrence"
	ScheduledField  = "scheduled"
	StatusField     = "status"
	TitleField      = "title"
	TagsField       = "tags"
)

// Note represents a parsed Markdown file in the vault.
type Note struct {
	Path        string                 `json:"path"`
	Content     []byte                 `json:"-"`
	Body        string                 `json:"body"`
	Frontmatter map[string]interface{} `json:"frontmatter,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Checksum    string                 `json:"checksum"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Occurrence is the recurrence-relevant view of a note's frontmatter.
// LegacyRule reports whether the rule came from the legacy field name.
type Occurrence struct {
	Rule       string
	LegacyRule bool
	Scheduled  string
	Status     string
	Title      string
}

// HasRule reports whether the note carries a recurrence rule under either
// field name.
func (o Occurrence) HasRule() bool {
	return o.Rule != ""
}

// OccurrenceFrom extracts the recurrence view from a raw frontmatter map.
// The canonical rule field wins when both are present.
func OccurrenceFrom(fm map[string]interface{}) Occurrence {
	var o Occurrence
	if fm == nil {
		return o
	}
	if s, ok := fm[RuleField].(string); ok && s != "" {
		o.Rule = s
	} else if s, ok := fm[LegacyRuleField].(string); ok && s != "" {
		o.Rule = s
		o.LegacyRule = true
	}
	o.Scheduled = stringField(fm, ScheduledField)
	o.Status = stringField(fm, StatusField)
	o.Title = stringField(fm, TitleField)
	return o
}

// stringField tolerates yaml.v3 resolving bare dates to time.Time.
func stringField(fm map[string]interface{}, key string) string {
	switch v := fm[key].(type) {
	case string:
		return v
	case time.Time:
		return v.Format("2006-01-02T15:04:05")
	}
	return ""
}

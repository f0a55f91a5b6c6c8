package api

import "github.com/halvard/jera/internal/noteservice"

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
}

// PathRequest carries a single note path (focus and modified notifications).
type PathRequest struct {
	Path string `json:"path"`
}

// BulkStatusRequest sets a status across notes.
type BulkStatusRequest struct {
	Paths  []string `json:"paths"`
	Status string   `json:"status"`
}

// BulkRuleRequest sets or clears a recurrence rule across notes.
type BulkRuleRequest struct {
	Paths []string `json:"paths"`
	Rule  string   `json:"rule"`
}

// BulkTagRequest adds or removes a tag across notes.
type BulkTagRequest struct {
	Paths []string `json:"paths"`
	Tag   string   `json:"tag"`
}

// BulkFieldRequest sets an arbitrary scalar frontmatter field across notes.
type BulkFieldRequest struct {
	Paths []string `json:"paths"`
	Key   string   `json:"key"`
	Value string   `json:"value"`
}

// BulkResponse reports how many files a bulk mutation affected.
type BulkResponse struct {
	Affected int `json:"affected"`
}

// DecisionRequest answers a pending decision prompt.
type DecisionRequest struct {
	Choice string `json:"choice"`
}

// WindowRequest reconfigures the suppression window at runtime.
type WindowRequest struct {
	Minutes int `json:"minutes"`
}

// ScanResponse reports the result of a healing scan.
type ScanResponse struct {
	Healed int `json:"healed"`
}

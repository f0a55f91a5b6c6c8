// Package noteservice coordinates vault storage and the metadata index for
// note CRUD operations.
package noteservice

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/halvard/jera/internal/apperr"
	"github.com/halvard/jera/internal/checksum"
	"github.com/halvard/jera/internal/index"
	"github.com/halvard/jera/internal/models"
	"github.com/halvard/jera/internal/parser"
	"github.com/halvard/jera/internal/storage"
)

// NoteDetail is the full representation of a note, including the
// recurrence-relevant fields.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Status      string         `json:"status,omitempty"`
	Rule        string         `json:"recurrenceRule,omitempty"`
	Scheduled   string         `json:"scheduled,omitempty"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	Status    string    `json:"status,omitempty"`
	Rule      string    `json:"recurrenceRule,omitempty"`
	Scheduled string    `json:"scheduled,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage and index operations.
type Service struct {
	store storage.Provider
	db    *index.DB
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB) *Service {
	return &Service{store: store, db: db}
}

// GetNote reads a note from storage and parses it.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return buildNoteDetail(path, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, path, content); err != nil {
		return nil, err
	}
	return buildNoteDetail(path, content)
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := index.IndexFile(s.db, path, content); err != nil {
		return nil, err
	}
	return buildNoteDetail(path, content)
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		return err
	}
	return s.db.DeleteNote(path)
}

// ListNotes returns paginated notes with optional tag and status filters.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, status, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, status, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			Status:    r.Status,
			Rule:      r.Rule,
			Scheduled: r.Scheduled,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	occ := models.OccurrenceFrom(res.Frontmatter)
	return &NoteDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Status:      occ.Status,
		Rule:        occ.Rule,
		Scheduled:   occ.Scheduled,
		Frontmatter: res.Frontmatter,
		UpdatedAt:   time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

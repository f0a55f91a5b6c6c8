package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Status    string
	Rule      string
	Scheduled string
	Tags      []string
	UpdatedAt time.Time
}

// UpsertNote inserts or replaces a note row together with its frontmatter
// snapshot.
func (db *DB) UpsertNote(n NoteRow, frontmatter map[string]interface{}) error {
	tagsJSON, _ := json.Marshal(n.Tags)
	fmJSON, err := json.Marshal(frontmatter)
	if err != nil {
		fmJSON = []byte("{}")
	}

	_, err = db.conn.Exec(`
		INSERT INTO notes (path, title, checksum, status, rule, scheduled, tags, frontmatter, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			checksum    = excluded.checksum,
			status      = excluded.status,
			rule        = excluded.rule,
			scheduled   = excluded.scheduled,
			tags        = excluded.tags,
			frontmatter = excluded.frontmatter,
			updated_at  = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, n.Status, n.Rule, n.Scheduled, string(tagsJSON), string(fmJSON), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes a note row.
func (db *DB) DeleteNote(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return nil
}

// GetNote returns the stored row for a note, or nil when not indexed.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	var n NoteRow
	var tagsJSON string
	err := db.conn.QueryRow(`
		SELECT path, title, checksum, status, rule, scheduled, tags, updated_at
		FROM notes WHERE path = ?
	`, path).Scan(&n.Path, &n.Title, &n.Checksum, &n.Status, &n.Rule, &n.Scheduled, &tagsJSON, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	return &n, nil
}

// Frontmatter returns the indexed frontmatter snapshot for a note, or nil
// when not indexed.
func (db *DB) Frontmatter(path string) (map[string]interface{}, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT frontmatter FROM notes WHERE path = ?`, path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: frontmatter: %w", err)
	}
	var fm map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, fmt.Errorf("index: frontmatter decode: %w", err)
	}
	return fm, nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// ListNotes returns paginated note rows with optional tag and status filters.
func (db *DB) ListNotes(limit, offset int, tag, status, sort string) ([]NoteRow, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	where := "1=1"
	var args []interface{}
	if tag != "" {
		where += ` AND tags LIKE ?`
		args = append(args, `%"`+tag+`"%`)
	}
	if status != "" {
		where += ` AND status = ?`
		args = append(args, status)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	order := "updated_at DESC"
	switch sort {
	case "title":
		order = "title COLLATE NOCASE ASC"
	case "path":
		order = "path ASC"
	case "scheduled":
		order = "scheduled ASC"
	}

	rows, err := db.conn.Query(`
		SELECT path, title, checksum, status, rule, scheduled, tags, updated_at
		FROM notes WHERE `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var n NoteRow
		var tagsJSON string
		if err := rows.Scan(&n.Path, &n.Title, &n.Checksum, &n.Status, &n.Rule, &n.Scheduled, &tagsJSON, &n.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// HealingCandidates returns the paths of notes that carry a recurrence rule
// while sitting in one of the given terminal statuses.
func (db *DB) HealingCandidates(terminalStatuses []string) ([]string, error) {
	if len(terminalStatuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(terminalStatuses))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(terminalStatuses))
	for i, s := range terminalStatuses {
		args[i] = s
	}

	rows, err := db.conn.Query(
		`SELECT path FROM notes WHERE rule != '' AND status IN (`+placeholders+`) ORDER BY path`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: healing candidates: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

package index

// NoteIndex defines the interface for note metadata cache operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, frontmatter map[string]interface{}) error
	DeleteNote(path string) error
	GetNote(path string) (*NoteRow, error)
	Frontmatter(path string) (map[string]interface{}, error)
	GetChecksum(path string) (string, error)
	ListNotes(limit, offset int, tag, status, sort string) ([]NoteRow, int, error)
	HealingCandidates(terminalStatuses []string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)

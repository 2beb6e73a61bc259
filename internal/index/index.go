package index

import "github.com/skyboj/obsidian-ai-blogger/internal/models"

// DraftIndex is the read/write surface of the draft index. The HTTP API and
// the MCP server depend on it instead of *DB.
type DraftIndex interface {
	Upsert(r Row, body string) error
	Delete(path string) error
	Checksum(path string) (string, error)
	Get(path string) (*Row, error)
	List(f Filter) ([]Row, int, error)
	Search(query string, limit int) ([]models.SearchHit, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ DraftIndex = (*DB)(nil)

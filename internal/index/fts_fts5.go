//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/skyboj/obsidian-ai-blogger/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS drafts_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM drafts_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO drafts_fts (path, title, body, tags) VALUES (?, ?, ?, ?)`,
		path, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM drafts_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search and returns hits with snippets.
func (db *DB) Search(query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT drafts_fts.path,
		       drafts_fts.title,
		       snippet(drafts_fts, 2, '<b>', '</b>', '...', 64),
		       coalesce(drafts.publish, 0)
		FROM drafts_fts
		LEFT JOIN drafts ON drafts.path = drafts_fts.path
		WHERE drafts_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.Path, &h.Title, &h.Snippet, &h.Publish); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/skyboj/obsidian-ai-blogger/internal/models"
)

// Row represents a row in the drafts table.
type Row struct {
	Path        string    `json:"path"`
	Folder      string    `json:"folder"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug,omitempty"`
	Publish     bool      `json:"publish"`
	CreatedDate string    `json:"created_date,omitempty"`
	Checksum    string    `json:"checksum"`
	Tags        []string  `json:"tags"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RowFrom builds the index row of a parsed draft.
func RowFrom(d models.Draft) Row {
	folder := path.Dir(d.Path)
	if folder == "." {
		folder = ""
	}
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return Row{
		Path:        d.Path,
		Folder:      folder,
		Title:       d.Title,
		Slug:        d.Slug,
		Publish:     d.Publish,
		CreatedDate: d.CreatedDate,
		Checksum:    d.Checksum,
		Tags:        tags,
		UpdatedAt:   d.UpdatedAt,
	}
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Folder  string
	Publish *bool
	Tag     string
	Limit   int
	Offset  int
}

// Upsert inserts or replaces a draft and its FTS entry within a transaction.
func (db *DB) Upsert(r Row, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tagsJSON, _ := json.Marshal(r.Tags)
	_, err = tx.Exec(`
		INSERT INTO drafts (path, folder, title, slug, publish, created_date, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			folder       = excluded.folder,
			title        = excluded.title,
			slug         = excluded.slug,
			publish      = excluded.publish,
			created_date = excluded.created_date,
			checksum     = excluded.checksum,
			tags         = excluded.tags,
			body         = excluded.body,
			updated_at   = excluded.updated_at
	`, r.Path, r.Folder, r.Title, r.Slug, r.Publish, r.CreatedDate, r.Checksum, string(tagsJSON), body, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert draft: %w", err)
	}

	// No-op when the FTS5 tag is absent.
	if err := ftsUpsert(tx, r.Path, r.Title, body, r.Tags); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a draft and its FTS entry.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM drafts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete draft: %w", err)
	}
	return tx.Commit()
}

// Checksum returns the stored checksum for a draft, or "" if it is not indexed.
func (db *DB) Checksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM drafts WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

const rowColumns = `path, folder, title, slug, publish, created_date, checksum, tags, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (Row, error) {
	var (
		r    Row
		tags string
	)
	if err := s.Scan(&r.Path, &r.Folder, &r.Title, &r.Slug, &r.Publish, &r.CreatedDate, &r.Checksum, &tags, &r.UpdatedAt); err != nil {
		return Row{}, err
	}
	if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
		r.Tags = []string{}
	}
	return r, nil
}

// Get returns the row for path, or nil when it is not indexed.
func (db *DB) Get(path string) (*Row, error) {
	r, err := scanRow(db.conn.QueryRow(`SELECT `+rowColumns+` FROM drafts WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get: %w", err)
	}
	return &r, nil
}

// List returns one page of rows, newest first, and the total number of
// rows matching f.
func (db *DB) List(f Filter) ([]Row, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Folder != "" {
		where = append(where, "folder = ?")
		args = append(args, f.Folder)
	}
	if f.Publish != nil {
		where = append(where, "publish = ?")
		args = append(args, *f.Publish)
	}
	if f.Tag != "" {
		where = append(where, "tags LIKE ?")
		args = append(args, `%"`+f.Tag+`"%`)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM drafts`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`SELECT `+rowColumns+` FROM drafts`+cond+
		` ORDER BY updated_at DESC, path LIMIT ? OFFSET ?`, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path → checksum for every indexed draft.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM drafts`)
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

//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM drafts_fts`).Scan(&count); err != nil {
		t.Fatalf("drafts_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := Row{
		Path:      "drafts/fts.md",
		Title:     "FTS Draft",
		Checksum:  "f1",
		Tags:      []string{"search"},
		UpdatedAt: time.Now(),
	}
	if err := db.Upsert(row, "The blogger has powerful full-text search."); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	hits, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Path != "drafts/fts.md" {
		t.Errorf("path = %q", hits[0].Path)
	}
	if !strings.Contains(hits[0].Snippet, "<b>powerful</b>") {
		t.Errorf("snippet = %q", hits[0].Snippet)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Row{Path: "gone.md", Checksum: "g", Tags: []string{}, UpdatedAt: time.Now()}, "vanishing content")
	_ = db.Delete("gone.md")

	hits, _ := db.Search("vanishing", 10)
	for _, h := range hits {
		if h.Path == "gone.md" {
			t.Error("deleted draft still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.Upsert(Row{Path: "evo.md", Title: "Old", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "original text")
	_ = db.Upsert(Row{Path: "evo.md", Title: "New", Checksum: "2", Tags: []string{}, UpdatedAt: now}, "replacement text")

	hits, _ := db.Search("original", 10)
	if len(hits) != 0 {
		t.Error("old FTS content should be gone")
	}
	hits, _ = db.Search("replacement", 10)
	if len(hits) != 1 || hits[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", hits)
	}
}

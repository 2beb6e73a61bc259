package index

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skyboj/obsidian-ai-blogger/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM drafts`).Scan(&count); err != nil {
		t.Fatalf("drafts table missing: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	row := Row{
		Path:        "drafts/hello.md",
		Folder:      "drafts",
		Title:       "Hello World",
		Slug:        "hello-world",
		CreatedDate: "2025-03-14",
		Checksum:    "abc123",
		Tags:        []string{"go", "test"},
		UpdatedAt:   now,
	}
	if err := db.Upsert(row, "This is a hello world draft."); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := db.Get("drafts/hello.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	got.UpdatedAt = got.UpdatedAt.UTC()
	if diff := cmp.Diff(row, *got); diff != "" {
		t.Errorf("row (-want +got):\n%s", diff)
	}

	cs, err := db.Checksum("drafts/hello.md")
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestGetNotFound(t *testing.T) {
	db := testDB(t)
	got, err := db.Get("missing.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
	cs, err := db.Checksum("missing.md")
	if err != nil || cs != "" {
		t.Errorf("Checksum = %q, %v", cs, err)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.Upsert(Row{Path: "up.md", Title: "Old", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "old body")
	_ = db.Upsert(Row{Path: "up.md", Title: "New", Checksum: "2", Publish: true, Tags: []string{"new"}, UpdatedAt: now}, "new body")

	got, _ := db.Get("up.md")
	if got.Title != "New" || got.Checksum != "2" || !got.Publish {
		t.Errorf("row not updated: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Row{Path: "del.md", Checksum: "x", Tags: []string{}, UpdatedAt: time.Now()}, "body")

	if err := db.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cs, _ := db.Checksum("del.md")
	if cs != "" {
		t.Errorf("deleted draft still has checksum %q", cs)
	}
}

func TestListFilters(t *testing.T) {
	db := testDB(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []Row{
		{Path: "drafts/a.md", Folder: "drafts", Title: "A", Checksum: "a", Tags: []string{"go"}, UpdatedAt: base},
		{Path: "drafts/b.md", Folder: "drafts", Title: "B", Checksum: "b", Publish: true, Tags: []string{"food"}, UpdatedAt: base.Add(time.Hour)},
		{Path: "c.md", Title: "C", Checksum: "c", Publish: true, Tags: []string{"go"}, UpdatedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range rows {
		if err := db.Upsert(r, "body"); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	paths := func(rs []Row) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.Path)
		}
		return out
	}

	all, total, err := db.List(Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if diff := cmp.Diff([]string{"c.md", "drafts/b.md", "drafts/a.md"}, paths(all)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}

	published := true
	got, total, _ := db.List(Filter{Folder: "drafts", Publish: &published})
	if total != 1 || len(got) != 1 || got[0].Path != "drafts/b.md" {
		t.Errorf("folder+publish = %v (total %d)", paths(got), total)
	}

	got, total, _ = db.List(Filter{Tag: "go", Limit: 1, Offset: 1})
	if total != 2 || len(got) != 1 || got[0].Path != "drafts/a.md" {
		t.Errorf("tag page = %v (total %d)", paths(got), total)
	}
}

func TestSearchBasic(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(Row{Path: "s.md", Title: "Search Me", Checksum: "1", Publish: true, Tags: []string{}, UpdatedAt: time.Now()}, "uniqueword appears here")

	hits, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Path != "s.md" || !hits[0].Publish {
		t.Errorf("search hits = %+v, want 1 published hit for s.md", hits)
	}
}

func TestSyncIndexesAndPrunes(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	db := testDB(t)

	if err := os.MkdirAll(filepath.Join(root, "drafts"), 0o755); err != nil {
		t.Fatal(err)
	}
	draftFile := "---\ntitle: \"Eating Well\"\npublish: true\ntags:\n  - food\n---\n\nEat vegetables.\n"
	if err := os.WriteFile(filepath.Join(root, "drafts", "eat.md"), []byte(draftFile), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "ready.md"), []byte("# Ready\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = db.Upsert(Row{Path: "stale.md", Checksum: "s", Tags: []string{}, UpdatedAt: time.Now()}, "")

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got, err := db.Get("drafts/eat.md")
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	if got.Title != "Eating Well" || !got.Publish || got.Folder != "drafts" {
		t.Errorf("row = %+v", got)
	}
	if diff := cmp.Diff([]string{"food"}, got.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if r, _ := db.Get("ready.md"); r == nil {
		t.Error("ready.md not indexed")
	}
	if r, _ := db.Get("stale.md"); r != nil {
		t.Error("stale row survived sync")
	}
}

func TestReconcileReportsKinds(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	db := testDB(t)

	if err := store.Write("kept.md", []byte("# Kept\n")); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("gone.md", []byte("# Gone\n")); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := store.Write("kept.md", []byte("# Kept, edited\n")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("gone.md"); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("fresh.md", []byte("# Fresh\n")); err != nil {
		t.Fatal(err)
	}

	got := map[string]string{}
	reconcileAfterRename(db, store, quietLogger(), func(kind, path string) {
		got[path] = kind
	})

	want := map[string]string{"kept.md": Updated, "gone.md": Deleted, "fresh.md": Created}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if cs, _ := db.Checksum("kept.md"); cs != storage.Checksum([]byte("# Kept, edited\n")) {
		t.Errorf("kept checksum = %q, want the edited content's", cs)
	}
}

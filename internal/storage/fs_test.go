package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempVault(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("old.md", []byte("data"))
	if err := s.Move("old.md", "sub/new.md"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.md")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.md"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a.md", []byte("a"))
	_ = s.Write("drafts/b.md", []byte("b"))
	_ = s.Write("readme.txt", []byte("not md"))

	items, err := s.List("", true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("recursive len = %d, want 2", len(items))
	}

	items, err = s.List("", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "a.md" {
		t.Fatalf("flat list = %+v, want only a.md", items)
	}
	if items[0].Checksum != Checksum([]byte("a")) {
		t.Errorf("checksum = %s", items[0].Checksum)
	}

	items, err = s.List("drafts", false)
	if err != nil || len(items) != 1 || items[0].Path != "drafts/b.md" {
		t.Errorf("drafts list = %+v, %v", items, err)
	}
}

func TestListMissingDir(t *testing.T) {
	s := tempVault(t)
	items, err := s.List("nope", false)
	if err != nil || len(items) != 0 {
		t.Errorf("List(missing) = %v, %v", items, err)
	}
}

func TestCreateDoesNotOverwrite(t *testing.T) {
	s := tempVault(t)
	if err := s.Create("x.md", []byte("first")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create("x.md", []byte("second"))
	if apperr.KindOf(err) != apperr.KindFileExists {
		t.Fatalf("kind = %s, want FILE_EXISTS", apperr.KindOf(err))
	}
	got, _ := s.Read("x.md")
	if string(got) != "first" {
		t.Errorf("content = %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".blogger-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestCopy(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("drafts/a.md", []byte("v1"))
	if err := s.Copy("drafts/a.md", "a.md", false); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if ok, _ := s.Exists("drafts/a.md"); !ok {
		t.Error("source removed by Copy")
	}
	_ = s.Write("drafts/a.md", []byte("v2"))
	if err := s.Copy("drafts/a.md", "a.md", false); apperr.KindOf(err) != apperr.KindFileExists {
		t.Errorf("second copy kind = %s", apperr.KindOf(err))
	}
	if err := s.Copy("drafts/a.md", "a.md", true); err != nil {
		t.Fatalf("Copy overwrite: %v", err)
	}
	got, _ := s.Read("a.md")
	if string(got) != "v2" {
		t.Errorf("content = %q", got)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	// Verify that if we read during a write the old content is intact
	// (the rename is atomic on POSIX).
	s := tempVault(t)
	original := []byte("original content")
	_ = s.Write("atomic.md", original)

	// Overwrite with new content.
	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".blogger-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "content", "blog")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "blogger-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

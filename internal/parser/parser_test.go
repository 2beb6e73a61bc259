package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - blog\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if len(r.Tags) < 2 || r.Tags[0] != "go" || r.Tags[1] != "blog" {
		t.Errorf("tags = %v, want [go blog]", r.Tags)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
	if diff := cmp.Diff([]string{"title", "tags"}, r.Keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want whole input", r.Body)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	fields := []Field{
		{Key: "title", Value: "Test Article"},
		{Key: "description", Value: ""},
		{Key: "publish", Value: false},
		{Key: "created_date", Value: "2025-03-14"},
		{Key: "tags", Value: []string{"go", "testing"}},
		{Key: "featured_image", Value: ""},
		{Key: "slug", Value: "test-article"},
	}
	body := "# Test Article\n\nSome body text.\n"

	data, err := Render(fields, body)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\ntitle: Test Article\n") {
		t.Errorf("rendered = %q", data)
	}

	r, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Body != body {
		t.Errorf("body = %q, want %q", r.Body, body)
	}
	want := map[string]any{
		"title":          "Test Article",
		"description":    "",
		"publish":        false,
		"created_date":   "2025-03-14",
		"tags":           []any{"go", "testing"},
		"featured_image": "",
		"slug":           "test-article",
	}
	if diff := cmp.Diff(want, r.Frontmatter); diff != "" {
		t.Errorf("frontmatter (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"title", "description", "publish", "created_date", "tags", "featured_image", "slug"}, r.Keys); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestSetFieldInPlace(t *testing.T) {
	input := "---\ntitle:   Spaced  \npublish: false # keep me out\ntags: [a, b]\n---\n\nBody with publish: false\n"
	out, err := SetField([]byte(input), "publish", true)
	if err != nil {
		t.Fatalf("SetField: %v", err)
	}
	want := "---\ntitle:   Spaced  \npublish: true\ntags: [a, b]\n---\n\nBody with publish: false\n"
	if string(out) != want {
		t.Errorf("SetField =\n%q\nwant\n%q", out, want)
	}
}

func TestSetFieldLastKey(t *testing.T) {
	input := "---\ntitle: A\npublish: false\n---\n\nbody"
	out, err := SetField([]byte(input), "publish", true)
	if err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if string(out) != "---\ntitle: A\npublish: true\n---\n\nbody" {
		t.Errorf("SetField = %q", out)
	}
}

func TestSetFieldAppendsMissingKey(t *testing.T) {
	input := "---\ntitle: A\n---\nbody\n"
	out, err := SetField([]byte(input), "publish", true)
	if err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if string(out) != "---\ntitle: A\npublish: true\n---\nbody\n" {
		t.Errorf("SetField = %q", out)
	}
}

func TestSetFieldWithoutFrontmatter(t *testing.T) {
	if _, err := SetField([]byte("no block"), "publish", true); err == nil {
		t.Error("expected error without frontmatter")
	}
}

func TestExtractLinks_Basic(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again."
	links := extractLinks(body)
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestExtractTags_InlineAndFrontmatter(t *testing.T) {
	fm := map[string]any{
		"tags": []any{"alpha"},
	}
	tags := extractTags("Some text #beta and #alpha again.", fm)
	if len(tags) != 2 || tags[0] != "alpha" || tags[1] != "beta" {
		t.Errorf("tags = %v, want [alpha beta]", tags)
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	title := deriveTitle(nil, "some text\n# My Heading\nmore")
	if title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}

package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skyboj/obsidian-ai-blogger/internal/provider"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
)

func TestParseVars(t *testing.T) {
	got, err := parseVars([]string{"audience=beginners", " tone =casual", "empty="})
	if err != nil {
		t.Fatalf("parseVars: %v", err)
	}
	want := map[string]string{"audience": "beginners", "tone": "casual", "empty": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("vars (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseVars([]string{bad}); err == nil {
			t.Errorf("parseVars(%q) should fail", bad)
		}
	}
}

func TestWriteStep(t *testing.T) {
	var buf bytes.Buffer
	writeStep(&buf, publish.StepResult{Name: "build", Output: "line one\nline two\n", Duration: 1500 * time.Millisecond})
	writeStep(&buf, publish.StepResult{Name: "deploy", Err: errors.New("exit status 1"), Duration: 2 * time.Second})

	want := "build: ok (1.5s)\n    line one\n    line two\ndeploy: failed after 2s: exit status 1\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWriteHealth(t *testing.T) {
	var buf bytes.Buffer
	writeHealth(&buf, nil)
	if buf.String() != "  none configured\n" {
		t.Errorf("empty = %q", buf.String())
	}

	buf.Reset()
	writeHealth(&buf, []provider.Health{{Name: "openai", Status: provider.StatusHealthy, ResponseTime: 120 * time.Millisecond}})
	if got, want := buf.String(), "  openai     healthy      120ms\n"; got != want {
		t.Errorf("health = %q, want %q", got, want)
	}
}

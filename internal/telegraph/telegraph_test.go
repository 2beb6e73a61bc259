package telegraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/skyboj/obsidian-ai-blogger/internal/storage"
)

func TestToNodes(t *testing.T) {
	md := "# Title\n\nHello **bold** [x](https://x.example)\n\n- a\n- b\n\n<script>alert(1)</script>\n"
	got, err := ToNodes(md)
	if err != nil {
		t.Fatalf("ToNodes: %v", err)
	}
	want := []any{
		Element{Tag: "h3", Children: []any{"Title"}},
		Element{Tag: "p", Children: []any{
			"Hello ",
			Element{Tag: "strong", Children: []any{"bold"}},
			" ",
			Element{Tag: "a", Attrs: map[string]string{"href": "https://x.example"}, Children: []any{"x"}},
		}},
		Element{Tag: "ul", Children: []any{
			Element{Tag: "li", Children: []any{"a"}},
			Element{Tag: "li", Children: []any{"b"}},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("nodes (-want +got):\n%s", diff)
	}
}

func TestToHTMLStripsUnsafe(t *testing.T) {
	h, err := ToHTML("[click](javascript:alert(1)) <iframe src=x></iframe>")
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if strings.Contains(h, "javascript:") || strings.Contains(h, "<iframe") {
		t.Errorf("unsafe html survived: %s", h)
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("T", "Hello, world! Привет 42"); got != "T-Helloworld42" {
		t.Errorf("CacheKey = %q", got)
	}
	long := strings.Repeat("ab", 80)
	if got := CacheKey("T", long); got != "T-"+long[:100] {
		t.Errorf("CacheKey did not truncate: %d chars", len(got))
	}
}

func TestTextPreview(t *testing.T) {
	if got := TextPreview("  short ", 600); got != "short" {
		t.Errorf("TextPreview = %q", got)
	}
	got := TextPreview(strings.Repeat("я", 700), 600)
	if len([]rune(got)) != 603 || !strings.HasSuffix(got, "...") {
		t.Errorf("TextPreview length = %d", len([]rune(got)))
	}
}

type fakeTelegraph struct {
	created  atomic.Int32
	pages    atomic.Int32
	accounts atomic.Int32
	token    string
}

func (f *fakeTelegraph) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		var result any
		switch r.URL.Path {
		case "/createAccount":
			f.accounts.Add(1)
			if r.Form.Get("short_name") != "Bot" {
				t.Errorf("short_name = %q", r.Form.Get("short_name"))
			}
			result = Account{ShortName: "Bot", AccessToken: f.token}
		case "/getAccount":
			if r.Form.Get("access_token") != f.token {
				_ = json.NewEncoder(w).Encode(envelope{OK: false, Error: "ACCESS_TOKEN_INVALID"})
				return
			}
			result = Account{ShortName: "Bot"}
		case "/createPage":
			f.pages.Add(1)
			var content []map[string]any
			if err := json.Unmarshal([]byte(r.Form.Get("content")), &content); err != nil {
				t.Errorf("content is not a node list: %v", err)
			}
			if r.Form.Get("access_token") != f.token {
				t.Errorf("access_token = %q", r.Form.Get("access_token"))
			}
			result = Page{Path: "Title-01-01", URL: "https://telegra.ph/Title-01-01", Title: r.Form.Get("title")}
		default:
			http.NotFound(w, r)
			return
		}
		raw, _ := json.Marshal(result)
		_ = json.NewEncoder(w).Encode(envelope{OK: true, Result: raw})
	})
}

func TestPublisherCreatesAccountAndCaches(t *testing.T) {
	fake := &fakeTelegraph{token: "tok-1"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	dir := t.TempDir()
	state, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	cfg := Config{ShortName: "Bot", AuthorName: "Blogger", BaseURL: srv.URL}
	p := NewPublisher(cfg, state, nil)

	ctx := context.Background()
	u, err := p.Preview(ctx, "Title", "# Hello\n\nBody")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if u != "https://telegra.ph/Title-01-01" {
		t.Errorf("url = %q", u)
	}
	if _, err := p.Preview(ctx, "Title", "# Hello\n\nBody"); err != nil {
		t.Fatalf("Preview again: %v", err)
	}
	if n := fake.pages.Load(); n != 1 {
		t.Errorf("createPage calls = %d, want 1", n)
	}

	raw, err := os.ReadFile(filepath.Join(dir, tokenFile))
	if err != nil {
		t.Fatalf("token file: %v", err)
	}
	var st tokenState
	if err := json.Unmarshal(raw, &st); err != nil || st.AccessToken != "tok-1" {
		t.Errorf("token state = %+v, %v", st, err)
	}
	if _, err := os.Stat(filepath.Join(dir, cacheFile)); err != nil {
		t.Errorf("cache file: %v", err)
	}

	// A new publisher reuses the stored token and cache.
	p2 := NewPublisher(cfg, state, nil)
	if _, err := p2.Preview(ctx, "Title", "# Hello\n\nBody"); err != nil {
		t.Fatalf("Preview with stored state: %v", err)
	}
	if n := fake.accounts.Load(); n != 1 {
		t.Errorf("createAccount calls = %d, want 1", n)
	}
	if n := fake.pages.Load(); n != 1 {
		t.Errorf("createPage calls = %d, want 1", n)
	}
}

func TestPublisherReplacesInvalidToken(t *testing.T) {
	fake := &fakeTelegraph{token: "fresh"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	dir := t.TempDir()
	state, _ := storage.NewFS(dir)
	if err := os.WriteFile(filepath.Join(dir, tokenFile), []byte(`{"access_token":"stale"}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := NewPublisher(Config{ShortName: "Bot", BaseURL: srv.URL}, state, nil)
	if _, err := p.Preview(context.Background(), "T", "body"); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if fake.accounts.Load() != 1 {
		t.Errorf("stale token should trigger createAccount")
	}
}

func TestClientErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"SHORT_NAME_REQUIRED"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 0).CreateAccount(context.Background(), Account{})
	if err == nil || !strings.Contains(err.Error(), "SHORT_NAME_REQUIRED") {
		t.Errorf("err = %v", err)
	}
}

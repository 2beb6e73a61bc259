package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skyboj/obsidian-ai-blogger/internal/ai"
	"github.com/skyboj/obsidian-ai-blogger/internal/blogservice"
	"github.com/skyboj/obsidian-ai-blogger/internal/draft"
	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/index"
	"github.com/skyboj/obsidian-ai-blogger/internal/prompt"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
	"github.com/skyboj/obsidian-ai-blogger/internal/ratelimit"
	"github.com/skyboj/obsidian-ai-blogger/internal/storage"
	"github.com/skyboj/obsidian-ai-blogger/internal/testutil"
)

type testEnv struct {
	router http.Handler
	store  *draft.Store
	fs     *storage.FS
	db     *index.DB
	text   *ai.Fake
	build  func(context.Context) (string, error)
}

func newEnv(t *testing.T, authEnabled bool, token string, sse http.Handler, opts ...RouterOption) *testEnv {
	t.Helper()

	_, fs := testutil.TestContentDir(t)
	env := &testEnv{
		fs:    fs,
		store: draft.New(fs, draft.WithClock(func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC) })),
		db:    testutil.TestDB(t),
		text:  &ai.Fake{ProviderName: "openai", Text: "## Intro\n\nEat more greens."},
		build: func(context.Context) (string, error) { return "built", nil },
	}

	prompts := prompt.NewStore(t.TempDir())
	if err := prompts.Add(generator.DefaultTemplate, prompt.Template{
		Name:      "Article",
		Prompt:    "Write about {topic}",
		Variables: []prompt.Variable{{Name: "topic", Required: true}},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	aiMgr := ai.NewManager("openai", 1, nil, nil)
	if err := aiMgr.Register(env.text); err != nil {
		t.Fatalf("Register: %v", err)
	}
	pipeline := publish.NewPipeline([]publish.Step{
		publish.SyncStep{Store: env.store},
		publish.Func{StepName: "build", Fn: func(ctx context.Context) (string, error) { return env.build(ctx) }},
	})

	svc := blogservice.New(env.store,
		blogservice.WithIndex(env.db),
		blogservice.WithGenerator(generator.New(prompts, aiMgr, nil, env.store)),
		blogservice.WithPipeline(pipeline),
		blogservice.WithHealth(aiMgr, nil),
	)
	env.router = NewRouter(svc, authEnabled, token, sse, opts...)
	return env
}

func (e *testEnv) sync(t *testing.T) {
	t.Helper()
	if err := index.Sync(e.db, e.fs, slog.New(slog.NewJSONHandler(io.Discard, nil))); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func (e *testEnv) do(method, target string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGenerateAndGetDraft(t *testing.T) {
	env := newEnv(t, false, "", nil)

	w := env.do(http.MethodPost, "/generate", map[string]any{"topic": "Healthy Eating Habits", "skip_image": true})
	if w.Code != http.StatusCreated {
		t.Fatalf("generate status = %d, body = %s", w.Code, w.Body.String())
	}
	var res generator.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Draft.Path != "drafts/2025-05-01-healthy-eating-habits.md" {
		t.Errorf("path = %q", res.Draft.Path)
	}

	w = env.do(http.MethodGet, "/drafts/2025-05-01-healthy-eating-habits.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var d DraftDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Title != "Healthy Eating Habits" {
		t.Errorf("title = %q", d.Title)
	}
	if !strings.Contains(d.Body, "Eat more greens.") {
		t.Errorf("body = %q", d.Body)
	}
	if d.Stats.Words == 0 {
		t.Error("stats not computed")
	}

	// The new draft is in the index without waiting for the watcher.
	w = env.do(http.MethodGet, "/drafts?folder=drafts", nil)
	var list DraftListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Drafts[0].Title != "Healthy Eating Habits" {
		t.Errorf("list = %+v", list)
	}
}

func TestGenerateValidation(t *testing.T) {
	env := newEnv(t, false, "", nil)

	w := env.do(http.MethodPost, "/generate", map[string]any{"topic": "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty topic = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", rec.Code)
	}

	w = env.do(http.MethodPost, "/generate", map[string]any{"topic": "x", "template": "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown template = %d, want 404", w.Code)
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	env := newEnv(t, false, "", nil)
	env.text.Err = errors.New("upstream down")

	w := env.do(http.MethodPost, "/generate", map[string]any{"topic": "Anything"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Kind != "ALL_PROVIDERS_FAILED" {
		t.Errorf("kind = %q", body.Kind)
	}
}

func TestMarkAndPublishDraft(t *testing.T) {
	env := newEnv(t, false, "", nil)
	d, err := env.store.CreateDraft("Ship It", "body", nil)
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	w := env.do(http.MethodPost, "/drafts/"+d.Filename+"/mark", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark status = %d, body = %s", w.Code, w.Body.String())
	}
	var got DraftDetail
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if !got.Publish {
		t.Error("draft not marked")
	}

	w = env.do(http.MethodGet, "/drafts?publish=true", nil)
	var list DraftListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Errorf("marked drafts = %d, want 1", list.Total)
	}

	w = env.do(http.MethodPost, "/drafts/"+d.Filename+"/publish", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("publish status = %d", w.Code)
	}
	var pub PublishDraftResponse
	_ = json.Unmarshal(w.Body.Bytes(), &pub)
	if pub.Path != "2025-05-01-ship-it.md" {
		t.Errorf("path = %q", pub.Path)
	}
}

func TestDraftNotFound(t *testing.T) {
	env := newEnv(t, false, "", nil)

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/drafts/nope.md"},
		{http.MethodPost, "/drafts/nope.md/mark"},
		{http.MethodPost, "/drafts/nope.md/publish"},
	} {
		w := env.do(tc.method, tc.target, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", tc.method, tc.target, w.Code)
		}
	}
}

func TestListDraftsBadPublishFlag(t *testing.T) {
	env := newEnv(t, false, "", nil)
	w := env.do(http.MethodGet, "/drafts?publish=maybe", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRunPipeline(t *testing.T) {
	env := newEnv(t, false, "", nil)

	w := env.do(http.MethodPost, "/publish", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp PipelineResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.OK || len(resp.Steps) != 2 || resp.Steps[1].Output != "built" {
		t.Errorf("resp = %+v", resp)
	}

	env.build = func(context.Context) (string, error) { return "boom", errors.New("exit status 1") }
	w = env.do(http.MethodPost, "/publish", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("failing status = %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.OK || resp.Steps[1].Error != "exit status 1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := newEnv(t, false, "", nil)
	if _, err := env.store.CreateDraft("One", "x", nil); err != nil {
		t.Fatal(err)
	}

	w := env.do(http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st blogservice.Status
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Drafts != 1 || len(st.AI) != 1 || st.AI[0].Name != "openai" {
		t.Errorf("status = %+v", st)
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newEnv(t, false, "", nil)
	if _, err := env.store.CreateDraft("Sourdough", "uniqueword in the body", nil); err != nil {
		t.Fatal(err)
	}
	env.sync(t)

	w := env.do(http.MethodGet, "/search?q=uniqueword", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Path != "drafts/2025-05-01-sourdough.md" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	env := newEnv(t, false, "", nil)
	w := env.do(http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newEnv(t, true, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/drafts", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newEnv(t, true, "secret123", nil)

	w := env.do(http.MethodGet, "/drafts", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := newEnv(t, true, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/drafts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := newEnv(t, true, "secret", blockingSSE)

	w := env.do(http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	env := newEnv(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestGenerateAndPublishAreRateLimited(t *testing.T) {
	limiter := ratelimit.New(ratelimit.DefaultConfig())
	t.Cleanup(limiter.Stop)
	var rejected []string
	env := newEnv(t, false, "", nil, WithLimiter(limiter, func(reason string) {
		rejected = append(rejected, reason)
	}))

	accepted := 0
	for _, topic := range []string{"One", "Two", "Three", "Four", "Five", "Six"} {
		w := env.do(http.MethodPost, "/generate", map[string]any{"topic": topic, "skip_image": true})
		switch w.Code {
		case http.StatusCreated:
			accepted++
		case http.StatusTooManyRequests:
			if w.Header().Get("Retry-After") == "" {
				t.Error("429 without Retry-After")
			}
		default:
			t.Fatalf("generate %q: status %d, body %s", topic, w.Code, w.Body.String())
		}
	}
	if accepted != ratelimit.DefaultConfig().BurstLimit {
		t.Errorf("accepted %d generate calls, want %d", accepted, ratelimit.DefaultConfig().BurstLimit)
	}

	w := env.do(http.MethodPost, "/publish", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("publish status = %d, want 429", w.Code)
	}
	var body struct {
		Kind string `json:"kind"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Kind != ratelimit.ReasonBurst {
		t.Errorf("kind = %q", body.Kind)
	}
	if len(rejected) != 4 {
		t.Errorf("rejections = %d, want 4", len(rejected))
	}

	// Reads are not counted.
	if w := env.do(http.MethodGet, "/drafts", nil); w.Code != http.StatusOK {
		t.Errorf("list status = %d", w.Code)
	}
}

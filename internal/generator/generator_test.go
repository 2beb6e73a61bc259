package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/skyboj/obsidian-ai-blogger/internal/ai"
	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
	"github.com/skyboj/obsidian-ai-blogger/internal/draft"
	"github.com/skyboj/obsidian-ai-blogger/internal/images"
	"github.com/skyboj/obsidian-ai-blogger/internal/prompt"
	"github.com/skyboj/obsidian-ai-blogger/internal/storage"
)

type fixture struct {
	gen    *Generator
	dir    string
	text   *ai.Fake
	photos *images.Fake
	events []Event
}

type recorder struct{ ok, failed int }

func (r *recorder) RecordGeneration(ok bool, _ time.Duration) {
	if ok {
		r.ok++
	} else {
		r.failed++
	}
}

func newFixture(t *testing.T, text string, photos []images.Image) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir()}

	prompts := prompt.NewStore(t.TempDir())
	if err := prompts.Add("article", prompt.Template{
		Name:      "Article",
		System:    "You are a blogger.",
		Prompt:    "Write an article about {topic} for {audience}.",
		Variables: []prompt.Variable{{Name: "topic", Required: true}, {Name: "audience", Required: true}},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	f.text = &ai.Fake{ProviderName: "openai", Text: text}
	aiMgr := ai.NewManager("openai", 2, nil, nil)
	if err := aiMgr.Register(f.text); err != nil {
		t.Fatalf("Register: %v", err)
	}

	f.photos = &images.Fake{ProviderName: "unsplash", Images: photos}
	imgMgr := images.NewManager("unsplash", 1, nil, nil)
	if err := imgMgr.Register(f.photos); err != nil {
		t.Fatalf("Register: %v", err)
	}

	fs, err := storage.NewFS(f.dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	store := draft.New(fs, draft.WithClock(func() time.Time {
		return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	}))

	f.gen = New(prompts, aiMgr, imgMgr, store,
		WithEvents(func(e Event) { f.events = append(f.events, e) }),
	)
	return f
}

func TestGenerateHealthyEatingHabits(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("word ", 1800))
	f := newFixture(t, body, nil)
	rec := &recorder{}
	f.gen.recorder = rec

	res, err := f.gen.Generate(context.Background(), "Healthy Eating Habits", Options{
		Variables: map[string]string{"audience": "everyone"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if res.Stats.Words != 1800 || res.Stats.ReadingMinutes != 9 || res.Stats.ReadingTimeText != "9 minutes" {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.Draft.Path != "drafts/2025-05-01-healthy-eating-habits.md" {
		t.Errorf("path = %q", res.Draft.Path)
	}
	if res.Frontmatter["featured_image"] != "" {
		t.Errorf("featured_image = %v, want empty", res.Frontmatter["featured_image"])
	}
	if res.Frontmatter["publish"] != false {
		t.Errorf("publish = %v, want false", res.Frontmatter["publish"])
	}
	if res.Image != nil {
		t.Errorf("image = %+v, want nil", res.Image)
	}
	if res.AIProvider != "openai" || res.JobID == "" {
		t.Errorf("result = %+v", res)
	}
	if rec.ok != 1 {
		t.Errorf("recorded successes = %d", rec.ok)
	}

	raw, err := os.ReadFile(filepath.Join(f.dir, "drafts", "2025-05-01-healthy-eating-habits.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(raw), "publish: false\n") || !strings.Contains(string(raw), "featured_image: \"\"\n") {
		t.Errorf("unexpected frontmatter:\n%s", raw[:300])
	}

	reqs := f.text.Requests()
	if len(reqs) != 1 || reqs[0].Prompt != "Write an article about Healthy Eating Habits for everyone." {
		t.Errorf("requests = %+v", reqs)
	}
	if reqs[0].System != "You are a blogger." {
		t.Errorf("system = %q", reqs[0].System)
	}

	var types []string
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	if diff := cmp.Diff([]string{EventStarted, EventCompleted}, types); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestGenerateWithImage(t *testing.T) {
	photo := images.Image{ID: "p1", URL: "https://img.example/p1.jpg", Width: 1600, Height: 900, Source: "unsplash"}
	f := newFixture(t, "An article.", []images.Image{photo})

	res, err := f.gen.Generate(context.Background(), "Mountains", Options{
		Variables: map[string]string{"audience": "hikers"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Frontmatter["featured_image"] != photo.URL {
		t.Errorf("featured_image = %v", res.Frontmatter["featured_image"])
	}
	if res.ImageProvider != "unsplash" {
		t.Errorf("image provider = %q", res.ImageProvider)
	}
	if res.Frontmatter["description"] != "An article." {
		t.Errorf("description = %v", res.Frontmatter["description"])
	}
}

func TestGenerateMissingVariableIsFatalBeforeNetwork(t *testing.T) {
	f := newFixture(t, "text", nil)
	_, err := f.gen.Generate(context.Background(), "Topic", Options{})
	if apperr.KindOf(err) != apperr.KindMissingVariable {
		t.Fatalf("kind = %s, want MISSING_VARIABLE", apperr.KindOf(err))
	}
	if n := len(f.text.Requests()); n != 0 {
		t.Errorf("AI called %d times", n)
	}
	if n := len(f.photos.Queries()); n != 0 {
		t.Errorf("images called %d times", n)
	}
	if f.events[len(f.events)-1].Type != EventFailed {
		t.Errorf("last event = %+v", f.events[len(f.events)-1])
	}
}

func TestGenerateUnknownTemplate(t *testing.T) {
	f := newFixture(t, "text", nil)
	_, err := f.gen.Generate(context.Background(), "Topic", Options{Template: "nope"})
	if apperr.KindOf(err) != apperr.KindTemplateNotFound {
		t.Fatalf("kind = %s, want TEMPLATE_NOT_FOUND", apperr.KindOf(err))
	}
}

func TestGenerateAIFailureIsFatal(t *testing.T) {
	f := newFixture(t, "", nil)
	f.text.Err = apperr.New(apperr.KindRateLimit, "slow down")

	_, err := f.gen.Generate(context.Background(), "Topic", Options{
		Variables: map[string]string{"audience": "x"},
	})
	if apperr.KindOf(err) != apperr.KindAllProvidersFailed {
		t.Fatalf("kind = %s, want ALL_PROVIDERS_FAILED", apperr.KindOf(err))
	}
	entries, _ := os.ReadDir(filepath.Join(f.dir, "drafts"))
	if len(entries) != 0 {
		t.Errorf("draft written after AI failure: %v", entries)
	}
}

func TestGenerateEmptyTopic(t *testing.T) {
	f := newFixture(t, "text", nil)
	if _, err := f.gen.Generate(context.Background(), "   ", Options{}); !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("err = %v", err)
	}
}

func TestNormalizeBody(t *testing.T) {
	got, err := NormalizeBody("<h2>Intro</h2><p>Hello <strong>world</strong></p>")
	if err != nil {
		t.Fatalf("NormalizeBody: %v", err)
	}
	if got != "## Intro\n\nHello **world**\n" {
		t.Errorf("html body = %q", got)
	}

	got, _ = NormalizeBody("```markdown\n# Title\n\nText\n```")
	if got != "# Title\n\nText\n" {
		t.Errorf("fenced body = %q", got)
	}

	if _, err := NormalizeBody("  \n "); err == nil {
		t.Error("blank body should fail")
	}
}

func TestDescribe(t *testing.T) {
	body := "# Title\n\n![img](x.jpg)\n\nFirst **bold** paragraph with a [link](https://x).\n\nSecond."
	if got := Describe(body); got != "First bold paragraph with a link." {
		t.Errorf("Describe = %q", got)
	}
	long := strings.Repeat("lorem ipsum ", 40)
	got := Describe(long)
	if n := len([]rune(got)); n > descriptionLength+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("Describe(long) = %q (%d runes)", got, n)
	}
}

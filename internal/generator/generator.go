// Package generator turns a topic into a stored draft: it resolves a prompt
// template, asks the AI providers for the article, looks for an illustration
// and writes the result through the draft store.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skyboj/obsidian-ai-blogger/internal/ai"
	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
	"github.com/skyboj/obsidian-ai-blogger/internal/draft"
	"github.com/skyboj/obsidian-ai-blogger/internal/images"
	"github.com/skyboj/obsidian-ai-blogger/internal/models"
	"github.com/skyboj/obsidian-ai-blogger/internal/prompt"
)

// DefaultTemplate is used when neither the caller nor the configuration
// names a template.
const DefaultTemplate = "article"

// ErrEmptyTopic is returned for a blank topic.
var ErrEmptyTopic = errors.New("generator: topic is required")

// Event types emitted during a generation.
const (
	EventStarted   = "generation.started"
	EventCompleted = "generation.completed"
	EventFailed    = "generation.failed"
)

// Event reports generation progress.
type Event struct {
	Type  string `json:"type"`
	JobID string `json:"job_id"`
	Topic string `json:"topic"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// Recorder receives generation metrics.
type Recorder interface {
	RecordGeneration(ok bool, d time.Duration)
}

// Options tune a single generation.
type Options struct {
	Template      string
	Title         string
	Variables     map[string]string
	AIProvider    string
	ImageProvider string
	SkipImage     bool
}

// Result describes a generated draft.
type Result struct {
	JobID         string         `json:"job_id"`
	Topic         string         `json:"topic"`
	Draft         models.Draft   `json:"draft"`
	Stats         models.Stats   `json:"stats"`
	Image         *images.Image  `json:"image,omitempty"`
	ImageProvider string         `json:"image_provider,omitempty"`
	AIProvider    string         `json:"ai_provider"`
	Model         string         `json:"model"`
	Usage         ai.Usage       `json:"usage"`
	Attempts      int            `json:"attempts"`
	Duration      time.Duration  `json:"duration"`
	Frontmatter   map[string]any `json:"frontmatter"`
}

// Generator orchestrates article generation.
type Generator struct {
	prompts *prompt.Store
	ai      *ai.Manager
	images  *images.Manager
	drafts  *draft.Store

	template    string
	maxTokens   int
	temperature float64

	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	events   func(Event)
	recorder Recorder
}

// Option configures a Generator.
type Option func(*Generator)

// WithTemplate sets the default template id.
func WithTemplate(id string) Option {
	return func(g *Generator) {
		if id != "" {
			g.template = id
		}
	}
}

// WithSampling sets the token limit and temperature sent to providers.
func WithSampling(maxTokens int, temperature float64) Option {
	return func(g *Generator) {
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
		g.temperature = temperature
	}
}

// WithLogger sets the generator logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithEvents registers a listener for generation events.
func WithEvents(fn func(Event)) Option {
	return func(g *Generator) { g.events = fn }
}

// WithRecorder registers a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Generator) { g.recorder = r }
}

// WithClock overrides the clock used for durations.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a generator. imgs may be nil to disable illustrations.
func New(prompts *prompt.Store, aiMgr *ai.Manager, imgs *images.Manager, drafts *draft.Store, opts ...Option) *Generator {
	g := &Generator{
		prompts:     prompts,
		ai:          aiMgr,
		images:      imgs,
		drafts:      drafts,
		template:    DefaultTemplate,
		maxTokens:   ai.DefaultMaxTokens,
		temperature: 0.7,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate writes a new draft about topic. Template and AI failures abort
// the run; a missing illustration does not.
func (g *Generator) Generate(ctx context.Context, topic string, opts Options) (Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{}, ErrEmptyTopic
	}
	start := g.now()
	res := Result{JobID: g.newID(), Topic: topic}
	log := g.logger.With(slog.String("job_id", res.JobID), slog.String("topic", topic))
	g.emit(Event{Type: EventStarted, JobID: res.JobID, Topic: topic})

	err := g.generate(ctx, log, topic, opts, &res)
	res.Duration = g.now().Sub(start)
	if g.recorder != nil {
		g.recorder.RecordGeneration(err == nil, res.Duration)
	}
	if err != nil {
		log.Error("generator: failed",
			slog.String("kind", string(apperr.KindOf(err))),
			slog.String("error", err.Error()),
		)
		g.emit(Event{Type: EventFailed, JobID: res.JobID, Topic: topic, Error: err.Error()})
		return res, err
	}
	log.Info("generator: done",
		slog.String("path", res.Draft.Path),
		slog.String("provider", res.AIProvider),
		slog.Int("words", res.Stats.Words),
		slog.Duration("duration", res.Duration),
	)
	g.emit(Event{Type: EventCompleted, JobID: res.JobID, Topic: topic, Path: res.Draft.Path})
	return res, nil
}

func (g *Generator) generate(ctx context.Context, log *slog.Logger, topic string, opts Options, res *Result) error {
	tmpl := opts.Template
	if tmpl == "" {
		tmpl = g.template
	}
	vars := make(map[string]string, len(opts.Variables)+1)
	for k, v := range opts.Variables {
		vars[k] = v
	}
	vars["topic"] = topic

	built, err := g.prompts.Build(tmpl, vars)
	if err != nil {
		return err
	}
	if err := ai.ValidatePrompt(built.Prompt, g.maxTokens); err != nil {
		return fmt.Errorf("generator: %w", err)
	}

	out, err := g.ai.Invoke(ctx, ai.Request{
		Prompt:      built.Prompt,
		System:      built.System,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}, ai.InvokeOptions{Preferred: opts.AIProvider})
	if err != nil {
		return err
	}
	res.AIProvider = out.Provider
	res.Model = out.Value.Model
	res.Usage = out.Value.Usage
	res.Attempts = len(out.Attempts)

	body, err := NormalizeBody(out.Value.Text)
	if err != nil {
		return err
	}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = topic
	}

	fm, err := g.prompts.Frontmatter(tmpl, built.Variables, nil)
	if err != nil {
		return err
	}
	if d, _ := fm["description"].(string); d == "" {
		fm["description"] = Describe(body)
	}
	fm["featured_image"] = ""
	if g.images != nil && !opts.SkipImage {
		sel, err := images.BestForTopic(ctx, g.images, topic, images.InvokeOptions{Preferred: opts.ImageProvider})
		if err != nil {
			log.Warn("generator: image lookup failed", slog.String("error", err.Error()))
		} else {
			img := sel.Image
			res.Image = &img
			res.ImageProvider = sel.Provider
			fm["featured_image"] = img.URL
		}
	}

	d, err := g.drafts.CreateDraft(title, body, fm)
	if err != nil {
		return err
	}
	res.Draft = d
	res.Frontmatter = d.Frontmatter
	res.Stats = draft.Measure(body)
	return nil
}

func (g *Generator) emit(e Event) {
	if g.events != nil {
		g.events(e)
	}
}

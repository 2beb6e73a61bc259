package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/skyboj/obsidian-ai-blogger/internal/ai"
	"github.com/skyboj/obsidian-ai-blogger/internal/blogservice"
	"github.com/skyboj/obsidian-ai-blogger/internal/draft"
	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/images"
	"github.com/skyboj/obsidian-ai-blogger/internal/index"
	"github.com/skyboj/obsidian-ai-blogger/internal/metrics"
	"github.com/skyboj/obsidian-ai-blogger/internal/prompt"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
	"github.com/skyboj/obsidian-ai-blogger/internal/ratelimit"
	"github.com/skyboj/obsidian-ai-blogger/internal/sse"
	"github.com/skyboj/obsidian-ai-blogger/internal/storage"
	"github.com/skyboj/obsidian-ai-blogger/internal/telegraph"
)

// App holds the assembled components shared by every command.
type App struct {
	Config  *Config
	Version string
	Logger  *slog.Logger

	Content   *storage.FS
	Drafts    *draft.Store
	Prompts   *prompt.Store
	AI        *ai.Manager
	Images    *images.Manager
	Generator *generator.Generator
	Pipeline  *publish.Pipeline
	Preview   *telegraph.Publisher // nil when previews are disabled
	Index     *index.DB
	Broker    *sse.Broker
	Service   *blogservice.Service
	Limiter   *ratelimit.Limiter

	Registry *prometheus.Registry
	Metrics  *metrics.Collector
}

// NewApp builds every component from the options. Close releases them.
func NewApp(ctx context.Context, opts ...Option) (*App, error) {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	logger := a.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("output_dir", cfg.Content.OutputDir),
		slog.String("prompts_dir", cfg.Content.PromptsDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ai_provider", cfg.AI.DefaultProvider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	app := &App{Config: cfg, Version: a.version, Logger: logger}

	if err := os.MkdirAll(cfg.Content.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	content, err := storage.NewFS(cfg.Content.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	app.Content = content

	storeOpts := []draft.Option{draft.WithLogger(logger)}
	if cfg.Content.BlogDir != "" {
		blog, err := storage.NewFS(cfg.Content.BlogDir)
		if err != nil {
			return nil, fmt.Errorf("init blog storage: %w", err)
		}
		storeOpts = append(storeOpts, draft.WithBlog(blog))
	}
	app.Drafts = draft.New(content, storeOpts...)

	app.Prompts = prompt.NewStore(cfg.Content.PromptsDir, prompt.WithLogger(logger))
	if err := app.Prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.NewCollector(app.Registry)

	app.Limiter = ratelimit.New(cfg.RateLimit.Limiter(), ratelimit.WithLogger(logger))
	metrics.TrackUsers(app.Registry, app.Limiter.TrackedUsers)

	if app.AI, err = newAIManager(ctx, cfg.AI, logger, app.Metrics); err != nil {
		return nil, err
	}
	if app.Images, err = newImageManager(cfg.Images, logger, app.Metrics); err != nil {
		return nil, err
	}

	app.Broker = sse.NewBroker(2 * time.Second)

	app.Generator = generator.New(app.Prompts, app.AI, app.Images, app.Drafts,
		generator.WithTemplate(cfg.Content.DefaultTemplate),
		generator.WithLogger(logger),
		generator.WithRecorder(app.Metrics),
		generator.WithEvents(func(e generator.Event) {
			app.Broker.Publish(sse.Event{Type: e.Type, Data: e})
		}),
	)

	app.Pipeline = newPipeline(app.Drafts, cfg.Publish, logger)

	if cfg.Telegraph.Enabled {
		if err := os.MkdirAll(cfg.Telegraph.StateDir, 0o755); err != nil {
			return nil, fmt.Errorf("create telegraph state dir: %w", err)
		}
		state, err := storage.NewFS(cfg.Telegraph.StateDir)
		if err != nil {
			return nil, fmt.Errorf("init telegraph state: %w", err)
		}
		app.Preview = telegraph.NewPublisher(telegraph.Config{
			ShortName:  cfg.Telegraph.ShortName,
			AuthorName: cfg.Telegraph.AuthorName,
			AuthorURL:  cfg.Telegraph.AuthorURL,
			Timeout:    cfg.Telegraph.Timeout,
		}, state, logger)
	}

	app.Index, err = index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(app.Index, content, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	app.Service = blogservice.New(app.Drafts,
		blogservice.WithIndex(app.Index),
		blogservice.WithGenerator(app.Generator),
		blogservice.WithPipeline(app.Pipeline),
		blogservice.WithHealth(app.AI, app.Images),
		blogservice.WithLogger(logger),
	)
	return app, nil
}

// Close releases the index and stops the event broker and the limiter.
func (a *App) Close() {
	if a.Limiter != nil {
		a.Limiter.Stop()
	}
	if a.Broker != nil {
		a.Broker.Close()
	}
	if a.Index != nil {
		if err := a.Index.Close(); err != nil {
			a.Logger.Warn("close index", slog.String("error", err.Error()))
		}
	}
}

func newAIManager(ctx context.Context, cfg AIConfig, logger *slog.Logger, obs *metrics.Collector) (*ai.Manager, error) {
	m := ai.NewManager(cfg.DefaultProvider, cfg.MaxRetries, logger, obs)
	if err := m.Register(ai.NewOpenAI(ai.OpenAIConfig{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		BaseURL:     cfg.OpenAI.BaseURL,
		Timeout:     cfg.OpenAI.Timeout,
	})); err != nil {
		return nil, fmt.Errorf("register openai: %w", err)
	}
	gemini, err := ai.NewGemini(ctx, ai.GeminiConfig{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		MaxTokens:   cfg.Gemini.MaxTokens,
		Temperature: cfg.Gemini.Temperature,
		Timeout:     cfg.Gemini.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini: %w", err)
	}
	if err := m.Register(gemini); err != nil {
		return nil, fmt.Errorf("register gemini: %w", err)
	}
	return m, nil
}

func newImageManager(cfg ImagesConfig, logger *slog.Logger, obs *metrics.Collector) (*images.Manager, error) {
	m := images.NewManager(cfg.DefaultProvider, cfg.MaxRetries, logger, obs)
	if err := m.Register(images.NewUnsplash(images.UnsplashConfig{
		AccessKey: cfg.Unsplash.AccessKey,
		PerPage:   cfg.Unsplash.PerPage,
		Timeout:   cfg.Unsplash.Timeout,
	}, logger)); err != nil {
		return nil, fmt.Errorf("register unsplash: %w", err)
	}
	if err := m.Register(images.NewPexels(images.PexelsConfig{
		APIKey:  cfg.Pexels.APIKey,
		PerPage: cfg.Pexels.PerPage,
		Timeout: cfg.Pexels.Timeout,
	}, logger)); err != nil {
		return nil, fmt.Errorf("register pexels: %w", err)
	}
	return m, nil
}

// newPipeline assembles sync, the optional blog copy and the configured
// command steps.
func newPipeline(store *draft.Store, cfg PublishConfig, logger *slog.Logger) *publish.Pipeline {
	steps := []publish.Step{publish.SyncStep{Store: store}}
	if store.HasBlog() {
		steps = append(steps, publish.BlogStep{Store: store})
	}
	for _, c := range cfg.Steps {
		steps = append(steps, publish.NewCommandStep(c))
	}
	return publish.NewPipeline(steps, publish.WithTimeout(cfg.Timeout), publish.WithLogger(logger))
}

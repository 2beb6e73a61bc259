// Package blogservice coordinates the draft store, the index, the generator
// and the publish pipeline for the HTTP API and the MCP server.
package blogservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
	"github.com/skyboj/obsidian-ai-blogger/internal/draft"
	"github.com/skyboj/obsidian-ai-blogger/internal/generator"
	"github.com/skyboj/obsidian-ai-blogger/internal/index"
	"github.com/skyboj/obsidian-ai-blogger/internal/models"
	"github.com/skyboj/obsidian-ai-blogger/internal/provider"
	"github.com/skyboj/obsidian-ai-blogger/internal/publish"
)

// Generator creates drafts from topics.
type Generator interface {
	Generate(ctx context.Context, topic string, opts generator.Options) (generator.Result, error)
}

// HealthReporter probes a provider manager.
type HealthReporter interface {
	Health(ctx context.Context) []provider.Health
}

// DraftDetail is the full representation of one article.
type DraftDetail struct {
	models.Draft
	Stats models.Stats `json:"stats"`
}

// Status summarises provider health and draft counts.
type Status struct {
	AI        []provider.Health `json:"ai"`
	Images    []provider.Health `json:"images"`
	Drafts    int               `json:"drafts"`
	Marked    int               `json:"marked_for_publication"`
	Published int               `json:"ready"`
}

// Service coordinates the draft store and the index.
type Service struct {
	drafts   *draft.Store
	db       index.DraftIndex
	gen      Generator
	pipeline publish.Runner
	ai       HealthReporter
	images   HealthReporter
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIndex makes listing and search use the SQLite index.
func WithIndex(db index.DraftIndex) Option { return func(s *Service) { s.db = db } }

// WithGenerator enables Generate.
func WithGenerator(g Generator) Option { return func(s *Service) { s.gen = g } }

// WithPipeline enables RunPipeline.
func WithPipeline(p publish.Runner) Option { return func(s *Service) { s.pipeline = p } }

// WithHealth sets the provider managers reported by Status.
func WithHealth(ai, images HealthReporter) Option {
	return func(s *Service) {
		s.ai = ai
		s.images = images
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New creates a service over drafts.
func New(drafts *draft.Store, opts ...Option) *Service {
	s := &Service{drafts: drafts, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListDrafts returns one page of articles and the total matching f. Without
// an index the draft store is scanned directly.
func (s *Service) ListDrafts(_ context.Context, f index.Filter) ([]index.Row, int, error) {
	if s.db != nil {
		rows, total, err := s.db.List(f)
		if err != nil {
			return nil, 0, err
		}
		return nonNilSlice(rows), total, nil
	}

	var (
		list []models.Draft
		err  error
	)
	if f.Folder != "" {
		list, err = s.drafts.List(f.Folder)
	} else {
		list, err = s.drafts.ListAll()
	}
	if err != nil {
		return nil, 0, err
	}
	var rows []index.Row
	for _, d := range list {
		if f.Publish != nil && d.Publish != *f.Publish {
			continue
		}
		if f.Tag != "" && !contains(d.Tags, f.Tag) {
			continue
		}
		rows = append(rows, index.RowFrom(d))
	}
	total := len(rows)
	rows = page(rows, f.Offset, f.Limit)
	return nonNilSlice(rows), total, nil
}

// GetDraft resolves name and reads the article with its text stats.
func (s *Service) GetDraft(_ context.Context, name string) (*DraftDetail, error) {
	rel, err := s.drafts.Resolve(name)
	if err != nil {
		return nil, err
	}
	d, err := s.drafts.Read(rel)
	if err != nil {
		return nil, err
	}
	d.Tags = nonNilSlice(d.Tags)
	return &DraftDetail{Draft: d, Stats: draft.Measure(d.Body)}, nil
}

// MarkPublish sets publish: true on the named draft and reindexes it.
func (s *Service) MarkPublish(ctx context.Context, name string) (*DraftDetail, error) {
	rel, err := s.drafts.Resolve(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.drafts.MarkPublish(rel); err != nil {
		return nil, err
	}
	s.reindex(rel)
	return s.GetDraft(ctx, rel)
}

// PublishDraft copies the named draft into the ready folder and returns the
// stored path of the copy.
func (s *Service) PublishDraft(_ context.Context, name string) (string, error) {
	target, err := s.drafts.Publish(name)
	if err != nil {
		return "", err
	}
	s.reindex(target)
	return target, nil
}

// Generate runs one generation and indexes the new draft.
func (s *Service) Generate(ctx context.Context, topic string, opts generator.Options) (generator.Result, error) {
	if s.gen == nil {
		return generator.Result{}, fmt.Errorf("blogservice: generation is not configured")
	}
	res, err := s.gen.Generate(ctx, topic, opts)
	if err != nil {
		return res, err
	}
	s.reindex(res.Draft.Path)
	return res, nil
}

// RunPipeline runs the publish pipeline.
func (s *Service) RunPipeline(ctx context.Context) (publish.Log, error) {
	if s.pipeline == nil {
		return publish.Log{}, fmt.Errorf("blogservice: publish pipeline is not configured")
	}
	return s.pipeline.Run(ctx)
}

// Search finds articles. With an index it runs a full-text query, otherwise
// it fuzzy-matches titles.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.db != nil {
		hits, err := s.db.Search(query, limit)
		return nonNilSlice(hits), err
	}

	list, err := s.drafts.ListAll()
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(list))
	for i, d := range list {
		titles[i] = d.Title
	}
	var hits []models.SearchHit
	for _, m := range fuzzy.Find(query, titles) {
		d := list[m.Index]
		hits = append(hits, models.SearchHit{Path: d.Path, Title: d.Title, Snippet: d.Preview, Publish: d.Publish})
		if len(hits) == limit {
			break
		}
	}
	return nonNilSlice(hits), nil
}

// Status probes the providers and counts the articles.
func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{AI: []provider.Health{}, Images: []provider.Health{}}
	if s.ai != nil {
		st.AI = s.ai.Health(ctx)
	}
	if s.images != nil {
		st.Images = s.images.Health(ctx)
	}
	list, err := s.drafts.ListAll()
	if err != nil {
		return st, err
	}
	for _, d := range list {
		switch {
		case strings.HasPrefix(d.Path, draft.DraftsDir+"/"):
			st.Drafts++
			if d.Publish {
				st.Marked++
			}
		default:
			st.Published++
		}
	}
	return st, nil
}

// reindex refreshes one path in the index. The watcher would catch the
// change too; doing it inline makes the next read consistent.
func (s *Service) reindex(rel string) {
	if s.db == nil || rel == "" {
		return
	}
	d, err := s.drafts.Read(rel)
	if err != nil {
		s.logger.Warn("blogservice: reindex read", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := s.db.Upsert(index.RowFrom(d), d.Body); err != nil {
		s.logger.Warn("blogservice: reindex", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// IsNotFound reports whether err means the named draft does not exist.
func IsNotFound(err error) bool {
	return apperr.KindOf(err) == apperr.KindDraftNotFound
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func page[T any](s []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s) {
		return nil
	}
	s = s[offset:]
	if limit > 0 && limit < len(s) {
		s = s[:limit]
	}
	return s
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

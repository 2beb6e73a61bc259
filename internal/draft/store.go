// Package draft is the file-backed store for generated articles. Drafts live
// in a "drafts" subfolder of the content directory; the content directory
// itself is the ready folder the publish pipeline syncs from.
package draft

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
	"github.com/skyboj/obsidian-ai-blogger/internal/models"
	"github.com/skyboj/obsidian-ai-blogger/internal/parser"
	"github.com/skyboj/obsidian-ai-blogger/internal/storage"
)

// DraftsDir is the subfolder holding unpublished drafts.
const DraftsDir = "drafts"

const previewLength = 200

// Frontmatter keys written for every draft, in file order.
var defaultKeys = []string{"title", "description", "publish", "created_date", "tags", "featured_image", "slug"}

// Store reads and writes drafts under one content directory.
type Store struct {
	fs     storage.Provider
	blog   storage.Provider
	now    func() time.Time
	logger *slog.Logger

	mu sync.Mutex // serialises writes
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for filenames and created_date.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBlog sets the external blog folder used by CopyToBlog.
func WithBlog(p storage.Provider) Option {
	return func(s *Store) { s.blog = p }
}

// New creates a store on top of p.
func New(p storage.Provider, opts ...Option) *Store {
	s := &Store{fs: p, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WriteRequest describes a new article file.
type WriteRequest struct {
	Title       string
	Body        string
	Frontmatter map[string]any
	Filename    string // derived from title and date when empty
	Subfolder   string
	Overwrite   bool
}

// Write creates an article file. Caller frontmatter is merged over the
// default skeleton; title always comes from the request and an empty slug
// is derived from it. An existing file is only replaced when Overwrite is set.
func (s *Store) Write(req WriteRequest) (models.Draft, error) {
	if strings.TrimSpace(req.Title) == "" {
		return models.Draft{}, fmt.Errorf("draft: title is required")
	}
	now := s.now()
	name := req.Filename
	if name == "" {
		name = Filename(req.Title, now)
	}
	if path.Base(name) != name || !strings.HasSuffix(name, ".md") {
		return models.Draft{}, fmt.Errorf("draft: invalid filename %q", name)
	}
	rel := name
	if req.Subfolder != "" {
		rel = path.Join(req.Subfolder, name)
	}

	fields := buildFrontmatter(req.Title, req.Frontmatter, now)
	data, err := parser.Render(fields, req.Body)
	if err != nil {
		return models.Draft{}, fmt.Errorf("draft: render: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Overwrite {
		err = s.fs.Write(rel, data)
	} else {
		err = s.fs.Create(rel, data)
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindFileExists {
			return models.Draft{}, err
		}
		return models.Draft{}, fmt.Errorf("draft: write %s: %w", rel, err)
	}
	s.logger.Info("draft: written", slog.String("path", rel), slog.Int("bytes", len(data)))
	return Decode(rel, data, now)
}

// CreateDraft writes an unpublished article into the drafts subfolder.
func (s *Store) CreateDraft(title, body string, fm map[string]any) (models.Draft, error) {
	merged := make(map[string]any, len(fm)+1)
	for k, v := range fm {
		merged[k] = v
	}
	merged["publish"] = false
	return s.Write(WriteRequest{Title: title, Body: body, Frontmatter: merged, Subfolder: DraftsDir})
}

func buildFrontmatter(title string, user map[string]any, now time.Time) []parser.Field {
	values := map[string]any{
		"title":          title,
		"description":    "",
		"publish":        false,
		"created_date":   now.Format(time.DateOnly),
		"tags":           []string{},
		"featured_image": "",
		"slug":           "",
	}
	var extra []string
	for k, v := range user {
		if _, known := values[k]; !known {
			extra = append(extra, k)
		}
		values[k] = v
	}
	values["title"] = title
	if sl, _ := values["slug"].(string); sl == "" {
		values["slug"] = Slugify(title)
	}
	if values["tags"] == nil {
		values["tags"] = []string{}
	}
	sort.Strings(extra)

	fields := make([]parser.Field, 0, len(defaultKeys)+len(extra))
	for _, k := range append(append([]string(nil), defaultKeys...), extra...) {
		fields = append(fields, parser.Field{Key: k, Value: values[k]})
	}
	return fields
}

// List returns the articles directly inside subfolder ("" for the ready
// folder, DraftsDir for drafts), newest first.
func (s *Store) List(subfolder string) ([]models.Draft, error) {
	return s.list(subfolder, false)
}

// ListAll returns every article under the content directory.
func (s *Store) ListAll() ([]models.Draft, error) {
	return s.list("", true)
}

func (s *Store) list(dir string, recursive bool) ([]models.Draft, error) {
	files, err := s.fs.List(dir, recursive)
	if err != nil {
		return nil, fmt.Errorf("draft: list: %w", err)
	}
	out := make([]models.Draft, 0, len(files))
	for _, f := range files {
		data, err := s.fs.Read(f.Path)
		if err != nil {
			s.logger.Warn("draft: skip unreadable file", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		d, err := Decode(f.Path, data, f.UpdatedAt)
		if err != nil {
			s.logger.Warn("draft: skip unparsable file", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		d.Body = ""
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Filename != out[j].Filename {
			return out[i].Filename > out[j].Filename
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Resolve maps a user-supplied name onto a stored path. Paths containing a
// slash are taken as-is; bare filenames are looked up in drafts first, then
// in the ready folder; names without ".md" are tried with it; finally a
// single fuzzy match among the drafts is accepted.
func (s *Store) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.New(apperr.KindDraftNotFound, "empty draft name")
	}
	if strings.Contains(name, "/") {
		if ok, err := s.fs.Exists(name); err != nil {
			return "", err
		} else if ok {
			return name, nil
		}
		return "", apperr.New(apperr.KindDraftNotFound, name)
	}

	candidates := []string{name}
	if !strings.HasSuffix(name, ".md") {
		candidates = append(candidates, name+".md")
	}
	for _, c := range candidates {
		for _, p := range []string{path.Join(DraftsDir, c), c} {
			ok, err := s.fs.Exists(p)
			if err != nil {
				return "", err
			}
			if ok {
				return p, nil
			}
		}
	}

	files, err := s.fs.List(DraftsDir, false)
	if err != nil {
		return "", fmt.Errorf("draft: list: %w", err)
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = path.Base(f.Path)
	}
	matches := fuzzy.Find(name, names)
	if len(matches) == 1 {
		return files[matches[0].Index].Path, nil
	}
	return "", apperr.New(apperr.KindDraftNotFound, name)
}

// Read loads one article by stored path.
func (s *Store) Read(rel string) (models.Draft, error) {
	data, err := s.readExisting(rel)
	if err != nil {
		return models.Draft{}, err
	}
	return Decode(rel, data, s.now())
}

func (s *Store) readExisting(rel string) ([]byte, error) {
	data, err := s.fs.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrap(apperr.KindDraftNotFound, rel, err)
		}
		return nil, fmt.Errorf("draft: read %s: %w", rel, err)
	}
	return data, nil
}

// Stats measures the body of a stored article.
func (s *Store) Stats(rel string) (models.Stats, error) {
	d, err := s.Read(rel)
	if err != nil {
		return models.Stats{}, err
	}
	return Measure(d.Body), nil
}

// MarkPublish sets publish: true on the draft named filename. Every other
// byte of the file is preserved.
func (s *Store) MarkPublish(filename string) (map[string]any, error) {
	rel, err := s.Resolve(filename)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readExisting(rel)
	if err != nil {
		return nil, err
	}
	updated, err := parser.SetField(data, "publish", true)
	if err != nil {
		return nil, fmt.Errorf("draft: mark %s: %w", rel, err)
	}
	if err := s.fs.Write(rel, updated); err != nil {
		return nil, fmt.Errorf("draft: write %s: %w", rel, err)
	}
	s.logger.Info("draft: marked for publication", slog.String("path", rel))
	r, err := parser.Parse(updated)
	if err != nil {
		return nil, fmt.Errorf("draft: parse %s: %w", rel, err)
	}
	return r.Frontmatter, nil
}

// Update merges patch into the frontmatter of rel and replaces the body
// when body is non-nil. The title cannot be cleared.
func (s *Store) Update(filename string, patch map[string]any, body *string) (models.Draft, error) {
	rel, err := s.Resolve(filename)
	if err != nil {
		return models.Draft{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readExisting(rel)
	if err != nil {
		return models.Draft{}, err
	}
	r, err := parser.Parse(data)
	if err != nil {
		return models.Draft{}, fmt.Errorf("draft: parse %s: %w", rel, err)
	}

	fields := r.Fields()
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f.Key] = i
	}
	var added []string
	for k := range patch {
		if _, ok := index[k]; !ok {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	for k, v := range patch {
		if i, ok := index[k]; ok {
			fields[i].Value = v
		}
	}
	for _, k := range added {
		fields = append(fields, parser.Field{Key: k, Value: patch[k]})
	}

	merged := make(map[string]any, len(fields))
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	if err := ValidateFrontmatter(merged); err != nil {
		return models.Draft{}, fmt.Errorf("draft: invalid frontmatter: %w", err)
	}

	newBody := r.Body
	if body != nil {
		newBody = *body
	}
	out, err := parser.Render(fields, newBody)
	if err != nil {
		return models.Draft{}, fmt.Errorf("draft: render: %w", err)
	}
	if err := s.fs.Write(rel, out); err != nil {
		return models.Draft{}, fmt.Errorf("draft: write %s: %w", rel, err)
	}
	return Decode(rel, out, s.now())
}

// Publish copies drafts/<filename> into the ready folder and returns the new
// path. The draft itself is kept. A missing draft yields DRAFT_NOT_FOUND and
// nothing is written.
func (s *Store) Publish(filename string) (string, error) {
	name := path.Base(strings.TrimSpace(filename))
	if name == "." || name == "/" || name == "" {
		return "", apperr.New(apperr.KindDraftNotFound, filename)
	}
	src := path.Join(DraftsDir, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.fs.Exists(src)
	if err != nil {
		return "", fmt.Errorf("draft: stat %s: %w", src, err)
	}
	if !ok {
		return "", apperr.New(apperr.KindDraftNotFound, name)
	}
	if err := s.fs.Copy(src, name, true); err != nil {
		return "", fmt.Errorf("draft: publish %s: %w", name, err)
	}
	s.logger.Info("draft: published", slog.String("from", src), slog.String("to", name))
	return name, nil
}

// SyncResult reports what SyncReady did.
type SyncResult struct {
	Copied  []string `json:"copied"`
	Skipped []string `json:"skipped"`
}

// SyncReady copies every draft marked publish: true into the ready folder,
// skipping files already there.
func (s *Store) SyncReady() (SyncResult, error) {
	drafts, err := s.List(DraftsDir)
	if err != nil {
		return SyncResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res SyncResult
	for _, d := range drafts {
		if !d.Publish {
			continue
		}
		err := s.fs.Copy(d.Path, d.Filename, false)
		switch {
		case err == nil:
			res.Copied = append(res.Copied, d.Filename)
		case apperr.KindOf(err) == apperr.KindFileExists:
			res.Skipped = append(res.Skipped, d.Filename)
		default:
			return res, fmt.Errorf("draft: sync %s: %w", d.Filename, err)
		}
	}
	s.logger.Info("draft: sync done", slog.Int("copied", len(res.Copied)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// CopyToBlog copies a stored article into the external blog folder, into
// its drafts subfolder unless ready is set. An existing target yields
// FILE_EXISTS unless overwrite is set.
func (s *Store) CopyToBlog(rel string, ready, overwrite bool) (string, error) {
	if s.blog == nil {
		return "", fmt.Errorf("draft: no blog folder configured")
	}
	data, err := s.readExisting(rel)
	if err != nil {
		return "", err
	}
	target := path.Base(rel)
	if !ready {
		target = path.Join(DraftsDir, target)
	}
	if overwrite {
		err = s.blog.Write(target, data)
	} else {
		err = s.blog.Create(target, data)
	}
	if err != nil {
		return "", err
	}
	return target, nil
}

// HasBlog reports whether an external blog folder is configured.
func (s *Store) HasBlog() bool { return s.blog != nil }

// SyncBlog copies every article in the ready folder into the blog folder,
// skipping files the blog already has.
func (s *Store) SyncBlog() (SyncResult, error) {
	ready, err := s.List("")
	if err != nil {
		return SyncResult{}, err
	}
	var res SyncResult
	for _, d := range ready {
		_, err := s.CopyToBlog(d.Path, true, false)
		switch {
		case err == nil:
			res.Copied = append(res.Copied, d.Filename)
		case apperr.KindOf(err) == apperr.KindFileExists:
			res.Skipped = append(res.Skipped, d.Filename)
		default:
			return res, fmt.Errorf("draft: blog sync %s: %w", d.Filename, err)
		}
	}
	s.logger.Info("draft: blog sync done", slog.Int("copied", len(res.Copied)), slog.Int("skipped", len(res.Skipped)))
	return res, nil
}

// Backup writes a timestamped copy next to rel and returns its path.
func (s *Store) Backup(rel string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readExisting(rel)
	if err != nil {
		return "", err
	}
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(s.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	dst := rel + ".backup." + ts
	if err := s.fs.Create(dst, data); err != nil {
		return "", fmt.Errorf("draft: backup %s: %w", rel, err)
	}
	return dst, nil
}

// Decode parses the raw bytes of the article stored at rel.
func Decode(rel string, data []byte, updated time.Time) (models.Draft, error) {
	r, err := parser.Parse(data)
	if err != nil {
		return models.Draft{}, err
	}
	fm := r.Frontmatter
	d := models.Draft{
		Filename:    path.Base(rel),
		Path:        rel,
		Title:       r.Title,
		Frontmatter: fm,
		Keys:        r.Keys,
		Body:        r.Body,
		Preview:     preview(r.Body, previewLength),
		Checksum:    storage.Checksum(data),
		UpdatedAt:   updated,
	}
	if d.Title == "" {
		d.Title = strings.TrimSuffix(d.Filename, ".md")
	}
	d.Publish, _ = fm["publish"].(bool)
	d.Slug, _ = fm["slug"].(string)
	d.CreatedDate, _ = fm["created_date"].(string)
	d.Image, _ = fm["featured_image"].(string)
	if tags, ok := fm["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				d.Tags = append(d.Tags, s)
			}
		}
	}
	return d, nil
}

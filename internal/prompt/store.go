package prompt

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Store holds the templates loaded from one directory.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	templates map[string]Template
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for the system variables.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store for dir. Call Load to read the templates.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:       dir,
		logger:    slog.Default(),
		now:       time.Now,
		templates: make(map[string]Template),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load reads every *.yaml and *.yml file in the directory. A file that fails
// to parse or validate is logged and skipped.
func (s *Store) Load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("prompt: read dir: %w", err)
	}

	loaded := make(map[string]Template)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ext)
		t, err := s.loadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Error("prompt: skip template",
				slog.String("file", e.Name()), slog.String("error", err.Error()))
			continue
		}
		loaded[id] = t
	}

	s.mu.Lock()
	s.templates = loaded
	s.mu.Unlock()
	s.logger.Info("prompt: templates loaded", slog.Int("count", len(loaded)))
	return nil
}

func (s *Store) loadFile(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, err
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Template{}, fmt.Errorf("parse: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Template{}, fmt.Errorf("validate: %w", err)
	}
	return t, nil
}

// Add registers a template under id after validating it.
func (s *Store) Add(id string, t Template) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("prompt: template %s: %w", id, err)
	}
	s.mu.Lock()
	s.templates[id] = t
	s.mu.Unlock()
	return nil
}

// Get returns a template by id.
func (s *Store) Get(id string) (Template, error) {
	s.mu.RLock()
	t, ok := s.templates[id]
	s.mu.RUnlock()
	if !ok {
		msg := fmt.Sprintf("template %q not found", id)
		if sug := s.suggest(id); sug != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", sug)
		}
		return Template{}, apperr.New(apperr.KindTemplateNotFound, msg)
	}
	return t, nil
}

func (s *Store) suggest(id string) string {
	ids := s.ids()
	if id == "" || len(ids) == 0 {
		return ""
	}
	matches := fuzzy.Find(id, ids)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

func (s *Store) ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.templates))
	for id := range s.templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Templates lists every loaded template sorted by id.
func (s *Store) Templates() []Info {
	ids := s.ids()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.templates[id].info(id))
	}
	return out
}

// Metadata describes one template.
func (s *Store) Metadata(id string) (Metadata, error) {
	t, err := s.Get(id)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Info:            t.info(id),
		Variables:       t.Variables,
		HasImageSupport: len(t.ImageKeywords) > 0,
		HasFrontmatter:  len(t.FrontmatterTemplate) > 0,
	}, nil
}

// Built is a resolved prompt.
type Built struct {
	Template  string
	System    string
	Prompt    string
	Variables map[string]string
}

// Build resolves the template's prompt with vars. A required variable with
// no value and no default fails with MISSING_VARIABLE.
func (s *Store) Build(id string, vars map[string]string) (Built, error) {
	t, err := s.Get(id)
	if err != nil {
		return Built{}, err
	}
	final, err := s.prepare(t, vars)
	if err != nil {
		return Built{}, err
	}
	return Built{
		Template:  id,
		System:    substitute(t.System, final),
		Prompt:    substitute(t.Prompt, final),
		Variables: final,
	}, nil
}

// Frontmatter resolves the template's frontmatter_template with vars and
// overlays extra. Templates without one yield an empty map.
func (s *Store) Frontmatter(id string, vars map[string]string, extra map[string]any) (map[string]any, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(t.FrontmatterTemplate) > 0 {
		final, err := s.prepare(t, vars)
		if err != nil {
			return nil, err
		}
		out = substituteValue(t.FrontmatterTemplate, final).(map[string]any)
	}
	for k, v := range extra {
		out[k] = v
	}
	return out, nil
}

// ImageKeywords resolves the template's image keywords. Without any, the
// topic (or "article") is followed by "concept" and "technology".
func (s *Store) ImageKeywords(id string, vars map[string]string) ([]string, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if len(t.ImageKeywords) == 0 {
		topic := vars["topic"]
		if topic == "" {
			topic = "article"
		}
		return []string{topic, "concept", "technology"}, nil
	}
	final, err := s.prepare(t, vars)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(t.ImageKeywords))
	for _, kw := range t.ImageKeywords {
		if kw = strings.TrimSpace(substitute(kw, final)); kw != "" {
			out = append(out, kw)
		}
	}
	return out, nil
}

func (s *Store) prepare(t Template, vars map[string]string) (map[string]string, error) {
	final := make(map[string]string, len(vars)+3+len(t.Variables))
	for k, v := range vars {
		final[k] = v
	}
	now := s.now()
	final["current_date"] = now.Format(time.DateOnly)
	final["current_datetime"] = now.UTC().Format(time.RFC3339)
	final["current_timestamp"] = strconv.FormatInt(now.UnixMilli(), 10)

	for _, v := range t.Variables {
		if _, ok := final[v.Name]; ok {
			continue
		}
		switch {
		case v.Default != nil:
			final[v.Name] = *v.Default
		case v.Required:
			return nil, apperr.New(apperr.KindMissingVariable,
				fmt.Sprintf("required variable %q not provided for template %q", v.Name, t.Name))
		default:
			final[v.Name] = ""
		}
	}
	return final, nil
}

// substitute replaces {name} placeholders with known values and leaves
// unknown placeholders untouched.
func substitute(s string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

func substituteValue(v any, vars map[string]string) any {
	switch x := v.(type) {
	case string:
		return substitute(x, vars)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = substituteValue(item, vars)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = substituteValue(item, vars)
		}
		return out
	default:
		return v
	}
}

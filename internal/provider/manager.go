package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
)

// DefaultMaxRetries bounds the candidate list to three backends.
const DefaultMaxRetries = 2

// Attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "unavailable"
)

// ErrEmptyResult marks a structurally successful response with nothing usable in it.
var ErrEmptyResult = errors.New("provider returned no usable result")

// Observer receives one call per candidate considered by Invoke.
type Observer interface {
	ObserveAttempt(domain, provider, outcome string, d time.Duration)
}

// Attempt records what happened to one candidate.
type Attempt struct {
	Provider string
	Outcome  string
	Err      error
	Duration time.Duration
}

// Result is a successful invocation.
type Result[Res any] struct {
	Value    Res
	Provider string
	Attempts []Attempt
}

// InvokeOptions selects the preferred backend and retry bound for one call.
type InvokeOptions struct {
	Preferred  string // empty means the manager default
	MaxRetries int    // <= 0 means the manager default
}

// Manager tries registered providers in a deterministic order until one
// produces a usable result.
type Manager[Req, Res any] struct {
	domain     string
	preferred  string
	maxRetries int
	empty      func(Res) bool
	logger     *slog.Logger
	observer   Observer

	mu        sync.RWMutex
	order     []string
	providers map[string]Provider[Req, Res]
}

// ManagerOption configures a Manager.
type ManagerOption[Req, Res any] func(*Manager[Req, Res])

// WithDefault sets the preferred provider used when a call names none.
func WithDefault[Req, Res any](name string) ManagerOption[Req, Res] {
	return func(m *Manager[Req, Res]) { m.preferred = name }
}

// WithMaxRetries sets the default retry bound.
func WithMaxRetries[Req, Res any](n int) ManagerOption[Req, Res] {
	return func(m *Manager[Req, Res]) {
		if n > 0 {
			m.maxRetries = n
		}
	}
}

// WithEmpty sets the predicate that turns a successful but empty response into a failure.
func WithEmpty[Req, Res any](fn func(Res) bool) ManagerOption[Req, Res] {
	return func(m *Manager[Req, Res]) { m.empty = fn }
}

// WithLogger sets the manager logger.
func WithLogger[Req, Res any](logger *slog.Logger) ManagerOption[Req, Res] {
	return func(m *Manager[Req, Res]) { m.logger = logger }
}

// WithObserver sets the attempt observer, typically the metrics collector.
func WithObserver[Req, Res any](o Observer) ManagerOption[Req, Res] {
	return func(m *Manager[Req, Res]) { m.observer = o }
}

// NewManager creates an empty manager for the given domain ("ai", "image").
func NewManager[Req, Res any](domain string, opts ...ManagerOption[Req, Res]) *Manager[Req, Res] {
	m := &Manager[Req, Res]{
		domain:     domain,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
		providers:  make(map[string]Provider[Req, Res]),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds p. Names are unique per manager.
func (m *Manager[Req, Res]) Register(p Provider[Req, Res]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("provider: %s: empty provider name", m.domain)
	}
	if _, ok := m.providers[name]; ok {
		return fmt.Errorf("provider: %s: %q already registered", m.domain, name)
	}
	m.providers[name] = p
	m.order = append(m.order, name)
	return nil
}

// Names returns registered provider names in insertion order.
func (m *Manager[Req, Res]) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Get returns a registered provider by name.
func (m *Manager[Req, Res]) Get(name string) (Provider[Req, Res], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	return p, ok
}

// Default returns the configured preferred provider name.
func (m *Manager[Req, Res]) Default() string { return m.preferred }

// Candidates builds [preferred, ...registered] deduplicated and truncated to
// maxRetries+1 entries.
func (m *Manager[Req, Res]) Candidates(preferred string, maxRetries int) []string {
	if preferred == "" {
		preferred = m.preferred
	}
	if maxRetries <= 0 {
		maxRetries = m.maxRetries
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := maxRetries + 1
	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, len(m.order)+1)
	add := func(name string) {
		if name == "" || len(out) >= limit {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	add(preferred)
	for _, name := range m.order {
		add(name)
	}
	return out
}

// Invoke tries candidates sequentially. Unavailable candidates are skipped,
// errors and empty results advance to the next candidate, and the first
// usable result is returned immediately. When every candidate fails the
// error has kind ALL_PROVIDERS_FAILED and wraps the last observed failure.
func (m *Manager[Req, Res]) Invoke(ctx context.Context, req Req, opts InvokeOptions) (Result[Res], error) {
	var (
		res      Result[Res]
		lastErr  error
		attempts []Attempt
	)

	for _, name := range m.Candidates(opts.Preferred, opts.MaxRetries) {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		p, ok := m.Get(name)
		if !ok {
			lastErr = fmt.Errorf("provider %q not registered", name)
			attempts = append(attempts, Attempt{Provider: name, Outcome: OutcomeFailure, Err: lastErr})
			m.logger.Warn("provider: candidate not registered",
				slog.String("domain", m.domain), slog.String("provider", name))
			continue
		}

		available, err := p.Available(ctx)
		if err != nil || !available {
			a := Attempt{Provider: name, Outcome: OutcomeUnavailable, Err: err}
			attempts = append(attempts, a)
			m.observe(a)
			m.logger.Warn("provider: unavailable, skipping",
				slog.String("domain", m.domain), slog.String("provider", name))
			continue
		}

		start := time.Now()
		value, err := p.Invoke(ctx, req)
		a := Attempt{Provider: name, Duration: time.Since(start)}

		switch {
		case err != nil:
			a.Outcome = OutcomeFailure
			a.Err = err
			lastErr = err
			m.logger.Warn("provider: attempt failed",
				slog.String("domain", m.domain),
				slog.String("provider", name),
				slog.String("kind", string(apperr.KindOf(err))),
				slog.String("error", err.Error()))
		case m.empty != nil && m.empty(value):
			a.Outcome = OutcomeEmpty
			a.Err = ErrEmptyResult
			lastErr = fmt.Errorf("%s: %w", name, ErrEmptyResult)
			m.logger.Warn("provider: empty result",
				slog.String("domain", m.domain), slog.String("provider", name))
		default:
			a.Outcome = OutcomeSuccess
			attempts = append(attempts, a)
			m.observe(a)
			m.logger.Info("provider: attempt succeeded",
				slog.String("domain", m.domain),
				slog.String("provider", name),
				slog.Duration("duration", a.Duration))
			res.Value = value
			res.Provider = name
			res.Attempts = attempts
			return res, nil
		}
		attempts = append(attempts, a)
		m.observe(a)
	}

	m.logger.Error("provider: all candidates failed",
		slog.String("domain", m.domain), slog.Int("attempts", len(attempts)))
	res.Attempts = attempts
	return res, apperr.Wrap(apperr.KindAllProvidersFailed, m.domain, lastErr)
}

// Health probes every registered provider in insertion order.
func (m *Manager[Req, Res]) Health(ctx context.Context) []Health {
	names := m.Names()
	out := make([]Health, 0, len(names))
	for _, name := range names {
		p, ok := m.Get(name)
		if !ok {
			continue
		}
		out = append(out, Probe(ctx, p))
	}
	return out
}

// Best returns the default provider when registered, otherwise the first
// registered provider.
func (m *Manager[Req, Res]) Best() (string, error) {
	names := m.Names()
	if len(names) == 0 {
		return "", apperr.New(apperr.KindAllProvidersFailed, "no "+m.domain+" providers registered")
	}
	for _, n := range names {
		if n == m.preferred {
			return n, nil
		}
	}
	return names[0], nil
}

func (m *Manager[Req, Res]) observe(a Attempt) {
	if m.observer != nil {
		m.observer.ObserveAttempt(m.domain, a.Provider, a.Outcome, a.Duration)
	}
}

package telegraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/skyboj/obsidian-ai-blogger/internal/storage"
)

const (
	tokenFile = "telegraph_token.json"
	cacheFile = "telegraph_cache.json"

	cacheKeyChars = 100
)

// Config configures a Publisher.
type Config struct {
	ShortName  string
	AuthorName string
	AuthorURL  string
	BaseURL    string
	Timeout    time.Duration
}

type tokenState struct {
	AccessToken string    `json:"access_token"`
	ShortName   string    `json:"short_name"`
	Created     time.Time `json:"created"`
}

// Publisher creates preview pages, reusing one account and caching page
// URLs by content in a state directory.
type Publisher struct {
	cfg    Config
	client *Client
	state  storage.Provider
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	ready  bool
	cache  map[string]string
	loaded bool
}

// NewPublisher creates a publisher storing its token and page cache in state.
func NewPublisher(cfg Config, state storage.Provider, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, "", cfg.Timeout),
		state:  state,
		logger: logger,
		now:    time.Now,
	}
}

// CacheKey identifies an article by its title and the first 100 characters
// of its content, keeping only ASCII letters and digits of the latter.
func CacheKey(title, content string) string {
	r := []rune(content)
	if len(r) > cacheKeyChars {
		r = r[:cacheKeyChars]
	}
	var b strings.Builder
	for _, c := range r {
		if c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)) {
			b.WriteRune(c)
		}
	}
	return title + "-" + b.String()
}

// Preview publishes markdown under title and returns the page URL. Pages
// already created for the same content are returned from the cache.
func (p *Publisher) Preview(ctx context.Context, title, markdown string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureAccount(ctx); err != nil {
		return "", err
	}
	p.loadCache()

	key := CacheKey(title, markdown)
	if u, ok := p.cache[key]; ok {
		p.logger.Info("telegraph: cache hit", slog.String("url", u))
		return u, nil
	}

	nodes, err := ToNodes(markdown)
	if err != nil || len(nodes) == 0 {
		p.logger.Warn("telegraph: conversion fell back to plain text", slog.Any("error", err))
		nodes = []any{Element{Tag: "p", Children: []any{markdown}}}
	}
	page, err := p.client.CreatePage(ctx, PageRequest{
		Title:      title,
		AuthorName: p.cfg.AuthorName,
		AuthorURL:  p.cfg.AuthorURL,
		Content:    nodes,
	})
	if err != nil {
		return "", err
	}

	p.cache[key] = page.URL
	if err := p.saveJSON(cacheFile, p.cache); err != nil {
		p.logger.Error("telegraph: save cache", slog.String("error", err.Error()))
	}
	p.logger.Info("telegraph: page created", slog.String("url", page.URL))
	return page.URL, nil
}

// ensureAccount loads the stored token and verifies it, creating a new
// account when there is none or it no longer works.
func (p *Publisher) ensureAccount(ctx context.Context) error {
	if p.ready {
		return nil
	}
	var st tokenState
	err := p.loadJSON(tokenFile, &st)
	switch {
	case err == nil && st.AccessToken != "":
		p.client.SetToken(st.AccessToken)
		acc, verr := p.client.GetAccount(ctx)
		if verr == nil {
			p.logger.Info("telegraph: account verified", slog.String("short_name", acc.ShortName))
			p.ready = true
			return nil
		}
		p.logger.Warn("telegraph: stored token rejected, creating new account", slog.String("error", verr.Error()))
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		p.logger.Warn("telegraph: unreadable token file", slog.String("error", err.Error()))
	}

	acc, err := p.client.CreateAccount(ctx, Account{
		ShortName:  p.cfg.ShortName,
		AuthorName: p.cfg.AuthorName,
		AuthorURL:  p.cfg.AuthorURL,
	})
	if err != nil {
		return err
	}
	st = tokenState{AccessToken: acc.AccessToken, ShortName: acc.ShortName, Created: p.now().UTC()}
	if err := p.saveJSON(tokenFile, st); err != nil {
		p.logger.Error("telegraph: save token", slog.String("error", err.Error()))
	}
	p.logger.Info("telegraph: account created", slog.String("short_name", acc.ShortName))
	p.ready = true
	return nil
}

func (p *Publisher) loadCache() {
	if p.loaded {
		return
	}
	p.loaded = true
	p.cache = map[string]string{}
	if err := p.loadJSON(cacheFile, &p.cache); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("telegraph: unreadable cache, starting fresh", slog.String("error", err.Error()))
		}
		p.cache = map[string]string{}
		return
	}
	p.logger.Info("telegraph: cache loaded", slog.Int("pages", len(p.cache)))
}

func (p *Publisher) loadJSON(name string, v any) error {
	data, err := p.state.Read(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("telegraph: decode %s: %w", name, err)
	}
	return nil
}

func (p *Publisher) saveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("telegraph: encode %s: %w", name, err)
	}
	return p.state.Write(name, data)
}

// TextPreview returns at most n characters of body, marking truncation.
func TextPreview(body string, n int) string {
	r := []rune(strings.TrimSpace(body))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

// Package ai contains the text-generation providers and the AI provider manager.
package ai

import (
	"log/slog"
	"strings"
	"time"

	"github.com/skyboj/obsidian-ai-blogger/internal/provider"
)

// Domain is the manager domain label used in logs and metrics.
const Domain = "ai"

// Request is one text-generation call.
type Request struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Usage reports token accounting for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is generated text plus metadata.
type Response struct {
	Text         string
	Provider     string
	Model        string
	Usage        Usage
	FinishReason string
	CreatedAt    time.Time
}

// Provider is a text-generation backend.
type Provider = provider.Provider[Request, Response]

// Manager is the AI provider manager.
type Manager = provider.Manager[Request, Response]

// InvokeOptions selects the preferred provider for one call.
type InvokeOptions = provider.InvokeOptions

// NewManager creates a manager that treats blank text as a failed attempt.
func NewManager(defaultProvider string, maxRetries int, logger *slog.Logger, obs provider.Observer) *Manager {
	opts := []provider.ManagerOption[Request, Response]{
		provider.WithDefault[Request, Response](defaultProvider),
		provider.WithMaxRetries[Request, Response](maxRetries),
		provider.WithEmpty[Request, Response](func(r Response) bool {
			return strings.TrimSpace(r.Text) == ""
		}),
	}
	if logger != nil {
		opts = append(opts, provider.WithLogger[Request, Response](logger))
	}
	if obs != nil {
		opts = append(opts, provider.WithObserver[Request, Response](obs))
	}
	return provider.NewManager[Request, Response](Domain, opts...)
}

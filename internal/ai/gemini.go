package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Gemini generates text through the Google Gen AI SDK.
type Gemini struct {
	cfg    GeminiConfig
	client *genai.Client
}

// NewGemini creates the provider. Without an API key no client is built and
// the provider reports itself unavailable.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	g := &Gemini{cfg: cfg}
	if cfg.APIKey == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.cfg.Model }

// Available reports whether a client could be built from the credentials.
func (g *Gemini) Available(context.Context) (bool, error) {
	return g.client != nil, nil
}

// Invoke runs one GenerateContent call.
func (g *Gemini) Invoke(ctx context.Context, req Request) (Response, error) {
	if g.client == nil {
		return Response{}, apperr.New(apperr.KindInvalidAPIKey, "gemini: no API key configured")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}
	if err := ValidatePrompt(req.Prompt, maxTokens); err != nil {
		return Response{}, err
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.cfg.Temperature
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	conf := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
		Temperature:     genai.Ptr(float32(temperature)),
	}
	if req.System != "" {
		conf.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(req.Prompt), conf)
	if err != nil {
		return Response{}, classifyGeminiError(err)
	}

	out := Response{
		Text:      strings.TrimSpace(resp.Text()),
		Provider:  g.Name(),
		Model:     g.cfg.Model,
		CreatedAt: time.Now(),
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func classifyGeminiError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if code != 0 {
		kind := apperr.FromStatus(apperr.DomainAI, code)
		return apperr.Wrap(kind, fmt.Sprintf("gemini: status %d", code), err)
	}
	return apperr.Wrap(apperr.KindUnknown, "gemini request failed", err)
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
)

// OpenAIConfig configures the OpenAI chat-completions provider.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	BaseURL     string // empty uses the SDK default
	Timeout     time.Duration
}

// OpenAI talks to the chat-completions endpoint through the official SDK.
type OpenAI struct {
	cfg    OpenAIConfig
	client openai.Client
}

// NewOpenAI creates the provider. A missing API key leaves it permanently unavailable.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		// The provider manager owns retries and fallback.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &OpenAI{
		cfg:    cfg,
		client: openai.NewClient(opts...),
	}
}

func (p *OpenAI) Name() string { return "openai" }

// Model returns the configured model name.
func (p *OpenAI) Model() string { return p.cfg.Model }

// Available reports whether credentials are configured.
func (p *OpenAI) Available(context.Context) (bool, error) {
	return p.cfg.APIKey != "", nil
}

// Invoke runs one chat completion.
func (p *OpenAI) Invoke(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	if err := ValidatePrompt(req.Prompt, maxTokens); err != nil {
		return Response{}, err
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	out, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.cfg.Model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			kind := apperr.FromStatus(apperr.DomainAI, apiErr.StatusCode)
			msg := apiErr.Message
			if msg == "" {
				msg = err.Error()
			}
			return Response{}, apperr.Wrap(kind, fmt.Sprintf("openai: status %d", apiErr.StatusCode), errors.New(msg))
		}
		return Response{}, apperr.Wrap(apperr.KindUnknown, "openai request failed", err)
	}
	if len(out.Choices) == 0 {
		return Response{}, fmt.Errorf("openai: response has no choices")
	}

	return Response{
		Text:     strings.TrimSpace(out.Choices[0].Message.Content),
		Provider: p.Name(),
		Model:    out.Model,
		Usage: Usage{
			PromptTokens:     int(out.Usage.PromptTokens),
			CompletionTokens: int(out.Usage.CompletionTokens),
			TotalTokens:      int(out.Usage.TotalTokens),
		},
		FinishReason: string(out.Choices[0].FinishReason),
		CreatedAt:    time.Now(),
	}, nil
}

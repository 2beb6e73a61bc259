package ai

import (
	"context"
	"sync"
)

// Fake is a scripted provider for tests and dry runs.
type Fake struct {
	ProviderName string
	Unavailable  bool
	Text         string
	Err          error

	mu       sync.Mutex
	requests []Request
}

func (f *Fake) Name() string {
	if f.ProviderName == "" {
		return "fake"
	}
	return f.ProviderName
}

func (f *Fake) Available(context.Context) (bool, error) { return !f.Unavailable, nil }

func (f *Fake) Invoke(_ context.Context, req Request) (Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.Err != nil {
		return Response{}, f.Err
	}
	return Response{
		Text:     f.Text,
		Provider: f.Name(),
		Model:    "fake",
		Usage: Usage{
			PromptTokens:     EstimateTokens(req.Prompt),
			CompletionTokens: EstimateTokens(f.Text),
			TotalTokens:      EstimateTokens(req.Prompt) + EstimateTokens(f.Text),
		},
	}, nil
}

// Requests returns the requests received so far.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxTokens is used when a provider has no configured limit.
const DefaultMaxTokens = 4000

// EstimateTokens approximates the token count as one token per three characters.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 2) / 3
}

// ValidatePrompt rejects blank prompts and prompts whose estimate leaves less
// than a fifth of maxTokens for the answer.
func ValidatePrompt(prompt string, maxTokens int) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("ai: prompt is empty")
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	est := EstimateTokens(prompt)
	if float64(est) >= float64(maxTokens)*0.8 {
		return fmt.Errorf("ai: prompt too long: ~%d tokens, limit %d", est, int(float64(maxTokens)*0.8))
	}
	return nil
}

// Price is the cost in USD per thousand tokens.
type Price struct {
	Prompt     float64
	Completion float64
}

var prices = map[string]Price{
	"gpt-4o":           {Prompt: 0.0025, Completion: 0.01},
	"gpt-4o-mini":      {Prompt: 0.00015, Completion: 0.0006},
	"gpt-4-turbo":      {Prompt: 0.01, Completion: 0.03},
	"gpt-3.5-turbo":    {Prompt: 0.0005, Completion: 0.0015},
	"gemini-2.0-flash": {Prompt: 0.0001, Completion: 0.0004},
	"gemini-1.5-pro":   {Prompt: 0.00125, Completion: 0.005},
}

// Estimate is a rough cost projection for one prompt.
type Estimate struct {
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	USD              float64 `json:"usd"`
}

// EstimateCost projects the cost of running prompt on model, assuming the
// completion is twice the prompt and capped at maxTokens. Unknown models
// report ok=false.
func EstimateCost(prompt, model string, maxTokens int) (Estimate, bool) {
	p, ok := prices[model]
	if !ok {
		return Estimate{}, false
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	in := EstimateTokens(prompt)
	out := min(maxTokens, in*2)
	return Estimate{
		Model:            model,
		PromptTokens:     in,
		CompletionTokens: out,
		USD:              float64(in)/1000*p.Prompt + float64(out)/1000*p.Completion,
	}, true
}

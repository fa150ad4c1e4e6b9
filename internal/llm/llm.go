// Package llm provides the single-call LLM contract the pipeline depends on,
// with an OpenAI-compatible HTTP implementation and a Gemini vendor
// implementation. The client never retries; retry policy belongs to the
// orchestrator.
package llm

import (
	"context"
)

// Params tunes one call. Zero values take the documented defaults.
type Params struct {
	Model            string
	Temperature      *float64 // default 0.7
	TopP             *float64 // default 1.0
	FrequencyPenalty *float64 // default 0
	PresencePenalty  *float64 // default 0
	MaxTokens        int      // default 100_000
	Stream           bool
}

// Usage reports token accounting when the endpoint returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the outcome of one call.
type Result struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Client is the single-call contract: one prompt in, one text out.
type Client interface {
	Call(ctx context.Context, prompt string, params Params) (*Result, error)
}

const (
	defaultTemperature = 0.7
	defaultTopP        = 1.0
	defaultMaxTokens   = 100_000
)

func (p *Params) temperature() float64 {
	if p.Temperature != nil {
		return *p.Temperature
	}
	return defaultTemperature
}

func (p *Params) topP() float64 {
	if p.TopP != nil {
		return *p.TopP
	}
	return defaultTopP
}

func (p *Params) frequencyPenalty() float64 {
	if p.FrequencyPenalty != nil {
		return *p.FrequencyPenalty
	}
	return 0
}

func (p *Params) presencePenalty() float64 {
	if p.PresencePenalty != nil {
		return *p.PresencePenalty
	}
	return 0
}

func (p *Params) maxTokens() int {
	if p.MaxTokens > 0 {
		return p.MaxTokens
	}
	return defaultMaxTokens
}

package service

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Tasks routed through the AI provider chain. Each task may pin a preferred
// provider and model via configuration.
const (
	TaskPlan        = "plan"
	TaskEvaluate    = "evaluate"
	TaskReport      = "report"
	TaskNameExtract = "name_extract"
)

// Media carries an inline audio payload for multimodal generation.
type Media struct {
	MIMEType string
	Data     []byte
}

type GenerateRequest struct {
	Task        string
	System      string
	Prompt      string
	Media       *Media
	Temperature float32
	MaxTokens   int

	// TranscriptPrompt, when set, rebuilds the prompt around a transcript if
	// the request falls back from a multimodal provider to a text-only one.
	TranscriptPrompt func(transcript string) string
}

type Result struct {
	Text       string
	Provider   string
	Model      string
	LatencyMS  int64
	TokensUsed *int

	// Transcript is set when the answer was transcribed as part of the
	// text-only fallback, so callers can reuse it.
	Transcript string
}

// Provider is a single upstream LLM backend.
type Provider interface {
	Name() string
	SupportsMedia() bool
	Generate(ctx context.Context, model string, req GenerateRequest) (*Result, error)
}

// Transcriber converts an audio payload to text so audio tasks can fall back
// to text-only providers.
type Transcriber interface {
	Transcribe(ctx context.Context, media Media) (string, error)
}

// ProviderError is returned by providers for upstream failures. Retryable
// errors let the router fall through to the next provider in the chain.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Retryable() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout {
		return true
	}
	return e.StatusCode >= 500 && e.StatusCode <= 599
}

func (e *ProviderError) HTTPStatusCode() int {
	return e.StatusCode
}

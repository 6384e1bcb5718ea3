package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func ReadGroqConfig() *GroqConfig {
	v := viper.New()
	v.SetDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("GROQ_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("GROQ_TIMEOUT_SECONDS", 60)
	_ = v.BindEnv("GROQ_API_KEY")
	_ = v.BindEnv("GROQ_BASE_URL")
	_ = v.BindEnv("GROQ_MODEL")
	_ = v.BindEnv("GROQ_TIMEOUT_SECONDS")

	return &GroqConfig{
		APIKey:  v.GetString("GROQ_API_KEY"),
		BaseURL: strings.TrimRight(v.GetString("GROQ_BASE_URL"), "/"),
		Model:   v.GetString("GROQ_MODEL"),
		Timeout: time.Duration(v.GetInt("GROQ_TIMEOUT_SECONDS")) * time.Second,
	}
}

// Groq speaks the OpenAI-compatible chat completions dialect.
type Groq struct {
	config *GroqConfig
	client *http.Client
}

func NewGroq(config *GroqConfig) *Groq {
	return &Groq{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (g *Groq) Name() string        { return "groq" }
func (g *Groq) SupportsMedia() bool { return false }
func (g *Groq) Enabled() bool       { return g.config.APIKey != "" }

func (g *Groq) Generate(ctx context.Context, model string, req GenerateRequest) (*Result, error) {
	if model == "" {
		model = g.config.Model
	}

	messages := []chatMessage{}
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider:   g.Name(),
			StatusCode: resp.StatusCode,
			Message:    truncate(string(data), 512),
			RetryAfter: retryAfter(resp),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Provider: g.Name(), StatusCode: http.StatusBadGateway, Message: "empty choices"}
	}

	tokens := parsed.Usage.TotalTokens
	return &Result{
		Text:       parsed.Choices[0].Message.Content,
		Provider:   g.Name(),
		Model:      model,
		LatencyMS:  time.Since(started).Milliseconds(),
		TokensUsed: &tokens,
	}, nil
}

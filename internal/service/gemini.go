package service

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey string
	Model  string
}

func ReadGeminiConfig() *GeminiConfig {
	v := viper.New()
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	_ = v.BindEnv("GEMINI_API_KEY")
	_ = v.BindEnv("GEMINI_MODEL")

	return &GeminiConfig{
		APIKey: v.GetString("GEMINI_API_KEY"),
		Model:  v.GetString("GEMINI_MODEL"),
	}
}

// Gemini is the only provider in the chain that accepts inline audio.
type Gemini struct {
	config *GeminiConfig
	client *genai.Client
}

func NewGemini(ctx context.Context, config *GeminiConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Gemini{config: config, client: client}, nil
}

func (g *Gemini) Name() string        { return "gemini" }
func (g *Gemini) SupportsMedia() bool { return true }
func (g *Gemini) Enabled() bool       { return g.config.APIKey != "" }

func (g *Gemini) Generate(ctx context.Context, model string, req GenerateRequest) (*Result, error) {
	if model == "" {
		model = g.config.Model
	}

	var contents []*genai.Content
	if req.Media != nil {
		contents = []*genai.Content{{
			Parts: []*genai.Part{
				{Text: req.Prompt},
				{InlineData: &genai.Blob{MIMEType: req.Media.MIMEType, Data: req.Media.Data}},
			},
		}}
	} else {
		contents = genai.Text(req.Prompt)
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = genai.Ptr(int32(req.MaxTokens))
	}

	started := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		// The SDK does not expose a stable status code type, treat upstream
		// failures as retryable so the chain can fall through.
		return nil, &ProviderError{Provider: g.Name(), StatusCode: http.StatusBadGateway, Message: err.Error()}
	}

	text, err := result.Text()
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), StatusCode: http.StatusBadGateway, Message: err.Error()}
	}

	out := &Result{
		Text:      text,
		Provider:  g.Name(),
		Model:     model,
		LatencyMS: time.Since(started).Milliseconds(),
	}
	if result.UsageMetadata != nil {
		tokens := int(result.UsageMetadata.TotalTokenCount)
		out.TokensUsed = &tokens
	}
	return out, nil
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	TranscribeModel string
	TTSModel        string
	TTSVoice        string
	Timeout         time.Duration
}

func ReadOpenAIConfig() *OpenAIConfig {
	v := viper.New()
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_TRANSCRIBE_MODEL", "whisper-1")
	v.SetDefault("OPENAI_TTS_MODEL", "gpt-4o-mini-tts")
	v.SetDefault("OPENAI_TTS_VOICE", "alloy")
	v.SetDefault("OPENAI_TIMEOUT_SECONDS", 60)
	_ = v.BindEnv("OPENAI_API_KEY")
	_ = v.BindEnv("OPENAI_BASE_URL")
	_ = v.BindEnv("OPENAI_MODEL")
	_ = v.BindEnv("OPENAI_TRANSCRIBE_MODEL")
	_ = v.BindEnv("OPENAI_TTS_MODEL")
	_ = v.BindEnv("OPENAI_TTS_VOICE")
	_ = v.BindEnv("OPENAI_TIMEOUT_SECONDS")

	return &OpenAIConfig{
		APIKey:          v.GetString("OPENAI_API_KEY"),
		BaseURL:         strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
		Model:           v.GetString("OPENAI_MODEL"),
		TranscribeModel: v.GetString("OPENAI_TRANSCRIBE_MODEL"),
		TTSModel:        v.GetString("OPENAI_TTS_MODEL"),
		TTSVoice:        v.GetString("OPENAI_TTS_VOICE"),
		Timeout:         time.Duration(v.GetInt("OPENAI_TIMEOUT_SECONDS")) * time.Second,
	}
}

// OpenAI talks to the chat completions, transcription and speech endpoints.
// It also serves as the transcription fallback for text-only providers.
type OpenAI struct {
	config *OpenAIConfig
	client *http.Client
}

func NewOpenAI(config *OpenAIConfig) *OpenAI {
	return &OpenAI{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (o *OpenAI) Name() string        { return "openai" }
func (o *OpenAI) SupportsMedia() bool { return false }
func (o *OpenAI) Enabled() bool       { return o.config.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (o *OpenAI) Generate(ctx context.Context, model string, req GenerateRequest) (*Result, error) {
	if model == "" {
		model = o.config.Model
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

	started := time.Now()
	data, err := o.post(ctx, "/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Provider: o.Name(), StatusCode: http.StatusBadGateway, Message: "empty choices"}
	}

	tokens := parsed.Usage.TotalTokens
	return &Result{
		Text:       parsed.Choices[0].Message.Content,
		Provider:   o.Name(),
		Model:      model,
		LatencyMS:  time.Since(started).Milliseconds(),
		TokensUsed: &tokens,
	}, nil
}

// Transcribe converts an audio payload to text with the transcription model.
func (o *OpenAI) Transcribe(ctx context.Context, media Media) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "answer"+extensionFor(media.MIMEType))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(media.Data); err != nil {
		return "", err
	}
	if err := writer.WriteField("model", o.config.TranscribeModel); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	data, err := o.post(ctx, "/audio/transcriptions", writer.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return parsed.Text, nil
}

// Speech synthesizes audio in the requested format and returns raw bytes.
func (o *OpenAI) Speech(ctx context.Context, text, voice, format string) ([]byte, error) {
	if voice == "" {
		voice = o.config.TTSVoice
	}
	body, err := json.Marshal(map[string]any{
		"model":           o.config.TTSModel,
		"voice":           voice,
		"input":           text,
		"response_format": format,
	})
	if err != nil {
		return nil, err
	}
	return o.post(ctx, "/audio/speech", "application/json", bytes.NewReader(body))
}

func (o *OpenAI) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), StatusCode: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider:   o.Name(),
			StatusCode: resp.StatusCode,
			Message:    truncate(string(data), 512),
			RetryAfter: retryAfter(resp),
		}
	}
	return data, nil
}

func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	case strings.Contains(mimeType, "ogg"), strings.Contains(mimeType, "opus"):
		return ".ogg"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return ".m4a"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	default:
		return ".webm"
	}
}

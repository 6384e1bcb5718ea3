// Package gateway is the typed client for the interview API. It adds auth
// and error decoding on top of net/http and deliberately does not retry:
// the flow layer decides what a failure means for the interview.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"entrevia/api"
)

// TokenSource supplies the bearer token per request so callers can plug in
// refreshing identity providers.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource for a fixed token, used in tests and scripts.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// APIError is a non-2xx response decoded into the server's detail shape.
type APIError struct {
	StatusCode int
	Detail     string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Detail)
}

// IsInsufficientCredits reports whether the server rejected the call for
// lack of credits.
func (e *APIError) IsInsufficientCredits() bool {
	return e.StatusCode == http.StatusPaymentRequired
}

type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Option func(*Client)

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Auth is opportunistic: a missing or failing token source sends the
	// request without the header and lets the server reject it.
	if c.tokens != nil {
		if token, err := c.tokens.Token(ctx); err == nil && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		switch err := json.Unmarshal(data, &body); {
		case err == nil && body.Detail != "":
			apiErr.Detail = body.Detail
		case err == nil && body.Error != "":
			apiErr.Detail = body.Error
		default:
			apiErr.Detail = strings.TrimSpace(string(data))
		}
		if apiErr.Detail == "" {
			apiErr.Detail = resp.Status
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) Me(ctx context.Context) (*api.UserProfile, error) {
	var out api.UserProfile
	if err := c.do(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartSession(ctx context.Context, config api.InterviewConfig) (*api.SessionStartResponse, error) {
	var out api.SessionStartResponse
	if err := c.do(ctx, http.MethodPost, "/sessions/start", config, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GeneratePlan(ctx context.Context, sessionID string) (*api.PlanGenerateResponse, error) {
	var out api.PlanGenerateResponse
	if err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/plan/generate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EvaluateAudio(ctx context.Context, req api.EvaluateAudioRequest) (*api.AnswerEvaluation, error) {
	var out api.AnswerEvaluation
	if err := c.do(ctx, http.MethodPost, "/ai/evaluate-audio", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NameExtract(ctx context.Context, req api.NameExtractRequest) (*api.NameExtractResponse, error) {
	var out api.NameExtractResponse
	if err := c.do(ctx, http.MethodPost, "/ai/name-extract", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinalReport(ctx context.Context, req api.FinalReportRequest) (*api.FinalReport, error) {
	var out api.FinalReport
	if err := c.do(ctx, http.MethodPost, "/ai/final-report", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TTS(ctx context.Context, req api.TTSRequest) (*api.TTSResponse, error) {
	var out api.TTSResponse
	if err := c.do(ctx, http.MethodPost, "/ai/tts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinishSession(ctx context.Context, sessionID string, req api.SessionFinishRequest) error {
	return c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/finish", req, nil)
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, nil, nil)
}

func (c *Client) DevAddCredits(ctx context.Context, amount int) (*api.CreditsResponse, error) {
	var out api.CreditsResponse
	path := fmt.Sprintf("/credits/dev-add?amount=%d", amount)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

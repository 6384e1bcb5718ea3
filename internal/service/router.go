package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"entrevia/internal/metrics"
	logging "entrevia/pkg/logger/pkg"
)

type RouterConfig struct {
	Order      []string
	TaskModels map[string]string
}

// ReadRouterConfig resolves the provider chain from the environment. Task
// pins use the "provider:model" form, for example "groq:llama-3.3-70b".
func ReadRouterConfig() *RouterConfig {
	v := viper.New()
	v.SetDefault("AI_PROVIDER_ORDER", "openai,groq,gemini")
	_ = v.BindEnv("AI_PROVIDER_ORDER")
	_ = v.BindEnv("AI_MODEL_PLAN")
	_ = v.BindEnv("AI_MODEL_EVALUATE")
	_ = v.BindEnv("AI_MODEL_REPORT")
	_ = v.BindEnv("AI_MODEL_NAME_EXTRACT")

	order := []string{}
	for _, name := range strings.Split(v.GetString("AI_PROVIDER_ORDER"), ",") {
		if name = strings.TrimSpace(strings.ToLower(name)); name != "" {
			order = append(order, name)
		}
	}

	return &RouterConfig{
		Order: order,
		TaskModels: map[string]string{
			TaskPlan:        v.GetString("AI_MODEL_PLAN"),
			TaskEvaluate:    v.GetString("AI_MODEL_EVALUATE"),
			TaskReport:      v.GetString("AI_MODEL_REPORT"),
			TaskNameExtract: v.GetString("AI_MODEL_NAME_EXTRACT"),
		},
	}
}

// Router fans a request across the configured provider chain, falling
// through on retryable upstream failures and surfacing the last error when
// every candidate is exhausted.
type Router struct {
	config      *RouterConfig
	providers   map[string]Provider
	transcriber Transcriber
}

func NewRouter(config *RouterConfig, providers []Provider, transcriber Transcriber) *Router {
	byName := map[string]Provider{}
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Router{config: config, providers: byName, transcriber: transcriber}
}

type candidate struct {
	provider Provider
	model    string
}

// candidates orders providers for a task, putting the pinned provider first.
// An empty model means the provider's own default.
func (r *Router) candidates(task string) []candidate {
	var out []candidate
	pinnedProvider, pinnedModel := "", ""
	if pin := r.config.TaskModels[task]; pin != "" {
		parts := strings.SplitN(pin, ":", 2)
		pinnedProvider = strings.TrimSpace(strings.ToLower(parts[0]))
		if len(parts) == 2 {
			pinnedModel = strings.TrimSpace(parts[1])
		}
	}

	if p, ok := r.providers[pinnedProvider]; ok {
		out = append(out, candidate{provider: p, model: pinnedModel})
	}
	for _, name := range r.config.Order {
		if name == pinnedProvider {
			continue
		}
		if p, ok := r.providers[name]; ok {
			out = append(out, candidate{provider: p})
		}
	}
	return out
}

func (r *Router) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	logger := logging.Logger(ctx)
	cands := r.candidates(req.Task)
	if len(cands) == 0 {
		return nil, errors.New("no ai providers configured")
	}

	transcript := ""
	var lastErr error
	for _, c := range cands {
		attempt := req

		if req.Media != nil && !c.provider.SupportsMedia() {
			if r.transcriber == nil {
				continue
			}
			if transcript == "" {
				text, err := r.transcriber.Transcribe(ctx, *req.Media)
				if err != nil {
					logger.Warn("audio transcription fallback failed", zap.Error(err))
					lastErr = err
					continue
				}
				transcript = text
			}
			attempt.Media = nil
			if req.TranscriptPrompt != nil {
				attempt.Prompt = req.TranscriptPrompt(transcript)
			} else {
				attempt.Prompt = req.Prompt + "\n\nTranscript of the candidate's answer:\n" + transcript
			}
		}

		started := time.Now()
		result, err := c.provider.Generate(ctx, c.model, attempt)
		if err == nil {
			metrics.ObserveAI(c.provider.Name(), req.Task, "ok", time.Since(started))
			result.Transcript = transcript
			return result, nil
		}
		metrics.ObserveAI(c.provider.Name(), req.Task, "error", time.Since(started))

		var pe *ProviderError
		if errors.As(err, &pe) && pe.Retryable() {
			logger.Warn("provider failed, trying next",
				zap.String("provider", c.provider.Name()),
				zap.Int("status", pe.StatusCode),
				zap.String("task", req.Task))
			lastErr = err
			continue
		}
		return nil, err
	}

	if lastErr == nil {
		lastErr = errors.New("no provider could serve the request")
	}
	return nil, lastErr
}

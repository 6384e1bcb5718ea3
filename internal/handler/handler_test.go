package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"entrevia/api"
	"entrevia/internal/features"
	"entrevia/internal/repo"
	"entrevia/internal/service"
	"entrevia/internal/utils/extractor"
	rediscache "entrevia/internal/utils/redis"
	rabbitmq "entrevia/pkg/rabbit/pkg"
)

const planJSON = `{
	"roleTitleGuess": "Backend Engineer",
	"seniorityGuess": "pleno",
	"mustHaveSkills": ["go"],
	"blueprint": {"hr": 20, "technical": 50, "design": 15, "behavioral": 15},
	"questions": [
		{"id": "q1", "section": "hr", "difficulty": 2, "prompt": "Fale sobre voce"},
		{"id": "q2", "section": "technical", "difficulty": 3, "prompt": "O que e um indice?"},
		{"id": "q3", "section": "technical", "difficulty": 3, "prompt": "Explique goroutines"},
		{"id": "q4", "section": "design", "difficulty": 4, "prompt": "Desenhe um rate limiter"},
		{"id": "q5", "section": "behavioral", "difficulty": 2, "prompt": "Conte um conflito"},
		{"id": "q6", "section": "technical", "difficulty": 3, "prompt": "O que e deadlock?"}
	]
}`

const evalJSON = `{
	"transcript": "Eu usaria um cache",
	"scores": {"communication": 7, "technical": 8, "problemSolving": 6, "presence": 7},
	"strengths": ["clareza"],
	"improvements": ["profundidade"],
	"followUpNeeded": false,
	"followUpQuestion": null
}`

const reportJSON = `{
	"overallScore": 7,
	"levelEstimate": "pleno",
	"jobMatch": {"covered": ["go"], "gaps": ["kubernetes"]},
	"feedback": {"technical": ["bom dominio"]},
	"plan7Days": [{"day": 1, "task": "revisar indices"}]
}`

type scriptedProvider struct {
	byTask map[string]string
}

func (p *scriptedProvider) Name() string        { return "openai" }
func (p *scriptedProvider) SupportsMedia() bool { return true }

func (p *scriptedProvider) Generate(ctx context.Context, model string, req service.GenerateRequest) (*service.Result, error) {
	tokens := 100
	return &service.Result{
		Text:       p.byTask[req.Task],
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		LatencyMS:  42,
		TokensUsed: &tokens,
	}, nil
}

type fixedSpeaker struct{}

func (fixedSpeaker) Speech(ctx context.Context, text, voice, format string) ([]byte, error) {
	return []byte("mp3-bytes"), nil
}

type env struct {
	handler *Handler
	repo    *repo.Repository
	limits  *features.Limits
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	repository, err := repo.New(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	provider := &scriptedProvider{byTask: map[string]string{
		service.TaskPlan:        planJSON,
		service.TaskEvaluate:    evalJSON,
		service.TaskReport:      reportJSON,
		service.TaskNameExtract: "Ana",
	}}
	router := service.NewRouter(&service.RouterConfig{
		Order:      []string{"openai"},
		TaskModels: map[string]string{},
	}, []service.Provider{provider}, nil)

	synth := service.NewSynthesizer(
		&service.TTSConfig{Format: "mp3", CacheTTL: time.Hour},
		fixedSpeaker{},
		rediscache.NewCache(redisClient, "test"),
	)

	limits := &features.Limits{
		MinMinutes:      10,
		MaxMinutesFree:  15,
		MaxMinutesPro:   25,
		InitialCredits:  3,
		AllowDevCredits: false,
	}
	svc := features.NewService(limits, repository, router, synth, nil)

	creditCfg := &features.CreditConfig{
		WebhookToken:   "hook-secret",
		ProductCredits: map[string]int{"Pacote 10": 10},
	}
	credits := features.NewCreditProcessor(creditCfg, repository, &rabbitmq.Dummy{})

	return &env{
		handler: New(svc, credits, creditCfg),
		repo:    repository,
		limits:  limits,
	}
}

func (e *env) router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", e.handler.Health)
	r.Post("/webhooks/kiwify", e.handler.Webhook)
	r.Post("/webhooks/kiwify/test", e.handler.WebhookTest)
	r.Group(func(r chi.Router) {
		r.Use(fakeAuth("u-1", "Ana", "ana@example.com"))
		e.handler.Routes(r)
	})
	return r
}

// fakeAuth injects identity values the way the real JWT middleware does.
func fakeAuth(uid, name, email string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := extractor.WithValues(r.Context(), map[string][]string{
				extractor.UserID:    {uid},
				extractor.UserName:  {name},
				extractor.UserEmail: {email},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func audioB64() string {
	return base64.StdEncoding.EncodeToString([]byte("fake-webm-audio"))
}

func TestHealth(t *testing.T) {
	e := setupEnv(t)
	rec := doJSON(t, e.router(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestSessionPlanFlow(t *testing.T) {
	e := setupEnv(t)
	router := e.router()

	rec := doJSON(t, router, http.MethodPost, "/sessions/start", api.InterviewConfig{
		Track: "backend", Seniority: "pleno", Duration: 40, Plan: "free",
		InterviewLanguage: "pt-BR", Stacks: []string{"go"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var started api.SessionStartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "pending", started.PlanStatus)
	assert.Equal(t, 3, started.Credits)

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+started.SessionID+"/plan/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var plan api.PlanGenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, "completed", plan.PlanStatus)
	assert.Equal(t, "openai", plan.ProviderUsed)
	assert.Len(t, plan.Plan.Questions, 6)
	assert.Equal(t, 2, plan.Credits, "generation costs one credit")

	// Idempotent: the cached plan comes back without a second charge.
	rec = doJSON(t, router, http.MethodPost, "/sessions/"+started.SessionID+"/plan/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cached api.PlanGenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cached))
	assert.Equal(t, 2, cached.Credits)
	assert.Len(t, cached.Plan.Questions, 6)

	rec = doJSON(t, router, http.MethodPost, "/sessions/unknown/plan/generate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvaluateAudioAndCredits(t *testing.T) {
	e := setupEnv(t)
	router := e.router()

	// Provision via /me.
	rec := doJSON(t, router, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := api.EvaluateAudioRequest{
		Config:      api.InterviewConfig{Seniority: "pleno", Track: "backend"},
		Question:    "O que e deadlock?",
		AudioBase64: audioB64(),
		MimeType:    "audio/webm",
	}
	for i := 0; i < 3; i++ {
		rec = doJSON(t, router, http.MethodPost, "/ai/evaluate-audio", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	var eval api.AnswerEvaluation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eval))
	assert.Equal(t, "Eu usaria um cache", eval.Transcript)
	assert.Equal(t, float64(8), eval.Scores.Technical)

	// Credits exhausted.
	rec = doJSON(t, router, http.MethodPost, "/ai/evaluate-audio", body)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Contains(t, rec.Body.String(), "Creditos insuficientes")
}

func TestFinalReportOverridesScores(t *testing.T) {
	e := setupEnv(t)
	router := e.router()
	doJSON(t, router, http.MethodGet, "/me", nil)

	req := api.FinalReportRequest{
		Config: api.InterviewConfig{Track: "backend"},
		History: []api.HistoryItem{
			{QuestionID: "q1", Evaluation: api.AnswerEvaluation{
				Scores: api.AnswerScores{Communication: 7, Technical: 8, ProblemSolving: 6, Presence: 9},
			}},
			{QuestionID: "q2", Evaluation: api.AnswerEvaluation{
				Scores: api.AnswerScores{Communication: 8, Technical: 7, ProblemSolving: 7, Presence: 8},
			}},
		},
	}
	rec := doJSON(t, router, http.MethodPost, "/ai/final-report", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report api.FinalReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 7.5, report.OverallScore, "summary overrides the model's score")
	require.NotNil(t, report.ScoresSummary)
	assert.Equal(t, 7.5, report.ScoresSummary.Communication)
	assert.Equal(t, "pleno", report.LevelEstimate)
}

func TestNameExtract(t *testing.T) {
	e := setupEnv(t)
	rec := doJSON(t, e.router(), http.MethodPost, "/ai/name-extract", api.NameExtractRequest{
		AudioBase64: audioB64(),
		MimeType:    "audio/webm",
		UILanguage:  "pt-BR",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"Ana"}`, rec.Body.String())
}

func TestTTS(t *testing.T) {
	e := setupEnv(t)
	router := e.router()

	rec := doJSON(t, router, http.MethodPost, "/ai/tts", api.TTSRequest{Text: "Ola"})
	require.Equal(t, http.StatusOK, rec.Code)

	var out api.TTSResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "audio/mpeg", out.MimeType)
	audio, err := base64.StdEncoding.DecodeString(out.AudioBase64)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)

	rec = doJSON(t, router, http.MethodPost, "/ai/tts", api.TTSRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevAddCreditsDisabled(t *testing.T) {
	e := setupEnv(t)
	rec := doJSON(t, e.router(), http.MethodPost, "/credits/dev-add?amount=10", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDevAddCreditsEnabled(t *testing.T) {
	e := setupEnv(t)
	e.limits.AllowDevCredits = true
	router := e.router()
	doJSON(t, router, http.MethodGet, "/me", nil)

	rec := doJSON(t, router, http.MethodPost, "/credits/dev-add?amount=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"credits":13}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/credits/dev-add?amount=5000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookTokenGuard(t *testing.T) {
	e := setupEnv(t)
	router := e.router()

	payload := map[string]any{
		"event":          "compra_aprovada",
		"transaction_id": "evt-1",
		"customer":       map[string]any{"email": "ana@example.com"},
		"product":        map[string]any{"name": "Pacote 10"},
	}

	rec := doJSON(t, router, http.MethodPost, "/webhooks/kiwify", payload)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	doJSON(t, router, http.MethodGet, "/me", nil)
	rec = doJSON(t, router, http.MethodPost, "/webhooks/kiwify?token=hook-secret", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"credited":10`)
}

func TestWebhookTestDefaultsApproved(t *testing.T) {
	e := setupEnv(t)
	router := e.router()
	doJSON(t, router, http.MethodGet, "/me", nil)

	payload := map[string]any{
		"transaction_id": "evt-2",
		"customer":       map[string]any{"email": "ana@example.com"},
		"product":        map[string]any{"name": "Pacote 10"},
	}
	rec := doJSON(t, router, http.MethodPost, "/webhooks/kiwify/test?token=hook-secret", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"credited":10`)
}

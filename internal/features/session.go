package features

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"entrevia/api"
	"entrevia/internal/repo"
	"entrevia/internal/service"
	"entrevia/internal/utils/checker"
	"entrevia/internal/utils/jsonx"
	logging "entrevia/pkg/logger/pkg"
	"entrevia/schema"
)

// Prewarmer renders question audio in the background right after a plan is
// generated, so the first playback does not wait on the speech upstream.
type Prewarmer interface {
	Enqueue(texts []string, language, voice string)
}

// Service implements the interview product flows on top of the repository
// and the AI provider chain.
type Service struct {
	limits  *Limits
	repo    *repo.Repository
	router  *service.Router
	synth   *service.Synthesizer
	prewarm Prewarmer
}

func NewService(limits *Limits, repository *repo.Repository, router *service.Router, synth *service.Synthesizer, prewarm Prewarmer) *Service {
	return &Service{
		limits:  limits,
		repo:    repository,
		router:  router,
		synth:   synth,
		prewarm: prewarm,
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return "Usuario"
}

func decodeAudio(b64 string) ([]byte, error) {
	// Tolerate data URLs and missing padding, browsers produce both.
	if comma := strings.Index(b64, ","); comma >= 0 {
		b64 = b64[comma+1:]
	}
	if pad := len(b64) % 4; pad != 0 {
		b64 += strings.Repeat("=", 4-pad)
	}
	return base64.StdEncoding.DecodeString(b64)
}

// aiError maps a provider-chain failure onto a client-facing error that
// keeps the upstream status and Retry-After hint.
func aiError(ctx context.Context, err error) *Error {
	logging.Logger(ctx).Error("ai provider chain failed", zap.Error(err))
	out := &Error{Status: http.StatusServiceUnavailable, Detail: "AI indisponivel. Tente novamente."}
	var pe *service.ProviderError
	if errors.As(err, &pe) {
		if pe.StatusCode > 0 {
			out.Status = pe.StatusCode
		}
		out.RetryAfter = pe.RetryAfter
	}
	return out
}

// Start provisions the user on first contact and opens a session with the
// normalized config. The plan stays pending until generation is requested.
func (s *Service) Start(ctx context.Context, profile repo.Profile, config api.InterviewConfig) (*api.SessionStartResponse, error) {
	config = s.limits.NormalizeConfig(config)

	user, err := s.repo.User.Provision(ctx, profile, s.limits.InitialCredits)
	if err != nil {
		logging.Logger(ctx).Error("start session failed", zap.Error(err))
		return nil, NewError(http.StatusInternalServerError, "Falha ao iniciar sessao")
	}

	configData, err := json.Marshal(config)
	if err != nil {
		return nil, NewError(http.StatusInternalServerError, "Falha ao iniciar sessao")
	}

	session := &schema.Session{
		ID:         uuid.NewString(),
		UID:        profile.UID,
		Status:     schema.SessionStarted,
		PlanStatus: schema.PlanPending,
		Config:     configData,
	}
	if err := s.repo.Session.Create(ctx, session); err != nil {
		logging.Logger(ctx).Error("start session failed", zap.Error(err))
		return nil, NewError(http.StatusInternalServerError, "Falha ao iniciar sessao")
	}

	return &api.SessionStartResponse{
		SessionID:  session.ID,
		Plan:       nil,
		PlanStatus: schema.PlanPending,
		Credits:    user.Credits,
	}, nil
}

// GeneratePlan produces the question plan for a session. Repeat calls return
// the stored plan without charging again; only a successful fresh generation
// debits a credit.
func (s *Service) GeneratePlan(ctx context.Context, uid, sessionID string) (*api.PlanGenerateResponse, error) {
	logger := logging.Logger(ctx)

	session, err := s.repo.Session.Get(ctx, uid, sessionID)
	if err != nil {
		return nil, NewError(http.StatusNotFound, "Sessao nao encontrada")
	}

	if session.PlanStatus == schema.PlanCompleted && len(session.Plan) > 0 {
		var plan api.InterviewPlan
		if err := json.Unmarshal(session.Plan, &plan); err == nil {
			credits := 0
			if user, err := s.repo.User.Get(ctx, uid); err == nil {
				credits = user.Credits
			}
			return &api.PlanGenerateResponse{
				SessionID:    sessionID,
				Plan:         &plan,
				PlanStatus:   session.PlanStatus,
				ProviderUsed: session.ProviderUsed,
				ModelUsed:    session.ModelUsed,
				LatencyMS:    session.LatencyMS,
				TokensUsed:   session.TokensUsed,
				Credits:      credits,
			}, nil
		}
	}

	user, err := s.repo.User.Get(ctx, uid)
	if err != nil || user.Credits <= 0 {
		return nil, NewError(http.StatusPaymentRequired, "Creditos insuficientes")
	}

	var config api.InterviewConfig
	if err := json.Unmarshal(session.Config, &config); err != nil {
		return nil, NewError(http.StatusInternalServerError, "Sessao corrompida")
	}

	result, err := s.router.Generate(ctx, service.GenerateRequest{
		Task:        service.TaskPlan,
		Prompt:      s.limits.BuildPlanPrompt(config),
		MaxTokens:   800,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, aiError(ctx, err)
	}

	plan := parsePlanText(result.Text, config)
	if plan == nil {
		logger.Warn("invalid plan payload, retrying with strict prompt",
			zap.String("provider", result.Provider),
			zap.String("model", result.Model))
		retry, err := s.router.Generate(ctx, service.GenerateRequest{
			Task:        service.TaskPlan,
			Prompt:      s.limits.BuildPlanPromptStrict(config),
			MaxTokens:   900,
			Temperature: 0.1,
		})
		if err != nil {
			return nil, aiError(ctx, err)
		}
		if plan = parsePlanText(retry.Text, config); plan == nil {
			return nil, NewError(http.StatusServiceUnavailable, "AI retornou resposta invalida")
		}
		result = retry
	}

	credits, err := s.repo.User.Debit(ctx, uid, 1)
	if err != nil {
		if errors.Is(err, repo.ErrInsufficientCredits) {
			return nil, NewError(http.StatusPaymentRequired, "Creditos insuficientes")
		}
		logger.Error("plan debit failed", zap.Error(err))
		return nil, NewError(http.StatusInternalServerError, "Falha ao salvar plano")
	}

	planData, err := json.Marshal(plan)
	if err != nil {
		return nil, NewError(http.StatusInternalServerError, "Falha ao salvar plano")
	}
	if err := s.repo.Session.SavePlan(ctx, uid, sessionID, planData,
		result.Provider, result.Model, int(result.LatencyMS), result.TokensUsed); err != nil {
		logger.Error("plan save failed", zap.Error(err))
		return nil, NewError(http.StatusInternalServerError, "Falha ao salvar plano")
	}

	if s.prewarm != nil {
		texts := make([]string, 0, len(plan.Questions))
		for _, q := range plan.Questions {
			texts = append(texts, q.Prompt)
		}
		s.prewarm.Enqueue(texts, config.InterviewLanguage, "")
	}

	return &api.PlanGenerateResponse{
		SessionID:    sessionID,
		Plan:         plan,
		PlanStatus:   schema.PlanCompleted,
		ProviderUsed: result.Provider,
		ModelUsed:    result.Model,
		LatencyMS:    int(result.LatencyMS),
		TokensUsed:   result.TokensUsed,
		Credits:      credits,
	}, nil
}

func parsePlanText(text string, config api.InterviewConfig) *api.InterviewPlan {
	var payload map[string]any
	if err := jsonx.Extract(text, &payload); err != nil {
		return nil
	}
	return ParsePlanPayload(payload, config)
}

// EvaluateAudio scores one spoken answer. A successful evaluation costs one
// credit.
func (s *Service) EvaluateAudio(ctx context.Context, uid string, req api.EvaluateAudioRequest) (*api.AnswerEvaluation, error) {
	user, err := s.repo.User.Get(ctx, uid)
	if err != nil || user.Credits <= 0 {
		return nil, NewError(http.StatusPaymentRequired, "Creditos insuficientes")
	}

	audio, err := decodeAudio(req.AudioBase64)
	if err != nil || len(audio) == 0 {
		return nil, NewError(http.StatusBadRequest, "Audio invalido")
	}

	confirmedName := req.ConfirmedName
	if confirmedName == "" {
		confirmedName = "o candidato"
	}

	result, err := s.router.Generate(ctx, service.GenerateRequest{
		Task:        service.TaskEvaluate,
		Prompt:      BuildEvalPrompt(req.Config, req.Question, confirmedName, ""),
		MaxTokens:   400,
		Temperature: 0.2,
		Media:       &service.Media{MIMEType: req.MimeType, Data: audio},
		TranscriptPrompt: func(transcript string) string {
			return BuildEvalPrompt(req.Config, req.Question, confirmedName, transcript)
		},
	})
	if err != nil {
		return nil, aiError(ctx, err)
	}

	var payload map[string]any
	if err := jsonx.Extract(result.Text, &payload); err != nil {
		logging.Logger(ctx).Warn("invalid evaluation payload",
			zap.String("provider", result.Provider),
			zap.String("model", result.Model))
		return nil, NewError(http.StatusServiceUnavailable, "AI retornou resposta invalida")
	}
	evaluation := NormalizeEvalPayload(payload, result.Transcript)

	if _, err := s.repo.User.Debit(ctx, uid, 1); err != nil && !errors.Is(err, repo.ErrInsufficientCredits) {
		logging.Logger(ctx).Error("evaluate debit failed", zap.Error(err))
	}
	return &evaluation, nil
}

// NameExtract pulls the candidate's first name from a short audio clip.
func (s *Service) NameExtract(ctx context.Context, req api.NameExtractRequest) (*api.NameExtractResponse, error) {
	audio, err := decodeAudio(req.AudioBase64)
	if err != nil || len(audio) == 0 {
		return nil, NewError(http.StatusBadRequest, "Audio invalido")
	}

	prompt := fmt.Sprintf("Extraia apenas o primeiro nome da pessoa do audio. Responda somente o nome (1 palavra). Idioma: %s", req.UILanguage)
	result, err := s.router.Generate(ctx, service.GenerateRequest{
		Task:        service.TaskNameExtract,
		Prompt:      prompt,
		MaxTokens:   20,
		Temperature: 0,
		Media:       &service.Media{MIMEType: req.MimeType, Data: audio},
		TranscriptPrompt: func(transcript string) string {
			return fmt.Sprintf("Transcricao: %s\nExtraia apenas o primeiro nome da pessoa. Responda somente o nome (1 palavra). Idioma: %s", transcript, req.UILanguage)
		},
	})
	if err != nil {
		return nil, aiError(ctx, err)
	}

	name := "Candidato"
	if fields := strings.Fields(result.Text); len(fields) > 0 {
		name = fields[0]
	}
	return &api.NameExtractResponse{Name: name}, nil
}

// FinalReport builds the end-of-interview report. The model writes the
// qualitative sections; the score summary is always recomputed from the
// recorded per-answer scores.
func (s *Service) FinalReport(ctx context.Context, uid string, req api.FinalReportRequest) (*api.FinalReport, error) {
	user, err := s.repo.User.Get(ctx, uid)
	if err != nil || user.Credits <= 0 {
		return nil, NewError(http.StatusPaymentRequired, "Creditos insuficientes")
	}

	result, err := s.router.Generate(ctx, service.GenerateRequest{
		Task:        service.TaskReport,
		Prompt:      BuildReportPrompt(req.Config, req.History),
		MaxTokens:   1200,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, aiError(ctx, err)
	}

	var report api.FinalReport
	if err := jsonx.Extract(result.Text, &report); err != nil {
		return nil, NewError(http.StatusServiceUnavailable, "AI retornou resposta invalida")
	}
	if summary, overall := SummarizeScores(req.History); summary != nil {
		report.ScoresSummary = summary
		report.OverallScore = overall
	}

	if _, err := s.repo.User.Debit(ctx, uid, 1); err != nil && !errors.Is(err, repo.ErrInsufficientCredits) {
		logging.Logger(ctx).Error("report debit failed", zap.Error(err))
	}
	return &report, nil
}

// Finish closes the session and writes the dashboard summary row.
func (s *Service) Finish(ctx context.Context, uid, sessionID string, req api.SessionFinishRequest) error {
	session, err := s.repo.Session.Get(ctx, uid, sessionID)
	if err != nil {
		return NewError(http.StatusNotFound, "Sessao nao encontrada")
	}

	role := "Entrevista"
	var plan api.InterviewPlan
	if len(session.Plan) > 0 && json.Unmarshal(session.Plan, &plan) == nil && plan.RoleTitleGuess != "" {
		role = plan.RoleTitleGuess
	}
	var config api.InterviewConfig
	_ = json.Unmarshal(session.Config, &config)

	if err := s.repo.User.AppendSummary(ctx, &schema.Interview{
		UID:       uid,
		SessionID: sessionID,
		Date:      time.Now().UTC(),
		Role:      role,
		Score:     req.Report.OverallScore,
		Style:     config.Style,
		Track:     config.Track,
	}); err != nil {
		logging.Logger(ctx).Error("finish summary write failed", zap.Error(err))
		return NewError(http.StatusInternalServerError, "Falha ao finalizar sessao")
	}

	reportData, err := json.Marshal(req.Report)
	if err != nil {
		return NewError(http.StatusInternalServerError, "Falha ao finalizar sessao")
	}
	metaData, err := json.Marshal(req.Meta)
	if err != nil {
		metaData = []byte("{}")
	}
	if err := s.repo.Session.Finish(ctx, uid, sessionID, reportData, metaData); err != nil {
		logging.Logger(ctx).Error("finish session write failed", zap.Error(err))
		return NewError(http.StatusInternalServerError, "Falha ao finalizar sessao")
	}
	return nil
}

// Delete removes a session and its dashboard summary. Deleting a session
// that is already gone is not an error.
func (s *Service) Delete(ctx context.Context, uid, sessionID string) error {
	if err := s.repo.Session.Delete(ctx, uid, sessionID); err != nil && !errors.Is(err, repo.ErrSessionNotFound) {
		return NewError(http.StatusInternalServerError, "Falha ao excluir sessao")
	}
	if err := s.repo.User.DeleteSummary(ctx, uid, sessionID); err != nil {
		logging.Logger(ctx).Warn("summary delete failed", zap.Error(err))
	}
	return nil
}

// Me returns the profile with recent interview history. Storage failures
// degrade to a token-derived profile so the frontend can still render.
func (s *Service) Me(ctx context.Context, profile repo.Profile) (*api.UserProfile, error) {
	fallback := &api.UserProfile{
		UID:        profile.UID,
		Name:       displayName(profile.Name, profile.Email),
		Email:      profile.Email,
		Avatar:     profile.Avatar,
		Credits:    s.limits.InitialCredits,
		Interviews: []api.InterviewSummary{},
	}

	user, err := s.repo.User.Get(ctx, profile.UID)
	if errors.Is(err, repo.ErrUserNotFound) {
		user, err = s.repo.User.Provision(ctx, profile, s.limits.InitialCredits)
	}
	if err != nil {
		logging.Logger(ctx).Error("profile load failed, serving fallback", zap.Error(err))
		return fallback, nil
	}

	out := &api.UserProfile{
		UID:        user.UID,
		Name:       displayName(user.Name, user.Email),
		Email:      user.Email,
		Avatar:     user.Avatar,
		Credits:    user.Credits,
		Interviews: []api.InterviewSummary{},
	}
	items, err := s.repo.User.History(ctx, profile.UID, 20, nil)
	if err != nil {
		logging.Logger(ctx).Warn("history load failed", zap.Error(err))
		return out, nil
	}
	for _, item := range items {
		out.Interviews = append(out.Interviews, api.InterviewSummary{
			ID:    item.SessionID,
			Date:  item.Date.UTC().Format(time.RFC3339),
			Role:  item.Role,
			Score: item.Score,
			Style: item.Style,
			Track: item.Track,
		})
	}
	return out, nil
}

// DevAddCredits is the development-only top-up, disabled unless explicitly
// allowed by configuration.
func (s *Service) DevAddCredits(ctx context.Context, uid string, amount int) (int, error) {
	if !s.limits.AllowDevCredits {
		return 0, NewError(http.StatusForbidden, "Desabilitado")
	}
	if err := checker.CheckDevCreditAmount(amount); err != nil {
		return 0, NewError(http.StatusBadRequest, "amount invalido")
	}
	credits, err := s.repo.User.Add(ctx, uid, amount)
	if err != nil {
		return 0, NewError(http.StatusInternalServerError, "Falha ao creditar")
	}
	return credits, nil
}

// TTS synthesizes question audio for playback.
func (s *Service) TTS(ctx context.Context, req api.TTSRequest) (*api.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, NewError(http.StatusBadRequest, "Missing text")
	}
	audio, mimeType, err := s.synth.Synthesize(ctx, req.Text, req.Language, req.VoiceID)
	if err != nil {
		logging.Logger(ctx).Error("tts synth failed", zap.Error(err))
		return nil, NewError(http.StatusServiceUnavailable, "TTS service unavailable")
	}
	return &api.TTSResponse{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		MimeType:    mimeType,
	}, nil
}

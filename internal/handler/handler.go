// Package handler exposes the interview service over REST. Paths and
// response shapes match what the web frontend already consumes.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"entrevia/api"
	"entrevia/internal/features"
	"entrevia/internal/repo"
	"entrevia/internal/utils/checker"
	"entrevia/internal/utils/extractor"
)

type Handler struct {
	service   *features.Service
	credits   *features.CreditProcessor
	creditCfg *features.CreditConfig
	extractor extractor.Extractor
}

func New(service *features.Service, credits *features.CreditProcessor, creditCfg *features.CreditConfig) *Handler {
	return &Handler{
		service:   service,
		credits:   credits,
		creditCfg: creditCfg,
		extractor: extractor.New(),
	}
}

// Routes mounts the authenticated API surface. Auth middleware is applied by
// the server wiring, not here.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/me", h.Me)

	r.Post("/sessions/start", h.StartSession)
	r.Post("/sessions/{sessionID}/plan/generate", h.GeneratePlan)
	r.Post("/sessions/{sessionID}/finish", h.FinishSession)
	r.Delete("/sessions/{sessionID}", h.DeleteSession)

	r.Post("/ai/plan", h.StartSession)
	r.Post("/ai/name-extract", h.NameExtract)
	r.Post("/ai/evaluate-audio", h.EvaluateAudio)
	r.Post("/ai/evaluate", h.EvaluateAudio)
	r.Post("/ai/final-report", h.FinalReport)
	r.Post("/ai/report", h.FinalReport)
	r.Post("/ai/tts", h.TTS)

	r.Post("/credits/dev-add", h.DevAddCredits)
}

func (h *Handler) profile(r *http.Request) (repo.Profile, bool) {
	ctx := r.Context()
	uid, err := h.extractor.GetUserID(ctx)
	if err != nil {
		return repo.Profile{}, false
	}
	return repo.Profile{
		UID:    uid,
		Name:   h.extractor.GetName(ctx),
		Email:  h.extractor.GetEmail(ctx),
		Avatar: h.extractor.GetAvatar(ctx),
		Plan:   h.extractor.GetPlan(ctx),
	}, true
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.profile(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Credenciais invalidas")
		return
	}
	out, err := h.service.Me(r.Context(), profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.profile(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Credenciais invalidas")
		return
	}
	var config api.InterviewConfig
	if err := decodeBody(r, &config); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	out, err := h.service.Start(r.Context(), profile, config)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	uid, err := h.extractor.GetUserID(r.Context())
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Credenciais invalidas")
		return
	}
	out, err := h.service.GeneratePlan(r.Context(), uid, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) FinishSession(w http.ResponseWriter, r *http.Request) {
	uid, err := h.extractor.GetUserID(r.Context())
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Credenciais invalidas")
		return
	}
	var req api.SessionFinishRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.service.Finish(r.Context(), uid, chi.URLParam(r, "sessionID"), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	uid, err := h.extractor.GetUserID(r.Context())
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Credenciais invalidas")
		return
	}
	if err := h.service.Delete(r.Context(), uid, chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (h *Handler) NameExtract(w http.ResponseWriter, r *http.Request) {
	var req api.NameExtractRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	out, err := h.service.NameExtract(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) EvaluateAudio(w http.ResponseWriter, r *http.Request) {
	uid, err := h.extractor.GetUserID(r.Context())
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Credenciais invalidas")
		return
	}
	var req api.EvaluateAudioRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	out, err := h.service.EvaluateAudio(r.Context(), uid, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) FinalReport(w http.ResponseWriter, r *http.Request) {
	uid, err := h.extractor.GetUserID(r.Context())
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Credenciais invalidas")
		return
	}
	var req api.FinalReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	out, err := h.service.FinalReport(r.Context(), uid, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) TTS(w http.ResponseWriter, r *http.Request) {
	var req api.TTSRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	out, err := h.service.TTS(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DevAddCredits(w http.ResponseWriter, r *http.Request) {
	uid, err := h.extractor.GetUserID(r.Context())
	if err != nil {
		writeDetail(w, http.StatusUnauthorized, "Credenciais invalidas")
		return
	}
	amount := 3
	if raw := r.URL.Query().Get("amount"); raw != "" {
		amount, err = strconv.Atoi(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "amount invalido")
			return
		}
	}
	credits, err := h.service.DevAddCredits(r.Context(), uid, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CreditsResponse{Credits: credits})
}

// Webhook receives payment events. It is mounted outside the auth
// middleware and guarded by a shared token instead.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, false)
}

// WebhookTest mirrors Webhook but defaults the event type to approved, which
// is how the payment platform exercises integrations.
func (h *Handler) WebhookTest(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, true)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request, forceApproved bool) {
	if err := checker.CheckWebhookToken(
		h.creditCfg.WebhookToken,
		r.Header.Get("x-kiwify-token"),
		r.URL.Query().Get("token"),
	); err != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid webhook token")
		return
	}

	var payload map[string]any
	if err := decodeBody(r, &payload); err != nil || payload == nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if forceApproved {
		if _, ok := payload["event"]; !ok {
			payload["event"] = "compra_aprovada"
		}
	}

	result, err := h.credits.HandleWebhook(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

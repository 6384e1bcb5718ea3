package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"entrevia/internal/features"
	logging "entrevia/pkg/logger/pkg"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type detailBody struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailBody{Detail: detail})
}

// writeError maps a feature error to its HTTP shape. Unknown errors come out
// as an opaque 500 so internals never leak to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *features.Error
	if errors.As(err, &fe) {
		if fe.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(fe.RetryAfter.Seconds())))
		}
		writeDetail(w, fe.Status, fe.Detail)
		return
	}
	logging.Logger(r.Context()).Error("unhandled error", zap.Error(err))
	writeDetail(w, http.StatusInternalServerError, "Erro interno")
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/skyboj/obsidian-ai-blogger/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	Kind  string `json:"kind,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps a domain error onto a status code and a user-safe body.
func writeError(w http.ResponseWriter, op string, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindDraftNotFound, apperr.KindTemplateNotFound:
		status = http.StatusNotFound
	case apperr.KindFileExists:
		status = http.StatusConflict
	case apperr.KindMissingVariable:
		status = http.StatusBadRequest
	case apperr.KindAllProvidersFailed, apperr.KindRateLimit, apperr.KindInvalidAPIKey,
		apperr.KindInsufficientCredits, apperr.KindAccessForbidden:
		status = http.StatusBadGateway
	}
	if kind == apperr.KindUnknown {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("kind", string(kind)), slog.String("error", err.Error()))
	}
	writeJSON(w, status, errResponse{Error: apperr.UserMessage(err), Kind: string(kind)})
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/luizacavalcantee/gestao-fiscal/internal/model"
)

// errorBody is the shape of 5xx and intake failures.
type errorBody struct {
	Error    string             `json:"error"`
	Detalhes []model.FieldError `json:"detalhes,omitempty"`
}

// messageBody is the shape of lookup failures on a single document.
type messageBody struct {
	Mensagem string `json:"mensagem"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// respondLookupError maps the errors of the id-addressed routes.
func (s *Server) respondLookupError(w http.ResponseWriter, r *http.Request, err error, internal string) {
	switch {
	case errors.Is(err, model.ErrInvalidID):
		respondJSON(w, http.StatusBadRequest, messageBody{Mensagem: msgInvalidID})
	case errors.Is(err, model.ErrNotFound):
		respondJSON(w, http.StatusNotFound, messageBody{Mensagem: msgNotFound})
	case errors.Is(err, model.ErrInvalidTransition):
		respondJSON(w, http.StatusConflict, messageBody{Mensagem: msgConflict})
	default:
		s.internalError(w, r, err, internal)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	s.log.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
		"error", err,
	)
	respondJSON(w, http.StatusInternalServerError, errorBody{Error: msg})
}

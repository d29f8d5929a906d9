package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/svc/flags"
)

var (
	errMissingKey = errors.New("missing " + EnvironmentKeyHeader + " header")
	errInvalidKey = errors.New("invalid environment key")
)

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *API) writeList(w http.ResponseWriter, r *http.Request, states []flags.EffectiveState) {
	if states == nil {
		states = []flags.EffectiveState{}
	}
	a.writeJSON(w, http.StatusOK, JSONResponse{Data: states, Meta: map[string]any{"count": len(states)}})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Warn("encode response", logger.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	detail := &ErrorDetail{Code: code, Message: err.Error(), RequestID: middleware.GetReqID(r.Context())}

	if status >= http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed", logger.Error(err))
		detail.Message = http.StatusText(status)
	} else {
		a.log.DebugContext(r.Context(), "request rejected", slog.Int("status", status), logger.Error(err))
	}
	a.writeJSON(w, status, JSONResponse{Error: detail})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingKey), errors.Is(err, errInvalidKey):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, flags.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, flags.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, flags.ErrInvalidAssociation):
		return http.StatusUnprocessableEntity, "invalid_association"
	case errors.Is(err, flags.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, flags.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

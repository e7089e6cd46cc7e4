package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"service-schedule/internal/service"
)

type errorResponse struct {
	Error  string               `json:"error"`
	Fields []service.FieldError `json:"fields,omitempty"`
	Axis   string               `json:"axis,omitempty"`
	SlotID string               `json:"slot_id,omitempty"`
}

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

// writeBadRequest reports a malformed request that never reached a service.
func writeBadRequest(w http.ResponseWriter, field, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  "invalid_input",
		Fields: []service.FieldError{{Field: field, Message: message}},
	})
}

// writeServiceError maps the service error taxonomy onto status codes.
// Unauthorized and not-found share one response so callers cannot probe for
// records they are not allowed to see.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	var (
		verr     *service.ValidationError
		conflict *service.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_input", Fields: verr.Fields})
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input")
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.As(err, &conflict):
		resp := errorResponse{Error: "conflict", Axis: string(conflict.Axis)}
		if conflict.SlotID != uuid.Nil {
			resp.SlotID = conflict.SlotID.String()
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, service.ErrAlreadyMarked):
		writeError(w, http.StatusUnprocessableEntity, "already_marked")
	case errors.Is(err, service.ErrEmptyRoster):
		writeError(w, http.StatusUnprocessableEntity, "empty_roster")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout")
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

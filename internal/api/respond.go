package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/tool"
)

// envelope is the body of every response
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Total   *int   `json:"total,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.S().Warnw("failed to write response", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data any, message string) {
	respondJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func respondList[T any](w http.ResponseWriter, items []T) {
	total := len(items)
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: items, Total: &total})
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, envelope{Success: false, Message: message})
}

// respondAppError maps a workflow error onto its status code. Running out of
// stock or tool units is reported as a bad request, like any other rejected
// input. Internal errors carry the underlying message in the error field.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock), errors.Is(err, tool.ErrNoUnitsAvailable):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrValidation):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNotFound):
		respondJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrConflict):
		respondJSONError(w, err.Error(), http.StatusConflict)
	default:
		zap.S().Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Message: "internal server error",
			Error:   err.Error(),
		})
	}
}

// decodeBody rejects unknown fields so misspelled keys are not silently dropped
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/logger"
)

// errorResponse is the JSON error envelope. Fields is populated for
// validation failures only.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation failed",
			Fields: validation.Fields,
		})
		return
	}

	respondJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrCheckInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEmptyFile),
		errors.Is(err, domain.ErrSourceDisabled),
		errors.Is(err, domain.ErrNotInteractive),
		errors.Is(err, domain.ErrNotPeriodic),
		errors.Is(err, domain.ErrUnsupportedType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

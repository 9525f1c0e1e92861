package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/praxishq/praxis/domain/record"
	"github.com/praxishq/praxis/domain/search"
)

// ErrorPayload is the structured error body every failing endpoint
// returns.
type ErrorPayload struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors to status codes and the structured
// payload.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorPayload{
			Kind: "validation", Message: err.Error(), Retryable: false,
		})
	case errors.Is(err, record.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorPayload{
			Kind: "not_found", Message: err.Error(), Retryable: false,
		})
	case errors.Is(err, search.ErrUnavailable), errors.Is(err, search.ErrOrchestrator):
		writeJSON(w, http.StatusServiceUnavailable, ErrorPayload{
			Kind: "unavailable", Message: err.Error(), Retryable: true,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorPayload{
			Kind: "internal", Message: err.Error(), Retryable: true,
		})
	}
}

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/echonymous/internal/domain"
)

const (
	msgInvalidToken  = "Invalid or missing JWT token."
	msgInvalidInput  = "Validation failed. Check input fields."
	msgInternalError = "Internal server error."
)

// envelope wraps every response body.
type envelope struct {
	Status       int            `json:"status"`
	Success      bool           `json:"success"`
	Details      string         `json:"details"`
	Token        string         `json:"token,omitempty"`
	ResponseData map[string]any `json:"responseData,omitempty"`
}

func writeJSON(w http.ResponseWriter, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeOK(w http.ResponseWriter, details string, data map[string]any) {
	writeJSON(w, envelope{Status: http.StatusOK, Success: true, Details: details, ResponseData: data})
}

func writeFail(w http.ResponseWriter, status int, details string) {
	writeJSON(w, envelope{Status: status, Success: false, Details: details})
}

// writeError maps domain error kinds to status codes. Anything unclassified
// is logged and reported as a 500 without its message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeFail(w, http.StatusNotFound, domain.Message(err, "Not found."))
	case errors.Is(err, domain.ErrUnauthorized):
		writeFail(w, http.StatusUnauthorized, domain.Message(err, "Unauthorized."))
	case errors.Is(err, domain.ErrValidation):
		writeFail(w, http.StatusBadRequest, domain.Message(err, msgInvalidInput))
	default:
		log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("request failed")
		writeFail(w, http.StatusInternalServerError, msgInternalError)
	}
}

// decode reads a JSON body. Malformed bodies are a validation failure.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Validation(msgInvalidInput)
	}
	return nil
}

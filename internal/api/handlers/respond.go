package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/econlens/econlens/internal/apperr"
)

// errorBody is the wire shape of a failed request.
type errorBody struct {
	Message  string         `json:"message"`
	Type     string         `json:"type"`
	Details  map[string]any `json:"details,omitempty"`
	Fallback string         `json:"fallback,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}

// writeError maps err's kind to an HTTP status and the structured envelope.
// Internal causes are logged, not leaked.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	message := "something went wrong"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		message = ae.Message
	}

	status := apperr.HTTPStatus(kind)
	if status >= 500 {
		log.Error().Err(err).Msg("request failed")
	}

	writeJSON(w, status, errorEnvelope{
		Success: false,
		Error: errorBody{
			Message: message,
			Type:    string(kind),
		},
	})
}

func writeErrorKind(w http.ResponseWriter, kind apperr.Kind, message string) {
	writeError(w, apperr.New(kind, message))
}

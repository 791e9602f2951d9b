package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorBody is the JSON envelope for every non-2xx response. MessageID is
// set only on upstream failures, where it names the already-persisted user
// message a client may safely retry with.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	MessageID string `json:"messageId,omitempty"`
}

// RespondJSON writes payload as a JSON response.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondError writes the standard error envelope.
func RespondError(w http.ResponseWriter, status int, kind, message string) {
	RespondJSON(w, status, ErrorBody{Error: message, Kind: kind})
}

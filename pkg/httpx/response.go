package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the stable failure envelope: {success:false, message} with
// optional detail that is only populated outside production.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header automatically.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Required for responses carrying tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// WriteError writes the generic failure envelope.
func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, ErrorResponse{Success: false, Message: message})
}

// WriteErrorDetail writes the failure envelope with detail attached only when
// expose is true (non-production deployments). Internal error text must never
// reach clients in production.
func WriteErrorDetail(w http.ResponseWriter, code int, message, detail string, expose bool) {
	resp := ErrorResponse{Success: false, Message: message}
	if expose {
		resp.Error = detail
	}
	WriteJSON(w, code, resp)
}

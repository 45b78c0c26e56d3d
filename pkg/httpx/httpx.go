package httpx

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes at most limit bytes of the request body into dst.
func ReadJSON(r *http.Request, dst any, limit int64) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	return dec.Decode(dst)
}

// WriteError writes the {ok:false,error} envelope used by the journey API.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{"ok": false, "error": message})
}

// RequestID returns the id stamped on the request, minting one if absent.
func RequestID(r *http.Request) string {
	if v := r.Header.Get(RequestIDHeader); v != "" {
		return v
	}
	return NewRequestID()
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"staysync/internal/models"
)

// sendJSON writes an arbitrary payload with the given status code.
func (s *Server) sendJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// sendData wraps a successful payload in the standard response envelope.
func (s *Server) sendData(w http.ResponseWriter, data any) {
	s.sendJSON(w, http.StatusOK, models.APIResponse{
		Success: true,
		Data:    data,
	})
}

// sendError writes a structured error response. Internal detail stays in
// the logs; clients only see the message.
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, models.APIResponse{
		Success: false,
		Error:   http.StatusText(code),
		Details: message,
	})
}

// parseDateParam reads a required query parameter as a calendar date.
// RFC3339 timestamps are also accepted.
func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing required query parameter %q", name)
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid value for %q: expected YYYY-MM-DD", name)
	}
	return t.UTC(), nil
}

package server

import (
	"encoding/json"
	"net/http"
)

// respondJSON writes data as a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes an ErrorResponse.
func (s *Server) respondError(w http.ResponseWriter, statusCode int, msg string) {
	s.respondJSON(w, statusCode, ErrorResponse{Error: msg})
}

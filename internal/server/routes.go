// Package server wires HTTP handlers into a ServeMux for the relay
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures and returns the HTTP handler with all application
// routes behind the cross-origin middleware.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /send_message", s.handleSendMessage)
	mux.HandleFunc("GET /status/{token}", s.handleStatus)
	mux.HandleFunc("GET /clients", s.handleClients)
	mux.HandleFunc("GET /messages/{token}", s.handleMessages)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))
	mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticDir)))
	return s.origins.cors(mux)
}

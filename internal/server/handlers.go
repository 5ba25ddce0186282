// Package server exposes HTTP handlers for registration, messaging, status,
// listing, push connection upgrades, and health checks.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Tyrowin/gorelay/internal/registry"
	"github.com/Tyrowin/gorelay/internal/router"
)

// decodeRequest reads a JSON body of at most MaxRequestSize bytes into dst
// and validates it.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("validate request: %w", err)
	}
	return nil
}

// handleRegister creates a client and returns its credential.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.metrics.Registrations.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, "invalid request")
		return
	}

	token, err := s.registry.Register(req.Name)
	switch {
	case err == nil:
		s.metrics.Registrations.WithLabelValues("ok").Inc()
		s.respondJSON(w, http.StatusOK, RegisterResponse{Token: token})
	case errors.Is(err, registry.ErrNameConflict):
		s.metrics.Registrations.WithLabelValues("conflict").Inc()
		s.respondError(w, http.StatusNotAcceptable, "name taken")
	case errors.Is(err, registry.ErrInvalidName):
		s.metrics.Registrations.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusBadRequest, "invalid name")
	default:
		s.metrics.Registrations.WithLabelValues("error").Inc()
		s.log.Error("Registration failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "registration failed")
	}
}

// handleSendMessage routes one direct message.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := s.decodeRequest(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request")
		return
	}

	// Buckets exist only for live credentials.
	if _, err := s.registry.FindByCredential(req.Token); err == nil && !s.limits.allow(req.Token) {
		s.metrics.MessagesRouted.WithLabelValues("rate_limited").Inc()
		s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	err := s.router.Route(req.Token, req.To, req.Body)
	s.metrics.MessagesRouted.WithLabelValues(router.Outcome(err)).Inc()

	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, router.ErrUnauthorized):
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, router.ErrRecipientNotFound):
		s.respondError(w, http.StatusNotFound, "recipient not found")
	case errors.Is(err, router.ErrRecipientOffline):
		s.respondError(w, http.StatusNotFound, "recipient offline")
	default:
		s.log.Error("Routing failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "routing failed")
	}
}

// handleStatus returns the public view of the client holding the token.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	client, err := s.registry.FindByCredential(r.PathValue("token"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	s.respondJSON(w, http.StatusOK, newClientView(client))
}

// handleClients lists every registered client by name.
func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, newClientViews(s.registry.Snapshot()))
}

// handleMessages upgrades the request to a push connection for the client
// holding the token and attaches it to the registry.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	client, err := s.registry.FindByCredential(token)
	if err != nil {
		s.metrics.Upgrades.WithLabelValues("rejected").Inc()
		s.log.Info("Rejected push connection", "addr", r.RemoteAddr, "error", ErrUpgradeRejected)
		s.respondError(w, http.StatusUnauthorized, ErrUpgradeRejected.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.metrics.Upgrades.WithLabelValues("failed").Inc()
		s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	sess := &session{
		conn:       conn,
		out:        registry.NewOutbound(s.cfg.OutboundBuffer),
		credential: token,
		addr:       r.RemoteAddr,
		log:        s.log.With("component", "session", "name", client.Name, "addr", r.RemoteAddr),
		server:     s,
	}

	// The client may have expired between the lookup and the upgrade.
	if err := s.registry.Attach(token, sess.out); err != nil {
		s.metrics.Upgrades.WithLabelValues("rejected").Inc()
		sess.log.Info("Push connection lost its client during upgrade", "error", err)
		sess.writeCloseMessage()
		sess.closeConnection()
		return
	}

	s.metrics.Upgrades.WithLabelValues("ok").Inc()
	sess.start(s.ctx)
}

// handleHealth provides a simple health check endpoint that returns server status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := fmt.Fprint(w, "relay is running"); err != nil {
		s.log.Warn("Error writing health response", "error", err)
	}
}

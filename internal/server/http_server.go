// Package server constructs and runs the relay HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Run serves the relay on the configured port until ctx is cancelled, then
// shuts down the HTTP server followed by every push connection.
func (s *Server) Run(ctx context.Context) error {
	httpServer := CreateServer(s.cfg.Port, s.SetupRoutes())

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Relay listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down gracefully...")
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	httpErr := ShutdownServer(httpServer, s.cfg.ShutdownTimeout)
	relayErr := s.Shutdown(s.cfg.ShutdownTimeout)
	return errors.Join(httpErr, relayErr)
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

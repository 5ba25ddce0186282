// Package server is the transport adapter of the relay: it terminates HTTP
// requests and push connections and calls into the registry and router.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/logger"
	"github.com/Tyrowin/gorelay/internal/registry"
	"github.com/Tyrowin/gorelay/internal/router"
)

// Server wires the registry, router, and HTTP surface together. It tracks
// every session goroutine so Shutdown can wait for them.
type Server struct {
	cfg      Config
	log      *slog.Logger
	registry *registry.Registry
	router   *router.Router
	metrics  *Metrics
	limits   *senderLimits
	origins  *originPolicy
	validate *validator.Validate
	upgrader websocket.Upgrader

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server from cfg. A nil cfg uses defaults; a nil log discards
// output.
func New(cfg *Config, log *slog.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = logger.Discard()
	}
	sanitized := sanitizeConfig(*cfg)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      sanitized,
		log:      log,
		limits:   newSenderLimits(sanitized.RateLimitBurst, sanitized.RateLimitRefillInterval),
		origins:  newOriginPolicy(sanitized.AllowedOrigins, log),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		ctx:      ctx,
		cancel:   cancel,
	}

	s.registry = registry.New(
		registry.WithGracePeriod(sanitized.GracePeriod),
		registry.WithLogger(log.With("component", "registry")),
		registry.WithEvictionHook(s.onEvict),
	)
	s.router = router.New(s.registry, log.With("component", "router"))
	s.metrics = NewMetrics(s.registry)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}

	return s
}

// Config returns the sanitized configuration in use.
func (s *Server) Config() Config {
	return s.cfg
}

// Registry returns the client registry.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) onEvict(c registry.Client) {
	s.limits.forget(c.Credential)
	s.metrics.Evictions.Inc()
}

// Shutdown closes every push connection and waits for session goroutines to
// finish, or until the timeout is reached.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.log.Info("Initiating relay shutdown...")

	s.cancel()
	s.registry.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Relay shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		s.log.Warn("Relay shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}

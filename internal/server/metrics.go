package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/gorelay/internal/registry"
)

// Metrics contains the relay's prometheus collectors.
type Metrics struct {
	Registrations  *prometheus.CounterVec
	MessagesRouted *prometheus.CounterVec
	Upgrades       *prometheus.CounterVec
	Evictions      prometheus.Counter
	FramesWritten  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them, together with gauges
// reading the live registry state, on a dedicated prometheus registry.
func NewMetrics(reg *registry.Registry) *Metrics {
	m := &Metrics{
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "registry",
				Name:      "registrations_total",
				Help:      "Registration attempts by result",
			},
			[]string{"result"},
		),

		MessagesRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "router",
				Name:      "messages_total",
				Help:      "Direct messages by routing outcome",
			},
			[]string{"outcome"},
		),

		Upgrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "transport",
				Name:      "upgrades_total",
				Help:      "Push connection upgrade attempts by result",
			},
			[]string{"result"},
		),

		Evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "registry",
				Name:      "evictions_total",
				Help:      "Clients removed after their grace period expired",
			},
		),

		FramesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "relay",
				Subsystem: "transport",
				Name:      "frames_written_total",
				Help:      "Message frames written to push connections",
			},
		),

		registry: prometheus.NewRegistry(),
	}

	clients := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "registry",
			Name:      "clients",
			Help:      "Registered clients",
		},
		func() float64 { return float64(reg.Stats().Total()) },
	)

	connected := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "registry",
			Name:      "connected_clients",
			Help:      "Clients with a live push connection",
		},
		func() float64 { return float64(reg.Stats().Connected) },
	)

	m.registry.MustRegister(
		m.Registrations,
		m.MessagesRouted,
		m.Upgrades,
		m.Evictions,
		m.FramesWritten,
		clients,
		connected,
	)

	return m
}

// Gatherer exposes the underlying prometheus registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Package metrics defines the Prometheus instruments for the router and server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Router metrics
var (
	// ActiveSessions tracks the number of logged-in sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_active_sessions",
			Help: "Number of currently logged-in sessions",
		},
	)

	// FramesRoutedTotal counts inbound frames by envelope type and outcome.
	FramesRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_frames_routed_total",
			Help: "Inbound frames by envelope type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// EnvelopesDeliveredTotal counts envelopes written to client channels.
	EnvelopesDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "router_envelopes_delivered_total",
			Help: "Envelopes delivered to client connections",
		},
	)

	// DeliveryFailuresTotal counts sends that hit a dead or slow channel.
	DeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "router_delivery_failures_total",
			Help: "Deliveries dropped because the target channel was dead or slow",
		},
	)

	// SupersessionsTotal counts logins that closed a prior session for the same user.
	SupersessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "router_supersessions_total",
			Help: "Logins that superseded an existing session",
		},
	)

	// CommandChannelDepth tracks the router actor's command queue depth.
	CommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_command_channel_depth",
			Help: "Current depth of the router command channel",
		},
	)
)

// Connection metrics
var (
	// ConnectedClients tracks open WebSocket connections, authenticated or not.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "server_connected_clients",
			Help: "Open WebSocket connections",
		},
	)

	// ConnectionsRejectedTotal counts connections refused at the door.
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "server_connections_rejected_total",
			Help: "Connections rejected before upgrade, by reason",
		},
		[]string{"reason"},
	)

	// MalformedFramesTotal counts frames dropped during decode.
	MalformedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "server_malformed_frames_total",
			Help: "Frames dropped because they could not be decoded",
		},
	)

	// RateLimitedFramesTotal counts frames dropped by the per-connection limiter.
	RateLimitedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "server_rate_limited_frames_total",
			Help: "Frames dropped by the per-connection rate limiter",
		},
	)

	// PingFailuresTotal counts keep-alive probes that could not be written.
	PingFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "server_ping_failures_total",
			Help: "Keep-alive pings that failed to send",
		},
	)
)

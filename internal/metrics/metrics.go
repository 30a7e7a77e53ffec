// Package metrics defines the Prometheus collectors for the relay.
//
// All collectors are package-level promauto variables registered on the
// default registry and exposed via /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket connection metrics
var (
	// ActiveConnections tracks currently open subscriber connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Number of currently open WebSocket subscriber connections",
		},
	)

	// ConnectionsRejectedTotal tracks upgrades refused by admission limits
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_connections_rejected_total",
			Help: "WebSocket upgrades rejected by admission limits, by reason",
		},
		[]string{"reason"},
	)

	// ClientMessagesTotal tracks inbound client messages by recognized type
	ClientMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_client_messages_total",
			Help: "Inbound client messages by type (including ignored)",
		},
		[]string{"type"},
	)

	// RegistrationsTotal tracks register messages by mode
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_registrations_total",
			Help: "Connection registrations by mode (webhook/legacy)",
		},
		[]string{"mode"},
	)

	// PingFailuresTotal tracks keepalive pings that failed to send
	PingFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_ping_failures_total",
			Help: "Keepalive ping writes that failed",
		},
	)

	// MessageSendDuration tracks WebSocket write latency in seconds
	MessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_message_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Alert routing metrics
var (
	// AlertsReceivedTotal tracks inbound webhook submissions by path
	AlertsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_alerts_received_total",
			Help: "Inbound alert submissions by path (keyed/legacy)",
		},
		[]string{"path"},
	)

	// AlertsDeliveredTotal tracks accepted deliveries by path
	AlertsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_alerts_delivered_total",
			Help: "Alert deliveries accepted by a connection's writer, by path",
		},
		[]string{"path"},
	)

	// DeliveriesSkippedTotal tracks admissions filtered before delivery
	DeliveriesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_skipped_total",
			Help: "Deliveries skipped by per-connection admission filters",
		},
		[]string{"reason"},
	)

	// DeliveryFailuresTotal tracks writes refused by a connection's writer
	DeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Deliveries refused by a stopped writer or full send buffer",
		},
	)
)

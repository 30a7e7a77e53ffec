// Package server implements the HTTP boundary using Echo framework.
//
// Routes: alert submission (keyed and legacy webhooks), WebSocket subscriber
// attach, status, health, version, and Prometheus metrics. Handlers split by
// concern: handlers_alerts.go, handlers_ws.go, handlers_status.go,
// handlers_health.go. Connection admission limits live in
// connection_limiter.go.
package server

package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pilotdavid42/pilot-traders-relay/internal/metrics"
	"github.com/pilotdavid42/pilot-traders-relay/internal/relay"
)

// handleWebSocket admits a subscriber connection and runs its session until
// the transport closes. The handler goroutine doubles as the session's read
// pump, so per-connection message ordering is the connection's own frame
// order.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		slog.Warn("WebSocket connection rejected", "reason", reason, "remote_ip", ip)

		status := http.StatusTooManyRequests
		if reason == LimitReasonGlobal {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, map[string]string{"error": string(reason)})
	}
	defer s.limits.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.Debug("WebSocket upgrade failed", "remote_ip", ip, "error", err)
		return nil
	}

	session := relay.NewSession(conn, ip, s.registry, s.clock, s.sessionConfig())
	session.Run()

	return nil
}

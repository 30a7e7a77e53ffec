package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pilotdavid42/pilot-traders-relay/internal/registry"
)

type statusResponse struct {
	Connections []registry.Summary `json:"connections"`
	Counts      registry.Stats     `json:"counts"`
	Uptime      float64            `json:"uptime"`
}

// handleStatus reports the current connection set. Webhook ids in the
// listing are redacted by the registry; the transport is never exposed.
func (s *Server) handleStatus(c echo.Context) error {
	response := statusResponse{
		Connections: s.registry.Snapshot(),
		Counts:      s.registry.Stats(),
		Uptime:      time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

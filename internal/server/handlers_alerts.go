package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pilotdavid42/pilot-traders-relay/internal/domain"
	"github.com/pilotdavid42/pilot-traders-relay/internal/logging"
	"github.com/pilotdavid42/pilot-traders-relay/internal/metrics"
)

type alertResponse struct {
	OK        bool `json:"ok"`
	Delivered int  `json:"delivered"`
}

// handleKeyedAlert accepts an alert for a specific webhook id and fans it
// out to the connections bound to that id. An id nobody is connected to is
// not an error; the response simply reports zero deliveries.
func (s *Server) handleKeyedAlert(c echo.Context) error {
	webhookID := c.Param("webhookId")

	alert, err := s.readAlert(c)
	if err != nil {
		return err
	}

	metrics.AlertsReceivedTotal.WithLabelValues("keyed").Inc()
	delivered := s.alerts.RouteKeyed(webhookID, alert)
	logging.WithWebhook(webhookID).Debug("Keyed alert routed", "delivered", delivered)

	if err := c.JSON(http.StatusOK, alertResponse{OK: true, Delivered: delivered}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleLegacyAlert accepts an alert on the shared unkeyed endpoint and fans
// it out to every legacy-bound connection, subject to symbol filters.
func (s *Server) handleLegacyAlert(c echo.Context) error {
	alert, err := s.readAlert(c)
	if err != nil {
		return err
	}

	metrics.AlertsReceivedTotal.WithLabelValues("legacy").Inc()
	delivered := s.alerts.RouteLegacy(alert)
	slog.Debug("Legacy alert routed", "delivered", delivered)

	if err := c.JSON(http.StatusOK, alertResponse{OK: true, Delivered: delivered}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) readAlert(c echo.Context) (domain.Alert, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, s.config.MaxAlertBodyBytes))
	if err != nil {
		return domain.Alert{}, echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	return domain.ParseAlert(body), nil
}

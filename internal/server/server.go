package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pilotdavid42/pilot-traders-relay/internal/config"
	"github.com/pilotdavid42/pilot-traders-relay/internal/registry"
	"github.com/pilotdavid42/pilot-traders-relay/internal/relay"
)

// Server wires the relay core behind an Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *config.Config

	registry *registry.Registry
	alerts   *relay.Router
	clock    clockwork.Clock

	limits    *ConnectionLimits
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewServer creates the HTTP server over the given registry and router.
func NewServer(cfg *config.Config, reg *registry.Registry, alerts *relay.Router, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:     e,
		config:   cfg,
		registry: reg,
		alerts:   alerts,
		clock:    clock,
		limits: NewConnectionLimits(
			cfg.MaxWebSocketConnections,
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRate,
			cfg.ConnectionBurst,
		),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AppURL, cfg.AppEnv == "development"),
		},
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start begins serving on the configured port. Blocks until shutdown.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting new requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) sessionConfig() relay.SessionConfig {
	return relay.SessionConfig{
		ConnectGrace:          s.config.ConnectIgnoreWindow,
		ClearSessionExtension: s.config.ClearSessionExtension,
		SendBuffer:            s.config.SendBufferSize,
		WriteDeadline:         s.config.WriteDeadline,
		PingInterval:          s.config.PingInterval,
		PongDeadline:          s.config.PongDeadline,
	}
}

package relay

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pilotdavid42/pilot-traders-relay/internal/domain"
	"github.com/pilotdavid42/pilot-traders-relay/internal/logging"
	"github.com/pilotdavid42/pilot-traders-relay/internal/metrics"
	"github.com/pilotdavid42/pilot-traders-relay/internal/registry"
)

// SessionConfig carries the per-connection timing knobs.
type SessionConfig struct {
	// ConnectGrace is the ignore window applied to every new connection
	// before any explicit client action (stale-data protection).
	ConnectGrace time.Duration
	// ClearSessionExtension is how far a clear_session request pushes the
	// ignore deadline forward from the current time.
	ClearSessionExtension time.Duration

	SendBuffer    int
	WriteDeadline time.Duration
	PingInterval  time.Duration
	PongDeadline  time.Duration
}

// Session owns one subscriber connection for its lifetime: it registers the
// connection, processes the client's inbound messages one at a time in
// arrival order, and deterministically retracts the connection from the
// registry before Run returns.
type Session struct {
	connection *websocket.Conn
	registry   *registry.Registry
	clock      clockwork.Clock
	config     SessionConfig

	writer *clientWriter
	conn   *registry.Conn
	logger *slog.Logger
}

// NewSession attaches a freshly upgraded connection to the registry and
// starts its writer. remoteAddr should prefer the proxy-forwarded address
// over the socket address.
func NewSession(connection *websocket.Conn, remoteAddr string, reg *registry.Registry, clock clockwork.Clock, config SessionConfig) *Session {
	writer := newClientWriter(connection, clock, writerConfig{
		sendBuffer:    config.SendBuffer,
		writeDeadline: config.WriteDeadline,
		pingInterval:  config.PingInterval,
		pongDeadline:  config.PongDeadline,
	})

	conn := reg.Register(writer, remoteAddr)
	reg.ExtendIgnoreWindow(conn.ID(), clock.Now().Add(config.ConnectGrace))

	return &Session{
		connection: connection,
		registry:   reg,
		clock:      clock,
		config:     config,
		writer:     writer,
		conn:       conn,
		logger:     logging.WithConnection(conn.ID()).With("remote_addr", remoteAddr),
	}
}

// ConnectionID returns the registry id assigned to this session.
func (s *Session) ConnectionID() int64 { return s.conn.ID() }

// Run sends the connected greeting and processes inbound messages until the
// transport closes or errors. Retraction from the registry is sequenced
// before the writer stops, so no router lookup started after Run returns can
// observe this connection.
func (s *Session) Run() {
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	defer func() {
		s.registry.Unregister(s.conn.ID())
		s.writer.Stop("")
		s.logger.Debug("Session closed")
	}()

	s.reply(domain.NewConnectedMessage(s.conn.ID()))
	s.logger.Debug("Session started")

	for {
		_, data, err := s.connection.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(data)
	}
}

func (s *Session) handleMessage(data []byte) {
	switch msg := domain.ParseClientMessage(data).(type) {
	case domain.RegisterMessage:
		metrics.ClientMessagesTotal.WithLabelValues("register").Inc()
		s.handleRegister(msg)
	case domain.SubscribeMessage:
		metrics.ClientMessagesTotal.WithLabelValues("subscribe").Inc()
		s.registry.SetSymbolFilter(s.conn.ID(), msg.Symbol)
		s.reply(domain.NewSubscribedMessage(msg.Symbol))
		s.logger.Debug("Symbol filter set", "symbol", msg.Symbol)
	case domain.PingMessage:
		metrics.ClientMessagesTotal.WithLabelValues("ping").Inc()
		s.reply(domain.NewPongMessage())
	case domain.ClearSessionMessage:
		metrics.ClientMessagesTotal.WithLabelValues("clear_session").Inc()
		s.handleClearSession()
	case domain.IgnoredMessage:
		// Malformed or unknown input never tears the connection down and
		// gets no reply.
		metrics.ClientMessagesTotal.WithLabelValues("ignored").Inc()
		s.logger.Debug("Ignoring client message", "type", msg.Type)
	}
}

func (s *Session) handleRegister(msg domain.RegisterMessage) {
	if msg.Legacy {
		s.registry.BindLegacy(s.conn.ID())
		metrics.RegistrationsTotal.WithLabelValues(domain.ModeLegacy).Inc()
		s.reply(domain.NewRegisteredMessage(domain.ModeLegacy, ""))
		s.logger.Info("Connection registered", "mode", domain.ModeLegacy)
		return
	}

	s.registry.BindKey(s.conn.ID(), msg.WebhookID)
	metrics.RegistrationsTotal.WithLabelValues(domain.ModeWebhook).Inc()
	s.reply(domain.NewRegisteredMessage(domain.ModeWebhook, msg.WebhookID))
	s.logger.Info("Connection registered", "mode", domain.ModeWebhook)
}

func (s *Session) handleClearSession() {
	until := s.clock.Now().Add(s.config.ClearSessionExtension)
	s.registry.ExtendIgnoreWindow(s.conn.ID(), until)

	// Report the deadline actually in effect, which may be later than the
	// one just requested.
	effective := s.conn.IgnoreUntil()
	s.reply(domain.NewSessionClearedMessage(effective.UTC().Format(time.RFC3339)))
	s.logger.Debug("Session cleared", "ignore_until", effective)
}

func (s *Session) reply(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal reply", "error", err)
		return
	}
	if err := s.writer.Enqueue(data); err != nil {
		s.logger.Debug("Failed to enqueue reply", "error", err)
	}
}

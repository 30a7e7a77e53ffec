package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pilotdavid42/pilot-traders-relay/internal/metrics"
)

var (
	// ErrWriterStopped is returned by Enqueue after the writer shut down.
	ErrWriterStopped = errors.New("client writer stopped")
	// ErrSendBufferFull is returned when the connection's send buffer is
	// full. The caller treats it as a delivery failure for that connection
	// only; the connection itself is not torn down.
	ErrSendBufferFull = errors.New("send buffer full")
)

// writerConfig bundles the transport timing knobs for a clientWriter.
type writerConfig struct {
	sendBuffer    int
	writeDeadline time.Duration
	pingInterval  time.Duration
	pongDeadline  time.Duration
}

// clientWriter serializes all writes to one WebSocket connection. It drains
// a buffered channel in its own goroutine and sends keepalive pings; the
// read pump never writes.
type clientWriter struct {
	connection *websocket.Conn
	clock      clockwork.Clock
	config     writerConfig

	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func newClientWriter(connection *websocket.Conn, clock clockwork.Clock, config writerConfig) *clientWriter {
	cw := &clientWriter{
		connection:  connection,
		clock:       clock,
		config:      config,
		sendChannel: make(chan []byte, config.sendBuffer),
		doneChannel: make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// Enqueue hands a message to the writer goroutine without blocking.
// Implements registry.Sink.
func (cw *clientWriter) Enqueue(msg []byte) error {
	select {
	case <-cw.doneChannel:
		return ErrWriterStopped
	default:
	}

	select {
	case cw.sendChannel <- msg:
		return nil
	case <-cw.doneChannel:
		return ErrWriterStopped
	default:
		return ErrSendBufferFull
	}
}

// Stop sends a close frame with the given reason and closes the connection.
// Implements registry.Sink. Idempotent.
func (cw *clientWriter) Stop(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// Wait for the run goroutine to exit before writing the close
		// frame, so there is never a concurrent write on the connection.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(cw.config.pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			metrics.MessageSendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.PingFailuresTotal.Inc()
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.connection.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(cw.config.writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.connection.SetReadDeadline(cw.clock.Now().Add(cw.config.pongDeadline))
}

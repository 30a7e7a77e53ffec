package relay

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair upgrades one connection and returns both ends.
func wsPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	serverConnCh := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConnCh <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server = <-serverConnCh
	t.Cleanup(func() { server.Close() })
	return server, client
}

func testWriterConfig() writerConfig {
	return writerConfig{
		sendBuffer:    4,
		writeDeadline: 5 * time.Second,
		pingInterval:  30 * time.Second,
		pongDeadline:  60 * time.Second,
	}
}

func TestClientWriter_DeliversEnqueuedMessages(t *testing.T) {
	serverConn, clientConn := wsPair(t)
	writer := newClientWriter(serverConn, clockwork.NewRealClock(), testWriterConfig())
	t.Cleanup(func() { writer.Stop("") })

	require.NoError(t, writer.Enqueue([]byte(`{"n":1}`)))
	require.NoError(t, writer.Enqueue([]byte(`{"n":2}`)))

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	_, first, err := clientConn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(first))

	_, second, err := clientConn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, string(second))
}

func TestClientWriter_EnqueueAfterStopFails(t *testing.T) {
	serverConn, _ := wsPair(t)
	writer := newClientWriter(serverConn, clockwork.NewRealClock(), testWriterConfig())

	writer.Stop("done")

	assert.ErrorIs(t, writer.Enqueue([]byte(`{}`)), ErrWriterStopped)
}

func TestClientWriter_StopIsIdempotent(t *testing.T) {
	serverConn, _ := wsPair(t)
	writer := newClientWriter(serverConn, clockwork.NewRealClock(), testWriterConfig())

	writer.Stop("first")
	writer.Stop("second")
}

func TestClientWriter_StopSendsCloseFrame(t *testing.T) {
	serverConn, clientConn := wsPair(t)
	writer := newClientWriter(serverConn, clockwork.NewRealClock(), testWriterConfig())

	writer.Stop("server shutting down")

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := clientConn.ReadMessage()
	var closeErr *ws.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ws.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "server shutting down", closeErr.Text)
}

func TestClientWriter_FullBufferRejectsWithoutBlocking(t *testing.T) {
	serverConn, _ := wsPair(t)

	// Tiny buffer, short write deadline, and a peer that never reads.
	config := testWriterConfig()
	config.sendBuffer = 1
	config.writeDeadline = 50 * time.Millisecond
	writer := newClientWriter(serverConn, clockwork.NewRealClock(), config)
	t.Cleanup(func() { writer.Stop("") })

	// Fill the buffer faster than the writer can drain it; at least one
	// Enqueue must fail fast rather than block the caller. Large payloads
	// saturate the socket buffer so the writer goroutine stalls.
	payload := bytes.Repeat([]byte("x"), 64*1024)
	sawFull := false
	for i := 0; i < 1000; i++ {
		if err := writer.Enqueue(payload); err != nil {
			assert.ErrorIs(t, err, ErrSendBufferFull)
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull, "expected ErrSendBufferFull under burst")
}

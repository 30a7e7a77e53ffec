package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotdavid42/pilot-traders-relay/internal/registry"
)

func testSessionConfig() SessionConfig {
	return SessionConfig{
		ConnectGrace:          50 * time.Millisecond,
		ClearSessionExtension: 5 * time.Second,
		SendBuffer:            16,
		WriteDeadline:         5 * time.Second,
		PingInterval:          30 * time.Second,
		PongDeadline:          60 * time.Second,
	}
}

// testSessionServer runs a Session per upgraded connection, the way the HTTP
// layer does in production.
func testSessionServer(t *testing.T, reg *registry.Registry, config SessionConfig) func() *ws.Conn {
	t.Helper()

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		session := NewSession(conn, r.RemoteAddr, reg, clockwork.NewRealClock(), config)
		go session.Run()
	}))
	t.Cleanup(server.Close)

	return func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
}

func readMessage(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendJSON(t *testing.T, conn *ws.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(payload)))
}

func waitForLen(t *testing.T, reg *registry.Registry, expected int) {
	t.Helper()
	require.Eventually(t, func() bool { return reg.Len() == expected },
		time.Second, time.Millisecond)
}

func TestSession_SendsConnectedGreeting(t *testing.T) {
	reg := registry.New(clockwork.NewRealClock())
	dial := testSessionServer(t, reg, testSessionConfig())

	conn := dial()

	msg := readMessage(t, conn)
	assert.Equal(t, "connected", msg["type"])
	assert.Greater(t, msg["connectionId"], 0.0)
	waitForLen(t, reg, 1)
}

func TestSession_RegisterWebhookBindsAndAcks(t *testing.T) {
	reg := registry.New(clockwork.NewRealClock())
	dial := testSessionServer(t, reg, testSessionConfig())

	conn := dial()
	readMessage(t, conn) // connected

	sendJSON(t, conn, `{"type":"register","webhookId":"abc123"}`)

	ack := readMessage(t, conn)
	assert.Equal(t, "registered", ack["type"])
	assert.Equal(t, "webhook", ack["mode"])
	assert.Equal(t, "abc123", ack["webhookId"])

	require.Eventually(t, func() bool { return len(reg.LookupKey("abc123")) == 1 },
		time.Second, time.Millisecond)
}

func TestSession_RegisterLegacyBindsAndAcks(t *testing.T) {
	reg := registry.New(clockwork.NewRealClock())
	dial := testSessionServer(t, reg, testSessionConfig())

	conn := dial()
	readMessage(t, conn)

	sendJSON(t, conn, `{"type":"register","legacy":true}`)

	ack := readMessage(t, conn)
	assert.Equal(t, "registered", ack["type"])
	assert.Equal(t, "legacy", ack["mode"])

	require.Eventually(t, func() bool { return len(reg.LookupLegacy()) == 1 },
		time.Second, time.Millisecond)
}

func TestSession_SubscribeSetsSymbolFilter(t *testing.T) {
	reg := registry.New(clockwork.NewRealClock())
	dial := testSessionServer(t, reg, testSessionConfig())

	conn := dial()
	connected := readMessage(t, conn)
	id := int64(connected["connectionId"].(float64))

	sendJSON(t, conn, `{"type":"subscribe","symbol":"BTCUSD"}`)

	ack := readMessage(t, conn)
	assert.Equal(t, "subscribed", ack["type"])
	assert.Equal(t, "BTCUSD", ack["symbol"])

	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, id, snapshot[0].ID)
	assert.Equal(t, "BTCUSD", snapshot[0].SymbolFilter)
}

func TestSession_PingRepliesWithPong(t *testing.T) {
	reg := registry.New(clockwork.NewRealClock())
	dial := testSessionServer(t, reg, testSessionConfig())

	conn := dial()
	readMessage(t, conn)

	sendJSON(t, conn, `{"type":"ping"}`)

	assert.Equal(t, "pong", readMessage(t, conn)["type"])
}

func TestSession_ClearSessionExtendsForwardOnly(t *testing.T) {
	reg := registry.New(clockwork.NewRealClock())
	dial := testSessionServer(t, reg, testSessionConfig())

	conn := dial()
	readMessage(t, conn)

	sendJSON(t, conn, `{"type":"clear_session"}`)
	first := readMessage(t, conn)
	assert.Equal(t, "session_cleared", first["type"])
	firstUntil, err := time.Parse(time.RFC3339, first["until"].(string))
	require.NoError(t, err)

	sendJSON(t, conn, `{"type":"clear_session"}`)
	second := readMessage(t, conn)
	secondUntil, err := time.Parse(time.RFC3339, second["until"].(string))
	require.NoError(t, err)

	assert.False(t, secondUntil.Before(firstUntil), "deadline only ever moves forward")
	assert.True(t, firstUntil.After(time.Now()), "deadline lies in the future")
}

func TestSession_MalformedMessagesAreIgnored(t *testing.T) {
	reg := registry.New(clockwork.NewRealClock())
	dial := testSessionServer(t, reg, testSessionConfig())

	conn := dial()
	readMessage(t, conn)

	sendJSON(t, conn, `this is not json`)
	sendJSON(t, conn, `{"type":"bogus"}`)
	sendJSON(t, conn, `{"type":"register"}`) // neither webhookId nor legacy
	sendJSON(t, conn, `{"type":"ping"}`)

	// The only reply is the pong: the connection survived all three.
	assert.Equal(t, "pong", readMessage(t, conn)["type"])
	assert.Equal(t, 1, reg.Len())
}

func TestSession_DisconnectRetractsFromRegistry(t *testing.T) {
	reg := registry.New(clockwork.NewRealClock())
	dial := testSessionServer(t, reg, testSessionConfig())

	conn := dial()
	readMessage(t, conn)
	sendJSON(t, conn, `{"type":"register","webhookId":"abc123"}`)
	readMessage(t, conn)

	require.NoError(t, conn.Close())

	waitForLen(t, reg, 0)
	assert.Empty(t, reg.LookupKey("abc123"))
}

func TestSession_ConnectGraceSuppressesImmediateDelivery(t *testing.T) {
	clock := clockwork.NewRealClock()
	reg := registry.New(clock)
	config := testSessionConfig()
	config.ConnectGrace = 200 * time.Millisecond
	dial := testSessionServer(t, reg, config)

	conn := dial()
	readMessage(t, conn)
	sendJSON(t, conn, `{"type":"register","webhookId":"abc123"}`)
	readMessage(t, conn)

	router := NewRouter(reg, clock)
	require.Eventually(t, func() bool { return len(reg.LookupKey("abc123")) == 1 },
		time.Second, time.Millisecond)

	assert.Equal(t, 0, router.RouteKeyed("abc123", alertFromJSON(t, `{}`)),
		"delivery inside the connect grace window is suppressed")

	require.Eventually(t, func() bool {
		return router.RouteKeyed("abc123", alertFromJSON(t, `{}`)) == 1
	}, time.Second, 10*time.Millisecond, "delivery resumes once the window elapses")
}

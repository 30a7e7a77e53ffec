package domain

import "encoding/json"

// ClientMessage is the closed set of messages a subscriber may send over its
// WebSocket connection. Unrecognized or malformed input parses to
// IgnoredMessage rather than falling through silently.
type ClientMessage interface{ isClientMessage() }

type baseClientMessage struct{}

func (baseClientMessage) isClientMessage() {}

// RegisterMessage binds the connection to a webhook id, or to the legacy
// broadcast set when Legacy is true. The two modes are mutually exclusive.
type RegisterMessage struct {
	baseClientMessage
	WebhookID string
	Legacy    bool
}

// SubscribeMessage sets the connection's symbol filter (legacy path only).
type SubscribeMessage struct {
	baseClientMessage
	Symbol string
}

// PingMessage requests an immediate pong. No registry mutation.
type PingMessage struct {
	baseClientMessage
}

// ClearSessionMessage extends the connection's ignore window forward from
// the current time, suppressing stale deliveries.
type ClearSessionMessage struct {
	baseClientMessage
}

// IgnoredMessage covers everything else: unknown type, missing fields,
// or unparseable input. The connection stays open and no reply is sent.
type IgnoredMessage struct {
	baseClientMessage
	Type string
}

// ParseClientMessage decodes one inbound frame into its message variant.
func ParseClientMessage(data []byte) ClientMessage {
	var raw struct {
		Type      string `json:"type"`
		WebhookID string `json:"webhookId"`
		Legacy    bool   `json:"legacy"`
		Symbol    string `json:"symbol"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return IgnoredMessage{}
	}

	switch raw.Type {
	case "register":
		if raw.WebhookID == "" && !raw.Legacy {
			return IgnoredMessage{Type: raw.Type}
		}
		return RegisterMessage{WebhookID: raw.WebhookID, Legacy: raw.Legacy}
	case "subscribe":
		if raw.Symbol == "" {
			return IgnoredMessage{Type: raw.Type}
		}
		return SubscribeMessage{Symbol: raw.Symbol}
	case "ping":
		return PingMessage{}
	case "clear_session":
		return ClearSessionMessage{}
	default:
		return IgnoredMessage{Type: raw.Type}
	}
}

// Server-to-client messages.

// ConnectedMessage is sent once after the WebSocket handshake completes.
type ConnectedMessage struct {
	Type         string `json:"type"`
	ConnectionID int64  `json:"connectionId"`
}

// RegisteredMessage acknowledges a register request, echoing the mode.
type RegisteredMessage struct {
	Type      string `json:"type"`
	Mode      string `json:"mode"`
	WebhookID string `json:"webhookId,omitempty"`
}

// SubscribedMessage acknowledges a subscribe request.
type SubscribedMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// PongMessage answers a client ping.
type PongMessage struct {
	Type string `json:"type"`
}

// SessionClearedMessage acknowledges clear_session, carrying the new
// ignore-window deadline.
type SessionClearedMessage struct {
	Type  string `json:"type"`
	Until string `json:"until"`
}

// Registration modes echoed in RegisteredMessage.
const (
	ModeWebhook = "webhook"
	ModeLegacy  = "legacy"
)

func NewConnectedMessage(id int64) ConnectedMessage {
	return ConnectedMessage{Type: "connected", ConnectionID: id}
}

func NewRegisteredMessage(mode, webhookID string) RegisteredMessage {
	return RegisteredMessage{Type: "registered", Mode: mode, WebhookID: webhookID}
}

func NewSubscribedMessage(symbol string) SubscribedMessage {
	return SubscribedMessage{Type: "subscribed", Symbol: symbol}
}

func NewPongMessage() PongMessage {
	return PongMessage{Type: "pong"}
}

func NewSessionClearedMessage(until string) SessionClearedMessage {
	return SessionClearedMessage{Type: "session_cleared", Until: until}
}

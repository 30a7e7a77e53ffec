package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Alert is an inbound webhook payload. The relay treats the payload as
// opaque apart from an optional top-level "symbol" field, which is extracted
// once at parse time for legacy-path filtering.
type Alert struct {
	Data   json.RawMessage
	Symbol string
}

// ParseAlert wraps an arbitrary request body as an Alert. Valid JSON bodies
// are carried verbatim; anything else (TradingView sends plain text alerts)
// is re-encoded as a JSON string so the envelope stays well-formed.
func ParseAlert(body []byte) Alert {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Alert{Data: json.RawMessage(`null`)}
	}

	if json.Valid(trimmed) {
		alert := Alert{Data: json.RawMessage(trimmed)}
		var probe struct {
			Symbol string `json:"symbol"`
		}
		// Non-object payloads simply leave Symbol empty.
		_ = json.Unmarshal(trimmed, &probe)
		alert.Symbol = probe.Symbol
		return alert
	}

	quoted, err := json.Marshal(string(body))
	if err != nil {
		return Alert{Data: json.RawMessage(`null`)}
	}
	return Alert{Data: quoted}
}

// Envelope is the message delivered to subscribers for each admitted alert.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
	WebhookID string          `json:"webhookId,omitempty"`
	Legacy    bool            `json:"legacy,omitempty"`
}

// NewKeyedEnvelope builds the delivery envelope for a keyed alert.
func NewKeyedEnvelope(alert Alert, webhookID string, now time.Time) Envelope {
	return Envelope{
		Type:      "alert",
		Data:      alert.Data,
		Timestamp: now.UTC().Format(time.RFC3339),
		WebhookID: webhookID,
	}
}

// NewLegacyEnvelope builds the delivery envelope for a legacy alert.
func NewLegacyEnvelope(alert Alert, now time.Time) Envelope {
	return Envelope{
		Type:      "alert",
		Data:      alert.Data,
		Timestamp: now.UTC().Format(time.RFC3339),
		Legacy:    true,
	}
}

package registry

import (
	"sync"
	"time"
)

// Sink is the outbound half of a subscriber connection. Implemented by the
// relay's per-connection writer; kept here on the consumer side so the
// registry never depends on the transport.
type Sink interface {
	// Enqueue hands a serialized message to the connection's writer.
	// Returns an error when the writer has stopped or its buffer is full.
	Enqueue(msg []byte) error
	// Stop tears the writer down, sending a close frame with the given
	// reason when possible. Must be idempotent.
	Stop(reason string)
}

type bindMode int

const (
	bindNone bindMode = iota
	bindKeyed
	bindLegacy
)

// Conn is one live subscriber session. The transport handle is owned by the
// relay session; the registry sees only the Sink. Mutable fields are guarded
// by the connection's own mutex and mutated exclusively through Registry
// methods driven by the connection's own inbound messages.
type Conn struct {
	id          int64
	remoteAddr  string
	connectedAt time.Time
	sink        Sink

	mu           sync.Mutex
	mode         bindMode
	webhookID    string
	symbolFilter string
	ignoreUntil  time.Time
}

// ID returns the process-unique connection id.
func (c *Conn) ID() int64 { return c.id }

// RemoteAddr returns the best-effort peer address captured at connect time.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// ConnectedAt returns the connect timestamp.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Deliver enqueues a serialized message on the connection's writer.
func (c *Conn) Deliver(msg []byte) error { return c.sink.Enqueue(msg) }

// SymbolFilter returns the current symbol filter, or "" when unset.
func (c *Conn) SymbolFilter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.symbolFilter
}

// IgnoreUntil returns the current ignore-window deadline.
func (c *Conn) IgnoreUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ignoreUntil
}

// InIgnoreWindow reports whether the connection is excluded from delivery
// at the given instant.
func (c *Conn) InIgnoreWindow(now time.Time) bool {
	return now.Before(c.IgnoreUntil())
}

// WebhookID returns the bound webhook id, or "" when not keyed-bound.
func (c *Conn) WebhookID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.webhookID
}

func (c *Conn) bindState() (bindMode, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode, c.webhookID
}

func (c *Conn) setBinding(mode bindMode, webhookID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.webhookID = webhookID
}

package registry

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const redactedKeyLen = 8

// Summary is one row of the status listing. The webhook id is redacted to a
// short prefix and the transport handle is never exposed.
type Summary struct {
	ID           int64     `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	Mode         string    `json:"mode"`
	WebhookID    string    `json:"webhookId,omitempty"`
	SymbolFilter string    `json:"symbolFilter,omitempty"`
}

// Stats holds aggregate counts for the status route.
type Stats struct {
	Total  int `json:"total"`
	Keyed  int `json:"keyed"`
	Legacy int `json:"legacy"`
}

// Registry is the single shared mutable resource of the relay. One mutex
// guards the primary map and both indexes so they can never diverge.
type Registry struct {
	clock clockwork.Clock

	mu     sync.Mutex
	nextID int64
	conns  map[int64]*Conn
	byKey  map[string]map[int64]*Conn
	legacy map[int64]*Conn
}

// New creates an empty registry using the given clock for connect
// timestamps.
func New(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:  clock,
		conns:  make(map[int64]*Conn),
		byKey:  make(map[string]map[int64]*Conn),
		legacy: make(map[int64]*Conn),
	}
}

// Register creates a connection around the given sink and inserts it into
// the primary set. No key or legacy indexing happens here; that is driven by
// the client's own register message via BindKey/BindLegacy. Never fails.
func (r *Registry) Register(sink Sink, remoteAddr string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	conn := &Conn{
		id:          r.nextID,
		remoteAddr:  remoteAddr,
		connectedAt: r.clock.Now(),
		sink:        sink,
	}
	r.conns[conn.id] = conn
	return conn
}

// BindKey moves the connection into the webhook-id index, unbinding it from
// any previous key or legacy membership first. The key's bucket is created
// lazily and pruned when it empties. No-op for an unknown id.
func (r *Registry) BindKey(id int64, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}

	r.unbindLocked(conn)

	bucket, ok := r.byKey[key]
	if !ok {
		bucket = make(map[int64]*Conn)
		r.byKey[key] = bucket
	}
	bucket[id] = conn
	conn.setBinding(bindKeyed, key)
}

// BindLegacy moves the connection into the legacy broadcast set, mutually
// exclusive with keyed binding. No-op for an unknown id.
func (r *Registry) BindLegacy(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}

	r.unbindLocked(conn)
	r.legacy[id] = conn
	conn.setBinding(bindLegacy, "")
}

// SetSymbolFilter updates the connection's symbol filter. No-op for an
// unknown id.
func (r *Registry) SetSymbolFilter(id int64, symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}
	conn.mu.Lock()
	conn.symbolFilter = symbol
	conn.mu.Unlock()
}

// ExtendIgnoreWindow moves the connection's ignore deadline to the given
// instant if it lies beyond the current one. The deadline never moves
// backward. No-op for an unknown id.
func (r *Registry) ExtendIgnoreWindow(id int64, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}
	conn.mu.Lock()
	if until.After(conn.ignoreUntil) {
		conn.ignoreUntil = until
	}
	conn.mu.Unlock()
}

// Unregister removes the connection from the primary set and from whichever
// index it occupies, pruning empty key buckets. Idempotent: unregistering an
// absent id is a no-op.
func (r *Registry) Unregister(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}

	r.unbindLocked(conn)
	delete(r.conns, id)
}

// unbindLocked removes the connection from its current index, if any.
// Caller holds r.mu.
func (r *Registry) unbindLocked(conn *Conn) {
	mode, key := conn.bindState()
	switch mode {
	case bindKeyed:
		if bucket, ok := r.byKey[key]; ok {
			delete(bucket, conn.id)
			if len(bucket) == 0 {
				delete(r.byKey, key)
			}
		}
	case bindLegacy:
		delete(r.legacy, conn.id)
	case bindNone:
		// nothing indexed yet
	}
	conn.setBinding(bindNone, "")
}

// LookupKey returns the live connections bound to the given webhook id.
func (r *Registry) LookupKey(key string) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.byKey[key]
	conns := make([]*Conn, 0, len(bucket))
	for _, conn := range bucket {
		conns = append(conns, conn)
	}
	return conns
}

// LookupLegacy returns the live legacy-bound connections.
func (r *Registry) LookupLegacy() []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Conn, 0, len(r.legacy))
	for _, conn := range r.legacy {
		conns = append(conns, conn)
	}
	return conns
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// Snapshot returns connection summaries ordered by id for status reporting.
func (r *Registry) Snapshot() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summaries := make([]Summary, 0, len(r.conns))
	for _, conn := range r.conns {
		mode, key := conn.bindState()

		summary := Summary{
			ID:           conn.id,
			ConnectedAt:  conn.connectedAt,
			SymbolFilter: conn.SymbolFilter(),
		}
		switch mode {
		case bindKeyed:
			summary.Mode = "webhook"
			summary.WebhookID = redactKey(key)
		case bindLegacy:
			summary.Mode = "legacy"
		case bindNone:
			summary.Mode = "none"
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

// Stats returns aggregate counts over the current connection set.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	keyed := 0
	for _, bucket := range r.byKey {
		keyed += len(bucket)
	}
	return Stats{
		Total:  len(r.conns),
		Keyed:  keyed,
		Legacy: len(r.legacy),
	}
}

// Shutdown retracts every connection and stops its writer with the given
// reason. Returns the number of connections closed.
func (r *Registry) Shutdown(reason string) int {
	r.mu.Lock()

	closed := make([]*Conn, 0, len(r.conns))
	for id, conn := range r.conns {
		r.unbindLocked(conn)
		delete(r.conns, id)
		closed = append(closed, conn)
	}
	r.mu.Unlock()

	for _, conn := range closed {
		conn.sink.Stop(reason)
	}
	if len(closed) > 0 {
		slog.Info("Registry shutdown complete", "closed_connections", len(closed))
	}
	return len(closed)
}

// redactKey truncates a webhook id for status listings so the full key is
// never leaked.
func redactKey(key string) string {
	if len(key) <= redactedKeyLen {
		return key
	}
	return key[:redactedKeyLen] + "..."
}

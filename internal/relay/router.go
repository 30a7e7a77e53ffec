package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/pilotdavid42/pilot-traders-relay/internal/domain"
	"github.com/pilotdavid42/pilot-traders-relay/internal/metrics"
	"github.com/pilotdavid42/pilot-traders-relay/internal/registry"
)

// Router computes delivery sets for inbound alerts and writes them out
// fire-and-forget. Delivery failures are isolated per connection; write
// failure alone never unregisters a connection (retraction is driven solely
// by transport close or error on the connection's own session).
type Router struct {
	registry *registry.Registry
	clock    clockwork.Clock
}

// NewRouter creates a router over the given registry.
func NewRouter(reg *registry.Registry, clock clockwork.Clock) *Router {
	return &Router{registry: reg, clock: clock}
}

// RouteKeyed delivers the alert to every connection bound to the given
// webhook id and returns the number of accepted writes. An unknown key is
// not an error; it yields zero deliveries. The symbol filter is never
// consulted on the keyed path - a user-specific endpoint is already scoped
// by its key.
func (r *Router) RouteKeyed(key string, alert domain.Alert) int {
	conns := r.registry.LookupKey(key)
	if len(conns) == 0 {
		return 0
	}

	now := r.clock.Now()
	payload, err := json.Marshal(domain.NewKeyedEnvelope(alert, key, now))
	if err != nil {
		slog.Error("Failed to marshal alert envelope", "error", err)
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if conn.InIgnoreWindow(now) {
			metrics.DeliveriesSkippedTotal.WithLabelValues("ignore_window").Inc()
			continue
		}
		if err := conn.Deliver(payload); err != nil {
			metrics.DeliveryFailuresTotal.Inc()
			slog.Debug("Keyed delivery failed", "connection_id", conn.ID(), "error", err)
			continue
		}
		delivered++
	}

	metrics.AlertsDeliveredTotal.WithLabelValues("keyed").Add(float64(delivered))
	return delivered
}

// RouteLegacy delivers the alert to every legacy-bound connection, applying
// the per-connection symbol filter (case-sensitive exact match) in addition
// to the ignore window. Returns the number of accepted writes.
func (r *Router) RouteLegacy(alert domain.Alert) int {
	conns := r.registry.LookupLegacy()
	if len(conns) == 0 {
		return 0
	}

	now := r.clock.Now()
	payload, err := json.Marshal(domain.NewLegacyEnvelope(alert, now))
	if err != nil {
		slog.Error("Failed to marshal alert envelope", "error", err)
		return 0
	}

	delivered := 0
	for _, conn := range conns {
		if conn.InIgnoreWindow(now) {
			metrics.DeliveriesSkippedTotal.WithLabelValues("ignore_window").Inc()
			continue
		}
		// Only an alert that carries a mismatching symbol is filtered out;
		// alerts without a symbol field pass any filter.
		if filter := conn.SymbolFilter(); filter != "" && alert.Symbol != "" && alert.Symbol != filter {
			metrics.DeliveriesSkippedTotal.WithLabelValues("symbol_filter").Inc()
			continue
		}
		if err := conn.Deliver(payload); err != nil {
			metrics.DeliveryFailuresTotal.Inc()
			slog.Debug("Legacy delivery failed", "connection_id", conn.ID(), "error", err)
			continue
		}
		delivered++
	}

	metrics.AlertsDeliveredTotal.WithLabelValues("legacy").Add(float64(delivered))
	return delivered
}

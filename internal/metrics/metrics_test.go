package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	// Verify all metrics are registered without conflicts
	metrics := []prometheus.Collector{
		ActiveConnections,
		ConnectionsRejectedTotal,
		ClientMessagesTotal,
		RegistrationsTotal,
		PingFailuresTotal,
		MessageSendDuration,
		AlertsReceivedTotal,
		AlertsDeliveredTotal,
		DeliveriesSkippedTotal,
		DeliveryFailuresTotal,
	}

	for _, metric := range metrics {
		desc := make(chan *prometheus.Desc, 1)
		metric.Describe(desc)
		close(desc)

		require.NotNil(t, <-desc, "metric should have a valid descriptor")
	}
}

func TestCounterVecLabels(t *testing.T) {
	before := testutil.ToFloat64(AlertsReceivedTotal.WithLabelValues("keyed"))
	AlertsReceivedTotal.WithLabelValues("keyed").Inc()
	after := testutil.ToFloat64(AlertsReceivedTotal.WithLabelValues("keyed"))
	assert.Equal(t, before+1, after)

	before = testutil.ToFloat64(DeliveriesSkippedTotal.WithLabelValues("symbol_filter"))
	DeliveriesSkippedTotal.WithLabelValues("symbol_filter").Inc()
	after = testutil.ToFloat64(DeliveriesSkippedTotal.WithLabelValues("symbol_filter"))
	assert.Equal(t, before+1, after)
}

func TestActiveConnectionsGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveConnections)
	ActiveConnections.Inc()
	ActiveConnections.Inc()
	ActiveConnections.Dec()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveConnections))
	ActiveConnections.Dec()
}

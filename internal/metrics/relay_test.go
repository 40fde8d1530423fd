package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConnectionCounterMirrorsGauge(t *testing.T) {
	before := GetActiveConnectionsCount()
	IncrementActiveConnections()
	IncrementActiveConnections()
	DecrementActiveConnections()

	assert.Equal(t, before+1, GetActiveConnectionsCount())
	assert.Equal(t, float64(before+1), testutil.ToFloat64(ActiveConnections))
}

func TestRegisterMetricsPrecreatesLabels(t *testing.T) {
	RegisterMetrics()
	assert.Equal(t, 0.0, testutil.ToFloat64(RateLimitHits.WithLabelValues("frame")))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(EventsProcessed), 5)
}

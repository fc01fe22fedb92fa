package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// Registered once: promauto collectors go to the default registry.
var m = NewMetrics("metrics_test")

func TestUpdateDBStatsSetsGauges(t *testing.T) {
	m.UpdateDBStats(3, 2, 5)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBConnections.WithLabelValues("idle")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DBConnections.WithLabelValues("in_use")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.DBConnections.WithLabelValues("total")))

	// Gauges track the latest snapshot, not a running total.
	m.UpdateDBStats(1, 0, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DBConnections.WithLabelValues("idle")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.DBConnections.WithLabelValues("in_use")))
}

func TestRecordStoreQueryCountsErrorsSeparately(t *testing.T) {
	m.RecordStoreQuery("clickhouse", "query", 50*time.Millisecond, nil)
	m.RecordStoreQuery("clickhouse", "query", 50*time.Millisecond, errors.New("timeout"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.StoreQueries.WithLabelValues("clickhouse", "query")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StoreErrors.WithLabelValues("clickhouse", "query")))
}

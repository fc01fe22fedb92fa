package storage

import (
	"context"
	"time"

	"github.com/shelfsight/querydeck/internal/metrics"
	"github.com/shelfsight/querydeck/internal/models"
)

// InstrumentedMetricStore wraps a MetricStore and records per-query
// counters and latency under the given backend label.
type InstrumentedMetricStore struct {
	store   MetricStore
	backend string
	metrics *metrics.Metrics
}

// NewInstrumentedMetricStore creates an instrumentation decorator
// around store. If m is nil the underlying store is returned as-is.
func NewInstrumentedMetricStore(store MetricStore, backend string, m *metrics.Metrics) MetricStore {
	if m == nil {
		return store
	}
	return &InstrumentedMetricStore{
		store:   store,
		backend: backend,
		metrics: m,
	}
}

func (s *InstrumentedMetricStore) QueryMetrics(ctx context.Context, filter models.MetricFilter) ([]models.QueryMetrics, error) {
	start := time.Now()
	rows, err := s.store.QueryMetrics(ctx, filter)
	s.metrics.RecordStoreQuery(s.backend, "query", time.Since(start), err)
	return rows, err
}

func (s *InstrumentedMetricStore) TimeSeries(ctx context.Context, identifier string, filter models.MetricFilter) ([]models.QueryMetrics, error) {
	start := time.Now()
	rows, err := s.store.TimeSeries(ctx, identifier, filter)
	s.metrics.RecordStoreQuery(s.backend, "series", time.Since(start), err)
	return rows, err
}

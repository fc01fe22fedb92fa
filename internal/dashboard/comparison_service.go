package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfsight/querydeck/internal/analytics"
	"github.com/shelfsight/querydeck/internal/config"
	"github.com/shelfsight/querydeck/internal/metrics"
	"github.com/shelfsight/querydeck/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ComparisonService computes period-over-period comparisons and the
// waterfall view derived from them.
type ComparisonService struct {
	svc     *MetricsService
	cfg     config.DashboardConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewComparisonService constructs a ComparisonService over the metrics
// service.
func NewComparisonService(svc *MetricsService, cfg config.DashboardConfig, logger *zap.Logger, m *metrics.Metrics) *ComparisonService {
	return &ComparisonService{
		svc:     svc,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// previousFilter shifts the filter's date window back by the offset,
// falling back to the configured comparison offset when offset is zero.
func (s *ComparisonService) previousFilter(filter models.MetricFilter, offset time.Duration) models.MetricFilter {
	if offset <= 0 {
		offset = s.cfg.ComparisonOffset
	}
	prev := filter
	prev.StartDate = filter.StartDate.Add(-offset)
	prev.EndDate = filter.EndDate.Add(-offset)
	return prev
}

// Compare fetches the current and previous period concurrently and joins
// them by identifier. Entities absent from the previous period get a nil
// previous row and unbounded percent changes.
func (s *ComparisonService) Compare(ctx context.Context, filter models.MetricFilter, offset time.Duration, basis analytics.CVRBasis) ([]models.ComparisonRow, error) {
	if err := s.svc.ResolveFilter(ctx, &filter); err != nil {
		return nil, err
	}
	prevFilter := s.previousFilter(filter, offset)

	var current, previous []models.DerivedMetrics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.svc.Rows(gctx, filter, basis)
		current = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.svc.Rows(gctx, prevFilter, basis)
		previous = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch comparison periods: %w", err)
	}

	rows := analytics.Compare(current, previous)

	if s.metrics != nil {
		unbounded := 0
		for i := range rows {
			if rows[i].Previous == nil {
				unbounded++
			}
		}
		s.metrics.RecordComparison(string(filter.Entity), unbounded)
	}
	s.logger.Debug("period comparison computed",
		zap.Int("current_rows", len(current)),
		zap.Int("previous_rows", len(previous)),
	)
	return rows, nil
}

// Waterfall builds the waterfall decomposition of one metric's movement
// between the two periods.
func (s *ComparisonService) Waterfall(ctx context.Context, filter models.MetricFilter, metric string, sortKey analytics.WaterfallSort, topN int, offset time.Duration) (analytics.Waterfall, error) {
	rows, err := s.Compare(ctx, filter, offset, "")
	if err != nil {
		return analytics.Waterfall{}, err
	}
	if topN <= 0 {
		topN = s.cfg.DefaultTopN
	}

	entries := make([]analytics.WaterfallEntry, 0, len(rows))
	for i := range rows {
		cur, ok := analytics.NumericField(&rows[i].Current, metric)
		if !ok {
			return analytics.Waterfall{}, fmt.Errorf("unknown waterfall metric %q", metric)
		}
		var prev float64
		if rows[i].Previous != nil {
			prev, _ = analytics.NumericField(rows[i].Previous, metric)
		}
		entries = append(entries, analytics.WaterfallEntry{
			Entity:   rows[i].Identifier,
			Current:  cur,
			Previous: prev,
		})
	}

	return analytics.BuildWaterfall(entries, analytics.WaterfallOptions{
		Sort: sortKey,
		TopN: topN,
	}), nil
}

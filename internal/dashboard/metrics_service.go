package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfsight/querydeck/internal/analytics"
	"github.com/shelfsight/querydeck/internal/config"
	"github.com/shelfsight/querydeck/internal/metrics"
	"github.com/shelfsight/querydeck/internal/models"
	"github.com/shelfsight/querydeck/internal/storage"
	"go.uber.org/zap"
)

// MetricsService serves derived metric tables, time series and funnels.
type MetricsService struct {
	store   storage.MetricStore
	brands  storage.BrandRepo
	cfg     config.DashboardConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewMetricsService constructs a MetricsService backed by the given store.
func NewMetricsService(store storage.MetricStore, brands storage.BrandRepo, cfg config.DashboardConfig, logger *zap.Logger, m *metrics.Metrics) *MetricsService {
	return &MetricsService{
		store:   store,
		brands:  brands,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// deriveOptions resolves the CVR basis, preferring the per-request value
// over the configured default.
func (s *MetricsService) deriveOptions(basis analytics.CVRBasis) analytics.DeriveOptions {
	if !basis.Valid() {
		basis = analytics.CVRBasis(s.cfg.CVRBasis)
	}
	return analytics.DeriveOptions{CVRBasis: basis}
}

// ResolveFilter expands a brand reference into the brand's ASIN list.
// An unknown brand ID is an error so a stale dashboard fails loudly
// instead of silently showing all-of-market data.
func (s *MetricsService) ResolveFilter(ctx context.Context, filter *models.MetricFilter) error {
	if filter.BrandID == "" || len(filter.ASINs) > 0 {
		return nil
	}
	brand, err := s.brands.GetByID(ctx, filter.BrandID)
	if err != nil {
		return fmt.Errorf("failed to resolve brand filter: %w", err)
	}
	if brand == nil {
		return fmt.Errorf("unknown brand %q", filter.BrandID)
	}
	filter.ASINs = brand.ASINs
	return nil
}

// Rows fetches metric rows for the filter and derives all rate and
// share fields.
func (s *MetricsService) Rows(ctx context.Context, filter models.MetricFilter, basis analytics.CVRBasis) ([]models.DerivedMetrics, error) {
	if err := s.ResolveFilter(ctx, &filter); err != nil {
		return nil, err
	}

	raw, err := s.store.QueryMetrics(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	return analytics.DeriveAll(raw, s.deriveOptions(basis)), nil
}

// Dashboard returns one page of the metrics table after applying the
// client's search, sort, threshold and page state.
func (s *MetricsService) Dashboard(ctx context.Context, filter models.MetricFilter, state models.TableState, basis analytics.CVRBasis) (analytics.Page, error) {
	start := time.Now()

	rows, err := s.Rows(ctx, filter, basis)
	if err != nil {
		return analytics.Page{}, err
	}
	if state.PageSize <= 0 {
		state.PageSize = s.cfg.DefaultPageSize
	}

	page := analytics.Apply(rows, state)

	if s.metrics != nil {
		s.metrics.RecordDashboardQuery(string(filter.Entity), filter.Marketplace, len(rows), time.Since(start))
	}
	s.logger.Debug("dashboard query served",
		zap.String("entity", string(filter.Entity)),
		zap.Int("rows", len(rows)),
		zap.Int("page", page.Page),
	)
	return page, nil
}

// TimeSeries returns daily derived metrics for one entity.
func (s *MetricsService) TimeSeries(ctx context.Context, identifier string, filter models.MetricFilter, basis analytics.CVRBasis) ([]models.DerivedMetrics, error) {
	if err := s.ResolveFilter(ctx, &filter); err != nil {
		return nil, err
	}

	raw, err := s.store.TimeSeries(ctx, identifier, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query time series: %w", err)
	}
	return analytics.DeriveAll(raw, s.deriveOptions(basis)), nil
}

// Funnel aggregates the filtered rows into the four-stage conversion
// funnel.
func (s *MetricsService) Funnel(ctx context.Context, filter models.MetricFilter) (analytics.Funnel, error) {
	rows, err := s.Rows(ctx, filter, "")
	if err != nil {
		return analytics.Funnel{}, err
	}
	return analytics.BuildFunnel(rows), nil
}

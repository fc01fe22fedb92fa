package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shelfsight/querydeck/internal/analytics"
	"github.com/shelfsight/querydeck/internal/config"
	"github.com/shelfsight/querydeck/internal/models"
	"github.com/shelfsight/querydeck/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testDashboardConfig() config.DashboardConfig {
	return config.DashboardConfig{
		DefaultPageSize:  25,
		DefaultTopN:      10,
		CVRBasis:         "clicks",
		ComparisonOffset: 7 * 24 * time.Hour,
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedStore() *storage.InMemoryMetricStore {
	store := storage.NewInMemoryMetricStore()
	store.Load([]models.QueryMetrics{
		{SearchQuery: "yoga mat", ASIN: "B001", Marketplace: "US", Date: day("2026-08-20"),
			Impressions: 1000, Clicks: 100, CartAdds: 40, Purchases: 10, QueryVolume: 5000},
		{SearchQuery: "yoga mat", ASIN: "B001", Marketplace: "US", Date: day("2026-08-21"),
			Impressions: 500, Clicks: 50, CartAdds: 20, Purchases: 5, QueryVolume: 2500},
		{SearchQuery: "water bottle", ASIN: "B002", Marketplace: "US", Date: day("2026-08-20"),
			Impressions: 2000, Clicks: 100, CartAdds: 30, Purchases: 20, QueryVolume: 4000},
	})
	return store
}

func newTestMetricsService(store storage.MetricStore, brands storage.BrandRepo) *MetricsService {
	if brands == nil {
		brands = storage.NewInMemoryBrandRepo()
	}
	return NewMetricsService(store, brands, testDashboardConfig(), zap.NewNop(), nil)
}

func TestMetricsServiceRowsAggregatesAndDerives(t *testing.T) {
	svc := newTestMetricsService(seedStore(), nil)

	rows, err := svc.Rows(context.Background(), models.MetricFilter{
		Entity:    models.EntityQuery,
		StartDate: day("2026-08-18"),
		EndDate:   day("2026-08-25"),
	}, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Two yoga mat days merged into one entity row.
	assert.Equal(t, "yoga mat", rows[0].Identifier())
	assert.Equal(t, int64(1500), rows[0].Impressions)
	assert.InDelta(t, 0.10, rows[0].CTR, 1e-9)
	assert.InDelta(t, 0.10, rows[0].CVR, 1e-9)

	assert.Equal(t, "water bottle", rows[1].Identifier())
	assert.InDelta(t, 0.05, rows[1].CTR, 1e-9)
}

func TestMetricsServiceResolvesBrandFilter(t *testing.T) {
	brands := storage.NewInMemoryBrandRepo()
	require.NoError(t, brands.Upsert(context.Background(), &models.Brand{
		ID: "brand-1", Name: "Acme", ASINs: []string{"B001"},
	}))
	svc := newTestMetricsService(seedStore(), brands)

	rows, err := svc.Rows(context.Background(), models.MetricFilter{
		Entity:  models.EntityQuery,
		BrandID: "brand-1",
	}, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "yoga mat", rows[0].Identifier())
}

func TestMetricsServiceUnknownBrandFails(t *testing.T) {
	svc := newTestMetricsService(seedStore(), nil)

	_, err := svc.Rows(context.Background(), models.MetricFilter{BrandID: "nope"}, "")
	assert.Error(t, err)
}

func TestMetricsServiceDashboardPageDefaults(t *testing.T) {
	svc := newTestMetricsService(seedStore(), nil)

	page, err := svc.Dashboard(context.Background(), models.MetricFilter{
		Entity: models.EntityQuery,
	}, models.TableState{}, "")
	require.NoError(t, err)

	assert.Equal(t, 25, page.PageSize)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.TotalRows)
}

func TestMetricsServiceDashboardCVRBasisOverride(t *testing.T) {
	svc := newTestMetricsService(seedStore(), nil)

	rows, err := svc.Rows(context.Background(), models.MetricFilter{
		Entity: models.EntityQuery,
	}, analytics.CVRBasisImpressions)
	require.NoError(t, err)

	// yoga mat: 15 purchases / 1500 impressions
	assert.InDelta(t, 0.01, rows[0].CVR, 1e-9)
}

func TestMetricsServiceTimeSeries(t *testing.T) {
	svc := newTestMetricsService(seedStore(), nil)

	series, err := svc.TimeSeries(context.Background(), "yoga mat", models.MetricFilter{
		Entity: models.EntityQuery,
	}, "")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, int64(1000), series[0].Impressions)
	assert.Equal(t, int64(500), series[1].Impressions)
}

func TestMetricsServiceFunnel(t *testing.T) {
	svc := newTestMetricsService(seedStore(), nil)

	funnel, err := svc.Funnel(context.Background(), models.MetricFilter{
		Entity: models.EntityQuery,
	})
	require.NoError(t, err)
	require.Len(t, funnel.Stages, 4)

	assert.Equal(t, int64(3500), funnel.Stages[0].Count)
	assert.Equal(t, int64(250), funnel.Stages[1].Count)
	assert.Equal(t, int64(90), funnel.Stages[2].Count)
	assert.Equal(t, int64(35), funnel.Stages[3].Count)
	assert.InDelta(t, 0.01, funnel.Overall, 1e-9)
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shelfsight/querydeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seededStore() *InMemoryMetricStore {
	s := NewInMemoryMetricStore()
	s.Load([]models.QueryMetrics{
		{SearchQuery: "yoga mat", ASIN: "B001", Marketplace: "US", Date: day("2026-08-20"),
			Impressions: 1000, Clicks: 100, Purchases: 10},
		{SearchQuery: "yoga mat", ASIN: "B001", Marketplace: "US", Date: day("2026-08-21"),
			Impressions: 500, Clicks: 50, Purchases: 5},
		{SearchQuery: "yoga mat", ASIN: "B002", Marketplace: "US", Date: day("2026-08-20"),
			Impressions: 200, Clicks: 10, Purchases: 1},
		{SearchQuery: "water bottle", ASIN: "B003", Marketplace: "DE", Date: day("2026-08-20"),
			Impressions: 300, Clicks: 30, Purchases: 3},
	})
	return s
}

func TestQueryMetricsGroupsByQuery(t *testing.T) {
	s := seededStore()

	rows, err := s.QueryMetrics(context.Background(), models.MetricFilter{
		Entity: models.EntityQuery,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// All three yoga mat rows collapse into one entity.
	assert.Equal(t, "yoga mat", rows[0].Identifier())
	assert.Equal(t, int64(1700), rows[0].Impressions)
	assert.Equal(t, int64(160), rows[0].Clicks)
}

func TestQueryMetricsGroupsByASIN(t *testing.T) {
	s := seededStore()

	rows, err := s.QueryMetrics(context.Background(), models.MetricFilter{
		Entity: models.EntityASIN,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "B001", rows[0].ASIN)
	assert.Equal(t, int64(1500), rows[0].Impressions)
}

func TestQueryMetricsMarketplaceFilter(t *testing.T) {
	s := seededStore()

	rows, err := s.QueryMetrics(context.Background(), models.MetricFilter{
		Entity:      models.EntityQuery,
		Marketplace: "DE",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "water bottle", rows[0].Identifier())
}

func TestQueryMetricsASINFilter(t *testing.T) {
	s := seededStore()

	rows, err := s.QueryMetrics(context.Background(), models.MetricFilter{
		Entity: models.EntityQuery,
		ASINs:  []string{"B002"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(200), rows[0].Impressions)
}

func TestQueryMetricsDateWindowEndExclusive(t *testing.T) {
	s := seededStore()

	rows, err := s.QueryMetrics(context.Background(), models.MetricFilter{
		Entity:    models.EntityQuery,
		StartDate: day("2026-08-20"),
		EndDate:   day("2026-08-21"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// The Aug 21 row falls outside the half-open window.
	assert.Equal(t, int64(1200), rows[0].Impressions)
}

func TestTimeSeriesGroupsByDay(t *testing.T) {
	s := seededStore()

	series, err := s.TimeSeries(context.Background(), "yoga mat", models.MetricFilter{})
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, int64(1200), series[0].Impressions)
	assert.Equal(t, int64(500), series[1].Impressions)
}

func TestBrandRepoRoundTrip(t *testing.T) {
	r := NewInMemoryBrandRepo()
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, &models.Brand{ID: "b1", Name: "Acme", ASINs: []string{"B001"}}))

	got, err := r.GetByID(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Name)

	missing, err := r.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, r.Delete(ctx, "b1"))
	got, err = r.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestViewRepoRoundTrip(t *testing.T) {
	r := NewInMemoryViewRepo()
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, &models.SavedView{
		ID:   "v1",
		Name: "high ctr",
		Table: models.TableState{
			Thresholds: map[string]float64{"ctr": 0.1},
		},
	}))

	views, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 0.1, views[0].Table.Thresholds["ctr"])
}

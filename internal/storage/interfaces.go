package storage

import (
	"context"
	"time"

	"github.com/shelfsight/querydeck/internal/models"
)

// =============================================
// METRIC STORE
// =============================================

// MetricStore reads pre-aggregated search-query metric rows. The
// aggregation itself happens upstream; this service only queries it.
type MetricStore interface {
	// QueryMetrics returns rows matching the filter, one per entity,
	// summed over the filter's date range.
	QueryMetrics(ctx context.Context, filter models.MetricFilter) ([]models.QueryMetrics, error)

	// TimeSeries returns daily totals for one entity over the range.
	TimeSeries(ctx context.Context, identifier string, filter models.MetricFilter) ([]models.QueryMetrics, error)
}

// =============================================
// BRAND REPOSITORY
// =============================================

// BrandRepo defines operations for brand storage.
type BrandRepo interface {
	ListAll(ctx context.Context) ([]*models.Brand, error)
	GetByID(ctx context.Context, id string) (*models.Brand, error)
	Upsert(ctx context.Context, b *models.Brand) error
	Delete(ctx context.Context, id string) error
}

// =============================================
// SAVED VIEW REPOSITORY
// =============================================

// ViewRepo defines operations for saved table views.
type ViewRepo interface {
	ListAll(ctx context.Context) ([]*models.SavedView, error)
	GetByID(ctx context.Context, id string) (*models.SavedView, error)
	Upsert(ctx context.Context, v *models.SavedView) error
	Delete(ctx context.Context, id string) error
}

// =============================================
// ANOMALY REPOSITORY
// =============================================

// AnomalyRepo defines operations for detected anomalies.
type AnomalyRepo interface {
	List(ctx context.Context, since time.Time) ([]*models.Anomaly, error)
	Save(ctx context.Context, a *models.Anomaly) error
}

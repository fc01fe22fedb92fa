package storage

import (
	"context"
	"sync"
	"time"

	"github.com/shelfsight/querydeck/internal/models"
)

// In-memory implementations, used when the backing stores are not
// available and in tests.

// InMemoryMetricStore keeps raw metric rows in memory and aggregates at
// query time.
type InMemoryMetricStore struct {
	mu   sync.RWMutex
	rows []models.QueryMetrics
}

// NewInMemoryMetricStore creates an empty in-memory metric store.
func NewInMemoryMetricStore() *InMemoryMetricStore {
	return &InMemoryMetricStore{}
}

// Load replaces the stored rows.
func (s *InMemoryMetricStore) Load(rows []models.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make([]models.QueryMetrics, len(rows))
	copy(s.rows, rows)
}

// Add appends rows to the store.
func (s *InMemoryMetricStore) Add(rows ...models.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
}

func (s *InMemoryMetricStore) QueryMetrics(ctx context.Context, filter models.MetricFilter) ([]models.QueryMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := make(map[string]*models.QueryMetrics)
	order := make([]string, 0)

	for i := range s.rows {
		r := s.rows[i]
		if !matches(&r, filter) {
			continue
		}

		key := entityKey(&r, filter.Entity)
		acc, ok := agg[key]
		if !ok {
			acc = &models.QueryMetrics{
				Marketplace: r.Marketplace,
				Date:        r.Date,
			}
			if filter.Entity == models.EntityASIN {
				acc.ASIN = r.ASIN
			} else {
				acc.SearchQuery = r.SearchQuery
				acc.ASIN = r.ASIN
			}
			agg[key] = acc
			order = append(order, key)
		}
		accumulate(acc, &r)
	}

	out := make([]models.QueryMetrics, 0, len(order))
	for _, key := range order {
		out = append(out, *agg[key])
	}
	return out, nil
}

func (s *InMemoryMetricStore) TimeSeries(ctx context.Context, identifier string, filter models.MetricFilter) ([]models.QueryMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[time.Time]*models.QueryMetrics)
	days := make([]time.Time, 0)

	for i := range s.rows {
		r := s.rows[i]
		if !matches(&r, filter) || r.Identifier() != identifier {
			continue
		}
		day := r.Date.Truncate(24 * time.Hour)
		acc, ok := byDay[day]
		if !ok {
			acc = &models.QueryMetrics{
				SearchQuery: r.SearchQuery,
				ASIN:        r.ASIN,
				Marketplace: r.Marketplace,
				Date:        day,
			}
			byDay[day] = acc
			days = append(days, day)
		}
		accumulate(acc, &r)
	}

	out := make([]models.QueryMetrics, 0, len(days))
	for _, d := range days {
		out = append(out, *byDay[d])
	}
	return out, nil
}

func matches(r *models.QueryMetrics, f models.MetricFilter) bool {
	if f.Marketplace != "" && r.Marketplace != f.Marketplace {
		return false
	}
	if !f.MatchesASIN(r.ASIN) {
		return false
	}
	if !f.StartDate.IsZero() && r.Date.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && !r.Date.Before(f.EndDate) {
		return false
	}
	return true
}

func entityKey(r *models.QueryMetrics, kind models.EntityKind) string {
	if kind == models.EntityASIN {
		return r.ASIN
	}
	return r.SearchQuery
}

func accumulate(acc, r *models.QueryMetrics) {
	acc.Impressions += r.Impressions
	acc.Clicks += r.Clicks
	acc.CartAdds += r.CartAdds
	acc.Purchases += r.Purchases
	acc.QueryVolume += r.QueryVolume
	acc.MarketClicks += r.MarketClicks
	acc.MarketPurchases += r.MarketPurchases
}

// InMemoryBrandRepo stores brands in memory.
type InMemoryBrandRepo struct {
	mu     sync.RWMutex
	brands map[string]*models.Brand
}

func NewInMemoryBrandRepo() *InMemoryBrandRepo {
	return &InMemoryBrandRepo{brands: make(map[string]*models.Brand)}
}

func (r *InMemoryBrandRepo) ListAll(ctx context.Context) ([]*models.Brand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Brand, 0, len(r.brands))
	for _, b := range r.brands {
		out = append(out, b)
	}
	return out, nil
}

func (r *InMemoryBrandRepo) GetByID(ctx context.Context, id string) (*models.Brand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.brands[id], nil
}

func (r *InMemoryBrandRepo) Upsert(ctx context.Context, b *models.Brand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.brands[b.ID] = b
	return nil
}

func (r *InMemoryBrandRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.brands, id)
	return nil
}

// InMemoryViewRepo stores saved views in memory.
type InMemoryViewRepo struct {
	mu    sync.RWMutex
	views map[string]*models.SavedView
}

func NewInMemoryViewRepo() *InMemoryViewRepo {
	return &InMemoryViewRepo{views: make(map[string]*models.SavedView)}
}

func (r *InMemoryViewRepo) ListAll(ctx context.Context) ([]*models.SavedView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.SavedView, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, v)
	}
	return out, nil
}

func (r *InMemoryViewRepo) GetByID(ctx context.Context, id string) (*models.SavedView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.views[id], nil
}

func (r *InMemoryViewRepo) Upsert(ctx context.Context, v *models.SavedView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.ID] = v
	return nil
}

func (r *InMemoryViewRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, id)
	return nil
}

// InMemoryAnomalyRepo stores anomalies in memory.
type InMemoryAnomalyRepo struct {
	mu        sync.RWMutex
	anomalies []*models.Anomaly
}

func NewInMemoryAnomalyRepo() *InMemoryAnomalyRepo {
	return &InMemoryAnomalyRepo{}
}

func (r *InMemoryAnomalyRepo) List(ctx context.Context, since time.Time) ([]*models.Anomaly, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Anomaly, 0, len(r.anomalies))
	for _, a := range r.anomalies {
		if a.DetectedAt.Before(since) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *InMemoryAnomalyRepo) Save(ctx context.Context, a *models.Anomaly) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies = append(r.anomalies, a)
	return nil
}

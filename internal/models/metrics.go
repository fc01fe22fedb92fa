package models

import (
	"fmt"
	"time"
)

// EntityKind identifies what a metrics row is keyed by.
type EntityKind string

const (
	EntityQuery EntityKind = "query"
	EntityASIN  EntityKind = "asin"
)

// QueryMetrics is one pre-aggregated metrics row for a search query
// (optionally scoped to a single ASIN) on a marketplace and date bucket.
// Counts are raw non-negative totals; the market totals are optional and
// zero when the upstream aggregation did not include them.
type QueryMetrics struct {
	SearchQuery string    `json:"search_query,omitempty"`
	ASIN        string    `json:"asin,omitempty"`
	Marketplace string    `json:"marketplace"`
	Date        time.Time `json:"date"`

	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
	CartAdds    int64 `json:"cart_adds"`
	Purchases   int64 `json:"purchases"`

	// Market-wide totals for the same query, used for share-of-market.
	QueryVolume     int64 `json:"query_volume,omitempty"`
	MarketClicks    int64 `json:"market_clicks,omitempty"`
	MarketPurchases int64 `json:"market_purchases,omitempty"`
}

// Identifier returns the entity key the row is aggregated by. Rows grouped
// by ASIN carry an empty search query.
func (m *QueryMetrics) Identifier() string {
	if m.SearchQuery != "" {
		return m.SearchQuery
	}
	return m.ASIN
}

// Validate checks that all raw counts are non-negative.
func (m *QueryMetrics) Validate() error {
	if m.Identifier() == "" {
		return fmt.Errorf("metrics row requires a search query or ASIN")
	}
	for name, v := range map[string]int64{
		"impressions": m.Impressions,
		"clicks":      m.Clicks,
		"cart_adds":   m.CartAdds,
		"purchases":   m.Purchases,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}
	return nil
}

// DerivedMetrics is a QueryMetrics row plus the computed rate and share
// fields. Every rate is numerator/denominator with a zero result when the
// denominator is zero, so the fields are always finite.
type DerivedMetrics struct {
	QueryMetrics

	CTR          float64 `json:"ctr"`
	CVR          float64 `json:"cvr"`
	CartAddRate  float64 `json:"cart_add_rate"`
	PurchaseRate float64 `json:"purchase_rate"`

	ImpressionShare float64 `json:"impression_share"`
	ClickShare      float64 `json:"click_share"`
	PurchaseShare   float64 `json:"purchase_share"`
}

// MetricFilter selects metric rows from the store.
type MetricFilter struct {
	Entity      EntityKind `json:"entity,omitempty"`
	Marketplace string     `json:"marketplace,omitempty"`
	BrandID     string     `json:"brand_id,omitempty"`
	ASINs       []string   `json:"asins,omitempty"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
}

// MatchesASIN reports whether the filter's ASIN list admits the given ASIN.
// An empty list admits everything.
func (f *MetricFilter) MatchesASIN(asin string) bool {
	if len(f.ASINs) == 0 {
		return true
	}
	for _, a := range f.ASINs {
		if a == asin {
			return true
		}
	}
	return false
}

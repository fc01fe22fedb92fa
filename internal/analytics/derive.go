// Package analytics implements the metric derivation, period comparison,
// table shaping and chart transform pipeline the dashboard endpoints serve.
// Every function here is pure and total: division by zero yields 0 and no
// input produces NaN or an error.
package analytics

import "github.com/shelfsight/querydeck/internal/models"

// CVRBasis selects the denominator used for the conversion rate. The
// upstream dashboards disagreed on whether CVR is purchases/clicks or
// purchases/impressions, so the choice is an explicit option rather than
// a hardcoded rule.
type CVRBasis string

const (
	CVRBasisClicks      CVRBasis = "clicks"
	CVRBasisImpressions CVRBasis = "impressions"
)

// Valid reports whether the basis is one of the known denominators.
func (b CVRBasis) Valid() bool {
	return b == CVRBasisClicks || b == CVRBasisImpressions
}

// DeriveOptions configures metric derivation.
type DeriveOptions struct {
	CVRBasis CVRBasis
}

func (o DeriveOptions) basis() CVRBasis {
	if o.CVRBasis.Valid() {
		return o.CVRBasis
	}
	return CVRBasisClicks
}

// Derive computes the rate and share fields for one raw metrics row.
func Derive(row models.QueryMetrics, opts DeriveOptions) models.DerivedMetrics {
	d := models.DerivedMetrics{QueryMetrics: row}

	d.CTR = ratio(row.Clicks, row.Impressions)
	d.CartAddRate = ratio(row.CartAdds, row.Clicks)
	d.PurchaseRate = ratio(row.Purchases, row.CartAdds)

	switch opts.basis() {
	case CVRBasisImpressions:
		d.CVR = ratio(row.Purchases, row.Impressions)
	default:
		d.CVR = ratio(row.Purchases, row.Clicks)
	}

	d.ImpressionShare = ratio(row.Impressions, row.QueryVolume)
	d.ClickShare = ratio(row.Clicks, row.MarketClicks)
	d.PurchaseShare = ratio(row.Purchases, row.MarketPurchases)

	return d
}

// DeriveAll derives every row, preserving input order.
func DeriveAll(rows []models.QueryMetrics, opts DeriveOptions) []models.DerivedMetrics {
	out := make([]models.DerivedMetrics, len(rows))
	for i, r := range rows {
		out[i] = Derive(r, opts)
	}
	return out
}

// ratio returns num/den, or 0 when den is 0.
func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

package analytics

import "github.com/shelfsight/querydeck/internal/models"

// FunnelStage is one step of the shopping funnel with its conversion rate
// from the preceding stage (1 for the first stage, 0 when the preceding
// stage count is zero).
type FunnelStage struct {
	Name  string  `json:"name"`
	Count int64   `json:"count"`
	Rate  float64 `json:"rate"`
}

// Funnel is the impressions -> clicks -> cart adds -> purchases
// decomposition for one row set, with the end-to-end purchase rate.
type Funnel struct {
	Stages  []FunnelStage `json:"stages"`
	Overall float64       `json:"overall_rate"`
}

// BuildFunnel sums the raw counts over the rows and derives per-stage
// conversion rates.
func BuildFunnel(rows []models.DerivedMetrics) Funnel {
	var imps, clicks, cartAdds, purchases int64
	for i := range rows {
		imps += rows[i].Impressions
		clicks += rows[i].Clicks
		cartAdds += rows[i].CartAdds
		purchases += rows[i].Purchases
	}

	stages := []FunnelStage{
		{Name: "impressions", Count: imps, Rate: 1},
		{Name: "clicks", Count: clicks, Rate: ratio(clicks, imps)},
		{Name: "cart_adds", Count: cartAdds, Rate: ratio(cartAdds, clicks)},
		{Name: "purchases", Count: purchases, Rate: ratio(purchases, cartAdds)},
	}
	if imps == 0 {
		stages[0].Rate = 0
	}

	return Funnel{
		Stages:  stages,
		Overall: ratio(purchases, imps),
	}
}

package analytics

import (
	"math"

	"github.com/shelfsight/querydeck/internal/models"
)

// PercentChange computes (current-previous)/previous. A previous value of
// zero yields +Inf when current is positive and 0 when both are zero, so
// the result never divides by zero and never produces NaN.
func PercentChange(current, previous float64) models.Change {
	if previous == 0 {
		if current > 0 {
			return models.Change(math.Inf(1))
		}
		return 0
	}
	return models.Change((current - previous) / previous)
}

// NewDelta builds the absolute and relative movement of one metric field.
func NewDelta(current, previous float64) models.Delta {
	return models.Delta{
		Current:  current,
		Previous: previous,
		Absolute: current - previous,
		Percent:  PercentChange(current, previous),
	}
}

// Compare joins current-period rows with previous-period rows by
// identifier and computes per-field deltas. The output preserves the
// order of the current rows; entities absent from the previous period get
// a nil Previous and deltas against zero.
func Compare(current, previous []models.DerivedMetrics) []models.ComparisonRow {
	prevByKey := make(map[string]*models.DerivedMetrics, len(previous))
	for i := range previous {
		prevByKey[previous[i].Identifier()] = &previous[i]
	}

	rows := make([]models.ComparisonRow, 0, len(current))
	for _, cur := range current {
		row := models.ComparisonRow{
			Identifier: cur.Identifier(),
			Current:    cur,
		}

		var prev models.DerivedMetrics
		if p, ok := prevByKey[row.Identifier]; ok {
			prev = *p
			row.Previous = p
		}

		row.Impressions = NewDelta(float64(cur.Impressions), float64(prev.Impressions))
		row.Clicks = NewDelta(float64(cur.Clicks), float64(prev.Clicks))
		row.CartAdds = NewDelta(float64(cur.CartAdds), float64(prev.CartAdds))
		row.Purchases = NewDelta(float64(cur.Purchases), float64(prev.Purchases))
		row.CTR = NewDelta(cur.CTR, prev.CTR)
		row.CVR = NewDelta(cur.CVR, prev.CVR)

		rows = append(rows, row)
	}
	return rows
}

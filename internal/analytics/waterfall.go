package analytics

import (
	"math"
	"sort"
	"strings"
)

// Waterfall bar classifications.
const (
	BarPositive = "positive"
	BarNegative = "negative"
	BarNeutral  = "neutral"
	BarTotal    = "total"
)

// WaterfallSort selects how entity bars are ordered before truncation.
type WaterfallSort string

const (
	// SortImpact orders by |change| * log(current+1), favoring large
	// movements on entities that still matter in the current period.
	SortImpact       WaterfallSort = "impact"
	SortPercentage   WaterfallSort = "percentage"
	SortAlphabetical WaterfallSort = "alphabetical"
	SortCurrent      WaterfallSort = "current"
	SortPrevious     WaterfallSort = "previous"
)

// WaterfallEntry is one entity's contribution between the two periods.
type WaterfallEntry struct {
	Entity   string  `json:"entity"`
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
}

// Change is the entity's contribution to the total movement.
func (e WaterfallEntry) Change() float64 {
	return e.Current - e.Previous
}

// WaterfallBar is one rendered bar.
type WaterfallBar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Kind  string  `json:"kind"`
}

// Waterfall decomposes the movement between two period totals into
// per-entity contributions. Invariant: PreviousTotal plus the sum of all
// non-total bar values equals CurrentTotal.
type Waterfall struct {
	PreviousTotal float64        `json:"previous_total"`
	CurrentTotal  float64        `json:"current_total"`
	Bars          []WaterfallBar `json:"bars"`
}

// WaterfallOptions configures bar ordering and truncation.
type WaterfallOptions struct {
	Sort WaterfallSort `json:"sort,omitempty"`
	// TopN keeps only the first N entity bars after sorting; the rest are
	// folded into a single "Other" bar so the totals invariant holds.
	// Zero keeps everything.
	TopN int `json:"top_n,omitempty"`
}

// BuildWaterfall produces the bar sequence: a synthetic "Previous Total"
// bar, one classified bar per entity, an optional "Other" roll-up, and a
// synthetic "Current Total" bar.
func BuildWaterfall(entries []WaterfallEntry, opts WaterfallOptions) Waterfall {
	sorted := make([]WaterfallEntry, len(entries))
	copy(sorted, entries)
	sortEntries(sorted, opts.Sort)

	var prevTotal, changeTotal float64
	for _, e := range entries {
		prevTotal += e.Previous
		changeTotal += e.Change()
	}

	kept := sorted
	var rest []WaterfallEntry
	if opts.TopN > 0 && opts.TopN < len(sorted) {
		kept = sorted[:opts.TopN]
		rest = sorted[opts.TopN:]
	}

	bars := make([]WaterfallBar, 0, len(kept)+3)
	bars = append(bars, WaterfallBar{Label: "Previous Total", Value: prevTotal, Kind: BarTotal})

	for _, e := range kept {
		bars = append(bars, WaterfallBar{
			Label: e.Entity,
			Value: e.Change(),
			Kind:  classify(e.Change()),
		})
	}

	if len(rest) > 0 {
		var other float64
		for _, e := range rest {
			other += e.Change()
		}
		bars = append(bars, WaterfallBar{Label: "Other", Value: other, Kind: classify(other)})
	}

	currentTotal := prevTotal + changeTotal
	bars = append(bars, WaterfallBar{Label: "Current Total", Value: currentTotal, Kind: BarTotal})

	return Waterfall{
		PreviousTotal: prevTotal,
		CurrentTotal:  currentTotal,
		Bars:          bars,
	}
}

func classify(change float64) string {
	switch {
	case change > 0:
		return BarPositive
	case change < 0:
		return BarNegative
	default:
		return BarNeutral
	}
}

func sortEntries(entries []WaterfallEntry, key WaterfallSort) {
	less := func(i, j int) bool { return impact(entries[i]) > impact(entries[j]) }

	switch key {
	case SortAlphabetical:
		less = func(i, j int) bool {
			return strings.ToLower(entries[i].Entity) < strings.ToLower(entries[j].Entity)
		}
	case SortPercentage:
		less = func(i, j int) bool {
			return pctMagnitude(entries[i]) > pctMagnitude(entries[j])
		}
	case SortCurrent:
		less = func(i, j int) bool { return entries[i].Current > entries[j].Current }
	case SortPrevious:
		less = func(i, j int) bool { return entries[i].Previous > entries[j].Previous }
	}

	sort.SliceStable(entries, less)
}

func impact(e WaterfallEntry) float64 {
	return math.Abs(e.Change()) * math.Log(e.Current+1)
}

// pctMagnitude ranks entries by |percent change|. Entries appearing from
// a zero baseline rank first.
func pctMagnitude(e WaterfallEntry) float64 {
	return math.Abs(float64(PercentChange(e.Current, e.Previous)))
}

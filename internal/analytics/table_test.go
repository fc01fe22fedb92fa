package analytics

import (
	"testing"

	"github.com/shelfsight/querydeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableRows() []models.DerivedMetrics {
	return DeriveAll([]models.QueryMetrics{
		{SearchQuery: "a", Impressions: 100, Clicks: 10, Purchases: 1},
		{SearchQuery: "b", Impressions: 200, Clicks: 40, Purchases: 8},
		{SearchQuery: "c", Impressions: 200, Clicks: 30, Purchases: 8},
		{SearchQuery: "d", Impressions: 50, Clicks: 2, Purchases: 0},
	}, DeriveOptions{})
}

func identifiers(p Page) []string {
	out := make([]string, len(p.Rows))
	for i := range p.Rows {
		out[i] = p.Rows[i].Identifier()
	}
	return out
}

func TestApplySortWorkedExample(t *testing.T) {
	rows := DeriveAll([]models.QueryMetrics{
		{SearchQuery: "a", Impressions: 100, Clicks: 10, Purchases: 1},
		{SearchQuery: "b", Impressions: 200, Clicks: 40, Purchases: 8},
	}, DeriveOptions{})

	p := Apply(rows, models.TableState{SortField: "purchases", SortDirection: models.SortDesc})
	assert.Equal(t, []string{"b", "a"}, identifiers(p))
}

func TestApplySortReversalAndStability(t *testing.T) {
	rows := tableRows()

	asc := Apply(rows, models.TableState{SortField: "purchases", SortDirection: models.SortAsc})
	desc := Apply(rows, models.TableState{SortField: "purchases", SortDirection: models.SortDesc})

	// Ties (b and c both have 8 purchases) keep input order in both
	// directions, so desc is the exact reverse of asc apart from the
	// tied run, which stays in input order.
	assert.Equal(t, []string{"d", "a", "b", "c"}, identifiers(asc))
	assert.Equal(t, []string{"b", "c", "a", "d"}, identifiers(desc))
}

func TestApplyStringSort(t *testing.T) {
	rows := tableRows()
	p := Apply(rows, models.TableState{SortField: "identifier", SortDirection: models.SortDesc})
	assert.Equal(t, []string{"d", "c", "b", "a"}, identifiers(p))
}

func TestApplyEmptyMatch(t *testing.T) {
	p := Apply(tableRows(), models.TableState{Search: "zzz"})

	assert.Empty(t, p.Rows)
	assert.Equal(t, 0, p.TotalPages)
	assert.Equal(t, 0, p.TotalRows)
	assert.Equal(t, 1, p.Page)
}

func TestApplyThresholds(t *testing.T) {
	p := Apply(tableRows(), models.TableState{
		Thresholds: map[string]float64{"clicks": 10, "purchases": 1},
	})
	assert.Equal(t, []string{"a", "b", "c"}, identifiers(p))
}

func TestApplyPagination(t *testing.T) {
	state := models.TableState{PageSize: 3, Page: 2}
	p := Apply(tableRows(), state)

	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 4, p.TotalRows)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "d", p.Rows[0].Identifier())

	// Out-of-range pages clamp to the last page.
	p = Apply(tableRows(), models.TableState{PageSize: 3, Page: 9})
	assert.Equal(t, 2, p.Page)
}

func TestTableResetsPageOnStateChange(t *testing.T) {
	tab := NewTable(tableRows(), models.TableState{PageSize: 2, Page: 2})
	require.Equal(t, 2, tab.Current().Page)

	p := tab.SetSearch("a")
	assert.Equal(t, 1, p.Page)

	tab.SetPage(2)
	p = tab.SetSort("clicks", models.SortDesc)
	assert.Equal(t, 1, p.Page)

	tab.SetPage(2)
	p = tab.SetThreshold("impressions", 100)
	assert.Equal(t, 1, p.Page)
}

func TestTableNotifiesSubscribers(t *testing.T) {
	tab := NewTable(tableRows(), models.TableState{})

	var got []Page
	tab.Subscribe(func(p Page) { got = append(got, p) })

	tab.SetSearch("b")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"b"}, identifiers(got[0]))
}

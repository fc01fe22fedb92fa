package analytics

import (
	"sort"
	"strings"
	"sync"

	"github.com/shelfsight/querydeck/internal/models"
)

// DefaultPageSize is used when a table state carries no page size.
const DefaultPageSize = 25

// Page is one rendered window of a metrics table.
type Page struct {
	Rows       []models.DerivedMetrics `json:"rows"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	TotalRows  int                     `json:"total_rows"`
	TotalPages int                     `json:"total_pages"`
}

// Table is the stateful sort/filter/paginate controller over one dataset
// snapshot. Any state change re-filters, re-sorts (stably) and re-slices
// the dataset, then notifies subscribers with the fresh page. Changing the
// search term, a threshold or the sort order resets the page to 1.
type Table struct {
	mu    sync.Mutex
	rows  []models.DerivedMetrics
	state models.TableState
	subs  []func(Page)
}

// NewTable builds a controller over a dataset snapshot. The state's page
// defaults to 1 and the page size to DefaultPageSize.
func NewTable(rows []models.DerivedMetrics, state models.TableState) *Table {
	if state.Page < 1 {
		state.Page = 1
	}
	if state.PageSize <= 0 {
		state.PageSize = DefaultPageSize
	}
	if state.SortDirection == "" {
		state.SortDirection = models.SortAsc
	}
	return &Table{rows: rows, state: state}
}

// Subscribe registers a listener invoked with the new page after every
// state change.
func (t *Table) Subscribe(fn func(Page)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, fn)
}

// State returns a copy of the current table state.
func (t *Table) State() models.TableState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetRows replaces the dataset snapshot, keeping the current page.
func (t *Table) SetRows(rows []models.DerivedMetrics) Page {
	t.mu.Lock()
	t.rows = rows
	return t.recomputeLocked()
}

// SetSearch updates the substring filter and resets to page 1.
func (t *Table) SetSearch(term string) Page {
	t.mu.Lock()
	t.state.Search = term
	t.state.Page = 1
	return t.recomputeLocked()
}

// SetSort updates the sort column and direction and resets to page 1.
func (t *Table) SetSort(field string, dir models.SortDirection) Page {
	t.mu.Lock()
	t.state.SortField = field
	t.state.SortDirection = dir
	t.state.Page = 1
	return t.recomputeLocked()
}

// SetThreshold sets a minimum value filter for a metric field and resets
// to page 1. A zero threshold removes the filter for that field.
func (t *Table) SetThreshold(field string, min float64) Page {
	t.mu.Lock()
	if t.state.Thresholds == nil {
		t.state.Thresholds = make(map[string]float64)
	}
	if min == 0 {
		delete(t.state.Thresholds, field)
	} else {
		t.state.Thresholds[field] = min
	}
	t.state.Page = 1
	return t.recomputeLocked()
}

// SetPage moves the page window without disturbing filters or sort.
func (t *Table) SetPage(page int) Page {
	t.mu.Lock()
	if page < 1 {
		page = 1
	}
	t.state.Page = page
	return t.recomputeLocked()
}

// Current recomputes the page for the present state without mutating it.
func (t *Table) Current() Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Apply(t.rows, t.state)
}

// recomputeLocked recomputes under t.mu, releases the lock and notifies
// subscribers.
func (t *Table) recomputeLocked() Page {
	page := Apply(t.rows, t.state)
	t.state.Page = page.Page
	subs := make([]func(Page), len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(page)
	}
	return page
}

// Apply runs the full filter -> stable sort -> paginate pipeline for one
// state against one dataset snapshot. The input slice is not modified.
func Apply(rows []models.DerivedMetrics, state models.TableState) Page {
	filtered := filterRows(rows, state)
	sortRows(filtered, state)

	pageSize := state.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	total := len(filtered)
	totalPages := (total + pageSize - 1) / pageSize

	page := state.Page
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Rows:       filtered[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalRows:  total,
		TotalPages: totalPages,
	}
}

func filterRows(rows []models.DerivedMetrics, state models.TableState) []models.DerivedMetrics {
	out := make([]models.DerivedMetrics, 0, len(rows))
	term := strings.ToLower(strings.TrimSpace(state.Search))

	for i := range rows {
		r := rows[i]
		if term != "" && !strings.Contains(strings.ToLower(r.Identifier()), term) {
			continue
		}
		if !meetsThresholds(&r, state.Thresholds) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func meetsThresholds(r *models.DerivedMetrics, thresholds map[string]float64) bool {
	for field, min := range thresholds {
		v, ok := NumericField(r, field)
		if !ok || v < min {
			return false
		}
	}
	return true
}

func sortRows(rows []models.DerivedMetrics, state models.TableState) {
	field := state.SortField
	if field == "" {
		return
	}
	desc := state.SortDirection == models.SortDesc

	sort.SliceStable(rows, func(i, j int) bool {
		vi, iok := NumericField(&rows[i], field)
		vj, jok := NumericField(&rows[j], field)

		var less bool
		if iok && jok {
			if vi == vj {
				return false
			}
			less = vi < vj
		} else {
			si := strings.ToLower(stringField(&rows[i], field))
			sj := strings.ToLower(stringField(&rows[j], field))
			if si == sj {
				return false
			}
			less = si < sj
		}
		if desc {
			return !less
		}
		return less
	})
}

// NumericField resolves a metric field by its wire name. The second
// return is false for non-numeric (string) fields.
func NumericField(r *models.DerivedMetrics, field string) (float64, bool) {
	switch field {
	case "impressions":
		return float64(r.Impressions), true
	case "clicks":
		return float64(r.Clicks), true
	case "cart_adds":
		return float64(r.CartAdds), true
	case "purchases":
		return float64(r.Purchases), true
	case "query_volume":
		return float64(r.QueryVolume), true
	case "ctr":
		return r.CTR, true
	case "cvr":
		return r.CVR, true
	case "cart_add_rate":
		return r.CartAddRate, true
	case "purchase_rate":
		return r.PurchaseRate, true
	case "impression_share":
		return r.ImpressionShare, true
	case "click_share":
		return r.ClickShare, true
	case "purchase_share":
		return r.PurchaseShare, true
	default:
		return 0, false
	}
}

func stringField(r *models.DerivedMetrics, field string) string {
	switch field {
	case "asin":
		return r.ASIN
	case "marketplace":
		return r.Marketplace
	default:
		return r.Identifier()
	}
}

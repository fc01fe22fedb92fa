package models

import (
	"fmt"
	"time"
)

// SortDirection orders a table column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// TableState is the full client-visible state of a metrics table: search
// term, sort column and direction, numeric filter thresholds and the page
// window. It is ephemeral per session unless persisted as a SavedView.
type TableState struct {
	Search        string             `json:"search,omitempty"`
	SortField     string             `json:"sort_field,omitempty"`
	SortDirection SortDirection      `json:"sort_direction,omitempty"`
	Thresholds    map[string]float64 `json:"thresholds,omitempty"`
	Page          int                `json:"page"`
	PageSize      int                `json:"page_size"`
}

// SavedView persists a named table configuration together with the metric
// filter it applies to.
type SavedView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Filter    MetricFilter `json:"filter"`
	Table     TableState   `json:"table"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Validate checks required saved-view fields.
func (v *SavedView) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("view name is required")
	}
	if v.Table.PageSize < 0 || v.Table.Page < 0 {
		return fmt.Errorf("view %q has a negative page window", v.Name)
	}
	return nil
}

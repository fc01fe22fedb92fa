package models

import (
	"fmt"
	"time"
)

// Brand groups the ASINs an account sells under one label. The selected
// brand scopes every dashboard query.
type Brand struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ASINs     []string  `json:"asins"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required brand fields.
func (b *Brand) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("brand name is required")
	}
	for _, a := range b.ASINs {
		if a == "" {
			return fmt.Errorf("brand %q contains an empty ASIN", b.Name)
		}
	}
	return nil
}

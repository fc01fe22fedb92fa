package models

import "time"

// Anomaly severity levels.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Anomaly records a metric whose period-over-period movement crossed a
// configured threshold during a comparison scan.
type Anomaly struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	Marketplace string    `json:"marketplace,omitempty"`
	Metric      string    `json:"metric"`
	Current     float64   `json:"current"`
	Previous    float64   `json:"previous"`
	Percent     Change    `json:"percent_change"`
	Severity    string    `json:"severity"`
	DetectedAt  time.Time `json:"detected_at"`
}

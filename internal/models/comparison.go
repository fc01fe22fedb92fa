package models

import (
	"encoding/json"
	"math"
)

// infSentinel is how an unbounded positive percent change is rendered.
const infSentinel = "+∞"

// Change is a percent-change value. A previous value of zero with a
// non-zero current value yields +Inf, which encodes to the literal
// string "+∞" instead of a JSON number.
type Change float64

// IsUnbounded reports whether the change is the +∞ sentinel.
func (c Change) IsUnbounded() bool {
	return math.IsInf(float64(c), 1)
}

func (c Change) MarshalJSON() ([]byte, error) {
	if c.IsUnbounded() {
		return json.Marshal(infSentinel)
	}
	return json.Marshal(float64(c))
}

func (c *Change) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == infSentinel {
			*c = Change(math.Inf(1))
			return nil
		}
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*c = Change(f)
	return nil
}

// Delta captures the absolute and relative movement of one metric field
// between two periods.
type Delta struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Absolute float64 `json:"absolute_change"`
	Percent  Change  `json:"percent_change"`
}

// ComparisonRow pairs a current-period row with the previous-period row
// for the same identifier. Previous is nil when the entity did not appear
// in the earlier period; every delta then treats the previous value as 0.
type ComparisonRow struct {
	Identifier string          `json:"identifier"`
	Current    DerivedMetrics  `json:"current"`
	Previous   *DerivedMetrics `json:"previous,omitempty"`

	Impressions Delta `json:"impressions"`
	Clicks      Delta `json:"clicks"`
	CartAdds    Delta `json:"cart_adds"`
	Purchases   Delta `json:"purchases"`
	CTR         Delta `json:"ctr"`
	CVR         Delta `json:"cvr"`
}

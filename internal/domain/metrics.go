package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Metrics are the derived values shown above a dashboard's chart.
// They are recomputed from scratch on every refresh tick.
type Metrics struct {
	StartValue       decimal.Decimal `json:"start_value"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	PercentChange    decimal.Decimal `json:"percent_change"`
	VolumeSinceStart decimal.Decimal `json:"volume_since_start"`
}

// PercentChange computes (current-start)/start*100. A zero start value yields
// zero rather than a division error; a missing baseline reads as "no change".
func PercentChange(start, current decimal.Decimal) decimal.Decimal {
	if start.IsZero() {
		return decimal.Zero
	}
	return current.Sub(start).Div(start).Mul(hundred)
}

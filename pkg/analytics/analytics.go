// Package analytics derives chart overlays from an equity series.
package analytics

import (
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// EquityEMA calculates the Exponential Moving Average of the equity series
// for the given period.
func EquityEMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if len(values) < period {
		return nil, fmt.Errorf("not enough data points: need %d, got %d", period, len(values))
	}

	floats := decimalsToFloat64(values)

	ema := trend.NewEmaWithPeriod[float64](period)
	inputChan := helper.SliceToChan(floats)
	outputChan := ema.Compute(inputChan)
	emaFloat := helper.ChanToSlice(outputChan)

	return float64ToDecimals(emaFloat), nil
}

// MaxDrawdown returns the largest peak-to-trough decline of the equity series
// as a percentage of the peak. An empty or monotonically rising series yields
// zero.
func MaxDrawdown(values []decimal.Decimal) decimal.Decimal {
	maxDD := decimal.Zero
	peak := decimal.Zero
	for _, v := range values {
		if v.GreaterThan(peak) {
			peak = v
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(v).Div(peak).Mul(hundred)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}

func decimalsToFloat64(values []decimal.Decimal) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i], _ = v.Float64()
	}
	return out
}

func float64ToDecimals(values []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

package indicator

import "math"

// EMA calculates the Exponential Moving Average with multiplier 2/(period+1),
// seeded by the first valid value. Leading NaN entries in the input (e.g. an
// RSI warm-up prefix) stay NaN in the output; the EMA seeds at the first
// non-NaN value. Returns nil if the input has fewer than period valid values.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) == 0 {
		return nil
	}

	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < period {
		return nil
	}

	out := nanSeries(len(values))
	multiplier := 2.0 / float64(period+1)

	out[start] = values[start]
	for i := start + 1; i < len(values); i++ {
		out[i] = values[i]*multiplier + out[i-1]*(1-multiplier)
	}

	return out
}

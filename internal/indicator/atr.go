package indicator

import (
	"math"

	"github.com/Allwin048935/trend/internal/model"
)

// ATR calculates the Average True Range with Wilder smoothing.
// Entries at index < period are NaN. Returns nil if len(bars) <= period.
func ATR(bars []model.Bar, period int) []float64 {
	if period <= 0 || len(bars) <= period {
		return nil
	}

	out := nanSeries(len(bars))

	tr := func(i int) float64 {
		hl := bars[i].High - bars[i].Low
		if i == 0 {
			return hl
		}
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		return math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr(i)
	}
	atr := sum / float64(period)
	out[period] = atr

	p := float64(period)
	for i := period + 1; i < len(bars); i++ {
		atr = (atr*(p-1) + tr(i)) / p
		out[i] = atr
	}
	return out
}

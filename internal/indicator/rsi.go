// Package indicator provides technical indicator calculations over bar data.
//
// All functions are pure: they take a bar or value series plus a lookback
// window and return a parallel series. Entries before the window is filled
// are NaN. Functions fail closed — a series shorter than its window yields
// nil, never a panic.
package indicator

import "math"

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Returns a series parallel to closes; entries at index < period are NaN.
// Returns nil if len(closes) <= period.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}

	out := nanSeries(len(closes))

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	// Wilder's smoothing: avg = (prevAvg*(period-1) + value) / period
	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}

	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// nanSeries returns a series of the given length filled with NaN.
func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

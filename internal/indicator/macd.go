package indicator

// MACDHistogram calculates the MACD histogram:
// (EMA(fast) − EMA(slow)) minus its own EMA(signal).
// Standard parameters are fast=12, slow=26, signal=9.
// Returns nil if len(closes) < slow+signal.
func MACDHistogram(closes []float64, fast, slow, signal int) []float64 {
	if fast <= 0 || slow <= fast || signal <= 0 || len(closes) < slow+signal {
		return nil
	}

	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	if fastEMA == nil || slowEMA == nil {
		return nil
	}

	macd := make([]float64, len(closes))
	for i := range macd {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := EMA(macd, signal)
	if signalLine == nil {
		return nil
	}

	hist := make([]float64, len(closes))
	for i := range hist {
		hist[i] = macd[i] - signalLine[i]
	}
	return hist
}

// Package detector turns indicator-annotated bar sequences into typed
// entry/exit signals per instrument.
//
// A Condition evaluates one strategy's entry/exit rules against a Series;
// the Detector owns the per-instrument state machine: transition order,
// flips, cooldowns, and trendline retention.
package detector

import (
	"errors"
	"fmt"
	"time"

	"github.com/Allwin048935/trend/internal/indicator"
	"github.com/Allwin048935/trend/internal/model"
)

// ErrInsufficientData indicates the bar sequence is shorter than the minimum
// the configured indicator windows require. Non-fatal: the instrument is
// skipped this cycle.
var ErrInsufficientData = errors.New("detector: insufficient data")

// Config holds the detector's indicator windows and behavior knobs.
type Config struct {
	RSIPeriod      int
	RSIEMAPeriod   int
	ShortEMAPeriod int
	LongEMAPeriod  int
	MACDFast       int
	MACDSlow       int
	MACDSignal     int

	TrendlineLength    int
	PivotField         indicator.PivotField
	SlopeMethod        indicator.SlopeMethod
	TrendlineExtension time.Duration
	MaxTrendlines      int

	// Cooldown suppresses re-emitting the same signal type for the same
	// instrument inside the window. Default: one bar interval.
	Cooldown time.Duration

	RSIBuyLevel  float64
	RSISellLevel float64
}

// MinBars returns the minimum bar count the detector needs before it will
// evaluate: the largest indicator window plus three bars of headroom.
func (c Config) MinBars() int {
	max := c.RSIPeriod + c.RSIEMAPeriod
	for _, w := range []int{
		c.ShortEMAPeriod, c.LongEMAPeriod,
		c.MACDSlow + c.MACDSignal,
		2*c.TrendlineLength + 1,
	} {
		if w > max {
			max = w
		}
	}
	return max + 3
}

// Series is an indicator-annotated bar sequence for one instrument and cycle.
// All slices are parallel to Bars; warm-up entries are NaN.
type Series struct {
	Bars   []model.Bar
	Closes []float64

	RSI      []float64
	RSIEMA   []float64
	EMAShort []float64
	EMALong  []float64
	MACDHist []float64

	PivotHighs []float64
	PivotLows  []float64
}

// BuildSeries computes every indicator series the conditions may consult.
// Fails closed with ErrInsufficientData when fewer than cfg.MinBars() bars
// are available.
func BuildSeries(bars []model.Bar, cfg Config) (*Series, error) {
	if len(bars) < cfg.MinBars() {
		return nil, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientData, len(bars), cfg.MinBars())
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	rsi := indicator.RSI(closes, cfg.RSIPeriod)
	field := cfg.PivotField.Extract(bars)

	return &Series{
		Bars:       bars,
		Closes:     closes,
		RSI:        rsi,
		RSIEMA:     indicator.EMA(rsi, cfg.RSIEMAPeriod),
		EMAShort:   indicator.EMA(closes, cfg.ShortEMAPeriod),
		EMALong:    indicator.EMA(closes, cfg.LongEMAPeriod),
		MACDHist:   indicator.MACDHistogram(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		PivotHighs: indicator.PivotHighs(field, cfg.TrendlineLength),
		PivotLows:  indicator.PivotLows(field, cfg.TrendlineLength),
	}, nil
}

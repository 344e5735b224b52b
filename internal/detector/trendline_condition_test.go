package detector

import (
	"math"
	"testing"
	"time"

	"github.com/Allwin048935/trend/internal/indicator"
	"github.com/Allwin048935/trend/internal/model"
)

// lineSeries builds a Series with literal closes and pivot-high marks.
func lineSeries(closes []float64, pivotHighs map[int]float64) *Series {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	marked := make([]float64, len(closes))
	for i := range closes {
		bars[i] = model.Bar{OpenTime: base.Add(time.Duration(i) * time.Hour), Close: closes[i]}
		marked[i] = math.NaN()
	}
	for i, v := range pivotHighs {
		marked[i] = v
	}
	return &Series{Bars: bars, Closes: closes, PivotHighs: marked, PivotLows: nanLike(closes)}
}

func nanLike(in []float64) []float64 {
	out := make([]float64, len(in))
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func TestTrendlineBreak_EnterLongOnResistanceBreak(t *testing.T) {
	// Pivot highs at (2h, 110) and (5h, 105): resistance falls 5/3 per hour.
	// Line value: 100 at 8h, ~98.33 at 9h. Close 99 → 101 crosses above.
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 100, 99, 101, 100}
	s := lineSeries(closes, map[int]float64{2: 110, 5: 105})
	cond := &TrendlineBreak{SlopeMethod: indicator.SlopePivot, Extension: 72 * time.Hour}

	if ok, _ := cond.EnterLong(s, NewState(), 8); ok {
		t.Error("must not fire while close is under the line")
	}
	if ok, _ := cond.EnterLong(s, NewState(), 9); !ok {
		t.Error("expected breakout above the resistance line")
	}
}

func TestTrendlineBreak_NoSegmentsNoSignal(t *testing.T) {
	// A single pivot cannot form a line.
	closes := []float64{100, 100, 100, 105, 100}
	s := lineSeries(closes, map[int]float64{2: 110})
	cond := &TrendlineBreak{SlopeMethod: indicator.SlopePivot, Extension: time.Hour}
	if ok, _ := cond.EnterLong(s, NewState(), 3); ok {
		t.Error("no signal without at least two pivots")
	}
}

func TestTrendlineBreak_ExitLongOnRetainedSupportCross(t *testing.T) {
	closes := []float64{101, 98}
	s := lineSeries(closes, nil)
	st := NewState()
	st.Trendlines[indicator.SupportLine] = []indicator.Segment{{
		AnchorTime:  s.Bars[0].OpenTime,
		AnchorValue: 100,
		Slope:       0,
		ExpiresAt:   s.Bars[0].OpenTime.Add(100 * time.Hour),
	}}

	cond := &TrendlineBreak{SlopeMethod: indicator.SlopePivot, Extension: time.Hour}
	if ok, _ := cond.ExitLong(s, st, 1); !ok {
		t.Error("expected exit when close crosses below a retained support line")
	}
}

func TestTrendlineBreak_IgnoresExpiredRetainedLines(t *testing.T) {
	closes := []float64{101, 98}
	s := lineSeries(closes, nil)
	st := NewState()
	st.Trendlines[indicator.SupportLine] = []indicator.Segment{{
		AnchorTime:  s.Bars[0].OpenTime.Add(-10 * time.Hour),
		AnchorValue: 100,
		ExpiresAt:   s.Bars[0].OpenTime.Add(-time.Hour),
	}}

	cond := &TrendlineBreak{SlopeMethod: indicator.SlopePivot, Extension: time.Hour}
	if ok, _ := cond.ExitLong(s, st, 1); ok {
		t.Error("expired lines must not produce exits")
	}
}

func TestTrendlineBreak_NewSegmentsKind(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 100}
	s := lineSeries(closes, map[int]float64{1: 110, 4: 105})
	cond := &TrendlineBreak{SlopeMethod: indicator.SlopePivot, Extension: time.Hour}

	kind, segs := cond.NewSegments(s, model.EnterLong)
	if kind != indicator.ResistanceLine {
		t.Errorf("EnterLong must retain resistance lines, got %s", kind)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment from 2 pivots, got %d", len(segs))
	}

	kind, segs = cond.NewSegments(s, model.EnterShort)
	if kind != indicator.SupportLine {
		t.Errorf("EnterShort must retain support lines, got %s", kind)
	}
	if len(segs) != 0 {
		t.Errorf("no pivot lows marked: expected no segments, got %d", len(segs))
	}
}

package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/Allwin048935/trend/internal/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRSI_WarmupAndBounds(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 14, 13, 14, 15}
	period := 4

	rsi := RSI(closes, period)
	if rsi == nil {
		t.Fatal("expected non-nil series")
	}
	if len(rsi) != len(closes) {
		t.Fatalf("expected parallel series, got len %d", len(rsi))
	}
	for i := 0; i < period; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Errorf("index %d: expected NaN during warmup, got %.4f", i, rsi[i])
		}
	}
	for i := period; i < len(rsi); i++ {
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Errorf("index %d: RSI %.4f out of [0,100]", i, rsi[i])
		}
	}
}

func TestRSI_AllGainsIs100(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}
	rsi := RSI(closes, 2)
	for i := 2; i < len(rsi); i++ {
		if !almostEqual(rsi[i], 100) {
			t.Errorf("index %d: expected RSI=100 on monotone gains, got %.4f", i, rsi[i])
		}
	}
}

func TestRSI_ShortSeriesFailsClosed(t *testing.T) {
	if got := RSI([]float64{1, 2, 3}, 14); got != nil {
		t.Errorf("expected nil for short series, got %v", got)
	}
	if got := RSI(nil, 14); got != nil {
		t.Errorf("expected nil for empty series, got %v", got)
	}
}

func TestEMA_SeededByFirstValue(t *testing.T) {
	ema := EMA([]float64{1, 2, 3, 4}, 3)
	if ema == nil {
		t.Fatal("expected non-nil series")
	}
	// multiplier = 2/(3+1) = 0.5
	want := []float64{1, 1.5, 2.25, 3.125}
	for i, w := range want {
		if !almostEqual(ema[i], w) {
			t.Errorf("index %d: expected %.4f, got %.4f", i, w, ema[i])
		}
	}
}

func TestEMA_SkipsLeadingNaN(t *testing.T) {
	in := []float64{math.NaN(), math.NaN(), 1, 2, 3}
	ema := EMA(in, 2)
	if ema == nil {
		t.Fatal("expected non-nil series")
	}
	if !math.IsNaN(ema[0]) || !math.IsNaN(ema[1]) {
		t.Error("expected NaN prefix preserved")
	}
	if !almostEqual(ema[2], 1) {
		t.Errorf("expected seed at first valid value, got %.4f", ema[2])
	}
	// multiplier = 2/3
	if !almostEqual(ema[3], 2*2.0/3+1*1.0/3) {
		t.Errorf("unexpected ema[3]=%.6f", ema[3])
	}
}

func TestEMA_ShortSeriesFailsClosed(t *testing.T) {
	if got := EMA([]float64{1, 2}, 3); got != nil {
		t.Errorf("expected nil for short series, got %v", got)
	}
}

func TestMACDHistogram_ConstantSeriesIsZero(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	hist := MACDHistogram(closes, 12, 26, 9)
	if hist == nil {
		t.Fatal("expected non-nil series")
	}
	for i, v := range hist {
		if !almostEqual(v, 0) {
			t.Errorf("index %d: expected 0 histogram on flat closes, got %.6f", i, v)
		}
	}
}

func TestMACDHistogram_ShortSeriesFailsClosed(t *testing.T) {
	closes := make([]float64, 30)
	if got := MACDHistogram(closes, 12, 26, 9); got != nil {
		t.Errorf("expected nil when len < slow+signal, got len %d", len(got))
	}
}

func TestPivotHighs_Determinism(t *testing.T) {
	values := []float64{1, 3, 5, 3, 1}
	marked := PivotHighs(values, 2)
	if marked == nil {
		t.Fatal("expected non-nil series")
	}
	for i, v := range marked {
		if i == 2 {
			if !almostEqual(v, 5) {
				t.Errorf("index 2: expected pivot value 5, got %v", v)
			}
			continue
		}
		if !math.IsNaN(v) {
			t.Errorf("index %d: expected NaN (boundary window incomplete), got %v", i, v)
		}
	}
}

func TestPivotHighs_TieFirstWins(t *testing.T) {
	values := []float64{1, 5, 5, 1, 1}
	marked := PivotHighs(values, 1)
	if math.IsNaN(marked[1]) {
		t.Error("index 1: expected earliest tied extremum to be the pivot")
	}
	if !math.IsNaN(marked[2]) {
		t.Error("index 2: later tied value must not be a pivot")
	}
}

func TestPivotLows(t *testing.T) {
	values := []float64{5, 3, 1, 3, 5}
	marked := PivotLows(values, 2)
	if math.IsNaN(marked[2]) {
		t.Error("index 2: expected pivot low")
	}
}

func TestATR_ConstantRange(t *testing.T) {
	bars := make([]model.Bar, 20)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = model.Bar{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     100, High: 101, Low: 99, Close: 100,
		}
	}
	atr := ATR(bars, 14)
	if atr == nil {
		t.Fatal("expected non-nil series")
	}
	for i := 0; i < 14; i++ {
		if !math.IsNaN(atr[i]) {
			t.Errorf("index %d: expected NaN during warmup", i)
		}
	}
	for i := 14; i < len(atr); i++ {
		if !almostEqual(atr[i], 2) {
			t.Errorf("index %d: expected ATR=2, got %.4f", i, atr[i])
		}
	}
}

func hourlyBars(closes []float64) []model.Bar {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			OpenTime: base.Add(time.Duration(i) * time.Hour),
			Open:     c, High: c + 1, Low: c - 1, Close: c,
		}
	}
	return bars
}

func TestBuildSegments_PivotSlope(t *testing.T) {
	bars := hourlyBars([]float64{100, 100, 100, 100, 100, 100})
	pivots := []PivotPoint{
		{Index: 1, Time: bars[1].OpenTime, Value: 100},
		{Index: 3, Time: bars[3].OpenTime, Value: 110},
	}

	segs := BuildSegments(bars, pivots, SlopePivot, 72*time.Hour)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	seg := segs[0]
	if !almostEqual(seg.Slope, 5) {
		t.Errorf("expected slope 5/hour, got %.4f", seg.Slope)
	}
	if !seg.AnchorTime.Equal(bars[3].OpenTime) {
		t.Error("segment must be anchored at the later pivot")
	}
	if !almostEqual(seg.ValueAt(bars[5].OpenTime), 120) {
		t.Errorf("expected projected value 120, got %.4f", seg.ValueAt(bars[5].OpenTime))
	}
	wantExpiry := bars[5].OpenTime.Add(72 * time.Hour)
	if !seg.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, seg.ExpiresAt)
	}
	if !seg.Active(wantExpiry) || seg.Active(wantExpiry.Add(time.Second)) {
		t.Error("Active must be inclusive of the expiry instant only")
	}
}

func TestBuildSegments_ZeroDeltaTime(t *testing.T) {
	bars := hourlyBars([]float64{100, 100, 100})
	sameTime := bars[1].OpenTime
	pivots := []PivotPoint{
		{Index: 1, Time: sameTime, Value: 100},
		{Index: 1, Time: sameTime, Value: 110},
	}
	segs := BuildSegments(bars, pivots, SlopePivot, time.Hour)
	if len(segs) != 1 || segs[0].Slope != 0 {
		t.Fatalf("expected flat segment on zero time delta, got %+v", segs)
	}
}

func TestBuildSegments_NeedsTwoPivots(t *testing.T) {
	bars := hourlyBars([]float64{100, 100})
	pivots := []PivotPoint{{Index: 0, Time: bars[0].OpenTime, Value: 100}}
	if segs := BuildSegments(bars, pivots, SlopePivot, time.Hour); segs != nil {
		t.Errorf("expected nil with a single pivot, got %v", segs)
	}
}

func TestBuildSegments_LinRegSlope(t *testing.T) {
	// Closes rise exactly 2 per hour: regression slope must be 2.
	closes := []float64{100, 102, 104, 106, 108, 110}
	bars := hourlyBars(closes)
	pivots := []PivotPoint{
		{Index: 0, Time: bars[0].OpenTime, Value: 100},
		{Index: 5, Time: bars[5].OpenTime, Value: 110},
	}
	segs := BuildSegments(bars, pivots, SlopeLinReg, time.Hour)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if !almostEqual(segs[0].Slope, 2) {
		t.Errorf("expected regression slope 2/hour, got %.4f", segs[0].Slope)
	}
}

package indicator

import (
	"math"
	"time"

	"github.com/Allwin048935/trend/internal/model"
)

// LineKind classifies a retained trendline.
type LineKind string

const (
	SupportLine    LineKind = "support"
	ResistanceLine LineKind = "resistance"
)

// SlopeMethod selects the trendline slope estimator.
type SlopeMethod string

const (
	// SlopePivot fits the line through the two pivots directly.
	SlopePivot SlopeMethod = "pivot"
	// SlopeLinReg uses the least-squares slope of the closes between the pivots.
	SlopeLinReg SlopeMethod = "linreg"
	// SlopeATR flattens the pivot slope to zero when the pivot delta is
	// inside the ATR channel width (noise filter).
	SlopeATR SlopeMethod = "atr"
)

const atrFilterPeriod = 14

// Segment represents a trendline value(t) = AnchorValue + Slope*hours(t−AnchorTime),
// valid for querying up to ExpiresAt. Immutable once created.
type Segment struct {
	AnchorTime  time.Time `json:"anchor_time"`
	AnchorValue float64   `json:"anchor_value"`
	Slope       float64   `json:"slope"` // per hour
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// ValueAt evaluates the line at time t.
func (s Segment) ValueAt(t time.Time) float64 {
	return s.AnchorValue + s.Slope*t.Sub(s.AnchorTime).Hours()
}

// Active reports whether the segment may still be queried at time t.
func (s Segment) Active(t time.Time) bool {
	return !t.After(s.ExpiresAt)
}

// BuildSegments constructs trendline segments from consecutive pivot pairs of
// the same kind. Each segment is anchored at the later pivot and expires
// `extension` past the last bar's open time. Returns nil when fewer than two
// pivots exist.
func BuildSegments(bars []model.Bar, pivots []PivotPoint, method SlopeMethod, extension time.Duration) []Segment {
	if len(bars) == 0 || len(pivots) < 2 {
		return nil
	}

	lastBar := bars[len(bars)-1].OpenTime
	segments := make([]Segment, 0, len(pivots)-1)

	for i := 1; i < len(pivots); i++ {
		p1, p2 := pivots[i-1], pivots[i]
		segments = append(segments, Segment{
			AnchorTime:  p2.Time,
			AnchorValue: p2.Value,
			Slope:       segmentSlope(bars, p1, p2, method),
			ExpiresAt:   lastBar.Add(extension),
			CreatedAt:   lastBar,
		})
	}
	return segments
}

func segmentSlope(bars []model.Bar, p1, p2 PivotPoint, method SlopeMethod) float64 {
	hours := p2.Time.Sub(p1.Time).Hours()
	if hours == 0 {
		return 0
	}
	pivotSlope := (p2.Value - p1.Value) / hours

	switch method {
	case SlopeLinReg:
		if s, ok := linRegSlope(bars, p1.Index, p2.Index); ok {
			return s
		}
		return pivotSlope

	case SlopeATR:
		atr := ATR(bars, atrFilterPeriod)
		if atr != nil && p2.Index < len(atr) && !math.IsNaN(atr[p2.Index]) {
			if math.Abs(p2.Value-p1.Value) < atr[p2.Index] {
				return 0
			}
		}
		return pivotSlope

	default:
		return pivotSlope
	}
}

// linRegSlope computes the least-squares slope of closes over [from, to],
// in value units per hour.
func linRegSlope(bars []model.Bar, from, to int) (float64, bool) {
	if from < 0 || to >= len(bars) || to-from < 1 {
		return 0, false
	}

	t0 := bars[from].OpenTime
	n := float64(to - from + 1)
	var sumX, sumY, sumXY, sumXX float64
	for i := from; i <= to; i++ {
		x := bars[i].OpenTime.Sub(t0).Hours()
		y := bars[i].Close
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denom, true
}

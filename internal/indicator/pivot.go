package indicator

import (
	"math"
	"time"

	"github.com/Allwin048935/trend/internal/model"
)

// PivotField selects which bar field pivots are detected on.
type PivotField string

const (
	FieldClose PivotField = "close"
	FieldHigh  PivotField = "high"
	FieldLow   PivotField = "low"
)

// Extract returns the selected field values from a bar sequence.
func (f PivotField) Extract(bars []model.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		switch f {
		case FieldHigh:
			out[i] = b.High
		case FieldLow:
			out[i] = b.Low
		default:
			out[i] = b.Close
		}
	}
	return out
}

// PivotHighs marks pivot highs over a symmetric window of the given length.
// Index i is a pivot high iff values[i] equals the maximum over
// [i-length, i+length] with the window fully present — indices whose window
// would be truncated at a boundary are never pivots. On ties the earliest
// index achieving the extremum wins, so later equal values are not pivots.
// Output is parallel to the input: the pivot value at pivot indices, NaN
// elsewhere. Returns nil if len(values) < 2*length+1.
func PivotHighs(values []float64, length int) []float64 {
	return pivots(values, length, true)
}

// PivotLows marks pivot lows; see PivotHighs for window and tie semantics.
func PivotLows(values []float64, length int) []float64 {
	return pivots(values, length, false)
}

func pivots(values []float64, length int, high bool) []float64 {
	if length <= 0 || len(values) < 2*length+1 {
		return nil
	}

	out := nanSeries(len(values))
	for i := length; i < len(values)-length; i++ {
		v := values[i]
		if math.IsNaN(v) {
			continue
		}
		isPivot := true
		for j := i - length; j <= i+length; j++ {
			if j == i {
				continue
			}
			other := values[j]
			if math.IsNaN(other) {
				isPivot = false
				break
			}
			if high {
				// first-wins: an equal value before i takes the pivot
				if other > v || (other == v && j < i) {
					isPivot = false
					break
				}
			} else {
				if other < v || (other == v && j < i) {
					isPivot = false
					break
				}
			}
		}
		if isPivot {
			out[i] = v
		}
	}
	return out
}

// PivotPoint is a located extremum in a series.
type PivotPoint struct {
	Index int
	Time  time.Time
	Value float64
}

// CollectPivots pairs a pivot-marked series with bar times, returning the
// located pivots in time order.
func CollectPivots(bars []model.Bar, marked []float64) []PivotPoint {
	if len(bars) != len(marked) {
		return nil
	}
	var pts []PivotPoint
	for i, v := range marked {
		if math.IsNaN(v) {
			continue
		}
		pts = append(pts, PivotPoint{Index: i, Time: bars[i].OpenTime, Value: v})
	}
	return pts
}

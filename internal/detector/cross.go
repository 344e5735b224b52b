package detector

import "math"

// crossAbove reports a value crossing above a boundary between two samples:
// trailing sample at or below the boundary, leading sample strictly above.
// The asymmetric comparison avoids duplicate triggers on a flat touch.
func crossAbove(prev, cur, prevBound, curBound float64) bool {
	if math.IsNaN(prev) || math.IsNaN(cur) || math.IsNaN(prevBound) || math.IsNaN(curBound) {
		return false
	}
	return prev <= prevBound && cur > curBound
}

// crossBelow is the mirror of crossAbove.
func crossBelow(prev, cur, prevBound, curBound float64) bool {
	if math.IsNaN(prev) || math.IsNaN(cur) || math.IsNaN(prevBound) || math.IsNaN(curBound) {
		return false
	}
	return prev >= prevBound && cur < curBound
}

// crossAboveLevel is crossAbove against a constant boundary.
func crossAboveLevel(prev, cur, level float64) bool {
	return crossAbove(prev, cur, level, level)
}

// crossBelowLevel is crossBelow against a constant boundary.
func crossBelowLevel(prev, cur, level float64) bool {
	return crossBelow(prev, cur, level, level)
}

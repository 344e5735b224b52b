package detector

import (
	"fmt"
	"time"

	"github.com/Allwin048935/trend/internal/indicator"
	"github.com/Allwin048935/trend/internal/model"
)

// TrendlineBreak trades breakouts through trendlines fit from pivot pairs.
//
// Enter long: close crosses above the most recent resistance line built from
// pivot highs. Enter short: mirror against support from pivot lows. Exits
// trigger when the close crosses back through a retained line of the
// protective kind (support under a long, resistance over a short).
//
// Segments computed for the triggering kind are handed to the detector for
// retention after a successful entry.
type TrendlineBreak struct {
	SlopeMethod indicator.SlopeMethod
	Extension   time.Duration
}

func (c *TrendlineBreak) Name() string { return "trendline" }

func (c *TrendlineBreak) EnterLong(s *Series, _ *State, i int) (bool, string) {
	seg, ok := c.latestSegment(s, indicator.ResistanceLine)
	if !ok {
		return false, ""
	}
	prevLine := seg.ValueAt(s.Bars[i-1].OpenTime)
	curLine := seg.ValueAt(s.Bars[i].OpenTime)
	if crossAbove(s.Closes[i-1], s.Closes[i], prevLine, curLine) {
		return true, fmt.Sprintf("close broke above resistance line (%.4f > %.4f)", s.Closes[i], curLine)
	}
	return false, ""
}

func (c *TrendlineBreak) EnterShort(s *Series, _ *State, i int) (bool, string) {
	seg, ok := c.latestSegment(s, indicator.SupportLine)
	if !ok {
		return false, ""
	}
	prevLine := seg.ValueAt(s.Bars[i-1].OpenTime)
	curLine := seg.ValueAt(s.Bars[i].OpenTime)
	if crossBelow(s.Closes[i-1], s.Closes[i], prevLine, curLine) {
		return true, fmt.Sprintf("close broke below support line (%.4f < %.4f)", s.Closes[i], curLine)
	}
	return false, ""
}

func (c *TrendlineBreak) ExitLong(s *Series, st *State, i int) (bool, string) {
	return c.retainedCross(s, st, i, indicator.SupportLine, false)
}

func (c *TrendlineBreak) ExitShort(s *Series, st *State, i int) (bool, string) {
	return c.retainedCross(s, st, i, indicator.ResistanceLine, true)
}

func (c *TrendlineBreak) retainedCross(s *Series, st *State, i int, kind indicator.LineKind, above bool) (bool, string) {
	at := s.Bars[i].OpenTime
	for _, seg := range st.Trendlines[kind] {
		if !seg.Active(at) {
			continue
		}
		prevLine := seg.ValueAt(s.Bars[i-1].OpenTime)
		curLine := seg.ValueAt(at)
		if above {
			if crossAbove(s.Closes[i-1], s.Closes[i], prevLine, curLine) {
				return true, fmt.Sprintf("close crossed above retained %s line (%.4f)", kind, curLine)
			}
		} else {
			if crossBelow(s.Closes[i-1], s.Closes[i], prevLine, curLine) {
				return true, fmt.Sprintf("close crossed below retained %s line (%.4f)", kind, curLine)
			}
		}
	}
	return false, ""
}

// NewSegments implements SegmentProvider: on an entry, the lines of the
// triggering kind are handed over for retention.
func (c *TrendlineBreak) NewSegments(s *Series, sig model.SignalType) (indicator.LineKind, []indicator.Segment) {
	kind := indicator.ResistanceLine
	marked := s.PivotHighs
	if sig == model.EnterShort {
		kind = indicator.SupportLine
		marked = s.PivotLows
	}
	pivots := indicator.CollectPivots(s.Bars, marked)
	return kind, indicator.BuildSegments(s.Bars, pivots, c.SlopeMethod, c.Extension)
}

func (c *TrendlineBreak) latestSegment(s *Series, kind indicator.LineKind) (indicator.Segment, bool) {
	marked := s.PivotHighs
	if kind == indicator.SupportLine {
		marked = s.PivotLows
	}
	pivots := indicator.CollectPivots(s.Bars, marked)
	segs := indicator.BuildSegments(s.Bars, pivots, c.SlopeMethod, c.Extension)
	if len(segs) == 0 {
		return indicator.Segment{}, false
	}
	return segs[len(segs)-1], true
}

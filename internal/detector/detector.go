package detector

import (
	"log"
	"sort"
	"time"

	"github.com/Allwin048935/trend/internal/indicator"
	"github.com/Allwin048935/trend/internal/model"
)

// Condition evaluates one strategy's entry/exit rules at bar index i.
// Implementations must be pure with respect to the Series and State.
type Condition interface {
	// Name identifies the condition in signal reasons and logs.
	Name() string

	EnterLong(s *Series, st *State, i int) (bool, string)
	EnterShort(s *Series, st *State, i int) (bool, string)
	ExitLong(s *Series, st *State, i int) (bool, string)
	ExitShort(s *Series, st *State, i int) (bool, string)
}

// SegmentProvider is implemented by conditions that produce trendline
// segments to retain after a successful entry signal.
type SegmentProvider interface {
	// NewSegments returns the line kind and segments computed for the
	// entry that just fired.
	NewSegments(s *Series, sig model.SignalType) (indicator.LineKind, []indicator.Segment)
}

// State is the per-instrument detector state. It persists across cycles and
// is mutated only by the Detector.
type State struct {
	// LastSignal mirrors the position state machine: "" = flat.
	LastSignal model.Side

	// Trendlines retained per line kind, newest-anchored first, capped.
	Trendlines map[indicator.LineKind][]indicator.Segment

	lastEmit map[model.SignalType]time.Time
}

// NewState creates an empty per-instrument state.
func NewState() *State {
	return &State{
		Trendlines: make(map[indicator.LineKind][]indicator.Segment),
		lastEmit:   make(map[model.SignalType]time.Time),
	}
}

// ClearSignal resets the last signal type. Called when a position closes
// outside the detector (take-profit, stop-loss, external close).
func (st *State) ClearSignal() {
	st.LastSignal = ""
}

// Detector applies a Condition to bar series under the fixed state machine:
// exits are evaluated before entries, an entry against opposite exposure
// emits the exit first (flip), and a cooldown suppresses re-emitting the
// same signal type inside the window.
type Detector struct {
	cfg  Config
	cond Condition

	// OnSuppressed is an optional hook invoked when the cooldown swallows
	// a signal. Used for metrics.
	OnSuppressed func(symbol string, t model.SignalType)
}

// New creates a Detector with the given configuration and condition set.
func New(cfg Config, cond Condition) *Detector {
	return &Detector{cfg: cfg, cond: cond}
}

// Condition returns the active condition set.
func (d *Detector) Condition() Condition { return d.cond }

// Evaluate runs one detection pass for an instrument. Signals are evaluated
// on the second-to-last closed bar so an in-progress bar is never acted on.
// Returns ErrInsufficientData when the sequence is too short.
func (d *Detector) Evaluate(symbol string, bars []model.Bar, st *State) ([]model.Signal, error) {
	series, err := BuildSeries(bars, d.cfg)
	if err != nil {
		return nil, err
	}

	// Second-to-last closed bar.
	i := len(bars) - 2
	at := bars[i].OpenTime
	price := bars[i].Close

	d.pruneTrendlines(st, at)

	var signals []model.Signal
	emit := func(t model.SignalType, reason string) bool {
		if last, ok := st.lastEmit[t]; ok && at.Sub(last) < d.cfg.Cooldown {
			log.Printf("[detector] %s: %s suppressed by cooldown (%s since last)",
				symbol, t, at.Sub(last))
			if d.OnSuppressed != nil {
				d.OnSuppressed(symbol, t)
			}
			return false
		}
		st.lastEmit[t] = at
		signals = append(signals, model.Signal{
			Symbol:    symbol,
			Type:      t,
			Price:     price,
			Reason:    reason,
			Condition: d.cond.Name(),
			At:        at,
		})
		return true
	}

	// Fixed transition order: exits first, then entries.
	if st.LastSignal == model.Long {
		if ok, reason := d.cond.ExitLong(series, st, i); ok {
			if emit(model.ExitLong, reason) {
				st.LastSignal = ""
			}
		}
	}
	if st.LastSignal == model.Short {
		if ok, reason := d.cond.ExitShort(series, st, i); ok {
			if emit(model.ExitShort, reason) {
				st.LastSignal = ""
			}
		}
	}
	if st.LastSignal != model.Long {
		if ok, reason := d.cond.EnterLong(series, st, i); ok {
			if st.LastSignal == model.Short {
				// Flip: close the short before opening the long.
				if !emit(model.ExitShort, "flip: "+reason) {
					return signals, nil
				}
				st.LastSignal = ""
			}
			if emit(model.EnterLong, reason) {
				st.LastSignal = model.Long
				d.retainSegments(series, st, model.EnterLong)
			}
		}
	}
	if st.LastSignal != model.Short {
		if ok, reason := d.cond.EnterShort(series, st, i); ok {
			if st.LastSignal == model.Long {
				if !emit(model.ExitLong, "flip: "+reason) {
					return signals, nil
				}
				st.LastSignal = ""
			}
			if emit(model.EnterShort, reason) {
				st.LastSignal = model.Short
				d.retainSegments(series, st, model.EnterShort)
			}
		}
	}

	return signals, nil
}

// retainSegments appends newly computed segments of the triggering kind and
// truncates the retained set to the configured cap, most recent anchors kept.
func (d *Detector) retainSegments(series *Series, st *State, sig model.SignalType) {
	provider, ok := d.cond.(SegmentProvider)
	if !ok {
		return
	}
	kind, segs := provider.NewSegments(series, sig)
	if len(segs) == 0 {
		return
	}

	retained := append(st.Trendlines[kind], segs...)
	sort.SliceStable(retained, func(a, b int) bool {
		return retained[a].AnchorTime.After(retained[b].AnchorTime)
	})
	if d.cfg.MaxTrendlines > 0 && len(retained) > d.cfg.MaxTrendlines {
		retained = retained[:d.cfg.MaxTrendlines]
	}
	st.Trendlines[kind] = retained
}

// pruneTrendlines drops retained segments that have expired as of t.
func (d *Detector) pruneTrendlines(st *State, t time.Time) {
	for kind, segs := range st.Trendlines {
		kept := segs[:0]
		for _, seg := range segs {
			if seg.Active(t) {
				kept = append(kept, seg)
			}
		}
		if len(kept) == 0 {
			delete(st.Trendlines, kind)
			continue
		}
		st.Trendlines[kind] = kept
	}
}

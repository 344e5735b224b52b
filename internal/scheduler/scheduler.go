// Package scheduler drives the evaluation loop: every interval it walks the
// active instrument set, fetches bar history, runs the detector, applies the
// resulting signals to the ledger, and checks price triggers on open
// positions. Instruments that keep failing are cooled down and eventually
// evicted by the health tracker.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Allwin048935/trend/internal/detector"
	"github.com/Allwin048935/trend/internal/health"
	"github.com/Allwin048935/trend/internal/ledger"
	"github.com/Allwin048935/trend/internal/logger"
	"github.com/Allwin048935/trend/internal/metrics"
	"github.com/Allwin048935/trend/internal/model"
	"github.com/Allwin048935/trend/internal/notification"
)

// Config holds the scheduler's loop parameters.
type Config struct {
	Symbols     []string
	Interval    time.Duration
	BarInterval string
	BarLimit    int             // bars fetched per instrument per cycle
	Notional    decimal.Decimal // fixed stake per entry
}

// Engine owns the periodic evaluation loop. It is not safe for concurrent
// Run calls; all per-cycle work happens on the Run goroutine.
type Engine struct {
	cfg      Config
	bars     model.BarSource
	quotes   model.QuoteSource
	det      *detector.Detector
	ledger   *ledger.Ledger
	health   *health.Tracker
	notifier notification.Notifier
	metrics  *metrics.Metrics // optional

	// OnCycleDone is an optional hook called after every cycle with its
	// completion time. Used to feed the health endpoint.
	OnCycleDone func(time.Time)

	active   []string
	states   map[string]*detector.State
	cycleSeq uint64
}

// New creates an Engine over the given collaborators. notifier may be nil,
// in which case alerts go to the log only. m may be nil.
func New(cfg Config, bars model.BarSource, quotes model.QuoteSource, det *detector.Detector, led *ledger.Ledger, tracker *health.Tracker, notifier notification.Notifier, m *metrics.Metrics) *Engine {
	if notifier == nil {
		notifier = &notification.LogNotifier{}
	}
	if m != nil {
		det.OnSuppressed = func(string, model.SignalType) {
			m.SignalsSuppressed.Inc()
		}
	}
	states := make(map[string]*detector.State, len(cfg.Symbols))
	active := make([]string, len(cfg.Symbols))
	copy(active, cfg.Symbols)
	for _, s := range active {
		states[s] = detector.NewState()
	}
	return &Engine{
		cfg:      cfg,
		bars:     bars,
		quotes:   quotes,
		det:      det,
		ledger:   led,
		health:   tracker,
		notifier: notifier,
		metrics:  m,
		active:   active,
		states:   states,
	}
}

// ActiveSymbols returns the current active instrument set.
func (e *Engine) ActiveSymbols() []string {
	out := make([]string, len(e.active))
	copy(out, e.active)
	return out
}

// Run executes one cycle immediately, then one per interval until ctx is
// cancelled. The in-flight instrument always finishes before Run returns.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("[scheduler] starting, %d instruments, interval %s", len(e.active), e.cfg.Interval)

	e.runCycle(ctx, time.Now())

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[scheduler] stopped")
			return
		case now := <-ticker.C:
			e.runCycle(ctx, now)
		}
	}
}

// runCycle evaluates every instrument in the set snapshotted at cycle start.
// Evictions decided during the cycle take effect on the next one.
func (e *Engine) runCycle(ctx context.Context, now time.Time) {
	e.cycleSeq++
	ctx = logger.WithCycleID(ctx, logger.GenerateCycleID(e.cycleSeq, now))
	start := time.Now()

	symbols := make([]string, len(e.active))
	copy(symbols, e.active)

	var evicted []string
	for _, symbol := range symbols {
		// Cancellation is honored between instruments, never mid-fill.
		if ctx.Err() != nil {
			return
		}

		if e.health.ShouldSkip(symbol, now) {
			e.incSkipped()
			continue
		}

		if err := e.evaluateInstrument(ctx, symbol, now); err != nil {
			e.health.RecordFailure(symbol, now)
			e.incTransient(symbol)
			log.Printf("[scheduler] %s: %v", symbol, err)

			if e.health.ShouldEvict(symbol) {
				evicted = append(evicted, symbol)
			}
			continue
		}
		e.health.RecordSuccess(symbol)
	}

	for _, symbol := range evicted {
		e.evict(ctx, symbol)
	}

	e.updateGauges(ctx)

	if e.metrics != nil {
		e.metrics.CyclesTotal.Inc()
		e.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}
	if e.OnCycleDone != nil {
		e.OnCycleDone(time.Now())
	}
	slog.Info("cycle complete",
		append([]any{
			slog.Int("instruments", len(symbols)),
			slog.Int("evicted", len(evicted)),
			slog.Duration("took", time.Since(start)),
		}, logger.LogWithCycle(ctx)...)...)
}

// evaluateInstrument runs one detection pass and applies its outcome.
// Any returned error is a transient failure for the health tracker.
func (e *Engine) evaluateInstrument(ctx context.Context, symbol string, now time.Time) error {
	fetchStart := time.Now()
	bars, err := e.bars.GetBars(ctx, symbol, e.cfg.BarInterval, e.cfg.BarLimit)
	if e.metrics != nil {
		e.metrics.BarFetchDur.Observe(time.Since(fetchStart).Seconds())
	}
	if err != nil {
		return err
	}

	st := e.states[symbol]
	signals, err := e.det.Evaluate(symbol, bars, st)
	if err != nil {
		return err
	}

	for _, sig := range signals {
		if err := e.applySignal(ctx, sig, st, now); err != nil {
			return err
		}
	}

	return e.checkTriggers(ctx, symbol, st, now)
}

// applySignal routes one signal to the ledger and notifies the outcome.
// Only a quote miss on an entry is returned as an error; it re-arms the
// detector and counts as a transient failure for the health tracker.
func (e *Engine) applySignal(ctx context.Context, sig model.Signal, st *detector.State, now time.Time) error {
	if e.metrics != nil {
		e.metrics.SignalsTotal.WithLabelValues(string(sig.Type)).Inc()
	}

	if sig.Type.IsEntry() {
		// Entries fill at the live quote, not the signal bar's close.
		quote, err := e.quotes.LastPrice(ctx, sig.Symbol)
		if err != nil {
			st.ClearSignal()
			return fmt.Errorf("quote for %s entry: %w", sig.Symbol, err)
		}
		price := decimal.NewFromFloat(quote)

		fill, err := e.ledger.Open(ctx, sig.Symbol, sig.Type.Side(), e.cfg.Notional, price, sig.Reason, now)
		if err != nil {
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				// The entry never happened; let the detector re-arm.
				st.ClearSignal()
				if e.metrics != nil {
					e.metrics.OpenRefusals.Inc()
				}
				e.notify(ctx, notification.RefusalAlert(sig, err))
				return nil
			}
			log.Printf("[scheduler] open %s failed: %v", sig.Symbol, err)
			return nil
		}
		if e.metrics != nil {
			e.metrics.FillsTotal.WithLabelValues(string(fill.Kind)).Inc()
		}
		e.notify(ctx, notification.OpenAlert(fill))
		return nil
	}

	fill, trade, err := e.ledger.Close(ctx, sig.Symbol, decimal.NewFromFloat(sig.Price), sig.Reason, now)
	if err != nil {
		// No position despite an exit signal happens after a restart
		// without a checkpoint; log and move on.
		log.Printf("[scheduler] close %s failed: %v", sig.Symbol, err)
		return nil
	}
	if e.metrics != nil {
		e.metrics.FillsTotal.WithLabelValues(string(fill.Kind)).Inc()
		e.metrics.ClosedTrades.Inc()
	}
	e.notify(ctx, notification.CloseAlert(trade))
	return nil
}

// checkTriggers marks the open position (if any) to the current quote and
// lets the ledger close it on take-profit or stop-loss.
func (e *Engine) checkTriggers(ctx context.Context, symbol string, st *detector.State, now time.Time) error {
	if _, ok := e.ledger.Position(symbol); !ok {
		return nil
	}

	quote, err := e.quotes.LastPrice(ctx, symbol)
	if err != nil {
		return err
	}

	fill, trade, closed, err := e.ledger.CheckTriggers(ctx, symbol, decimal.NewFromFloat(quote), now)
	if err != nil {
		return err
	}
	if !closed {
		return nil
	}

	// The position is gone; the detector must not hold stale exposure.
	st.ClearSignal()
	if e.metrics != nil {
		e.metrics.FillsTotal.WithLabelValues(string(fill.Kind)).Inc()
		e.metrics.ClosedTrades.Inc()
		e.metrics.TriggerClosures.WithLabelValues(trade.Reason).Inc()
	}
	e.notify(ctx, notification.CloseAlert(trade))
	return nil
}

// evict removes an instrument from the active set after repeated failures.
// Its detector state is dropped; an open position stays in the ledger and
// still settles through triggers if the instrument is re-added.
func (e *Engine) evict(ctx context.Context, symbol string) {
	failures := e.health.Failures(symbol)
	kept := e.active[:0]
	for _, s := range e.active {
		if s != symbol {
			kept = append(kept, s)
		}
	}
	e.active = kept
	delete(e.states, symbol)

	log.Printf("[scheduler] evicted %s after %d consecutive failures", symbol, failures)
	if e.metrics != nil {
		e.metrics.InstrumentsEvicted.Inc()
		e.metrics.ActiveInstruments.Set(float64(len(e.active)))
	}
	e.notify(ctx, notification.EvictionAlert(symbol, failures))
}

// updateGauges refreshes account-level metrics using best-effort quotes.
func (e *Engine) updateGauges(ctx context.Context) {
	if e.metrics == nil {
		return
	}

	positions := e.ledger.OpenPositions()
	quotes := make(map[string]decimal.Decimal, len(positions))
	for _, pos := range positions {
		price, err := e.quotes.LastPrice(ctx, pos.Symbol)
		if err != nil {
			continue
		}
		quotes[pos.Symbol] = decimal.NewFromFloat(price)
	}
	pnl, _ := e.ledger.UnrealizedPnL(quotes)

	balance, _ := e.ledger.Balance().Float64()
	unrealized, _ := pnl.Float64()
	e.metrics.Balance.Set(balance)
	e.metrics.UnrealizedPnL.Set(unrealized)
	e.metrics.OpenPositions.Set(float64(len(positions)))
	e.metrics.ActiveInstruments.Set(float64(len(e.active)))
}

func (e *Engine) notify(ctx context.Context, alert notification.Alert) {
	if err := e.notifier.Send(ctx, alert); err != nil {
		log.Printf("[scheduler] notify failed: %v", err)
		if e.metrics != nil {
			e.metrics.NotifyFailures.Inc()
		}
	}
}

func (e *Engine) incSkipped() {
	if e.metrics != nil {
		e.metrics.InstrumentsSkipped.Inc()
	}
}

func (e *Engine) incTransient(symbol string) {
	if e.metrics != nil {
		e.metrics.TransientFailures.WithLabelValues(symbol).Inc()
	}
}

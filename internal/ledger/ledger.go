// Package ledger owns the simulated account: per-instrument positions, the
// shared balance, and the bounded trade history.
//
// All balance-mutating operations run under a single mutex so no two fills
// can observe the same pre-mutation balance. A post-condition guard compares
// the expected and actual balance after every mutation and logs (never
// raises) on mismatch — detection only, the mutation has already committed.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Allwin048935/trend/internal/model"
)

var (
	// ErrInsufficientBalance means an Open was refused; no state changed.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrNoPosition means a Close targeted an instrument without exposure.
	// Unreachable given the detector state machine; logged as inconsistency.
	ErrNoPosition = errors.New("ledger: no open position")

	// ErrPositionOpen means an Open targeted an instrument that already
	// has exposure. The caller must close (or flip) first.
	ErrPositionOpen = errors.New("ledger: position already open")
)

var hundred = decimal.NewFromInt(100)

// Config holds the ledger's fee and risk parameters.
type Config struct {
	FeeRate       decimal.Decimal // fraction, e.g. 0.001 for 0.1%
	TakeProfitPct decimal.Decimal // close when unrealized P&L ≥ this percent
	StopLossPct   decimal.Decimal // close when unrealized P&L ≤ −this percent

	MaxHistory  int // trade history cap, oldest evicted first
	ExportEvery int // export history every N closed trades (0 = never)

	// Epsilon bounds the balance post-condition check. Decimal math is
	// exact, but the guard stays per the consistency contract.
	Epsilon decimal.Decimal
}

// Ledger applies signals and exogenous triggers to positions and the
// account balance.
type Ledger struct {
	mu          sync.Mutex
	cfg         Config
	balance     decimal.Decimal
	positions   map[string]*model.Position
	history     []model.ClosedTrade
	closedCount int64
	orderSeq    int64

	exporter    model.TradeExporter   // optional
	checkpoints model.CheckpointStore // optional

	// OnExportError and OnCheckpointError are optional hooks fired when a
	// persistence write fails. Set at wiring time, before any fills.
	OnExportError     func(error)
	OnCheckpointError func(error)
}

// New creates a Ledger with the given starting balance.
func New(cfg Config, initialBalance decimal.Decimal) *Ledger {
	if cfg.Epsilon.IsZero() {
		cfg.Epsilon = decimal.New(1, -8)
	}
	return &Ledger{
		cfg:       cfg,
		balance:   initialBalance,
		positions: make(map[string]*model.Position),
		history:   make([]model.ClosedTrade, 0, cfg.MaxHistory),
	}
}

// SetExporter attaches the trade history persistence sink.
func (l *Ledger) SetExporter(e model.TradeExporter) { l.exporter = e }

// SetCheckpointStore attaches the account checkpoint sink.
func (l *Ledger) SetCheckpointStore(c model.CheckpointStore) { l.checkpoints = c }

// Open creates a position of the given side and notional at price.
// Debits notional+fee from the balance. Refuses with ErrInsufficientBalance
// (no state change) when the balance cannot cover the debit.
func (l *Ledger) Open(ctx context.Context, symbol string, side model.Side, notional, price decimal.Decimal, reason string, now time.Time) (model.Fill, error) {
	if price.Sign() <= 0 {
		return model.Fill{}, fmt.Errorf("ledger: open %s: non-positive price %s", symbol, price)
	}

	l.mu.Lock()
	if _, exists := l.positions[symbol]; exists {
		l.mu.Unlock()
		return model.Fill{}, fmt.Errorf("%w: %s", ErrPositionOpen, symbol)
	}

	quantity := notional.Div(price)
	fee := notional.Mul(l.cfg.FeeRate)
	cost := notional.Add(fee)

	if l.balance.LessThan(cost) {
		balance := l.balance
		l.mu.Unlock()
		return model.Fill{}, fmt.Errorf("%w: %s needs %s, have %s",
			ErrInsufficientBalance, symbol, cost, balance)
	}

	before := l.balance
	l.balance = l.balance.Sub(cost)
	l.assertBalance(before.Sub(cost), "open "+symbol)

	l.positions[symbol] = &model.Position{
		Symbol:     symbol,
		Side:       side,
		EntryPrice: price,
		Quantity:   quantity,
		Notional:   notional,
		EntryFee:   fee,
		OpenedAt:   now,
	}

	l.orderSeq++
	fill := model.Fill{
		OrderID:       fmt.Sprintf("SIM-%d", l.orderSeq),
		Kind:          model.FillOpen,
		Symbol:        symbol,
		Side:          side,
		Price:         price,
		Quantity:      quantity,
		Fee:           fee,
		BalanceBefore: before,
		BalanceAfter:  l.balance,
		Reason:        reason,
		FilledAt:      now,
	}
	l.mu.Unlock()

	log.Printf("[ledger] OPEN %s %s qty=%s @ %s fee=%s balance=%s reason=%s",
		side, symbol, quantity, price, fee, fill.BalanceAfter, reason)

	l.checkpoint(ctx)
	return fill, nil
}

// Close settles the position at exitPrice, credits net proceeds, appends a
// ClosedTrade, and deletes the position. Fees are computed on the realized
// exit leg for both sides.
func (l *Ledger) Close(ctx context.Context, symbol string, exitPrice decimal.Decimal, reason string, now time.Time) (model.Fill, model.ClosedTrade, error) {
	l.mu.Lock()
	fill, trade, err := l.closeLocked(symbol, exitPrice, reason, now)
	var export []model.ClosedTrade
	if err == nil && l.cfg.ExportEvery > 0 && l.closedCount%int64(l.cfg.ExportEvery) == 0 {
		export = l.historySnapshotLocked()
	}
	l.mu.Unlock()

	if err != nil {
		return model.Fill{}, model.ClosedTrade{}, err
	}

	log.Printf("[ledger] CLOSE %s %s @ %s profit=%s proceeds=%s balance=%s reason=%s",
		trade.Side, symbol, exitPrice, trade.NetProfit, trade.NetProceeds, trade.BalanceAfter, reason)

	if export != nil {
		l.export(export)
	}
	l.checkpoint(ctx)
	return fill, trade, nil
}

func (l *Ledger) closeLocked(symbol string, exitPrice decimal.Decimal, reason string, now time.Time) (model.Fill, model.ClosedTrade, error) {
	pos, ok := l.positions[symbol]
	if !ok {
		return model.Fill{}, model.ClosedTrade{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}

	exitLeg := pos.Quantity.Mul(exitPrice)
	exitFee := exitLeg.Mul(l.cfg.FeeRate)
	pnl := pos.UnrealizedPnL(exitPrice)
	netProfit := pnl.Sub(pos.EntryFee).Sub(exitFee)

	// Net proceeds credit the committed notional plus directional P&L minus
	// the exit fee; for a long this equals quantity*exit − exitFee.
	netProceeds := pos.Notional.Add(pnl).Sub(exitFee)

	before := l.balance
	l.balance = l.balance.Add(netProceeds)
	l.assertBalance(before.Add(netProceeds), "close "+symbol)

	trade := model.ClosedTrade{
		Symbol:        symbol,
		Side:          pos.Side,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     exitPrice,
		Quantity:      pos.Quantity,
		EntryFee:      pos.EntryFee,
		ExitFee:       exitFee,
		NetProfit:     netProfit,
		NetProceeds:   netProceeds,
		BalanceBefore: before,
		BalanceAfter:  l.balance,
		Reason:        reason,
		ClosedAt:      now,
	}

	l.history = append(l.history, trade)
	if l.cfg.MaxHistory > 0 && len(l.history) > l.cfg.MaxHistory {
		l.history = l.history[1:]
	}
	l.closedCount++
	delete(l.positions, symbol)

	l.orderSeq++
	fill := model.Fill{
		OrderID:       fmt.Sprintf("SIM-%d", l.orderSeq),
		Kind:          model.FillClose,
		Symbol:        symbol,
		Side:          trade.Side,
		Price:         exitPrice,
		Quantity:      trade.Quantity,
		Fee:           exitFee,
		BalanceBefore: before,
		BalanceAfter:  l.balance,
		Reason:        reason,
		FilledAt:      now,
	}
	return fill, trade, nil
}

// CheckTriggers evaluates the position's unrealized percentage P&L against
// the configured take-profit and stop-loss thresholds, closing the position
// when either trips. Returns ok=false when nothing tripped.
func (l *Ledger) CheckTriggers(ctx context.Context, symbol string, price decimal.Decimal, now time.Time) (model.Fill, model.ClosedTrade, bool, error) {
	l.mu.Lock()
	pos, exists := l.positions[symbol]
	if !exists {
		l.mu.Unlock()
		return model.Fill{}, model.ClosedTrade{}, false, nil
	}

	pct := pos.UnrealizedPnLPercent(price)
	reason := ""
	switch {
	case pct.GreaterThanOrEqual(l.cfg.TakeProfitPct):
		reason = "target"
	case pct.LessThanOrEqual(l.cfg.StopLossPct.Neg()):
		reason = "stop-loss"
	default:
		l.mu.Unlock()
		return model.Fill{}, model.ClosedTrade{}, false, nil
	}

	fill, trade, err := l.closeLocked(symbol, price, reason, now)
	var export []model.ClosedTrade
	if err == nil && l.cfg.ExportEvery > 0 && l.closedCount%int64(l.cfg.ExportEvery) == 0 {
		export = l.historySnapshotLocked()
	}
	l.mu.Unlock()

	if err != nil {
		return model.Fill{}, model.ClosedTrade{}, false, err
	}

	log.Printf("[ledger] TRIGGER %s %s pnl=%s%% reason=%s", trade.Side, symbol, pct.StringFixed(2), reason)

	if export != nil {
		l.export(export)
	}
	l.checkpoint(ctx)
	return fill, trade, true, nil
}

// UnrealizedPnL sums mark-to-market P&L across open positions using the
// given quotes. Instruments without a quote are skipped and logged, not
// treated as zero. The percent is relative to the committed notional.
func (l *Ledger) UnrealizedPnL(quotes map[string]decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	notional := decimal.Zero
	for symbol, pos := range l.positions {
		price, ok := quotes[symbol]
		if !ok {
			log.Printf("[ledger] no quote for %s, skipping in unrealized P&L", symbol)
			continue
		}
		total = total.Add(pos.UnrealizedPnL(price))
		notional = notional.Add(pos.Notional)
	}

	pct := decimal.Zero
	if notional.Sign() > 0 {
		pct = total.Div(notional).Mul(hundred)
	}
	return total, pct
}

// Balance returns the current account balance.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Position returns the live position for symbol, if any.
func (l *Ledger) Position(symbol string) (model.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// OpenPositions returns a snapshot of all live positions.
func (l *Ledger) OpenPositions() []model.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	return out
}

// History returns a snapshot of the bounded trade history, oldest first.
func (l *Ledger) History() []model.ClosedTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.historySnapshotLocked()
}

// ClosedCount returns the total number of trades closed since start.
func (l *Ledger) ClosedCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closedCount
}

func (l *Ledger) historySnapshotLocked() []model.ClosedTrade {
	cp := make([]model.ClosedTrade, len(l.history))
	copy(cp, l.history)
	return cp
}

// assertBalance is the post-mutation consistency guard. Caller holds the lock.
func (l *Ledger) assertBalance(expected decimal.Decimal, op string) {
	diff := l.balance.Sub(expected).Abs()
	if diff.GreaterThan(l.cfg.Epsilon) {
		log.Printf("[ledger] BALANCE MISMATCH after %s: expected %s, have %s (diff %s)",
			op, expected, l.balance, diff)
	}
}

func (l *Ledger) export(trades []model.ClosedTrade) {
	if l.exporter == nil {
		return
	}
	if err := l.exporter.ExportTrades(trades); err != nil {
		log.Printf("[ledger] trade export failed: %v", err)
		if l.OnExportError != nil {
			l.OnExportError(err)
		}
	}
}

// Snapshot is the JSON checkpoint written after each fill.
type Snapshot struct {
	Balance     decimal.Decimal  `json:"balance"`
	Positions   []model.Position `json:"positions"`
	ClosedCount int64            `json:"closed_count"`
	TakenAt     time.Time        `json:"taken_at"`
}

// RestoreSnapshot replaces the balance, open positions, and closed-trade
// count from a checkpoint written by an earlier run. Trade history is not
// checkpointed; it restarts empty and the journal keeps the durable record.
func (l *Ledger) RestoreSnapshot(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("ledger: restore checkpoint: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance = snap.Balance
	l.closedCount = snap.ClosedCount
	l.positions = make(map[string]*model.Position, len(snap.Positions))
	for i := range snap.Positions {
		pos := snap.Positions[i]
		l.positions[pos.Symbol] = &pos
	}

	log.Printf("[ledger] restored checkpoint from %s: balance=%s positions=%d closed=%d",
		snap.TakenAt.Format(time.RFC3339), l.balance, len(l.positions), l.closedCount)
	return nil
}

func (l *Ledger) checkpoint(ctx context.Context) {
	if l.checkpoints == nil {
		return
	}

	l.mu.Lock()
	snap := Snapshot{
		Balance:     l.balance,
		ClosedCount: l.closedCount,
		TakenAt:     time.Now().UTC(),
		Positions:   make([]model.Position, 0, len(l.positions)),
	}
	for _, pos := range l.positions {
		snap.Positions = append(snap.Positions, *pos)
	}
	l.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[ledger] checkpoint marshal failed: %v", err)
		if l.OnCheckpointError != nil {
			l.OnCheckpointError(err)
		}
		return
	}
	if err := l.checkpoints.SaveCheckpoint(ctx, data); err != nil {
		log.Printf("[ledger] checkpoint write failed: %v", err)
		if l.OnCheckpointError != nil {
			l.OnCheckpointError(err)
		}
	}
}

package model

import "context"

// ── Collaborator Port Interfaces ──
// These interfaces decouple the engine from concrete exchange, persistence,
// and checkpoint implementations. Each implementation satisfies one or more
// of these interfaces.

// BarSource supplies ordered OHLCV bar sequences for an instrument.
// Failures and short results are transient: the caller records them with the
// health tracker and retries on a later cycle.
type BarSource interface {
	// GetBars returns up to limit bars at the given granularity,
	// oldest first, strictly increasing OpenTime.
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]Bar, error)
}

// QuoteSource supplies the last traded price for an instrument.
type QuoteSource interface {
	// LastPrice returns the most recent trade price.
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// TradeExporter persists trade history snapshots (PersistenceSink).
type TradeExporter interface {
	// ExportTrades writes a snapshot of closed trades.
	ExportTrades(trades []ClosedTrade) error

	// Close releases underlying resources.
	Close() error
}

// CheckpointStore persists account snapshots as raw JSON.
// Using []byte avoids a store→ledger import cycle.
type CheckpointStore interface {
	// SaveCheckpoint persists a JSON-encoded account snapshot.
	SaveCheckpoint(ctx context.Context, data []byte) error

	// ReadLatestCheckpoint loads the most recent snapshot as raw JSON.
	// Returns nil, nil if no checkpoint exists.
	ReadLatestCheckpoint(ctx context.Context) ([]byte, error)
}

// Package sqlite persists closed trades to a SQLite journal for analysis
// and audit. It is the engine's persistence sink: trade history snapshots
// are exported on a fixed cadence and at shutdown.
package sqlite

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Allwin048935/trend/internal/model"
)

// Journal persists closed trades to SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS closed_trades (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol         TEXT NOT NULL,
		side           TEXT NOT NULL,
		entry_price    TEXT NOT NULL,
		exit_price     TEXT NOT NULL,
		quantity       TEXT NOT NULL,
		entry_fee      TEXT NOT NULL,
		exit_fee       TEXT NOT NULL,
		net_profit     TEXT NOT NULL,
		net_proceeds   TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after  TEXT NOT NULL,
		reason         TEXT,
		closed_at      DATETIME NOT NULL,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, side, closed_at, balance_after)
	);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_symbol ON closed_trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_closed_at ON closed_trades(closed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// ExportTrades upserts a trade history snapshot. Snapshots overlap between
// exports; the unique index makes re-exported rows no-ops.
func (j *Journal) ExportTrades(trades []model.ClosedTrade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO closed_trades
		 (symbol, side, entry_price, exit_price, quantity, entry_fee, exit_fee,
		  net_profit, net_proceeds, balance_before, balance_after, reason, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.Exec(
			t.Symbol,
			string(t.Side),
			t.EntryPrice.String(),
			t.ExitPrice.String(),
			t.Quantity.String(),
			t.EntryFee.String(),
			t.ExitFee.String(),
			t.NetProfit.String(),
			t.NetProceeds.String(),
			t.BalanceBefore.String(),
			t.BalanceAfter.String(),
			t.Reason,
			t.ClosedAt.UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// TradeRecord represents a row from the closed_trades table.
type TradeRecord struct {
	ID         int64  `json:"id"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	EntryPrice string `json:"entry_price"`
	ExitPrice  string `json:"exit_price"`
	Quantity   string `json:"quantity"`
	NetProfit  string `json:"net_profit"`
	Reason     string `json:"reason"`
	ClosedAt   string `json:"closed_at"`
}

// GetTrades returns the last N closed trades, newest first.
func (j *Journal) GetTrades(limit int) ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, symbol, side, entry_price, exit_price, quantity, net_profit, reason, closed_at
		 FROM closed_trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice,
			&t.Quantity, &t.NetProfit, &t.Reason, &t.ClosedAt); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DB exposes the underlying handle for health probes.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

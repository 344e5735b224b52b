package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FillKind distinguishes ledger-level actions.
type FillKind string

const (
	FillOpen  FillKind = "OPEN"
	FillClose FillKind = "CLOSE"
)

// Fill records a ledger-level Open or Close action and its monetary effect.
type Fill struct {
	OrderID       string          `json:"order_id"`
	Kind          FillKind        `json:"kind"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Fee           decimal.Decimal `json:"fee"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        string          `json:"reason"`
	FilledAt      time.Time       `json:"filled_at"`
}

// ClosedTrade is the record appended to the trade history when a position
// closes. Invariant: BalanceAfter == BalanceBefore + NetProceeds.
type ClosedTrade struct {
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	EntryFee      decimal.Decimal `json:"entry_fee"`
	ExitFee       decimal.Decimal `json:"exit_fee"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	NetProceeds   decimal.Decimal `json:"net_proceeds"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        string          `json:"reason"`
	ClosedAt      time.Time       `json:"closed_at"`
}

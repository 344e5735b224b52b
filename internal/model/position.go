package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents the single live position for an instrument.
// At most one Position exists per symbol; it is created only by an Open
// fill and destroyed only by a Close fill.
type Position struct {
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Notional   decimal.Decimal `json:"notional_usdt"` // committed size before fees
	EntryFee   decimal.Decimal `json:"entry_fee"`
	OpenedAt   time.Time       `json:"opened_at"`
}

// UnrealizedPnL computes mark-to-market P&L at the given price.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if p.Side == Long {
		return price.Sub(p.EntryPrice).Mul(p.Quantity)
	}
	return p.EntryPrice.Sub(price).Mul(p.Quantity)
}

// UnrealizedPnLPercent computes P&L as a percentage of the committed notional.
func (p *Position) UnrealizedPnLPercent(price decimal.Decimal) decimal.Decimal {
	if p.Notional.IsZero() {
		return decimal.Zero
	}
	return p.UnrealizedPnL(price).Div(p.Notional).Mul(decimal.NewFromInt(100))
}

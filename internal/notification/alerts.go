package notification

import (
	"fmt"

	"github.com/Allwin048935/trend/internal/model"
)

// OpenAlert formats an Open fill: side, size, fees, balance before/after.
func OpenAlert(fill model.Fill) Alert {
	return Alert{
		Level:  AlertInfo,
		Symbol: fill.Symbol,
		Title:  fmt.Sprintf("OPEN %s %s", fill.Side, fill.Symbol),
		Message: fmt.Sprintf(
			"price: %s\nqty: %s\nfee: %s\nbalance: %s → %s\nreason: %s",
			fill.Price, fill.Quantity, fill.Fee,
			fill.BalanceBefore.StringFixed(4), fill.BalanceAfter.StringFixed(4),
			fill.Reason),
	}
}

// CloseAlert formats a ClosedTrade: entry/exit, fees, net profit, balance.
func CloseAlert(trade model.ClosedTrade) Alert {
	level := AlertInfo
	if trade.NetProfit.Sign() < 0 {
		level = AlertWarning
	}
	return Alert{
		Level:  level,
		Symbol: trade.Symbol,
		Title:  fmt.Sprintf("CLOSE %s %s", trade.Side, trade.Symbol),
		Message: fmt.Sprintf(
			"entry: %s exit: %s\nqty: %s\nfees: %s + %s\nnet profit: %s\nbalance: %s → %s\nreason: %s",
			trade.EntryPrice, trade.ExitPrice, trade.Quantity,
			trade.EntryFee, trade.ExitFee,
			trade.NetProfit.StringFixed(4),
			trade.BalanceBefore.StringFixed(4), trade.BalanceAfter.StringFixed(4),
			trade.Reason),
	}
}

// RefusalAlert formats an Open refused for insufficient balance.
func RefusalAlert(signal model.Signal, err error) Alert {
	return Alert{
		Level:   AlertWarning,
		Symbol:  signal.Symbol,
		Title:   fmt.Sprintf("REFUSED %s %s", signal.Type, signal.Symbol),
		Message: err.Error(),
	}
}

// EvictionAlert formats an instrument eviction after repeated failures.
func EvictionAlert(symbol string, failures int) Alert {
	return Alert{
		Level:   AlertCritical,
		Symbol:  symbol,
		Title:   fmt.Sprintf("EVICTED %s", symbol),
		Message: fmt.Sprintf("removed from the active set after %d consecutive failures", failures),
	}
}

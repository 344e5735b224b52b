package detector

import (
	"fmt"
	"strings"
)

// RSILevel enters on RSI crossing configured levels and exits on RSI
// crossing its own EMA.
//
// Enter long: RSI crosses above BuyLevel from below.
// Enter short: RSI crosses below SellLevel from above.
// Exit long: RSI crosses below RSI-EMA; exit short: mirror.
type RSILevel struct {
	BuyLevel  float64
	SellLevel float64
}

func (c *RSILevel) Name() string { return "rsi" }

func (c *RSILevel) EnterLong(s *Series, _ *State, i int) (bool, string) {
	if crossAboveLevel(s.RSI[i-1], s.RSI[i], c.BuyLevel) {
		return true, fmt.Sprintf("RSI crossed above %.1f (%.2f → %.2f)", c.BuyLevel, s.RSI[i-1], s.RSI[i])
	}
	return false, ""
}

func (c *RSILevel) EnterShort(s *Series, _ *State, i int) (bool, string) {
	if crossBelowLevel(s.RSI[i-1], s.RSI[i], c.SellLevel) {
		return true, fmt.Sprintf("RSI crossed below %.1f (%.2f → %.2f)", c.SellLevel, s.RSI[i-1], s.RSI[i])
	}
	return false, ""
}

func (c *RSILevel) ExitLong(s *Series, _ *State, i int) (bool, string) {
	if crossBelow(s.RSI[i-1], s.RSI[i], s.RSIEMA[i-1], s.RSIEMA[i]) {
		return true, "RSI crossed below its EMA"
	}
	return false, ""
}

func (c *RSILevel) ExitShort(s *Series, _ *State, i int) (bool, string) {
	if crossAbove(s.RSI[i-1], s.RSI[i], s.RSIEMA[i-1], s.RSIEMA[i]) {
		return true, "RSI crossed above its EMA"
	}
	return false, ""
}

// RSICross trades RSI crossing its EMA in both directions.
type RSICross struct{}

func (c *RSICross) Name() string { return "rsi_cross" }

func (c *RSICross) EnterLong(s *Series, _ *State, i int) (bool, string) {
	if crossAbove(s.RSI[i-1], s.RSI[i], s.RSIEMA[i-1], s.RSIEMA[i]) {
		return true, "RSI crossed above its EMA"
	}
	return false, ""
}

func (c *RSICross) EnterShort(s *Series, _ *State, i int) (bool, string) {
	if crossBelow(s.RSI[i-1], s.RSI[i], s.RSIEMA[i-1], s.RSIEMA[i]) {
		return true, "RSI crossed below its EMA"
	}
	return false, ""
}

func (c *RSICross) ExitLong(s *Series, st *State, i int) (bool, string) {
	return c.EnterShort(s, st, i)
}

func (c *RSICross) ExitShort(s *Series, st *State, i int) (bool, string) {
	return c.EnterLong(s, st, i)
}

// EMACross trades the short EMA crossing the long EMA.
type EMACross struct{}

func (c *EMACross) Name() string { return "ema_cross" }

func (c *EMACross) EnterLong(s *Series, _ *State, i int) (bool, string) {
	if crossAbove(s.EMAShort[i-1], s.EMAShort[i], s.EMALong[i-1], s.EMALong[i]) {
		return true, "short EMA crossed above long EMA"
	}
	return false, ""
}

func (c *EMACross) EnterShort(s *Series, _ *State, i int) (bool, string) {
	if crossBelow(s.EMAShort[i-1], s.EMAShort[i], s.EMALong[i-1], s.EMALong[i]) {
		return true, "short EMA crossed below long EMA"
	}
	return false, ""
}

func (c *EMACross) ExitLong(s *Series, st *State, i int) (bool, string) {
	return c.EnterShort(s, st, i)
}

func (c *EMACross) ExitShort(s *Series, st *State, i int) (bool, string) {
	return c.EnterLong(s, st, i)
}

// MACDFlip trades the MACD histogram crossing zero.
type MACDFlip struct{}

func (c *MACDFlip) Name() string { return "macd" }

func (c *MACDFlip) EnterLong(s *Series, _ *State, i int) (bool, string) {
	if crossAboveLevel(s.MACDHist[i-1], s.MACDHist[i], 0) {
		return true, "MACD histogram turned positive"
	}
	return false, ""
}

func (c *MACDFlip) EnterShort(s *Series, _ *State, i int) (bool, string) {
	if crossBelowLevel(s.MACDHist[i-1], s.MACDHist[i], 0) {
		return true, "MACD histogram turned negative"
	}
	return false, ""
}

func (c *MACDFlip) ExitLong(s *Series, st *State, i int) (bool, string) {
	return c.EnterShort(s, st, i)
}

func (c *MACDFlip) ExitShort(s *Series, st *State, i int) (bool, string) {
	return c.EnterLong(s, st, i)
}

// Combined ORs a set of conditions: the first child to fire wins, with its
// name prefixed to the reason.
type Combined struct {
	Conditions []Condition
}

func (c *Combined) Name() string {
	names := make([]string, len(c.Conditions))
	for i, cond := range c.Conditions {
		names[i] = cond.Name()
	}
	return "combined(" + strings.Join(names, ",") + ")"
}

func (c *Combined) EnterLong(s *Series, st *State, i int) (bool, string) {
	return c.any(s, st, i, Condition.EnterLong)
}

func (c *Combined) EnterShort(s *Series, st *State, i int) (bool, string) {
	return c.any(s, st, i, Condition.EnterShort)
}

func (c *Combined) ExitLong(s *Series, st *State, i int) (bool, string) {
	return c.any(s, st, i, Condition.ExitLong)
}

func (c *Combined) ExitShort(s *Series, st *State, i int) (bool, string) {
	return c.any(s, st, i, Condition.ExitShort)
}

func (c *Combined) any(s *Series, st *State, i int, eval func(Condition, *Series, *State, int) (bool, string)) (bool, string) {
	for _, cond := range c.Conditions {
		if ok, reason := eval(cond, s, st, i); ok {
			return true, cond.Name() + ": " + reason
		}
	}
	return false, ""
}

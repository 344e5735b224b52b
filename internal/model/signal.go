package model

import "time"

// Side is the direction of exposure.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// SignalType is a typed crossover/breakout event emitted by the detector.
type SignalType string

const (
	EnterLong  SignalType = "ENTER_LONG"
	EnterShort SignalType = "ENTER_SHORT"
	ExitLong   SignalType = "EXIT_LONG"
	ExitShort  SignalType = "EXIT_SHORT"
)

// IsEntry reports whether the signal opens exposure.
func (t SignalType) IsEntry() bool {
	return t == EnterLong || t == EnterShort
}

// Side returns the exposure side the signal refers to.
func (t SignalType) Side() Side {
	if t == EnterLong || t == ExitLong {
		return Long
	}
	return Short
}

// Signal represents a trading signal for one instrument.
type Signal struct {
	Symbol    string     `json:"symbol"`
	Type      SignalType `json:"type"`
	Price     float64    `json:"price"` // close of the bar that triggered
	Reason    string     `json:"reason"`
	Condition string     `json:"condition"` // name of the condition that fired
	At        time.Time  `json:"at"`        // open time of the triggering bar
}

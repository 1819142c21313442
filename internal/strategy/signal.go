package strategy

import (
	"time"

	"strategy-lab/internal/indicators"
)

// Action is the direction of a signal.
type Action string

const (
	ActionEnterLong Action = "ENTER_LONG"
	ActionExitLong  Action = "EXIT_LONG"
)

// Reason explains why a position was closed.
type Reason string

const (
	ReasonFilter    Reason = "FILTER"
	ReasonStopLoss  Reason = "STOP_LOSS"
	ReasonEndOfData Reason = "END_OF_DATA"
)

// ExitInfo is attached to EXIT_LONG signals only.
type ExitInfo struct {
	EntryPrice float64 `json:"entry_price"`
	Profit     float64 `json:"profit"`
	ProfitPct  float64 `json:"profit_pct"`
}

// Signal is one entry or exit decision.
type Signal struct {
	Action     Action               `json:"action"`
	Price      float64              `json:"price"`
	Time       time.Time            `json:"time"`
	Reason     Reason               `json:"reason,omitempty"`
	Stop       float64              `json:"stop,omitempty"`
	Exit       *ExitInfo            `json:"exit,omitempty"`
	Indicators *indicators.Snapshot `json:"indicators,omitempty"`
}

// IsEntry reports whether s opens a position.
func (s Signal) IsEntry() bool {
	return s.Action == ActionEnterLong
}

func exitSignal(price, entry float64, ts time.Time, reason Reason) Signal {
	pct := 0.0
	if entry != 0 {
		pct = (price/entry - 1) * 100
	}
	return Signal{
		Action: ActionExitLong,
		Price:  price,
		Time:   ts,
		Reason: reason,
		Exit: &ExitInfo{
			EntryPrice: entry,
			Profit:     price - entry,
			ProfitPct:  pct,
		},
	}
}

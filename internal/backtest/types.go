package backtest

import "time"

// Direction of a trade. Only long positions are simulated.
type Direction string

const DirectionLong Direction = "LONG"

// SizingMode selects how entry quantity is derived.
type SizingMode string

const (
	SizePercentOfEquity SizingMode = "percent"
	SizeFixedUnits      SizingMode = "fixed"
)

// SizingPolicy decides how many units an entry buys.
type SizingPolicy struct {
	Mode      SizingMode `json:"mode"`
	EquityPct float64    `json:"equity_pct"`
	Units     int64      `json:"units"`
	// FallbackUnits is bought when percent sizing rounds down to zero.
	// Zero disables the fallback.
	FallbackUnits int64 `json:"fallback_units"`
}

// DefaultSizing commits the whole balance to each entry.
func DefaultSizing() SizingPolicy {
	return SizingPolicy{Mode: SizePercentOfEquity, EquityPct: 100}
}

// Options configures one simulation.
type Options struct {
	InitialBalance float64      `json:"initial_balance"`
	CommissionPct  float64      `json:"commission_pct"`
	Sizing         SizingPolicy `json:"sizing"`
}

// DefaultOptions is 100k starting cash, 0.05% commission per leg, full-equity sizing.
func DefaultOptions() Options {
	return Options{
		InitialBalance: 100000,
		CommissionPct:  0.05,
		Sizing:         DefaultSizing(),
	}
}

// Exit holds the closing leg of a trade.
type Exit struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// Trade is one round trip. Exit is nil while the position is open.
type Trade struct {
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	Exit       *Exit     `json:"exit,omitempty"`
	Quantity   int64     `json:"quantity"`
	Direction  Direction `json:"direction"`
	Profit     float64   `json:"profit"`
	ProfitPct  float64   `json:"profit_pct"`
}

// Closed reports whether the trade has an exit leg.
func (t Trade) Closed() bool {
	return t.Exit != nil
}

// Result summarizes a simulation.
type Result struct {
	TotalTrades    int       `json:"total_trades"`
	WinningTrades  int       `json:"winning_trades"`
	LosingTrades   int       `json:"losing_trades"`
	TotalProfit    float64   `json:"total_profit"`
	TotalProfitPct float64   `json:"total_profit_pct"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	Ratio          float64   `json:"sharpe_ratio"`
	Trades         []Trade   `json:"trades"`
	EquityCurve    []float64 `json:"equity_curve"`
	FinalBalance   float64   `json:"final_balance"`
}

// WinRate returns winning trades as a percent of all trades, 0 without trades.
func (r Result) WinRate() float64 {
	if r.TotalTrades == 0 {
		return 0
	}
	return float64(r.WinningTrades) / float64(r.TotalTrades) * 100
}

package live

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"strategy-lab/internal/order"
	"strategy-lab/internal/strategy"
)

const (
	// DefaultWindow is the number of bars kept for evaluation.
	DefaultWindow = 500
	// DefaultPollInterval is how often new bars are requested.
	DefaultPollInterval = time.Minute

	maxLogs        = 1000
	maxChartPoints = 500
)

var (
	// ErrNotRunning is returned for keys without a trader.
	ErrNotRunning = errors.New("trader not running")
	// ErrInvalidRequest is returned for incomplete start requests.
	ErrInvalidRequest = errors.New("invalid trader request")
)

// Key identifies a trader by instrument and account.
func Key(symbol, account string) string {
	return strings.ToUpper(symbol) + ":" + account
}

// StartRequest describes a trader to launch.
type StartRequest struct {
	Symbol   string                `json:"symbol"`
	Account  string                `json:"account"`
	Interval string                `json:"interval"`
	Params   strategy.ParameterSet `json:"params"`
}

// LogEntry is one line of a trader's activity log.
type LogEntry struct {
	Time    time.Time `json:"timestamp"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// SignalPoint marks a forwarded signal on the chart.
type SignalPoint struct {
	Time   time.Time       `json:"time"`
	Action strategy.Action `json:"action"`
	Price  float64         `json:"price"`
	Reason strategy.Reason `json:"reason"`
}

// EquityPoint is the sink-reported cash after a fill.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Chart is the data needed to draw a trader's recent activity.
type Chart struct {
	Prices     []PricePoint     `json:"price_history"`
	Signals    []SignalPoint    `json:"signals_history"`
	Equity     []EquityPoint    `json:"equity_history"`
	Position   float64          `json:"current_position"`
	LastSignal *strategy.Signal `json:"last_signal"`
	Bars       int              `json:"candles_count"`
}

// PricePoint is one bar on the chart.
type PricePoint struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Status summarizes a trader.
type Status struct {
	Key        string                `json:"key"`
	Symbol     string                `json:"symbol"`
	Account    string                `json:"account"`
	Interval   string                `json:"interval"`
	Running    bool                  `json:"is_running"`
	StartedAt  time.Time             `json:"started_at"`
	Position   float64               `json:"position"`
	Bars       int                   `json:"candles_count"`
	LastBar    time.Time             `json:"last_bar"`
	LastSignal *strategy.Signal      `json:"last_signal"`
	Params     strategy.ParameterSet `json:"params"`
}

// SignalEvent is published for every forwarded signal.
type SignalEvent struct {
	Key     string          `json:"key"`
	Symbol  string          `json:"symbol"`
	Account string          `json:"account"`
	Signal  strategy.Signal `json:"signal"`
	Fill    *order.Fill     `json:"fill,omitempty"`
}

// LogEvent is published for every log line.
type LogEvent struct {
	Key string `json:"key"`
	LogEntry
}

// StateEvent is published when the number of running traders changes.
type StateEvent struct {
	Running int `json:"running"`
}

func (r StartRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Symbol) == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Account) == "":
		return fmt.Errorf("%w: account is required", ErrInvalidRequest)
	case r.Interval == "":
		return fmt.Errorf("%w: interval is required", ErrInvalidRequest)
	}
	if err := r.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func sideOf(a strategy.Action) order.Side {
	if a == strategy.ActionEnterLong {
		return order.SideBuy
	}
	return order.SideSell
}

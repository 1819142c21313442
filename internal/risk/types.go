package risk

import (
	"errors"
	"time"
)

// ErrRejected wraps every intent the guard refuses.
var ErrRejected = errors.New("risk rejected")

// Config defines the daily limits applied to live entries.
type Config struct {
	// EnableRisk is the global risk control switch.
	EnableRisk bool `json:"enable_risk"`

	// MaxDailyTrades caps fills per account and day. Zero means unlimited.
	MaxDailyTrades int `json:"max_daily_trades"`
	// MaxDailyLoss caps realized losses per account and day, in account
	// currency. Zero means unlimited.
	MaxDailyLoss float64 `json:"max_daily_loss"`
}

// DefaultConfig returns default risk configuration
func DefaultConfig() Config {
	return Config{
		EnableRisk:     true,
		MaxDailyTrades: 20,
		MaxDailyLoss:   2000,
	}
}

// Metrics tracks one account's activity on one day.
type Metrics struct {
	Day         string  `json:"day"`
	DailyTrades int     `json:"daily_trades"`
	DailyPnL    float64 `json:"daily_pnl"`
	DailyLosses float64 `json:"daily_losses"`

	ChecksTotal     uint64 `json:"checks_total"`
	RejectionsTotal uint64 `json:"rejections_total"`
}

// Decision represents the result of risk evaluation
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func dayOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

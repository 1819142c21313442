package record

import (
	"time"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/strategy"
)

// DefaultRetrainDays is the retrain interval used when none is configured.
const DefaultRetrainDays = 30

// Metrics are the performance figures recorded for one data split.
// WinRate is a percent.
type Metrics struct {
	ProfitPct   float64 `json:"total_profit_pct"`
	Ratio       float64 `json:"sharpe_ratio"`
	DrawdownPct float64 `json:"max_drawdown_pct"`
	WinRate     float64 `json:"win_rate"`
	Trades      int     `json:"total_trades"`
}

// MetricsOf summarizes a simulation result.
func MetricsOf(r backtest.Result) Metrics {
	return Metrics{
		ProfitPct:   r.TotalProfitPct,
		Ratio:       r.Ratio,
		DrawdownPct: r.MaxDrawdownPct,
		WinRate:     r.WinRate(),
		Trades:      r.TotalTrades,
	}
}

// OptimizedRecord is the output of one optimization run. Validation metrics
// are reported only; selection uses Fitness on the training split.
type OptimizedRecord struct {
	Method     string                `json:"method,omitempty"`
	Params     strategy.ParameterSet `json:"params"`
	Fitness    float64               `json:"fitness_score"`
	Train      Metrics               `json:"train"`
	Validation Metrics               `json:"validation"`
}

// StrategyRecord binds tuned parameters to an instrument together with
// retraining metadata.
type StrategyRecord struct {
	Instrument  string
	Optimized   OptimizedRecord
	LastRetrain time.Time
	RetrainDays int
	Name        string
	Source      string
}

// New builds a record retrained at now.
func New(instrument string, opt OptimizedRecord, now time.Time) StrategyRecord {
	return StrategyRecord{
		Instrument:  instrument,
		Optimized:   opt,
		LastRetrain: now.UTC(),
		RetrainDays: DefaultRetrainDays,
	}
}

// ShouldRetrain reports whether at least RetrainDays whole days have passed
// since the last retrain.
func (r StrategyRecord) ShouldRetrain(now time.Time) bool {
	days := r.RetrainDays
	if days <= 0 {
		days = DefaultRetrainDays
	}
	return now.Sub(r.LastRetrain) >= time.Duration(days)*24*time.Hour
}

// Retrained returns a copy carrying opt and a retrain timestamp of now.
func (r StrategyRecord) Retrained(opt OptimizedRecord, now time.Time) StrategyRecord {
	r.Optimized = opt
	r.LastRetrain = now.UTC()
	return r
}

package engine

import (
	"time"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/persistence"
	"strategy-lab/internal/record"
	"strategy-lab/internal/strategy"
	"strategy-lab/pkg/cache"
)

// BacktestRequest runs one parameter set over a recent history. Params
// overlays the stored record's parameters (or the defaults when UseRecord is
// false or nothing is stored).
type BacktestRequest struct {
	Symbol         string         `json:"symbol"`
	Interval       string         `json:"interval"`
	Days           int            `json:"days"`
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Params         map[string]any `json:"params"`
	UseRecord      bool           `json:"use_record"`
	InitialBalance float64        `json:"initial_balance"`
	CommissionPct  float64        `json:"commission"`
}

// BacktestResponse carries the simulation and the signals that drove it.
type BacktestResponse struct {
	Symbol   string                `json:"symbol"`
	Interval string                `json:"interval"`
	Bars     int                   `json:"bars"`
	From     time.Time             `json:"from"`
	To       time.Time             `json:"to"`
	Params   strategy.ParameterSet `json:"params"`
	Result   backtest.Result       `json:"result"`
	WinRate  float64               `json:"win_rate"`
	Signals  []strategy.Signal     `json:"signals"`
}

// OptimizeRequest searches parameters over a long history.
type OptimizeRequest struct {
	Symbol         string  `json:"symbol"`
	Interval       string  `json:"interval"`
	Years          int     `json:"years"`
	Method         string  `json:"method"`
	MaxIterations  int     `json:"max_iterations"`
	Population     int     `json:"population_size"`
	Generations    int     `json:"generations"`
	MutationRate   float64 `json:"mutation_rate"`
	InitialBalance float64 `json:"initial_balance"`
	CommissionPct  float64 `json:"commission"`
}

// OptimizeResponse reports the persisted record of a run.
type OptimizeResponse struct {
	RunID   string                `json:"run_id"`
	Bars    int                   `json:"bars"`
	Elapsed time.Duration         `json:"elapsed_ns"`
	Record  record.StrategyRecord `json:"record"`
	Params  strategy.ParameterSet `json:"optimized_params"`
	Train   record.Metrics        `json:"train"`
	Val     record.Metrics        `json:"validation"`
	Fitness float64               `json:"fitness_score"`
}

// RetrainRequest re-optimizes a stored record when it is due or when Force is set.
type RetrainRequest struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Years    int    `json:"years"`
	Force    bool   `json:"force"`
}

// RetrainResponse tells whether a new run happened.
type RetrainResponse struct {
	Retrained bool                  `json:"retrained"`
	RunID     string                `json:"run_id,omitempty"`
	Record    record.StrategyRecord `json:"record"`
}

// SaveRequest stores a user-supplied record.
type SaveRequest struct {
	Symbol      string         `json:"symbol"`
	Name        string         `json:"name"`
	Source      string         `json:"source_code"`
	Params      map[string]any `json:"params"`
	RetrainDays int            `json:"retrain_period_days"`
}

// RecordSummary is one row of the record list.
type RecordSummary struct {
	Symbol       string                `json:"symbol"`
	Name         string                `json:"name,omitempty"`
	Method       string                `json:"method,omitempty"`
	Fitness      float64               `json:"fitness_score"`
	Params       strategy.ParameterSet `json:"params"`
	LastRetrain  time.Time             `json:"last_retrain_date"`
	RetrainDays  int                   `json:"retrain_period_days"`
	RetrainDue   bool                  `json:"retrain_due"`
	ValProfitPct float64               `json:"val_profit_pct"`
}

// RecordDetail is a stored record with its run history.
type RecordDetail struct {
	Record     record.StrategyRecord `json:"record"`
	RetrainDue bool                  `json:"retrain_due"`
	Runs       []RunInfo             `json:"runs"`
}

// RunInfo summarizes an archived optimization run.
type RunInfo struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Fitness   float64   `json:"fitness_score"`
	CreatedAt time.Time `json:"created_at"`
}

// TraderRequest starts a live trader from the stored record of Symbol.
type TraderRequest struct {
	Symbol   string `json:"symbol"`
	Account  string `json:"account"`
	Interval string `json:"interval"`
}

// StoredSignal is a live signal read back from the database.
type StoredSignal struct {
	ID       int64     `json:"id"`
	Symbol   string    `json:"symbol"`
	Account  string    `json:"account"`
	Action   string    `json:"action"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
	Reason   string    `json:"reason,omitempty"`
	Time     time.Time `json:"time"`
}

// SystemStatus reports service health.
type SystemStatus struct {
	DataSource   string                     `json:"data_source"`
	Traders      int                        `json:"traders"`
	Records      int                        `json:"records"`
	Uptime       string                     `json:"uptime"`
	StartedAt    time.Time                  `json:"started_at"`
	Cache        *cache.Stats               `json:"bar_cache,omitempty"`
	SignalWriter *persistence.WriterMetrics `json:"signal_writer,omitempty"`
}

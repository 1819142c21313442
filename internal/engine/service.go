// Package engine is the facade the API layer talks to. It loads bar
// histories, runs backtests and optimizations, persists strategy records and
// drives the live traders.
package engine

import (
	"context"
	"errors"

	"strategy-lab/internal/live"
	"strategy-lab/internal/record"
)

var (
	// ErrInvalidRequest wraps malformed requests.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInsufficientData is returned when a history is too short to optimize.
	ErrInsufficientData = errors.New("insufficient data")
)

// MinOptimizeBars is the shortest history an optimization accepts.
const MinOptimizeBars = 100

// Service defines the operations exposed to the API layer.
type Service interface {
	// Strategy evaluation
	Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error)
	Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error)
	Retrain(ctx context.Context, req RetrainRequest) (*RetrainResponse, error)

	// Strategy records
	SaveRecord(ctx context.Context, req SaveRequest) (*record.StrategyRecord, error)
	ListRecords(ctx context.Context) ([]RecordSummary, error)
	GetRecord(ctx context.Context, symbol string) (*RecordDetail, error)
	DeleteRecord(ctx context.Context, symbol string) error

	// Live traders
	StartTrader(ctx context.Context, req TraderRequest) (*live.Status, error)
	StopTrader(ctx context.Context, symbol, account string) error
	TraderStatus(ctx context.Context, symbol, account string) (*live.Status, error)
	TraderLogs(ctx context.Context, symbol, account string, limit int) ([]live.LogEntry, error)
	TraderChart(ctx context.Context, symbol, account string) (*live.Chart, error)
	ListTraders(ctx context.Context) []live.Status
	TraderSignals(ctx context.Context, symbol, account string, limit int) ([]StoredSignal, error)

	// System
	GetSystemStatus(ctx context.Context) *SystemStatus
}

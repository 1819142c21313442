package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/data"
	"strategy-lab/internal/events"
	"strategy-lab/internal/live"
	"strategy-lab/internal/market"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/persistence"
	"strategy-lab/internal/record"
	"strategy-lab/internal/strategy"
	"strategy-lab/pkg/cache"
	"strategy-lab/pkg/db"
	"strategy-lab/pkg/i18n"
)

const (
	defaultBacktestDays     = 30
	defaultBacktestInterval = "1h"
	defaultOptimizeYears    = 4
	defaultOptimizeInterval = "1d"
)

// BacktestObserver records backtest outcomes. monitor.Metrics implements it.
type BacktestObserver interface {
	BacktestCompleted(elapsed time.Duration, err error)
}

// SignalHistory reads persisted live signals. *db.Database implements it.
type SignalHistory interface {
	ListLiveSignals(ctx context.Context, symbol, account string, limit int) ([]db.LiveSignal, error)
}

// Config wires the engine's collaborators. CacheStats and WriterStats are
// optional and only feed the system status.
type Config struct {
	Provider   data.Provider
	Store      *record.Store
	Traders    *live.Manager
	Signals    SignalHistory
	Presets    strategy.Presets
	Optimizer  optimizer.Config
	Options    backtest.Options
	Bus        *events.Bus
	Observer   BacktestObserver
	Logger     *zap.Logger
	DataSource string
	Now        func() time.Time

	CacheStats  func() cache.Stats
	WriterStats func() persistence.WriterMetrics
}

// Impl implements Service.
type Impl struct {
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
	startedAt time.Time
}

// NewImpl creates a new engine implementation.
func NewImpl(cfg Config) *Impl {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Options.InitialBalance <= 0 {
		cfg.Options = backtest.DefaultOptions()
	}
	if cfg.Presets.Grid.Ranges == nil {
		cfg.Presets = strategy.DefaultPresets()
	}
	return &Impl{cfg: cfg, log: cfg.Logger, now: cfg.Now, startedAt: cfg.Now()}
}

// Backtest loads a recent history and replays one parameter set over it.
func (e *Impl) Backtest(ctx context.Context, req BacktestRequest) (resp *BacktestResponse, err error) {
	start := time.Now()
	defer func() {
		if e.cfg.Observer != nil {
			e.cfg.Observer.BacktestCompleted(time.Since(start), err)
		}
	}()

	symbol, interval, err := e.instrument(req.Symbol, req.Interval, defaultBacktestInterval)
	if err != nil {
		return nil, err
	}
	base := e.cfg.Presets.Defaults
	if req.UseRecord {
		rec, err := e.cfg.Store.Get(ctx, symbol)
		switch {
		case err == nil:
			base = rec.Optimized.Params
		case !errors.Is(err, record.ErrNotFound):
			return nil, err
		}
	}
	params, err := overlay(base, req.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	from, to := req.From, req.To
	if from.IsZero() {
		days := req.Days
		if days <= 0 {
			days = defaultBacktestDays
		}
		if to.IsZero() {
			to = e.windowEnd()
		}
		from = to.AddDate(0, 0, -days)
	}
	bars, err := e.cfg.Provider.Bars(ctx, data.Request{Symbol: symbol, Interval: interval, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}

	opts := e.options(req.InitialBalance, req.CommissionPct)
	signals := strategy.EvaluateSignals(bars, params)
	result := backtest.Simulate(bars, signals, opts)

	e.log.Info(i18n.Get("BacktestDone"),
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("bars", len(bars)),
		zap.Int("trades", result.TotalTrades),
		zap.Float64("profit_pct", result.TotalProfitPct))

	resp = &BacktestResponse{
		Symbol:   symbol,
		Interval: interval,
		Bars:     len(bars),
		Params:   params,
		Result:   result,
		WinRate:  result.WinRate(),
		Signals:  signals,
	}
	if first, ok := firstBar(bars); ok {
		resp.From = first.Time
	}
	if last, ok := market.Last(bars); ok {
		resp.To = last.Time
	}
	return resp, nil
}

// Optimize searches parameters for req.Symbol and persists the winner both
// as a timestamped run and as the instrument's latest record.
func (e *Impl) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResponse, error) {
	symbol, interval, err := e.instrument(req.Symbol, req.Interval, defaultOptimizeInterval)
	if err != nil {
		return nil, err
	}
	method := strings.ToLower(req.Method)
	if method == "" {
		method = optimizer.MethodGenetic
	}
	if method != optimizer.MethodGrid && method != optimizer.MethodGenetic {
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidRequest, req.Method)
	}

	years := req.Years
	if years <= 0 {
		years = defaultOptimizeYears
	}
	to := e.windowEnd()
	bars, err := e.cfg.Provider.Bars(ctx, data.Request{
		Symbol:   symbol,
		Interval: interval,
		From:     to.AddDate(-years, 0, 0),
		To:       to,
	})
	if err != nil && !errors.Is(err, data.ErrNoData) {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if len(bars) < MinOptimizeBars {
		return nil, fmt.Errorf("%w: %d bars, need %d", ErrInsufficientData, len(bars), MinOptimizeBars)
	}

	cfg := e.cfg.Optimizer
	cfg.Base = e.cfg.Presets.Defaults
	cfg.Options = e.options(req.InitialBalance, req.CommissionPct)
	if cfg.Logger == nil {
		cfg.Logger = e.log
	}
	opt := optimizer.New(cfg)

	started := time.Now()
	e.log.Info(i18n.Get("OptimizeStart"),
		zap.String("symbol", symbol),
		zap.String("method", method),
		zap.Int("bars", len(bars)))

	var optimized record.OptimizedRecord
	if method == optimizer.MethodGrid {
		maxIter := req.MaxIterations
		if maxIter <= 0 {
			maxIter = e.cfg.Presets.Grid.MaxIterations
		}
		optimized, err = opt.Grid(ctx, bars, e.cfg.Presets.Grid.Ranges, maxIter)
	} else {
		g := e.cfg.Presets.Genetic
		gopts := optimizer.GeneticOptions{Population: g.Population, Generations: g.Generations, MutationRate: g.MutationRate}
		if req.Population > 0 {
			gopts.Population = req.Population
		}
		if req.Generations > 0 {
			gopts.Generations = req.Generations
		}
		if req.MutationRate > 0 {
			gopts.MutationRate = req.MutationRate
		}
		optimized, err = opt.Genetic(ctx, bars, g.Bounds, gopts)
	}
	if errors.Is(err, strategy.ErrInvalidParameter) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err != nil {
		return nil, err
	}

	now := e.now()
	rec := record.New(symbol, optimized, now)
	if prev, err := e.cfg.Store.Get(ctx, symbol); err == nil {
		rec = prev.Retrained(optimized, now)
	}
	runID, err := e.persist(ctx, rec)
	if err != nil {
		return nil, err
	}

	resp := &OptimizeResponse{
		RunID:   runID,
		Bars:    len(bars),
		Elapsed: time.Since(started),
		Record:  rec,
		Params:  optimized.Params,
		Train:   optimized.Train,
		Val:     optimized.Validation,
		Fitness: optimized.Fitness,
	}
	if e.cfg.Bus != nil {
		e.cfg.Bus.Publish(events.EventOptimizationDone, resp)
	}
	return resp, nil
}

// Retrain re-optimizes a stored record with the method it was last tuned
// with, once the retrain period has elapsed or when Force is set.
func (e *Impl) Retrain(ctx context.Context, req RetrainRequest) (*RetrainResponse, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	rec, err := e.cfg.Store.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if !req.Force && !rec.ShouldRetrain(e.now()) {
		return &RetrainResponse{Retrained: false, Record: rec}, nil
	}

	e.log.Info(i18n.Get("RetrainStart"),
		zap.String("symbol", symbol),
		zap.Time("last_retrain", rec.LastRetrain),
		zap.Bool("forced", req.Force))
	method := rec.Optimized.Method
	if method != optimizer.MethodGrid {
		method = optimizer.MethodGenetic
	}
	out, err := e.Optimize(ctx, OptimizeRequest{
		Symbol:   symbol,
		Interval: req.Interval,
		Years:    req.Years,
		Method:   method,
	})
	if err != nil {
		return nil, err
	}
	return &RetrainResponse{Retrained: true, RunID: out.RunID, Record: out.Record}, nil
}

// SaveRecord stores a record submitted directly by a user.
func (e *Impl) SaveRecord(ctx context.Context, req SaveRequest) (*record.StrategyRecord, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	params, err := overlay(e.cfg.Presets.Defaults, req.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	rec := record.New(symbol, record.OptimizedRecord{Method: "manual", Params: params}, e.now())
	rec.Name = req.Name
	rec.Source = req.Source
	if req.RetrainDays > 0 {
		rec.RetrainDays = req.RetrainDays
	}
	if _, err := e.persist(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords summarizes every stored record.
func (e *Impl) ListRecords(ctx context.Context) ([]RecordSummary, error) {
	recs, err := e.cfg.Store.List(ctx)
	if err != nil && len(recs) == 0 {
		return nil, err
	}
	if err != nil {
		e.log.Warn(i18n.Get("RecordDecodeFailed"), zap.Error(err))
	}
	now := e.now()
	out := make([]RecordSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, RecordSummary{
			Symbol:       r.Instrument,
			Name:         r.Name,
			Method:       r.Optimized.Method,
			Fitness:      r.Optimized.Fitness,
			Params:       r.Optimized.Params,
			LastRetrain:  r.LastRetrain,
			RetrainDays:  r.RetrainDays,
			RetrainDue:   r.ShouldRetrain(now),
			ValProfitPct: r.Optimized.Validation.ProfitPct,
		})
	}
	return out, nil
}

// GetRecord returns the latest record for symbol with its run history.
func (e *Impl) GetRecord(ctx context.Context, symbol string) (*RecordDetail, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	rec, err := e.cfg.Store.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	runs, err := e.cfg.Store.Runs(ctx, symbol, 20)
	if err != nil {
		return nil, err
	}
	detail := &RecordDetail{Record: rec, RetrainDue: rec.ShouldRetrain(e.now()), Runs: make([]RunInfo, 0, len(runs))}
	for _, r := range runs {
		detail.Runs = append(detail.Runs, RunInfo{
			ID:        r.ID,
			Method:    r.Method,
			Fitness:   r.Record.Optimized.Fitness,
			CreatedAt: r.CreatedAt,
		})
	}
	return detail, nil
}

// DeleteRecord removes the latest record for symbol.
func (e *Impl) DeleteRecord(ctx context.Context, symbol string) error {
	return e.cfg.Store.Delete(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

// StartTrader launches a live trader with the stored parameters of req.Symbol.
func (e *Impl) StartTrader(ctx context.Context, req TraderRequest) (*live.Status, error) {
	symbol, interval, err := e.instrument(req.Symbol, req.Interval, defaultBacktestInterval)
	if err != nil {
		return nil, err
	}
	rec, err := e.cfg.Store.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	st, err := e.cfg.Traders.Start(live.StartRequest{
		Symbol:   symbol,
		Account:  req.Account,
		Interval: interval,
		Params:   rec.Optimized.Params,
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// StopTrader stops the trader for symbol and account.
func (e *Impl) StopTrader(_ context.Context, symbol, account string) error {
	return e.cfg.Traders.Stop(symbol, account)
}

// TraderStatus reports one trader.
func (e *Impl) TraderStatus(_ context.Context, symbol, account string) (*live.Status, error) {
	st, err := e.cfg.Traders.Status(symbol, account)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// TraderLogs returns a trader's newest log lines.
func (e *Impl) TraderLogs(_ context.Context, symbol, account string, limit int) ([]live.LogEntry, error) {
	return e.cfg.Traders.Logs(symbol, account, limit)
}

// TraderChart returns a trader's chart data.
func (e *Impl) TraderChart(_ context.Context, symbol, account string) (*live.Chart, error) {
	c, err := e.cfg.Traders.Chart(symbol, account)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListTraders reports all running traders.
func (e *Impl) ListTraders(context.Context) []live.Status {
	return e.cfg.Traders.List()
}

// TraderSignals returns persisted signals for symbol and account, newest
// first. Without a signal history the list is empty.
func (e *Impl) TraderSignals(ctx context.Context, symbol, account string, limit int) ([]StoredSignal, error) {
	out := []StoredSignal{}
	if e.cfg.Signals == nil {
		return out, nil
	}
	rows, err := e.cfg.Signals.ListLiveSignals(ctx, strings.ToUpper(strings.TrimSpace(symbol)), account, limit)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out = append(out, StoredSignal{
			ID:       r.ID,
			Symbol:   r.Symbol,
			Account:  r.Account,
			Action:   r.Action,
			Price:    r.Price,
			Quantity: r.Quantity,
			Reason:   r.Reason,
			Time:     r.Time,
		})
	}
	return out, nil
}

// GetSystemStatus returns basic health information.
func (e *Impl) GetSystemStatus(ctx context.Context) *SystemStatus {
	st := &SystemStatus{
		DataSource: e.cfg.DataSource,
		Traders:    len(e.cfg.Traders.List()),
		StartedAt:  e.startedAt,
		Uptime:     e.now().Sub(e.startedAt).Round(time.Second).String(),
	}
	if recs, err := e.cfg.Store.List(ctx); err == nil {
		st.Records = len(recs)
	}
	if e.cfg.CacheStats != nil {
		stats := e.cfg.CacheStats()
		st.Cache = &stats
	}
	if e.cfg.WriterStats != nil {
		m := e.cfg.WriterStats()
		st.SignalWriter = &m
	}
	return st
}

func (e *Impl) persist(ctx context.Context, rec record.StrategyRecord) (string, error) {
	runID, err := e.cfg.Store.Archive(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("archive record: %w", err)
	}
	if err := e.cfg.Store.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}
	e.log.Info(i18n.Get("RecordSaved"),
		zap.String("symbol", rec.Instrument),
		zap.String("run_id", runID),
		zap.String("method", rec.Optimized.Method),
		zap.Float64("fitness", rec.Optimized.Fitness))
	return runID, nil
}

// windowEnd is the upper bound of a history request ending now, rounded
// down to the minute so repeated requests share a cache key.
func (e *Impl) windowEnd() time.Time {
	return e.now().UTC().Truncate(time.Minute)
}

func (e *Impl) instrument(symbol, interval, defaultInterval string) (string, string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", "", fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if interval == "" {
		interval = defaultInterval
	}
	interval, err := data.NormalizeInterval(interval)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return symbol, interval, nil
}

func (e *Impl) options(balance, commission float64) backtest.Options {
	opts := e.cfg.Options
	if balance > 0 {
		opts.InitialBalance = balance
	}
	if commission > 0 {
		opts.CommissionPct = commission
	}
	return opts
}

// overlay applies values on top of base.
func overlay(base strategy.ParameterSet, values map[string]any) (strategy.ParameterSet, error) {
	merged := base.Map()
	for k, v := range values {
		merged[k] = v
	}
	return strategy.ParameterSetFromMap(merged)
}

func firstBar(bars []market.Bar) (market.Bar, bool) {
	if len(bars) == 0 {
		return market.Bar{}, false
	}
	return bars[0], true
}

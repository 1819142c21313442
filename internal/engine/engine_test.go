package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/data"
	"strategy-lab/internal/live"
	"strategy-lab/internal/market"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/record"
	"strategy-lab/internal/strategy"
	"strategy-lab/pkg/db"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type stubProvider struct {
	mu   sync.Mutex
	n    int
	reqs []data.Request
}

func (p *stubProvider) Bars(_ context.Context, req data.Request) ([]market.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	g := market.NewGenerator(9, 100, 1, time.Hour)
	g.Drift = 0.2
	return g.Bars(p.n), nil
}

func (p *stubProvider) last() data.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reqs[len(p.reqs)-1]
}

type backtestCounter struct {
	ok, failed int
}

func (c *backtestCounter) BacktestCompleted(_ time.Duration, err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

type fixture struct {
	svc      *Impl
	provider *stubProvider
	store    *record.Store
	observer *backtestCounter
	clock    *time.Time
}

func newFixture(t *testing.T, bars int) *fixture {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	provider := &stubProvider{n: bars}
	store := record.NewStore(database)
	traders := live.NewManager(live.Deps{Provider: provider, PollInterval: time.Hour})
	t.Cleanup(traders.Close)

	clock := now
	f := &fixture{provider: provider, store: store, observer: &backtestCounter{}, clock: &clock}
	f.svc = NewImpl(Config{
		Provider:  provider,
		Store:     store,
		Traders:   traders,
		Presets:   strategy.DefaultPresets(),
		Optimizer: optimizer.Config{Workers: 2, Seed: 3},
		Observer:  f.observer,
		Now:       func() time.Time { return *f.clock },
	})
	return f
}

func TestBacktestDefaults(t *testing.T) {
	f := newFixture(t, 300)

	resp, err := f.svc.Backtest(context.Background(), BacktestRequest{Symbol: "btcusdt", Interval: "hour"})
	require.NoError(t, err)

	req := f.provider.last()
	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Equal(t, "1h", req.Interval)
	assert.Equal(t, now, req.To)
	assert.Equal(t, now.AddDate(0, 0, -30), req.From)

	assert.Equal(t, 300, resp.Bars)
	assert.Equal(t, strategy.DefaultParameters(), resp.Params)
	assert.Equal(t, resp.Result.TotalTrades, len(resp.Result.Trades))
	assert.Equal(t, 1, f.observer.ok)
}

func TestBacktestRejectsBadInput(t *testing.T) {
	f := newFixture(t, 300)

	_, err := f.svc.Backtest(context.Background(), BacktestRequest{Symbol: "BTCUSDT", Params: map[string]any{"avg_len": 0}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.Backtest(context.Background(), BacktestRequest{Symbol: "BTCUSDT", Params: map[string]any{"bogus": 1}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.Backtest(context.Background(), BacktestRequest{Symbol: ""})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.Backtest(context.Background(), BacktestRequest{Symbol: "X", Interval: "7m"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 4, f.observer.failed)
}

func TestBacktestUsesStoredRecord(t *testing.T) {
	f := newFixture(t, 300)
	ctx := context.Background()

	_, err := f.svc.SaveRecord(ctx, SaveRequest{Symbol: "ethusdt", Name: "mine", Params: map[string]any{"avg_len": 10}})
	require.NoError(t, err)

	resp, err := f.svc.Backtest(ctx, BacktestRequest{Symbol: "ETHUSDT", UseRecord: true, Params: map[string]any{"stop_mult": 3.0}})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.Params.AvgLength)
	assert.Equal(t, 3.0, resp.Params.StopMult)
}

func TestOptimizeNeedsHistory(t *testing.T) {
	f := newFixture(t, 99)
	_, err := f.svc.Optimize(context.Background(), OptimizeRequest{Symbol: "BTCUSDT"})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = f.svc.Optimize(context.Background(), OptimizeRequest{Symbol: "BTCUSDT", Method: "annealing"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestOptimizePersistsRecordAndRun(t *testing.T) {
	f := newFixture(t, 400)
	ctx := context.Background()

	resp, err := f.svc.Optimize(ctx, OptimizeRequest{Symbol: "btcusdt", Method: "grid", MaxIterations: 6})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, optimizer.MethodGrid, resp.Record.Optimized.Method)
	assert.Equal(t, now, resp.Record.LastRetrain)
	assert.Equal(t, "1d", f.provider.last().Interval)
	assert.Equal(t, now.AddDate(-4, 0, 0), f.provider.last().From)

	detail, err := f.svc.GetRecord(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, resp.Params, detail.Record.Optimized.Params)
	require.Len(t, detail.Runs, 1)
	assert.Equal(t, resp.RunID, detail.Runs[0].ID)
	assert.False(t, detail.RetrainDue)

	list, err := f.svc.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "BTCUSDT", list[0].Symbol)
}

func TestOptimizeGenetic(t *testing.T) {
	f := newFixture(t, 300)
	resp, err := f.svc.Optimize(context.Background(), OptimizeRequest{
		Symbol: "BTCUSDT", Method: "genetic", Population: 4, Generations: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, optimizer.MethodGenetic, resp.Record.Optimized.Method)
	assert.NoError(t, resp.Params.Validate())
	assert.Equal(t, resp.Record.Optimized.Validation, resp.Val)

	_, err = f.svc.Optimize(context.Background(), OptimizeRequest{
		Symbol: "BTCUSDT", Method: "genetic", Population: 1, Generations: 2,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHistoryWindowEndsOnMinute(t *testing.T) {
	f := newFixture(t, 300)
	*f.clock = now.Add(37*time.Second + 250*time.Millisecond)

	_, err := f.svc.Backtest(context.Background(), BacktestRequest{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	first := f.provider.last()
	assert.Equal(t, now, first.To)

	*f.clock = now.Add(50 * time.Second)
	_, err = f.svc.Backtest(context.Background(), BacktestRequest{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, first.Key(), f.provider.last().Key())
}

func TestRetrain(t *testing.T) {
	f := newFixture(t, 300)
	ctx := context.Background()

	saved, err := f.svc.SaveRecord(ctx, SaveRequest{Symbol: "BTCUSDT", Name: "keeper", RetrainDays: 7})
	require.NoError(t, err)

	out, err := f.svc.Retrain(ctx, RetrainRequest{Symbol: "btcusdt"})
	require.NoError(t, err)
	assert.False(t, out.Retrained)
	assert.Equal(t, saved.LastRetrain, out.Record.LastRetrain)

	*f.clock = now.AddDate(0, 0, 8)
	out, err = f.svc.Retrain(ctx, RetrainRequest{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.True(t, out.Retrained)
	assert.Equal(t, "keeper", out.Record.Name)
	assert.Equal(t, 7, out.Record.RetrainDays)
	assert.Equal(t, now.AddDate(0, 0, 8), out.Record.LastRetrain)
	assert.Equal(t, optimizer.MethodGenetic, out.Record.Optimized.Method)

	_, err = f.svc.Retrain(ctx, RetrainRequest{Symbol: "NOPE"})
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestRecordCRUD(t *testing.T) {
	f := newFixture(t, 300)
	ctx := context.Background()

	_, err := f.svc.GetRecord(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, record.ErrNotFound)

	_, err = f.svc.SaveRecord(ctx, SaveRequest{Symbol: "BTCUSDT", Source: "plot(close)"})
	require.NoError(t, err)
	detail, err := f.svc.GetRecord(ctx, "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, "plot(close)", detail.Record.Source)

	require.NoError(t, f.svc.DeleteRecord(ctx, "BTCUSDT"))
	assert.ErrorIs(t, f.svc.DeleteRecord(ctx, "BTCUSDT"), record.ErrNotFound)

	_, err = f.svc.SaveRecord(ctx, SaveRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestTraderOperations(t *testing.T) {
	f := newFixture(t, 300)
	ctx := context.Background()

	_, err := f.svc.StartTrader(ctx, TraderRequest{Symbol: "BTCUSDT", Account: "a1"})
	assert.ErrorIs(t, err, record.ErrNotFound)

	_, err = f.svc.SaveRecord(ctx, SaveRequest{Symbol: "BTCUSDT", Params: map[string]any{"avg_len": 15}})
	require.NoError(t, err)

	st, err := f.svc.StartTrader(ctx, TraderRequest{Symbol: "btcusdt", Account: "a1", Interval: "hour"})
	require.NoError(t, err)
	assert.Equal(t, "1h", st.Interval)
	assert.Equal(t, 15, st.Params.AvgLength)
	assert.Len(t, f.svc.ListTraders(ctx), 1)

	_, err = f.svc.TraderLogs(ctx, "BTCUSDT", "a1", 10)
	require.NoError(t, err)
	_, err = f.svc.TraderChart(ctx, "BTCUSDT", "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.GetSystemStatus(ctx).Traders)

	require.NoError(t, f.svc.StopTrader(ctx, "BTCUSDT", "a1"))
	_, err = f.svc.TraderStatus(ctx, "BTCUSDT", "a1")
	assert.ErrorIs(t, err, live.ErrNotRunning)
}

type signalRows []db.LiveSignal

func (s signalRows) ListLiveSignals(_ context.Context, symbol, account string, limit int) ([]db.LiveSignal, error) {
	var out []db.LiveSignal
	for _, r := range s {
		if r.Symbol == symbol && r.Account == account && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestTraderSignals(t *testing.T) {
	f := newFixture(t, 300)
	ctx := context.Background()

	got, err := f.svc.TraderSignals(ctx, "BTCUSDT", "a1", 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	f.svc.cfg.Signals = signalRows{
		{ID: 2, Symbol: "BTCUSDT", Account: "a1", Action: "EXIT_LONG", Price: 101, Quantity: 3, Reason: "FILTER", Time: now},
		{ID: 1, Symbol: "BTCUSDT", Account: "a1", Action: "ENTER_LONG", Price: 99, Quantity: 3, Time: now.Add(-time.Hour)},
		{ID: 3, Symbol: "BTCUSDT", Account: "a2", Action: "ENTER_LONG", Price: 99, Quantity: 1, Time: now},
	}
	got, err = f.svc.TraderSignals(ctx, "btcusdt", "a1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, "FILTER", got[0].Reason)
}

func TestSystemStatusSources(t *testing.T) {
	f := newFixture(t, 300)
	assert.Nil(t, f.svc.GetSystemStatus(context.Background()).Cache)

	cached := data.NewCachedProvider(f.provider, time.Minute)
	_, err := cached.Bars(context.Background(), data.Request{Symbol: "BTCUSDT", Interval: "1h", To: now})
	require.NoError(t, err)
	f.svc.cfg.CacheStats = cached.Stats

	st := f.svc.GetSystemStatus(context.Background())
	require.NotNil(t, st.Cache)
	assert.Equal(t, 1, st.Cache.TotalItems)
	assert.Nil(t, st.SignalWriter)
}

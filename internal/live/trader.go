package live

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"strategy-lab/internal/data"
	"strategy-lab/internal/events"
	"strategy-lab/internal/market"
	"strategy-lab/internal/order"
	"strategy-lab/internal/strategy"
	"strategy-lab/pkg/db"
	"strategy-lab/pkg/i18n"
)

// SignalRecorder persists forwarded signals.
type SignalRecorder interface {
	InsertLiveSignal(ctx context.Context, s db.LiveSignal) error
}

// EvaluateFunc turns a bar window into signals.
type EvaluateFunc func(bars []market.Bar, p strategy.ParameterSet) []strategy.Signal

// Deps are the collaborators shared by all traders.
type Deps struct {
	Provider     data.Provider
	Sink         order.Sink
	Bus          *events.Bus
	Recorder     SignalRecorder
	Logger       *zap.Logger
	Evaluate     EvaluateFunc
	PollInterval time.Duration
	Window       int
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Evaluate == nil {
		d.Evaluate = strategy.EvaluateSignals
	}
	if d.PollInterval <= 0 {
		d.PollInterval = DefaultPollInterval
	}
	if d.Window <= 0 {
		d.Window = DefaultWindow
	}
	return d
}

// Trader re-evaluates the strategy on a rolling window of bars and forwards
// fresh signals to the order sink.
type Trader struct {
	req  StartRequest
	key  string
	deps Deps
	log  *zap.Logger

	mu         sync.RWMutex
	running    bool
	stopped    bool
	startedAt  time.Time
	bars       []market.Bar
	position   float64
	lastSignal *strategy.Signal
	logs       []LogEntry
	prices     []PricePoint
	signals    []SignalPoint
	equity     []EquityPoint

	cancel context.CancelFunc
	done   chan struct{}
}

func newTrader(req StartRequest, deps Deps) *Trader {
	req.Symbol = strings.ToUpper(req.Symbol)
	key := Key(req.Symbol, req.Account)
	return &Trader{
		req:  req,
		key:  key,
		deps: deps,
		log:  deps.Logger.With(zap.String("trader", key)),
		done: make(chan struct{}),
	}
}

// start launches the polling loop. The loop outlives the caller's request, so
// it runs under parent rather than a request context. A trader stopped
// before it started never runs.
func (t *Trader) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		cancel()
		return
	}
	t.cancel = cancel
	t.running = true
	t.startedAt = time.Now().UTC()
	t.mu.Unlock()

	t.addLog("INFO", fmt.Sprintf("%s %s %s", i18n.Get("TraderStarted"), t.req.Symbol, t.req.Interval))
	go t.run(ctx)
}

// stop cancels the loop and waits for it to exit.
func (t *Trader) stop() {
	t.mu.Lock()
	t.stopped = true
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
		<-t.done
	}
}

func (t *Trader) run(ctx context.Context) {
	defer close(t.done)
	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		t.addLog("INFO", fmt.Sprintf("%s %s", i18n.Get("TraderStopped"), t.req.Symbol))
	}()

	if err := t.load(ctx); err != nil && ctx.Err() == nil {
		t.addLog("ERROR", fmt.Sprintf("%s: %v", i18n.Get("TraderHistoryFailed"), err))
	}

	ticker := time.NewTicker(t.deps.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.poll(ctx); err != nil && ctx.Err() == nil {
				t.addLog("ERROR", fmt.Sprintf("%s: %v", i18n.Get("TraderPollFailed"), err))
			}
		}
	}
}

// load fetches the initial window. Signals in the history are not traded.
func (t *Trader) load(ctx context.Context) error {
	bars, err := t.deps.Provider.Bars(ctx, data.Request{
		Symbol:   t.req.Symbol,
		Interval: t.req.Interval,
		Limit:    t.deps.Window,
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.bars = trim(bars, t.deps.Window)
	for _, b := range t.bars {
		t.prices = appendCapped(t.prices, pricePoint(b), maxChartPoints)
	}
	n := len(t.bars)
	t.mu.Unlock()

	t.addLog("INFO", fmt.Sprintf("%s: %d", i18n.Get("TraderHistoryLoaded"), n))
	return nil
}

// poll appends bars strictly newer than the window and acts on the latest
// signal if it was produced by one of them.
func (t *Trader) poll(ctx context.Context) error {
	t.mu.RLock()
	last, hasLast := market.Last(t.bars)
	t.mu.RUnlock()

	req := data.Request{Symbol: t.req.Symbol, Interval: t.req.Interval}
	if hasLast {
		req.From = last.Time
	} else {
		req.Limit = t.deps.Window
	}
	fetched, err := t.deps.Provider.Bars(ctx, req)
	if err != nil {
		return err
	}
	fresh := fetched
	if hasLast {
		fresh = market.After(fetched, last.Time)
	}
	if len(fresh) == 0 {
		return nil
	}

	t.mu.Lock()
	t.bars = trim(append(t.bars, fresh...), t.deps.Window)
	for _, b := range fresh {
		t.prices = appendCapped(t.prices, pricePoint(b), maxChartPoints)
	}
	window := make([]market.Bar, len(t.bars))
	copy(window, t.bars)
	t.mu.Unlock()

	sig, ok := latestSignal(t.deps.Evaluate(window, t.req.Params))
	if !ok || (hasLast && !sig.Time.After(last.Time)) {
		t.addLog("DEBUG", fmt.Sprintf("%s: %d", i18n.Get("TraderNoSignal"), len(window)))
		return nil
	}
	return t.forward(ctx, sig)
}

// latestSignal ignores the synthetic end-of-data exit, which only closes a
// backtest and has no meaning on a live feed.
func latestSignal(signals []strategy.Signal) (strategy.Signal, bool) {
	for i := len(signals) - 1; i >= 0; i-- {
		if signals[i].Reason != strategy.ReasonEndOfData {
			return signals[i], true
		}
	}
	return strategy.Signal{}, false
}

func (t *Trader) forward(ctx context.Context, sig strategy.Signal) error {
	t.mu.Lock()
	t.lastSignal = &sig
	t.signals = appendCapped(t.signals, SignalPoint{
		Time:   sig.Time,
		Action: sig.Action,
		Price:  sig.Price,
		Reason: sig.Reason,
	}, maxChartPoints)
	position := t.position
	t.mu.Unlock()

	t.addLog("INFO", fmt.Sprintf("%s: %s @ %.4f", i18n.Get("TraderSignal"), sig.Action, sig.Price))

	event := SignalEvent{Key: t.key, Symbol: t.req.Symbol, Account: t.req.Account, Signal: sig}
	defer func() {
		if t.deps.Bus != nil {
			t.deps.Bus.Publish(events.EventLiveSignal, event)
		}
	}()

	if sig.IsEntry() == (position > 0) {
		t.addLog("WARNING", fmt.Sprintf("%s: %s", i18n.Get("TraderSignalSkipped"), sig.Action))
		return nil
	}
	if t.deps.Sink == nil {
		return nil
	}

	fill, err := t.deps.Sink.Submit(ctx, order.Intent{
		Symbol:  t.req.Symbol,
		Account: t.req.Account,
		Side:    sideOf(sig.Action),
		Price:   sig.Price,
		Time:    sig.Time,
		Reason:  string(sig.Reason),
	})
	if err != nil {
		return fmt.Errorf("submit %s: %w", sig.Action, err)
	}
	event.Fill = &fill

	t.mu.Lock()
	if fill.Side == order.SideBuy {
		t.position += fill.Quantity
	} else {
		t.position = 0
	}
	t.equity = appendCapped(t.equity, EquityPoint{Time: fill.Time, Equity: fill.Cash}, maxChartPoints)
	t.mu.Unlock()
	t.addLog("INFO", fmt.Sprintf("%s: %s %.4f @ %.4f", i18n.Get("TraderOrderFilled"), fill.Side, fill.Quantity, fill.Price))

	if t.deps.Recorder != nil {
		if err := t.deps.Recorder.InsertLiveSignal(ctx, db.LiveSignal{
			Symbol:   t.req.Symbol,
			Account:  t.req.Account,
			Action:   string(sig.Action),
			Price:    sig.Price,
			Quantity: fill.Quantity,
			Reason:   string(sig.Reason),
			Time:     sig.Time,
		}); err != nil {
			t.log.Warn(i18n.Get("TraderPersistFailed"), zap.Error(err))
		}
	}
	return nil
}

func (t *Trader) addLog(level, msg string) {
	entry := LogEntry{Time: time.Now().UTC(), Level: level, Message: msg}
	t.mu.Lock()
	t.logs = appendCapped(t.logs, entry, maxLogs)
	t.mu.Unlock()

	switch level {
	case "ERROR":
		t.log.Error(msg)
	case "WARNING":
		t.log.Warn(msg)
	case "DEBUG":
		t.log.Debug(msg)
	default:
		t.log.Info(msg)
	}
	if t.deps.Bus != nil {
		t.deps.Bus.Publish(events.EventTraderLog, LogEvent{Key: t.key, LogEntry: entry})
	}
}

// Status reports the trader's current state.
func (t *Trader) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Status{
		Key:        t.key,
		Symbol:     t.req.Symbol,
		Account:    t.req.Account,
		Interval:   t.req.Interval,
		Running:    t.running,
		StartedAt:  t.startedAt,
		Position:   t.position,
		Bars:       len(t.bars),
		LastSignal: t.lastSignal,
		Params:     t.req.Params,
	}
	if last, ok := market.Last(t.bars); ok {
		s.LastBar = last.Time
	}
	return s
}

// Logs returns the newest limit log entries, oldest first. limit <= 0 returns all.
func (t *Trader) Logs(limit int) []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return tail(t.logs, limit)
}

// Chart returns copies of the chart series.
func (t *Trader) Chart() Chart {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Chart{
		Prices:     tail(t.prices, 200),
		Signals:    tail(t.signals, 0),
		Equity:     tail(t.equity, 200),
		Position:   t.position,
		LastSignal: t.lastSignal,
		Bars:       len(t.bars),
	}
}

func pricePoint(b market.Bar) PricePoint {
	return PricePoint{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
}

func trim(bars []market.Bar, window int) []market.Bar {
	if len(bars) > window {
		return bars[len(bars)-window:]
	}
	return bars
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}

func tail[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		s = s[len(s)-limit:]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

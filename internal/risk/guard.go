// Package risk puts daily limits in front of an order sink. Entries are
// checked; exits always pass so open positions can be closed.
package risk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"strategy-lab/internal/events"
	"strategy-lab/internal/order"
	"strategy-lab/pkg/i18n"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Guard is an order.Sink that enforces Config before delegating.
type Guard struct {
	next   order.Sink
	bus    *events.Bus
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	cfg      Config
	accounts map[string]*Metrics
}

// NewGuard wraps next.
func NewGuard(next order.Sink, cfg Config, bus *events.Bus, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		next:     next,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
		accounts: make(map[string]*Metrics),
	}
}

// Submit evaluates the intent and forwards it when allowed.
func (g *Guard) Submit(ctx context.Context, in order.Intent) (order.Fill, error) {
	dec := g.Evaluate(in)
	if !dec.Allowed {
		fill := order.Fill{
			OrderID: uuid.NewString(),
			Symbol:  strings.ToUpper(in.Symbol),
			Account: in.Account,
			Side:    in.Side,
			Status:  order.StatusRejected,
			Price:   in.Price,
			Time:    in.Time,
		}
		g.logger.Warn(i18n.Get("RiskRejected"),
			zap.String("symbol", fill.Symbol),
			zap.String("account", in.Account),
			zap.String("reason", dec.Reason))
		if g.bus != nil {
			g.bus.Publish(events.EventOrderRejected, fill)
		}
		return fill, fmt.Errorf("%w: %s", ErrRejected, dec.Reason)
	}

	fill, err := g.next.Submit(ctx, in)
	if err == nil && fill.Status == order.StatusFilled {
		g.record(in, fill)
	}
	return fill, err
}

// Evaluate checks an intent against the limits without submitting it.
func (g *Guard) Evaluate(in order.Intent) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := g.cfg
	m := g.metrics(in.Account, g.dayOf(in))
	m.ChecksTotal++

	dec := Decision{Allowed: true}
	if !cfg.EnableRisk || in.Side != order.SideBuy {
		return dec
	}

	switch {
	case cfg.MaxDailyTrades > 0 && m.DailyTrades >= cfg.MaxDailyTrades:
		dec = Decision{Reason: fmt.Sprintf("daily trade limit reached: %d/%d", m.DailyTrades, cfg.MaxDailyTrades)}
	case cfg.MaxDailyLoss > 0 && m.DailyLosses >= cfg.MaxDailyLoss:
		dec = Decision{Reason: fmt.Sprintf("daily loss limit exceeded: %.2f/%.2f", m.DailyLosses, cfg.MaxDailyLoss)}
	}
	if !dec.Allowed {
		m.RejectionsTotal++
	}
	return dec
}

func (g *Guard) record(in order.Intent, fill order.Fill) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m := g.metrics(fill.Account, g.dayOf(in))
	m.DailyTrades++
	m.DailyPnL += fill.Realized
	if fill.Realized < 0 {
		m.DailyLosses += -fill.Realized
	}
}

// metrics returns the counters of account for day, resetting them when the
// day rolled over. Callers hold g.mu.
func (g *Guard) metrics(account, day string) *Metrics {
	m, ok := g.accounts[account]
	if !ok {
		m = &Metrics{Day: day}
		g.accounts[account] = m
	}
	if m.Day != day {
		*m = Metrics{Day: day, ChecksTotal: m.ChecksTotal, RejectionsTotal: m.RejectionsTotal}
	}
	return m
}

func (g *Guard) dayOf(in order.Intent) string {
	if in.Time.IsZero() {
		return dayOf(g.now())
	}
	return dayOf(in.Time)
}

// Metrics returns a copy of the account's counters.
func (g *Guard) Metrics(account string) Metrics {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.accounts[account]; ok {
		return *m
	}
	return Metrics{}
}

// Config returns the active limits.
func (g *Guard) Config() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// UpdateConfig replaces the limits. Counters are kept.
func (g *Guard) UpdateConfig(cfg Config) {
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
}

package order

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"strategy-lab/internal/events"
	"strategy-lab/pkg/i18n"
)

const maxHistory = 1000

var hundred = decimal.NewFromInt(100)

// PaperConfig controls the simulated cash ledger.
type PaperConfig struct {
	InitialCash float64
	// EquityPct is the share of cash committed per buy, in percent.
	EquityPct float64
	// LotSize is the quantity step; buys are rounded down to whole lots.
	LotSize float64
	// FallbackLots is bought when sizing rounds to zero lots. 0 rejects instead.
	FallbackLots int64
	// FeePct is charged on the notional of each fill, in percent.
	FeePct float64
}

// DefaultPaperConfig commits all cash in unit lots without fees.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{InitialCash: 100000, EquityPct: 100, LotSize: 1}
}

// Position is an open long holding.
type Position struct {
	Symbol     string  `json:"symbol"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
}

type position struct {
	qty   decimal.Decimal
	entry decimal.Decimal
}

type account struct {
	cash      decimal.Decimal
	positions map[string]*position
	history   []Fill
}

// PaperExecutor fills intents against an in-memory ledger per account.
type PaperExecutor struct {
	cfg    PaperConfig
	bus    *events.Bus
	logger *zap.Logger

	mu       sync.Mutex
	accounts map[string]*account
	now      func() time.Time
}

// NewPaperExecutor builds an executor. bus and logger may be nil.
func NewPaperExecutor(cfg PaperConfig, bus *events.Bus, logger *zap.Logger) *PaperExecutor {
	if cfg.EquityPct <= 0 || cfg.EquityPct > 100 {
		cfg.EquityPct = 100
	}
	if cfg.LotSize <= 0 {
		cfg.LotSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperExecutor{
		cfg:      cfg,
		bus:      bus,
		logger:   logger,
		accounts: make(map[string]*account),
		now:      time.Now,
	}
}

// Submit fills or rejects the intent. A rejected intent returns both the
// rejected Fill and the reason.
func (p *PaperExecutor) Submit(ctx context.Context, in Intent) (Fill, error) {
	if err := ctx.Err(); err != nil {
		return Fill{}, err
	}
	if err := in.validate(); err != nil {
		return Fill{}, err
	}
	in.Symbol = strings.ToUpper(in.Symbol)
	if in.Time.IsZero() {
		in.Time = p.now()
	}

	p.mu.Lock()
	acct := p.account(in.Account)
	var (
		fill Fill
		err  error
	)
	if in.Side == SideBuy {
		fill, err = p.buy(acct, in)
	} else {
		fill, err = p.sell(acct, in)
	}
	fill.Cash = acct.cash.InexactFloat64()
	acct.history = append(acct.history, fill)
	if len(acct.history) > maxHistory {
		acct.history = acct.history[len(acct.history)-maxHistory:]
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn(i18n.Get("OrderRejected"),
			zap.String("symbol", in.Symbol), zap.String("account", in.Account),
			zap.String("side", string(in.Side)), zap.Error(err))
	} else {
		p.logger.Info(i18n.Get("OrderFilled"),
			zap.String("symbol", fill.Symbol), zap.String("account", fill.Account),
			zap.String("side", string(fill.Side)), zap.Float64("qty", fill.Quantity),
			zap.Float64("price", fill.Price), zap.Float64("cash", fill.Cash))
	}
	emitFill(p.bus, fill)
	return fill, err
}

func (p *PaperExecutor) account(name string) *account {
	acct, ok := p.accounts[name]
	if !ok {
		acct = &account{
			cash:      decimal.NewFromFloat(p.cfg.InitialCash),
			positions: make(map[string]*position),
		}
		p.accounts[name] = acct
	}
	return acct
}

func (p *PaperExecutor) newFill(in Intent) Fill {
	return Fill{
		OrderID: uuid.NewString(),
		Symbol:  in.Symbol,
		Account: in.Account,
		Side:    in.Side,
		Price:   in.Price,
		Time:    in.Time,
	}
}

func (p *PaperExecutor) buy(acct *account, in Intent) (Fill, error) {
	fill := p.newFill(in)
	price := decimal.NewFromFloat(in.Price)
	lot := decimal.NewFromFloat(p.cfg.LotSize)
	feePct := decimal.NewFromFloat(p.cfg.FeePct)

	budget := acct.cash.Mul(decimal.NewFromFloat(p.cfg.EquityPct)).Div(hundred)
	perLot := price.Mul(lot).Mul(decimal.NewFromInt(1).Add(feePct.Div(hundred)))
	lots := budget.Div(perLot).Floor()
	if !lots.IsPositive() {
		lots = decimal.NewFromInt(p.cfg.FallbackLots)
	}
	qty := lots.Mul(lot)
	cost := qty.Mul(price)
	fee := cost.Mul(feePct).Div(hundred)
	if !qty.IsPositive() || cost.Add(fee).GreaterThan(acct.cash) {
		fill.Status = StatusRejected
		return fill, fmt.Errorf("%w: need %s, have %s", ErrInsufficientCash,
			cost.Add(fee).StringFixed(2), acct.cash.StringFixed(2))
	}

	acct.cash = acct.cash.Sub(cost).Sub(fee)
	if pos, ok := acct.positions[in.Symbol]; ok {
		total := pos.qty.Add(qty)
		pos.entry = pos.qty.Mul(pos.entry).Add(cost).Div(total)
		pos.qty = total
	} else {
		acct.positions[in.Symbol] = &position{qty: qty, entry: price}
	}

	fill.Status = StatusFilled
	fill.Quantity = qty.InexactFloat64()
	fill.Fee = fee.InexactFloat64()
	return fill, nil
}

func (p *PaperExecutor) sell(acct *account, in Intent) (Fill, error) {
	fill := p.newFill(in)
	pos, ok := acct.positions[in.Symbol]
	if !ok || !pos.qty.IsPositive() {
		fill.Status = StatusRejected
		return fill, fmt.Errorf("%w: %s", ErrNoPosition, in.Symbol)
	}

	price := decimal.NewFromFloat(in.Price)
	revenue := pos.qty.Mul(price)
	fee := revenue.Mul(decimal.NewFromFloat(p.cfg.FeePct)).Div(hundred)
	realized := revenue.Sub(fee).Sub(pos.qty.Mul(pos.entry))

	acct.cash = acct.cash.Add(revenue).Sub(fee)
	delete(acct.positions, in.Symbol)

	fill.Status = StatusFilled
	fill.Quantity = pos.qty.InexactFloat64()
	fill.Fee = fee.InexactFloat64()
	fill.Realized = realized.InexactFloat64()
	return fill, nil
}

// Cash returns the account's cash balance.
func (p *PaperExecutor) Cash(accountName string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.account(accountName).cash.InexactFloat64()
}

// Position returns the open position for symbol, if any.
func (p *PaperExecutor) Position(accountName, symbol string) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.account(accountName).positions[strings.ToUpper(symbol)]
	if !ok {
		return Position{}, false
	}
	return Position{
		Symbol:     strings.ToUpper(symbol),
		Quantity:   pos.qty.InexactFloat64(),
		EntryPrice: pos.entry.InexactFloat64(),
	}, true
}

// History returns the most recent fills of the account, oldest first.
func (p *PaperExecutor) History(accountName string) []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.account(accountName).history
	out := make([]Fill, len(h))
	copy(out, h)
	return out
}

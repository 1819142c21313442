package backtest

import (
	"math"

	"strategy-lab/internal/market"
	"strategy-lab/internal/strategy"
)

type position struct {
	units int64
	entry float64
	trade int
}

type ledger struct {
	opts    Options
	balance float64
	pos     position
	trades  []Trade
	equity  []float64
}

// Simulate replays signals against a cash account. bars supply the mark
// prices for the equity curve and the force-close price for a position left
// open after the last signal.
func Simulate(bars []market.Bar, signals []strategy.Signal, opts Options) Result {
	l := &ledger{
		opts:    opts,
		balance: opts.InitialBalance,
		trades:  make([]Trade, 0, len(signals)/2+1),
		equity:  make([]float64, 0, len(signals)+1),
	}
	l.equity = append(l.equity, l.balance)

	cursor := 0
	for _, sig := range signals {
		switch sig.Action {
		case strategy.ActionEnterLong:
			l.enter(sig)
		case strategy.ActionExitLong:
			l.exit(sig)
		}

		// Mark at the latest close not after the signal.
		for cursor < len(bars)-1 && !bars[cursor+1].Time.After(sig.Time) {
			cursor++
		}
		mark := l.balance
		if l.pos.units > 0 {
			price := sig.Price
			if cursor < len(bars) && !bars[cursor].Time.After(sig.Time) {
				price = bars[cursor].Close
			}
			mark += float64(l.pos.units) * price
		}
		l.equity = append(l.equity, mark)
	}

	if l.pos.units > 0 {
		if last, ok := market.Last(bars); ok {
			l.exit(strategy.Signal{Action: strategy.ActionExitLong, Price: last.Close, Time: last.Time})
		}
	}

	return l.result()
}

func (l *ledger) units(price float64) int64 {
	if price <= 0 {
		return 0
	}
	s := l.opts.Sizing
	if s.Mode == SizeFixedUnits {
		return s.Units
	}
	n := int64(math.Floor(l.balance * s.EquityPct / 100 / price))
	if n <= 0 {
		n = s.FallbackUnits
	}
	return n
}

func (l *ledger) enter(sig strategy.Signal) {
	if l.pos.units > 0 {
		return
	}
	n := l.units(sig.Price)
	if n <= 0 {
		return
	}
	notional := float64(n) * sig.Price
	fee := notional * l.opts.CommissionPct / 100
	if notional+fee > l.balance {
		return
	}

	l.balance -= notional + fee
	l.trades = append(l.trades, Trade{
		EntryTime:  sig.Time,
		EntryPrice: sig.Price,
		Quantity:   n,
		Direction:  DirectionLong,
	})
	l.pos = position{units: n, entry: sig.Price, trade: len(l.trades) - 1}
}

func (l *ledger) exit(sig strategy.Signal) {
	if l.pos.units <= 0 {
		return
	}
	units := float64(l.pos.units)
	revenue := units * sig.Price
	fee := revenue * l.opts.CommissionPct / 100
	l.balance += revenue - fee

	cost := units * l.pos.entry
	profit := revenue - fee - cost - cost*l.opts.CommissionPct/100

	t := &l.trades[l.pos.trade]
	t.Exit = &Exit{Time: sig.Time, Price: sig.Price}
	t.Profit = profit
	if cost != 0 {
		t.ProfitPct = profit / cost * 100
	}
	l.pos = position{}
}

func (l *ledger) result() Result {
	closed := make([]Trade, 0, len(l.trades))
	res := Result{EquityCurve: l.equity, FinalBalance: l.balance}
	for _, t := range l.trades {
		if !t.Closed() {
			continue
		}
		closed = append(closed, t)
		if t.Profit > 0 {
			res.WinningTrades++
		} else {
			res.LosingTrades++
		}
	}
	res.Trades = closed
	res.TotalTrades = len(closed)
	res.TotalProfit = l.balance - l.opts.InitialBalance
	if l.opts.InitialBalance != 0 {
		res.TotalProfitPct = (l.balance/l.opts.InitialBalance - 1) * 100
	}
	res.MaxDrawdown, res.MaxDrawdownPct = MaxDrawdown(l.equity)
	res.Ratio = Ratio(l.equity)
	return res
}

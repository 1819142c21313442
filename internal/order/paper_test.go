package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/events"
)

func buyAt(price float64) Intent {
	return Intent{Symbol: "btcusdt", Account: "paper", Side: SideBuy, Price: price, Time: time.Unix(0, 0)}
}

func sellAt(price float64) Intent {
	in := buyAt(price)
	in.Side = SideSell
	return in
}

func TestPaperBuySizesWholeLots(t *testing.T) {
	p := NewPaperExecutor(PaperConfig{InitialCash: 1000, EquityPct: 50, LotSize: 10}, nil, nil)

	fill, err := p.Submit(context.Background(), buyAt(7))
	require.NoError(t, err)

	// 500 / (7*10) = 7.14 lots -> 7 lots of 10
	assert.Equal(t, StatusFilled, fill.Status)
	assert.Equal(t, 70.0, fill.Quantity)
	assert.InDelta(t, 510.0, p.Cash("paper"), 1e-9)
	assert.NotEmpty(t, fill.OrderID)

	pos, ok := p.Position("paper", "BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 70.0, pos.Quantity)
	assert.Equal(t, 7.0, pos.EntryPrice)
}

func TestPaperSellRealizesProfit(t *testing.T) {
	p := NewPaperExecutor(PaperConfig{InitialCash: 1000, EquityPct: 100, LotSize: 1, FeePct: 1}, nil, nil)

	buy, err := p.Submit(context.Background(), buyAt(99))
	require.NoError(t, err)
	// 1000 / 99 = 10 units, cost 990, fee 9.9
	assert.Equal(t, 10.0, buy.Quantity)
	assert.InDelta(t, 0.1, p.Cash("paper"), 1e-9)

	sell, err := p.Submit(context.Background(), sellAt(110))
	require.NoError(t, err)
	assert.Equal(t, 10.0, sell.Quantity)
	assert.InDelta(t, 11.0, sell.Fee, 1e-9)
	assert.InDelta(t, 1100-11-990, sell.Realized, 1e-9)
	assert.InDelta(t, 0.1+1100-11, p.Cash("paper"), 1e-9)

	_, ok := p.Position("paper", "BTCUSDT")
	assert.False(t, ok)
}

func TestPaperRejectsUnfundedBuy(t *testing.T) {
	p := NewPaperExecutor(PaperConfig{InitialCash: 50, LotSize: 1}, nil, nil)

	fill, err := p.Submit(context.Background(), buyAt(100))
	assert.ErrorIs(t, err, ErrInsufficientCash)
	assert.Equal(t, StatusRejected, fill.Status)
	assert.Equal(t, 50.0, p.Cash("paper"))
}

func TestPaperFallbackLots(t *testing.T) {
	p := NewPaperExecutor(PaperConfig{InitialCash: 150, EquityPct: 10, LotSize: 1, FallbackLots: 1}, nil, nil)

	fill, err := p.Submit(context.Background(), buyAt(100))
	require.NoError(t, err)
	assert.Equal(t, 1.0, fill.Quantity)
	assert.Equal(t, 50.0, p.Cash("paper"))

	_, err = p.Submit(context.Background(), buyAt(100))
	assert.ErrorIs(t, err, ErrInsufficientCash)
}

func TestPaperSellWithoutPosition(t *testing.T) {
	p := NewPaperExecutor(DefaultPaperConfig(), nil, nil)
	fill, err := p.Submit(context.Background(), sellAt(10))
	assert.ErrorIs(t, err, ErrNoPosition)
	assert.Equal(t, StatusRejected, fill.Status)
}

func TestPaperInvalidIntent(t *testing.T) {
	p := NewPaperExecutor(DefaultPaperConfig(), nil, nil)

	_, err := p.Submit(context.Background(), Intent{Symbol: "X", Side: "HOLD", Price: 1})
	assert.ErrorIs(t, err, ErrInvalidIntent)
	_, err = p.Submit(context.Background(), Intent{Symbol: "X", Side: SideBuy})
	assert.ErrorIs(t, err, ErrInvalidIntent)
	assert.Empty(t, p.History(""))
}

func TestPaperAccountsAreIsolated(t *testing.T) {
	p := NewPaperExecutor(PaperConfig{InitialCash: 100, LotSize: 1}, nil, nil)

	in := buyAt(10)
	in.Account = "a"
	_, err := p.Submit(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 0.0, p.Cash("a"))
	assert.Equal(t, 100.0, p.Cash("b"))
	assert.Len(t, p.History("a"), 1)
}

func TestPaperPublishesFills(t *testing.T) {
	bus := events.NewBus()
	ch, unsub := bus.SubscribeMany(4, events.EventOrderFilled, events.EventOrderRejected)
	defer unsub()

	p := NewPaperExecutor(PaperConfig{InitialCash: 100, LotSize: 1}, bus, nil)
	_, _ = p.Submit(context.Background(), buyAt(10))
	_, _ = p.Submit(context.Background(), buyAt(10))

	first := (<-ch).(events.Message)
	second := (<-ch).(events.Message)
	assert.Equal(t, events.EventOrderFilled, first.Topic)
	assert.Equal(t, events.EventOrderRejected, second.Topic)
	assert.Equal(t, StatusRejected, second.Payload.(Fill).Status)
}

func TestPaperHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPaperExecutor(DefaultPaperConfig(), nil, nil).Submit(ctx, buyAt(1))
	assert.ErrorIs(t, err, context.Canceled)
}

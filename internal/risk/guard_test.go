package risk

import (
	"context"
	"testing"
	"time"

	"strategy-lab/internal/events"
	"strategy-lab/internal/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSink fills every intent and reports the queued realized results on sells.
type scriptedSink struct {
	calls    int
	realized []float64
}

func (s *scriptedSink) Submit(_ context.Context, in order.Intent) (order.Fill, error) {
	s.calls++
	fill := order.Fill{Symbol: in.Symbol, Account: in.Account, Side: in.Side, Status: order.StatusFilled, Quantity: 1, Price: in.Price, Time: in.Time}
	if in.Side == order.SideSell && len(s.realized) > 0 {
		fill.Realized = s.realized[0]
		s.realized = s.realized[1:]
	}
	return fill, nil
}

var day = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func intent(side order.Side, at time.Time) order.Intent {
	return order.Intent{Symbol: "sber", Account: "paper", Side: side, Price: 250, Time: at}
}

func TestDailyTradeLimit(t *testing.T) {
	sink := &scriptedSink{}
	g := NewGuard(sink, Config{EnableRisk: true, MaxDailyTrades: 2}, nil, nil)
	ctx := context.Background()

	_, err := g.Submit(ctx, intent(order.SideBuy, day))
	require.NoError(t, err)
	_, err = g.Submit(ctx, intent(order.SideSell, day.Add(time.Hour)))
	require.NoError(t, err)

	fill, err := g.Submit(ctx, intent(order.SideBuy, day.Add(2*time.Hour)))
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, order.StatusRejected, fill.Status)
	assert.Equal(t, "SBER", fill.Symbol)
	assert.Equal(t, 2, sink.calls)

	m := g.Metrics("paper")
	assert.Equal(t, 2, m.DailyTrades)
	assert.EqualValues(t, 1, m.RejectionsTotal)

	// Next day starts fresh.
	_, err = g.Submit(ctx, intent(order.SideBuy, day.Add(24*time.Hour)))
	assert.NoError(t, err)
	assert.Equal(t, 1, g.Metrics("paper").DailyTrades)
}

func TestDailyLossLimitBlocksEntriesOnly(t *testing.T) {
	sink := &scriptedSink{realized: []float64{-150, 40}}
	g := NewGuard(sink, Config{EnableRisk: true, MaxDailyLoss: 100}, nil, nil)
	ctx := context.Background()

	_, err := g.Submit(ctx, intent(order.SideBuy, day))
	require.NoError(t, err)
	_, err = g.Submit(ctx, intent(order.SideSell, day.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 150.0, g.Metrics("paper").DailyLosses)

	_, err = g.Submit(ctx, intent(order.SideBuy, day.Add(2*time.Hour)))
	assert.ErrorIs(t, err, ErrRejected)

	// Exits are never blocked.
	_, err = g.Submit(ctx, intent(order.SideSell, day.Add(3*time.Hour)))
	assert.NoError(t, err)
	assert.Equal(t, -110.0, g.Metrics("paper").DailyPnL)
}

func TestDisabledGuardPassesThrough(t *testing.T) {
	sink := &scriptedSink{}
	g := NewGuard(sink, Config{MaxDailyTrades: 1}, nil, nil)
	for i := 0; i < 3; i++ {
		_, err := g.Submit(context.Background(), intent(order.SideBuy, day))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, sink.calls)

	g.UpdateConfig(Config{EnableRisk: true, MaxDailyTrades: 1})
	assert.True(t, g.Config().EnableRisk)
	assert.False(t, g.Evaluate(intent(order.SideBuy, day)).Allowed)
}

func TestRejectionPublished(t *testing.T) {
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventOrderRejected, 1)
	defer unsub()

	g := NewGuard(&scriptedSink{}, Config{EnableRisk: true, MaxDailyTrades: 1}, bus, nil)
	g.accounts["paper"] = &Metrics{Day: dayOf(day), DailyTrades: 1}

	_, err := g.Submit(context.Background(), intent(order.SideBuy, day))
	require.ErrorIs(t, err, ErrRejected)

	select {
	case msg := <-ch:
		fill, ok := msg.(order.Fill)
		require.True(t, ok)
		assert.Equal(t, order.StatusRejected, fill.Status)
	case <-time.After(time.Second):
		t.Fatal("rejection not published")
	}
}

package monitor

import (
	"context"

	"go.uber.org/zap"

	"strategy-lab/internal/events"
	"strategy-lab/internal/live"
	"strategy-lab/internal/order"
)

// Monitor turns bus events into metric updates.
type Monitor struct {
	Bus     *events.Bus
	Metrics *Metrics
	Logger  *zap.Logger
}

// Start consumes events until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Metrics == nil {
		if m.Logger != nil {
			m.Logger.Warn("monitor not fully configured; skipping")
		}
		return
	}
	stream, unsub := m.Bus.SubscribeMany(256,
		events.EventLiveSignal,
		events.EventOrderFilled,
		events.EventOrderRejected,
		events.EventTraderState,
	)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				m.handle(msg.(events.Message))
			}
		}
	}()
}

func (m *Monitor) handle(msg events.Message) {
	switch p := msg.Payload.(type) {
	case order.Fill:
		m.Metrics.OrderFills.WithLabelValues(string(p.Status)).Inc()
	case live.SignalEvent:
		m.Metrics.LiveSignals.WithLabelValues(string(p.Signal.Action)).Inc()
	case live.StateEvent:
		m.Metrics.ActiveTraders.Set(float64(p.Running))
	}
}

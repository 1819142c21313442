package events

// Event enumerates topics published inside strategy-lab.
type Event string

const (
	EventLiveSignal       Event = "live.signal"
	EventTraderLog        Event = "trader.log"
	EventTraderState      Event = "trader.state"
	EventOrderFilled      Event = "order.filled"
	EventOrderRejected    Event = "order.rejected"
	EventOptimizationDone Event = "optimization.done"
)

// Message is a payload tagged with its topic, as delivered by SubscribeMany.
type Message struct {
	Topic   Event `json:"topic"`
	Payload any   `json:"payload"`
}

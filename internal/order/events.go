package order

import (
	"strategy-lab/internal/events"
)

// emitFill publishes the outcome of an intent on the bus.
func emitFill(bus *events.Bus, f Fill) {
	if bus == nil {
		return
	}
	topic := events.EventOrderFilled
	if f.Status == StatusRejected {
		topic = events.EventOrderRejected
	}
	bus.Publish(topic, f)
}

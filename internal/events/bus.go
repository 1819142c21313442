package events

import (
	"sync"
)

type subscriber struct {
	ch     chan any
	tagged bool
}

// Bus is a lightweight pub/sub broker using channels.
type Bus struct {
	mu   sync.RWMutex
	subs map[Event][]*subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]*subscriber)}
}

// Subscribe registers a listener for an event and returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	ch := make(chan any, buffer)
	unsub := b.add(&subscriber{ch: ch}, e)
	return ch, unsub
}

// SubscribeMany delivers every listed topic on one channel as Message values.
func (b *Bus) SubscribeMany(buffer int, topics ...Event) (<-chan any, func()) {
	ch := make(chan any, buffer)
	unsub := b.add(&subscriber{ch: ch, tagged: true}, topics...)
	return ch, unsub
}

func (b *Bus) add(s *subscriber, topics ...Event) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range topics {
		b.subs[e] = append(b.subs[e], s)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, e := range topics {
				subs := b.subs[e]
				for i, c := range subs {
					if c == s {
						b.subs[e] = append(subs[:i], subs[i+1:]...)
						break
					}
				}
			}
			close(s.ch)
		})
	}
}

// Publish fan-outs the payload to subscribers without blocking.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[e] {
		var v any = payload
		if s.tagged {
			v = Message{Topic: e, Payload: payload}
		}
		select {
		case s.ch <- v:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}

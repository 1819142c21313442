package order

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Side of an order intent.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status of a processed intent.
type Status string

const (
	StatusFilled   Status = "FILLED"
	StatusRejected Status = "REJECTED"
)

var (
	// ErrInsufficientCash is returned when a buy cannot be funded.
	ErrInsufficientCash = errors.New("insufficient cash")
	// ErrNoPosition is returned when a sell finds nothing to close.
	ErrNoPosition = errors.New("no open position")
	// ErrInvalidIntent is returned for malformed intents.
	ErrInvalidIntent = errors.New("invalid order intent")
)

// Intent is what a trader wants to do at a signal.
type Intent struct {
	Symbol  string
	Account string
	Side    Side
	Price   float64
	Time    time.Time
	Reason  string
}

// Fill is the outcome of submitting an intent.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Symbol   string    `json:"symbol"`
	Account  string    `json:"account"`
	Side     Side      `json:"side"`
	Status   Status    `json:"status"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Fee      float64   `json:"fee"`
	Realized float64   `json:"realized_pnl"`
	Cash     float64   `json:"cash"`
	Time     time.Time `json:"time"`
}

// Sink accepts order intents.
type Sink interface {
	Submit(ctx context.Context, in Intent) (Fill, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, in Intent) (Fill, error)

// Submit calls f.
func (f SinkFunc) Submit(ctx context.Context, in Intent) (Fill, error) {
	return f(ctx, in)
}

func (in Intent) validate() error {
	switch {
	case in.Symbol == "":
		return fmt.Errorf("%w: symbol is empty", ErrInvalidIntent)
	case in.Side != SideBuy && in.Side != SideSell:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidIntent, in.Side)
	case !(in.Price > 0):
		return fmt.Errorf("%w: price must be positive", ErrInvalidIntent)
	}
	return nil
}

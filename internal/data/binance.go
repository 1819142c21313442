package data

import (
	"context"
	"fmt"
	"math"
	"time"

	"strategy-lab/internal/market"
	"strategy-lab/pkg/market/binance"
)

// KlineSource is the subset of the Binance client the provider needs.
type KlineSource interface {
	Klines(ctx context.Context, req binance.KlineRequest) ([]binance.Kline, error)
}

// BinanceProvider pages historical klines from the Binance public API.
type BinanceProvider struct {
	client KlineSource
	// MaxPages bounds a single request; 0 means unlimited.
	MaxPages int
}

// NewBinanceProvider wraps a kline source.
func NewBinanceProvider(client KlineSource) *BinanceProvider {
	return &BinanceProvider{client: client, MaxPages: 100}
}

// Bars fetches klines forward from req.From until req.To (or the most recent
// req.Limit bars when From is zero).
func (p *BinanceProvider) Bars(ctx context.Context, req Request) ([]market.Bar, error) {
	if _, err := ParseInterval(req.Interval); err != nil {
		return nil, err
	}

	if req.From.IsZero() {
		limit := req.Limit
		if limit <= 0 {
			limit = binance.MaxKlinesPerRequest
		}
		klines, err := p.client.Klines(ctx, binance.KlineRequest{
			Symbol:   req.Symbol,
			Interval: req.Interval,
			Limit:    limit,
			EndTime:  millis(req.To),
		})
		if err != nil {
			return nil, fmt.Errorf("fetch klines %s: %w", req.Symbol, err)
		}
		return p.finish(toBars(klines), req)
	}

	var bars []market.Bar
	start := req.From.UnixMilli()
	for page := 0; p.MaxPages == 0 || page < p.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		klines, err := p.client.Klines(ctx, binance.KlineRequest{
			Symbol:    req.Symbol,
			Interval:  req.Interval,
			Limit:     binance.MaxKlinesPerRequest,
			StartTime: start,
			EndTime:   millis(req.To),
		})
		if err != nil {
			return nil, fmt.Errorf("fetch klines %s page %d: %w", req.Symbol, page, err)
		}
		bars = append(bars, toBars(klines)...)
		if len(klines) < binance.MaxKlinesPerRequest {
			break
		}
		next := klines[len(klines)-1].OpenTime + 1
		if next <= start {
			break
		}
		start = next
	}
	return p.finish(bars, req)
}

func (p *BinanceProvider) finish(bars []market.Bar, req Request) ([]market.Bar, error) {
	bars = normalize(bars, req)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, req.Symbol, req.Interval)
	}
	return bars, nil
}

func toBars(klines []binance.Kline) []market.Bar {
	out := make([]market.Bar, 0, len(klines))
	for _, k := range klines {
		out = append(out, market.Bar{
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: int64(math.Round(k.Volume)),
		})
	}
	return out
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

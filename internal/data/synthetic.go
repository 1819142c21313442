package data

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"strategy-lab/internal/market"
)

const anchorBars = 1000

// SyntheticProvider serves deterministic random-walk bars per symbol for
// offline development.
type SyntheticProvider struct {
	Seed       int64
	StartPrice float64
	Step       float64
	// Count is used when the request has no From bound.
	Count int
	now   func() time.Time
}

// NewSyntheticProvider builds a provider with sensible walk settings.
func NewSyntheticProvider(seed int64) *SyntheticProvider {
	return &SyntheticProvider{Seed: seed, StartPrice: 100, Step: 1, Count: 1000, now: time.Now}
}

// Bars generates bars aligned to the interval grid between From and To.
func (p *SyntheticProvider) Bars(ctx context.Context, req Request) ([]market.Bar, error) {
	step, err := ParseInterval(req.Interval)
	if err != nil {
		return nil, err
	}
	to := req.To
	if to.IsZero() {
		to = p.now().UTC()
	}
	to = to.Truncate(step)
	from := req.From.Truncate(step)
	if req.From.IsZero() {
		n := p.Count
		if req.Limit > 0 {
			n = req.Limit
		}
		from = to.Add(-time.Duration(n-1) * step)
	}

	// Walks restart every anchorBars intervals, so requests that start in
	// the same block see identical prices.
	anchor := from.Truncate(anchorBars * step)
	gen := market.NewGenerator(p.seedFor(req.Symbol, req.Interval, anchor), p.StartPrice, p.Step, step)
	gen.Start = anchor

	var bars []market.Bar
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := gen.Next()
		if b.Time.After(to) {
			break
		}
		if !b.Time.Before(from) {
			bars = append(bars, b)
		}
	}
	bars = normalize(bars, req)
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

func (p *SyntheticProvider) seedFor(symbol, interval string, anchor time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol) + "|" + interval))
	return p.Seed ^ int64(h.Sum64()) ^ anchor.Unix()
}

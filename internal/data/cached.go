package data

import (
	"context"
	"time"

	"strategy-lab/internal/market"
	"strategy-lab/pkg/cache"
)

// CachedProvider memoizes another provider's results for TTL.
type CachedProvider struct {
	inner Provider
	cache *cache.Sharded[[]market.Bar]
	ttl   time.Duration
}

// NewCachedProvider wraps inner; ttl <= 0 keeps entries until evicted.
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache.NewSharded[[]market.Bar](), ttl: ttl}
}

// Bars serves from cache when fresh, otherwise loads and stores a copy.
// Requests without an upper bound ask for the latest bars and always go to
// the inner provider.
func (p *CachedProvider) Bars(ctx context.Context, req Request) ([]market.Bar, error) {
	if req.To.IsZero() {
		return p.inner.Bars(ctx, req)
	}
	key := req.Key()
	if bars, ok := p.cache.GetFresh(key, p.ttl); ok {
		return clone(bars), nil
	}
	bars, err := p.inner.Bars(ctx, req)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, clone(bars))
	return bars, nil
}

// Evict drops expired entries and returns how many were removed.
func (p *CachedProvider) Evict() int {
	if p.ttl <= 0 {
		return 0
	}
	return p.cache.Cleanup(p.ttl)
}

// Stats exposes the underlying cache statistics.
func (p *CachedProvider) Stats() cache.Stats {
	return p.cache.Stats()
}

func clone(bars []market.Bar) []market.Bar {
	out := make([]market.Bar, len(bars))
	copy(out, bars)
	return out
}

package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"strategy-lab/internal/market"
)

// ErrNoData is returned when a source has no bars for a request.
var ErrNoData = errors.New("no bars available")

// Request selects a bar history. Zero From/To leave the bound open; Limit,
// when set, keeps only the newest Limit bars.
type Request struct {
	Symbol   string
	Interval string
	From     time.Time
	To       time.Time
	Limit    int
}

// Key identifies the request for caching.
func (r Request) Key() string {
	return fmt.Sprintf("%s|%s|%d|%d|%d", strings.ToUpper(r.Symbol), r.Interval, r.From.UnixMilli(), r.To.UnixMilli(), r.Limit)
}

// Provider loads chronologically ordered bars.
type Provider interface {
	Bars(ctx context.Context, req Request) ([]market.Bar, error)
}

var intervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

var intervalAliases = map[string]string{
	"minute":   "1m",
	"5minute":  "5m",
	"15minute": "15m",
	"hour":     "1h",
	"4hour":    "4h",
	"day":      "1d",
	"week":     "1w",
}

// NormalizeInterval maps word aliases ("hour", "day") to Binance-style names
// and validates the result.
func NormalizeInterval(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if alias, ok := intervalAliases[s]; ok {
		s = alias
	}
	if _, err := ParseInterval(s); err != nil {
		return "", err
	}
	return s, nil
}

// ParseInterval converts a Binance-style interval ("1m", "4h", "1d") to a duration.
func ParseInterval(s string) (time.Duration, error) {
	d, ok := intervals[s]
	if !ok {
		return 0, fmt.Errorf("unsupported interval %q", s)
	}
	return d, nil
}

// normalize sorts bars by time, drops duplicate timestamps (keeping the last
// one seen), applies the request window and limit.
func normalize(bars []market.Bar, req Request) []market.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	out := bars[:0]
	for _, b := range bars {
		if !req.From.IsZero() && b.Time.Before(req.From) {
			continue
		}
		if !req.To.IsZero() && b.Time.After(req.To) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[len(out)-req.Limit:]
	}
	return out
}

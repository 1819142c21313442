package data

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/market"
	"strategy-lab/pkg/market/binance"
)

type fakeKlines struct {
	total int
	start int64
	step  int64
	calls []binance.KlineRequest
}

func (f *fakeKlines) Klines(_ context.Context, req binance.KlineRequest) ([]binance.Kline, error) {
	f.calls = append(f.calls, req)
	var out []binance.Kline
	for i := 0; i < f.total && len(out) < req.Limit; i++ {
		ts := f.start + int64(i)*f.step
		if ts < req.StartTime || (req.EndTime > 0 && ts > req.EndTime) {
			continue
		}
		out = append(out, binance.Kline{OpenTime: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10.4})
	}
	return out, nil
}

func TestBinanceProviderPagesForward(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeKlines{total: 2500, start: start.UnixMilli(), step: time.Minute.Milliseconds()}
	p := NewBinanceProvider(src)

	bars, err := p.Bars(context.Background(), Request{Symbol: "BTCUSDT", Interval: "1m", From: start})
	require.NoError(t, err)

	assert.Len(t, bars, 2500)
	assert.Len(t, src.calls, 3)
	assert.Equal(t, start, bars[0].Time)
	assert.Equal(t, int64(10), bars[0].Volume)
	for i := 1; i < len(bars); i++ {
		require.True(t, bars[i].Time.After(bars[i-1].Time))
	}
}

func TestBinanceProviderRejectsBadInterval(t *testing.T) {
	_, err := NewBinanceProvider(&fakeKlines{}).Bars(context.Background(), Request{Symbol: "X", Interval: "7m"})
	assert.Error(t, err)
}

func TestBinanceProviderEmpty(t *testing.T) {
	_, err := NewBinanceProvider(&fakeKlines{}).Bars(context.Background(), Request{Symbol: "X", Interval: "1h", Limit: 10})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestCSVRoundTrip(t *testing.T) {
	bars := market.NewGenerator(3, 50, 1, time.Hour).Bars(20)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bars))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, back, len(bars))
	for i := range bars {
		assert.True(t, bars[i].Time.Equal(back[i].Time))
		assert.Equal(t, bars[i].Close, back[i].Close)
		assert.Equal(t, bars[i].Volume, back[i].Volume)
	}
}

func TestReadCSVUnixMillisAndErrors(t *testing.T) {
	doc := "time,open,high,low,close,volume\n1704067200000,1,2,0.5,1.5,100\n"
	bars, err := ReadCSV(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Time)

	_, err = ReadCSV(strings.NewReader("ts,o,h,l,c,v\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("time,open,high,low,close,volume\n2024-01-01T00:00:00Z,x,2,0.5,1.5,100\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestCSVProviderFiltersAndDedupes(t *testing.T) {
	dir := t.TempDir()
	doc := strings.Join([]string{
		"time,open,high,low,close,volume",
		"2024-01-01T02:00:00Z,3,3,3,3,1",
		"2024-01-01T00:00:00Z,1,1,1,1,1",
		"2024-01-01T01:00:00Z,2,2,2,2,1",
		"2024-01-01T01:00:00Z,2,2,2,2.5,1",
		"2024-01-01T03:00:00Z,4,4,4,4,1",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SBER_1h.csv"), []byte(doc), 0o644))

	p := NewCSVProvider(dir)
	bars, err := p.Bars(context.Background(), Request{
		Symbol:   "sber",
		Interval: "1h",
		To:       time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 2.5, bars[1].Close)

	_, err = p.Bars(context.Background(), Request{Symbol: "GAZP", Interval: "1h"})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSyntheticProviderDeterministic(t *testing.T) {
	p := NewSyntheticProvider(11)
	to := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	req := Request{Symbol: "BTCUSDT", Interval: "1h", To: to, Limit: 200}

	a, err := p.Bars(context.Background(), req)
	require.NoError(t, err)
	b, err := p.Bars(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, a, 200)
	assert.Equal(t, a, b)
	assert.Equal(t, to, a[len(a)-1].Time)

	other, err := p.Bars(context.Background(), Request{Symbol: "ETHUSDT", Interval: "1h", To: to, Limit: 200})
	require.NoError(t, err)
	assert.NotEqual(t, a[0].Close, other[0].Close)
}

type countingProvider struct {
	calls int
}

func (c *countingProvider) Bars(_ context.Context, req Request) ([]market.Bar, error) {
	c.calls++
	return market.NewGenerator(1, 10, 1, time.Hour).Bars(5), nil
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, time.Hour)
	to := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	req := Request{Symbol: "BTCUSDT", Interval: "1h", To: to, Limit: 5}

	first, err := p.Bars(context.Background(), req)
	require.NoError(t, err)
	first[0].Close = -1

	second, err := p.Bars(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.NotEqual(t, -1.0, second[0].Close)

	_, err = p.Bars(context.Background(), Request{Symbol: "BTCUSDT", Interval: "4h", To: to, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, p.Stats().TotalItems)
}

func TestCachedProviderPassesLatestThrough(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, time.Hour)
	req := Request{Symbol: "BTCUSDT", Interval: "1h", From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}

	for i := 0; i < 3; i++ {
		_, err := p.Bars(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
	assert.Zero(t, p.Stats().TotalItems)
}

func TestNormalizeInterval(t *testing.T) {
	for in, want := range map[string]string{"hour": "1h", "DAY": "1d", "4h": "4h", " 15minute ": "15m"} {
		got, err := NormalizeInterval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := NormalizeInterval("fortnight")
	assert.Error(t, err)
}

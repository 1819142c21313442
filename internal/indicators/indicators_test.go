package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/market"
)

func barsFromCloses(closes ...float64) []market.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = market.Bar{
			Time:  start.Add(time.Duration(i) * time.Hour),
			Open:  open,
			High:  math.Max(open, c) + 0.5,
			Low:   math.Min(open, c) - 0.5,
			Close: c,
		}
	}
	return bars
}

func TestAdaptiveAverageSeedsAndSmooths(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}
	avg := AdaptiveAverage(prices, 3, 2, 30)

	require.Len(t, avg, len(prices))
	assert.Equal(t, prices[:3], avg[:3])

	// A straight line has efficiency 1, so sc = fastSC^2.
	sc := math.Pow(2.0/3.0, 2)
	want := sc*13 + (1-sc)*12
	assert.InDelta(t, want, avg[3], 1e-12)
}

func TestAdaptiveAverageFlatSeries(t *testing.T) {
	prices := []float64{5, 5, 5, 5, 5}
	avg := AdaptiveAverage(prices, 2, 2, 30)
	for _, v := range avg {
		assert.Equal(t, 5.0, v)
	}
}

func TestAdaptiveAverageShortInputIsCopy(t *testing.T) {
	prices := []float64{1, 2}
	avg := AdaptiveAverage(prices, 5, 2, 30)
	assert.Equal(t, prices, avg)
	avg[0] = 99
	assert.Equal(t, 1.0, prices[0])
}

func TestVolatilityRangeWarmUp(t *testing.T) {
	bars := barsFromCloses(10, 11, 12, 11, 13, 14)
	vol := VolatilityRange(bars, 3)

	for i := 0; i < 3; i++ {
		assert.False(t, Defined(vol[i]), "index %d", i)
	}
	tr := TrueRange(bars)
	seed := (tr[1] + tr[2] + tr[3]) / 3
	assert.InDelta(t, seed, vol[3], 1e-12)
	assert.InDelta(t, (seed*2+tr[4])/3, vol[4], 1e-12)
}

func TestTrueRangeUsesPreviousClose(t *testing.T) {
	bars := []market.Bar{
		{Open: 10, High: 11, Low: 9, Close: 10},
		{Open: 14, High: 15, Low: 14, Close: 14.5},
	}
	tr := TrueRange(bars)
	assert.Equal(t, 2.0, tr[0])
	assert.Equal(t, 5.0, tr[1])
}

func TestRollingStatsPropagateUndefined(t *testing.T) {
	values := []float64{NaN, 1, 2, 3, 4}
	m := RollingMean(values, 2)

	assert.False(t, Defined(m[0]))
	assert.False(t, Defined(m[1]))
	assert.False(t, Defined(m[2]), "window includes NaN")
	assert.InDelta(t, 1.5, m[3], 1e-12)
	assert.InDelta(t, 2.5, m[4], 1e-12)

	s := RollingStd(values, 2)
	assert.InDelta(t, 0.5, s[4], 1e-12)
}

func TestFilters(t *testing.T) {
	bars := []market.Bar{
		{Open: 10, Close: 12},
		{Open: 12, Close: 11},
		{Open: 10, Close: 10.1},
	}
	vol := []float64{1, 1, NaN}

	assert.Equal(t, []bool{true, false, false}, StrongBullish(bars, vol, 0.5))
	assert.Equal(t, []bool{false, true, false}, HighVolatilityPhase([]float64{1, 3, NaN}, []float64{2, 2, 2}, 1))

	stops := StopLevels(bars, vol, 2)
	assert.Equal(t, 10.0, stops[0])
	assert.Equal(t, 9.0, stops[1])
	assert.False(t, Defined(stops[2]))
}

func TestComputeAlignsSeries(t *testing.T) {
	bars := market.NewGenerator(7, 100, 1, time.Hour).Bars(120)
	cfg := Config{AvgLength: 10, FastPeriod: 2, SlowPeriod: 30, EntryMult: 1, ExitMult: 1, VolLength: 14, StopMult: 2, PhaseLength: 20, PhaseMult: 1, BodyMult: 0.5}
	set := Compute(bars, cfg)

	require.Equal(t, len(bars), set.Len())
	assert.Len(t, set.HighVolatility, len(bars))
	assert.Len(t, set.StopLevel, len(bars))
	assert.Equal(t, 20, cfg.WarmUp())

	assert.False(t, Defined(set.Baseline[cfg.VolLength+cfg.PhaseLength-1]))
	assert.True(t, Defined(set.Baseline[cfg.VolLength+cfg.PhaseLength]))
	assert.True(t, Defined(set.EntryThreshold[cfg.AvgLength]))
}

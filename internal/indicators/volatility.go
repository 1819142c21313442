package indicators

import (
	"math"

	"strategy-lab/internal/market"
)

// TrueRange returns the per-bar true range; the first bar uses high-low.
func TrueRange(bars []market.Bar) []float64 {
	tr := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			tr[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		tr[i] = math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}
	return tr
}

// VolatilityRange is a Wilder-smoothed average true range. Values before
// index length are undefined; index length is seeded with the mean of
// tr[1..length].
func VolatilityRange(bars []market.Bar, length int) []float64 {
	out := undefinedSeries(len(bars))
	if length <= 0 || len(bars) <= length {
		return out
	}
	tr := TrueRange(bars)
	out[length] = mean(tr[1 : length+1])
	n := float64(length)
	for i := length + 1; i < len(bars); i++ {
		out[i] = (out[i-1]*(n-1) + tr[i]) / n
	}
	return out
}

package backtest

import "math"

// MaxDrawdown returns the deepest peak-to-trough decline of equity as a
// percent of the peak, and that percent applied to the starting equity as an
// absolute amount. Both are <= 0; an empty or monotonic curve yields zeros.
func MaxDrawdown(equity []float64) (abs, pct float64) {
	if len(equity) == 0 {
		return 0, 0
	}
	peak := equity[0]
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak * 100; dd < pct {
			pct = dd
		}
	}
	return equity[0] * pct / 100, pct
}

// Ratio is the mean of per-step percent returns over their population
// standard deviation. Fewer than two points or a zero deviation yield 0.
func Ratio(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (equity[i]-prev)/prev*100)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std
}

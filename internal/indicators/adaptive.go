package indicators

import "math"

// AdaptiveAverage computes Kaufman's adaptive moving average over prices.
//
// The first length values are seeded with the raw prices; from index length
// onward the smoothing constant follows the efficiency ratio of the last
// length moves.
func AdaptiveAverage(prices []float64, length, fast, slow int) []float64 {
	out := make([]float64, len(prices))
	copy(out, prices)
	if length <= 0 || len(prices) <= length {
		return out
	}

	fastSC := 2.0 / float64(fast+1)
	slowSC := 2.0 / float64(slow+1)

	for i := length; i < len(prices); i++ {
		change := math.Abs(prices[i] - prices[i-length])
		volatility := 0.0
		for k := i - length + 1; k <= i; k++ {
			volatility += math.Abs(prices[k] - prices[k-1])
		}
		er := 0.0
		if volatility != 0 {
			er = change / volatility
		}
		sc := math.Pow(er*(fastSC-slowSC)+slowSC, 2)
		out[i] = sc*prices[i] + (1-sc)*out[i-1]
	}
	return out
}

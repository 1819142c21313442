package indicators

import (
	"math"

	"strategy-lab/internal/market"
)

// HighVolatilityPhase flags bars whose volatility exceeds baseline*mult.
// Undefined inputs yield false.
func HighVolatilityPhase(volatility, baseline []float64, mult float64) []bool {
	out := make([]bool, len(volatility))
	for i := range volatility {
		if i >= len(baseline) || !Defined(volatility[i]) || !Defined(baseline[i]) {
			continue
		}
		out[i] = volatility[i] > baseline[i]*mult
	}
	return out
}

// StrongBullish flags bars that close above their open with a body larger
// than volatility*bodyMult.
func StrongBullish(bars []market.Bar, volatility []float64, bodyMult float64) []bool {
	out := make([]bool, len(bars))
	for i, b := range bars {
		if i >= len(volatility) || !Defined(volatility[i]) {
			continue
		}
		body := math.Abs(b.Close - b.Open)
		out[i] = b.Close > b.Open && body > volatility[i]*bodyMult
	}
	return out
}

// StopLevels returns close - volatility*mult for every bar.
func StopLevels(bars []market.Bar, volatility []float64, mult float64) []float64 {
	out := undefinedSeries(len(bars))
	for i, b := range bars {
		if i >= len(volatility) || !Defined(volatility[i]) {
			continue
		}
		out[i] = b.Close - volatility[i]*mult
	}
	return out
}

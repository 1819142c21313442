package indicators

import "strategy-lab/internal/market"

// Config holds the window lengths and multipliers the indicator set needs.
type Config struct {
	AvgLength   int
	FastPeriod  int
	SlowPeriod  int
	EntryMult   float64
	ExitMult    float64
	VolLength   int
	StopMult    float64
	PhaseLength int
	PhaseMult   float64
	BodyMult    float64
}

// WarmUp is the first index at which every indicator can be defined.
func (c Config) WarmUp() int {
	return max(c.AvgLength, c.VolLength, c.PhaseLength)
}

// Set holds per-bar indicator series aligned 1:1 with the input bars.
// Undefined entries are NaN (or false for flags).
type Set struct {
	Average        []float64
	Momentum       []float64
	Volatility     []float64
	Baseline       []float64
	HighVolatility []bool
	StrongBullish  []bool
	EntryThreshold []float64
	ExitThreshold  []float64
	StopLevel      []float64
}

// Len returns the number of bars covered.
func (s Set) Len() int {
	return len(s.Average)
}

// Snapshot captures the indicator values of one bar.
type Snapshot struct {
	Average        float64 `json:"average"`
	Momentum       float64 `json:"momentum"`
	Volatility     float64 `json:"volatility"`
	HighVolatility bool    `json:"high_volatility"`
}

// At returns the snapshot for bar i.
func (s Set) At(i int) Snapshot {
	return Snapshot{
		Average:        s.Average[i],
		Momentum:       s.Momentum[i],
		Volatility:     s.Volatility[i],
		HighVolatility: s.HighVolatility[i],
	}
}

// Compute derives the full indicator set for bars.
func Compute(bars []market.Bar, cfg Config) Set {
	closes := market.Closes(bars)

	avg := AdaptiveAverage(closes, cfg.AvgLength, cfg.FastPeriod, cfg.SlowPeriod)
	momentum := Diff(avg)
	vol := VolatilityRange(bars, cfg.VolLength)
	baseline := RollingMean(vol, cfg.PhaseLength)
	spread := RollingStd(momentum, cfg.AvgLength)

	return Set{
		Average:        avg,
		Momentum:       momentum,
		Volatility:     vol,
		Baseline:       baseline,
		HighVolatility: HighVolatilityPhase(vol, baseline, cfg.PhaseMult),
		StrongBullish:  StrongBullish(bars, vol, cfg.BodyMult),
		EntryThreshold: Scale(spread, cfg.EntryMult),
		ExitThreshold:  Scale(spread, cfg.ExitMult),
		StopLevel:      StopLevels(bars, vol, cfg.StopMult),
	}
}

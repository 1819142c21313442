package strategy

import (
	"strategy-lab/internal/indicators"
	"strategy-lab/internal/market"
)

// EvaluateSignals runs the indicator engine and the signal machine over bars.
// Histories too short to warm up every indicator yield an empty list.
func EvaluateSignals(bars []market.Bar, p ParameterSet) []Signal {
	warm := p.WarmUp()
	if len(bars) <= warm {
		return []Signal{}
	}
	set := indicators.Compute(bars, p.Indicators())
	return Walk(bars, set, warm, nil)
}

// Evaluate validates p before running EvaluateSignals.
func Evaluate(bars []market.Bar, p ParameterSet) ([]Signal, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return EvaluateSignals(bars, p), nil
}

package optimizer

import (
	"math"

	"strategy-lab/internal/backtest"
)

// minTrades is the trade count below which a score is halved.
const minTrades = 10

// Weights balances the fitness components.
type Weights struct {
	Profit          float64 `json:"profit" yaml:"profit"`
	Ratio           float64 `json:"ratio" yaml:"ratio"`
	WinRate         float64 `json:"win_rate" yaml:"win_rate"`
	DrawdownPenalty float64 `json:"drawdown_penalty" yaml:"drawdown_penalty"`
}

// DefaultWeights returns profit 1.0, ratio 0.5, win rate 0.3, drawdown penalty 0.5.
func DefaultWeights() Weights {
	return Weights{Profit: 1.0, Ratio: 0.5, WinRate: 0.3, DrawdownPenalty: 0.5}
}

// Fitness scores a simulation result. Higher is better.
func Fitness(r backtest.Result, w Weights) float64 {
	profit := math.Max(r.TotalProfitPct/100, 0)
	ratio := math.Max(r.Ratio, 0) / 3
	winRate := 0.0
	if r.TotalTrades > 0 {
		winRate = float64(r.WinningTrades) / float64(r.TotalTrades)
	}

	score := w.Profit*profit + w.Ratio*ratio + w.WinRate*winRate
	score -= w.DrawdownPenalty * math.Abs(r.MaxDrawdownPct) / 100
	if r.TotalTrades < minTrades {
		score *= 0.5
	}
	return score
}

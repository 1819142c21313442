package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"strategy-lab/internal/market"
	"strategy-lab/internal/record"
	"strategy-lab/internal/strategy"
	"strategy-lab/pkg/i18n"
)

// DefaultMaxIterations caps the number of grid candidates.
const DefaultMaxIterations = 1000

// Grid evaluates the Cartesian product of ranges on the training split and
// keeps the best candidate. When the product exceeds maxIterations, that many
// random combinations are drawn instead (with replacement).
func (o *Optimizer) Grid(ctx context.Context, bars []market.Bar, ranges strategy.Ranges, maxIterations int) (rec record.OptimizedRecord, err error) {
	start := time.Now()
	defer func() { o.done(MethodGrid, start, err) }()

	if err := ranges.Validate(); err != nil {
		return rec, err
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	train, validation := Split(bars, o.cfg.TrainRatio)
	candidates, sampled := o.gridCandidates(ranges, maxIterations)
	o.log.Info(i18n.Get("OptimizerGridStart"),
		zap.Int("candidates", len(candidates)),
		zap.Bool("sampled", sampled),
		zap.Int("train_bars", len(train)),
		zap.Int("validation_bars", len(validation)))

	evals, err := o.evaluateAll(ctx, MethodGrid, train, candidates)
	if err != nil {
		return rec, err
	}
	idx := best(evals)
	if idx < 0 {
		return rec, fmt.Errorf("%w: %d grid candidates", ErrOptimizationFailed, len(candidates))
	}

	winner := evals[idx]
	o.log.Info(i18n.Get("OptimizerGridDone"),
		zap.Float64("fitness", winner.fitness),
		zap.Float64("profit_pct", winner.result.TotalProfitPct),
		zap.Int("trades", winner.result.TotalTrades),
		zap.Duration("elapsed", time.Since(start)))
	return o.finish(MethodGrid, winner, validation), nil
}

func (o *Optimizer) gridCandidates(ranges strategy.Ranges, maxIterations int) ([]strategy.ParameterSet, bool) {
	keys := ranges.Keys()
	if ranges.Size() > maxIterations {
		return o.sampleCandidates(o.rng(), keys, ranges, maxIterations), true
	}

	out := make([]strategy.ParameterSet, 0, ranges.Size())
	idx := make([]int, len(keys))
	for {
		p := o.cfg.Base
		for k, key := range keys {
			p, _ = p.With(key, ranges[key][idx[k]])
		}
		out = append(out, p)

		// Odometer increment, last key fastest.
		k := len(keys) - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < len(ranges[keys[k]]) {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			return out, false
		}
	}
}

func (o *Optimizer) sampleCandidates(rng *rand.Rand, keys []string, ranges strategy.Ranges, n int) []strategy.ParameterSet {
	out := make([]strategy.ParameterSet, n)
	for i := range out {
		p := o.cfg.Base
		for _, key := range keys {
			values := ranges[key]
			p, _ = p.With(key, values[rng.Intn(len(values))])
		}
		out[i] = p
	}
	return out
}

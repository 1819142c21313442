package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"strategy-lab/internal/market"
	"strategy-lab/internal/record"
	"strategy-lab/internal/strategy"
	"strategy-lab/pkg/i18n"
)

// GeneticOptions sizes a genetic run.
type GeneticOptions struct {
	Population   int
	Generations  int
	MutationRate float64
}

// DefaultGeneticOptions returns population 50, 20 generations, mutation 0.1.
func DefaultGeneticOptions() GeneticOptions {
	return GeneticOptions{Population: 50, Generations: 20, MutationRate: 0.1}
}

// Genetic evolves a population within bounds on the training split. The best
// individual of any generation is returned, scored on the validation split.
// Zero Population or Generations take the defaults.
func (o *Optimizer) Genetic(ctx context.Context, bars []market.Bar, bounds strategy.Bounds, opts GeneticOptions) (rec record.OptimizedRecord, err error) {
	start := time.Now()
	defer func() { o.done(MethodGenetic, start, err) }()

	if err := bounds.Validate(); err != nil {
		return rec, err
	}
	def := DefaultGeneticOptions()
	if opts.Population == 0 {
		opts.Population = def.Population
	}
	if opts.Generations == 0 {
		opts.Generations = def.Generations
	}
	switch {
	case opts.Population < 2:
		return rec, fmt.Errorf("%w: genetic population must be >= 2, got %d", strategy.ErrInvalidParameter, opts.Population)
	case opts.Generations < 1:
		return rec, fmt.Errorf("%w: genetic generations must be >= 1, got %d", strategy.ErrInvalidParameter, opts.Generations)
	case opts.MutationRate < 0 || opts.MutationRate > 1:
		return rec, fmt.Errorf("%w: mutation_rate must be within [0, 1], got %v", strategy.ErrInvalidParameter, opts.MutationRate)
	}

	train, validation := Split(bars, o.cfg.TrainRatio)
	rng := o.rng()
	keys := bounds.Keys()

	population := make([]strategy.ParameterSet, opts.Population)
	for i := range population {
		population[i] = o.randomIndividual(rng, keys, bounds)
	}

	var champion evaluation
	found := false
	for gen := 0; gen < opts.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return rec, err
		}
		evals, err := o.evaluateAll(ctx, MethodGenetic, train, population)
		if err != nil {
			return rec, err
		}

		if idx := best(evals); idx >= 0 && (!found || evals[idx].fitness > champion.fitness) {
			champion = evals[idx]
			found = true
		}
		o.log.Info(i18n.Get("OptimizerGeneration"),
			zap.Int("generation", gen+1),
			zap.Int("generations", opts.Generations),
			zap.Bool("found", found),
			zap.Float64("best_fitness", champion.fitness))

		if gen < opts.Generations-1 {
			population = o.breed(rng, keys, bounds, evals, opts)
		}
	}

	if !found {
		return rec, fmt.Errorf("%w: %d generations of %d", ErrOptimizationFailed, opts.Generations, opts.Population)
	}
	o.log.Info(i18n.Get("OptimizerGeneticDone"),
		zap.Float64("fitness", champion.fitness),
		zap.Float64("profit_pct", champion.result.TotalProfitPct),
		zap.Int("trades", champion.result.TotalTrades),
		zap.Duration("elapsed", time.Since(start)))
	return o.finish(MethodGenetic, champion, validation), nil
}

func (o *Optimizer) randomIndividual(rng *rand.Rand, keys []string, bounds strategy.Bounds) strategy.ParameterSet {
	p := o.cfg.Base
	for _, key := range keys {
		p, _ = p.With(key, bounds[key].Draw(rng))
	}
	return p
}

// breed builds the next generation: the valid top half carries over and
// children fill the rest via uniform crossover and single-gene mutation.
// A generation with no valid individual is replaced by fresh random ones.
func (o *Optimizer) breed(rng *rand.Rand, keys []string, bounds strategy.Bounds, evals []evaluation, opts GeneticOptions) []strategy.ParameterSet {
	order := make([]int, len(evals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return evals[order[a]].fitness > evals[order[b]].fitness
	})

	eliteSize := max(opts.Population/2, 1)
	elite := make([]strategy.ParameterSet, 0, eliteSize)
	for _, i := range order {
		if len(elite) == eliteSize || !evals[i].valid() {
			break
		}
		elite = append(elite, evals[i].params)
	}

	next := make([]strategy.ParameterSet, 0, opts.Population)
	if len(elite) == 0 {
		for len(next) < opts.Population {
			next = append(next, o.randomIndividual(rng, keys, bounds))
		}
		return next
	}

	next = append(next, elite...)
	for len(next) < opts.Population {
		a := elite[rng.Intn(len(elite))]
		b := elite[rng.Intn(len(elite))]

		child := a
		for _, key := range keys {
			if rng.Float64() >= 0.5 {
				child, _ = child.With(key, b.Get(key))
			}
		}
		if rng.Float64() < opts.MutationRate {
			key := keys[rng.Intn(len(keys))]
			child, _ = child.With(key, bounds[key].Draw(rng))
		}
		next = append(next, child)
	}
	return next
}

package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/market"
	"strategy-lab/internal/record"
	"strategy-lab/internal/strategy"
	"strategy-lab/pkg/i18n"
)

// ErrOptimizationFailed is returned when no candidate produced a valid score.
var ErrOptimizationFailed = errors.New("optimization failed: no valid parameter set")

// Method names recorded on results.
const (
	MethodGrid    = "grid"
	MethodGenetic = "genetic"
)

// EvaluateFunc runs one parameter set over bars.
type EvaluateFunc func(bars []market.Bar, p strategy.ParameterSet, opts backtest.Options) (backtest.Result, error)

// Backtest is the default EvaluateFunc: signals from the strategy, replayed
// by the simulator.
func Backtest(bars []market.Bar, p strategy.ParameterSet, opts backtest.Options) (backtest.Result, error) {
	signals, err := strategy.Evaluate(bars, p)
	if err != nil {
		return backtest.Result{}, err
	}
	return backtest.Simulate(bars, signals, opts), nil
}

// Observer receives optimizer progress. monitor.Metrics implements it.
type Observer interface {
	CandidateEvaluated(method string, valid bool)
	RunCompleted(method string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) CandidateEvaluated(string, bool)           {}
func (nopObserver) RunCompleted(string, time.Duration, error) {}

// Config holds the knobs shared by both search methods.
type Config struct {
	Options    backtest.Options
	Weights    Weights
	TrainRatio float64
	// Base supplies values for parameters a search space leaves out.
	Base     strategy.ParameterSet
	Workers  int
	Seed     int64
	Evaluate EvaluateFunc
	Logger   *zap.Logger
	Observer Observer
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		Options:    backtest.DefaultOptions(),
		Weights:    DefaultWeights(),
		TrainRatio: DefaultTrainRatio,
		Base:       strategy.DefaultParameters(),
		Workers:    runtime.NumCPU(),
		Seed:       1,
	}
}

// Optimizer searches the parameter space of the adaptive-average strategy.
type Optimizer struct {
	cfg Config
	log *zap.Logger
	obs Observer
}

// New fills unset fields of cfg with defaults.
func New(cfg Config) *Optimizer {
	def := DefaultConfig()
	if cfg.Options.InitialBalance <= 0 {
		cfg.Options = def.Options
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.TrainRatio <= 0 || cfg.TrainRatio > 1 {
		cfg.TrainRatio = def.TrainRatio
	}
	if cfg.Base == (strategy.ParameterSet{}) {
		cfg.Base = def.Base
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Evaluate == nil {
		cfg.Evaluate = Backtest
	}
	o := &Optimizer{cfg: cfg, log: cfg.Logger, obs: cfg.Observer}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.obs == nil {
		o.obs = nopObserver{}
	}
	return o
}

// Config returns the effective configuration.
func (o *Optimizer) Config() Config {
	return o.cfg
}

func (o *Optimizer) rng() *rand.Rand {
	return rand.New(rand.NewSource(o.cfg.Seed))
}

// evaluation is the outcome of one candidate on one split.
type evaluation struct {
	params  strategy.ParameterSet
	result  backtest.Result
	fitness float64
	err     error
}

func (e evaluation) valid() bool {
	return e.err == nil && !math.IsInf(e.fitness, -1)
}

// score evaluates p, converting errors, panics and non-finite scores into
// a fitness of -Inf.
func (o *Optimizer) score(bars []market.Bar, p strategy.ParameterSet) (ev evaluation) {
	ev.params = p
	defer func() {
		if r := recover(); r != nil {
			ev.err = fmt.Errorf("evaluation panic: %v", r)
			ev.fitness = math.Inf(-1)
		}
	}()

	res, err := o.cfg.Evaluate(bars, p, o.cfg.Options)
	if err != nil {
		ev.err = err
		ev.fitness = math.Inf(-1)
		return ev
	}
	f := Fitness(res, o.cfg.Weights)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		ev.err = fmt.Errorf("non-finite fitness %v", f)
		ev.fitness = math.Inf(-1)
		return ev
	}
	ev.result = res
	ev.fitness = f
	return ev
}

// evaluateAll scores candidates on up to Workers goroutines. Results keep the
// candidate order, so reductions over them match a sequential run. ctx is
// checked before each candidate starts.
func (o *Optimizer) evaluateAll(ctx context.Context, method string, bars []market.Bar, candidates []strategy.ParameterSet) ([]evaluation, error) {
	out := make([]evaluation, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)

	for i, p := range candidates {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = o.score(bars, p)
			o.obs.CandidateEvaluated(method, out[i].valid())
			if out[i].err != nil {
				o.log.Debug(i18n.Get("OptimizerCandidateFailed"),
					zap.String("method", method),
					zap.Any("params", p),
					zap.Error(out[i].err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// best returns the index of the highest valid fitness; the first one wins
// ties. -1 when nothing is valid.
func best(evals []evaluation) int {
	idx := -1
	for i, ev := range evals {
		if !ev.valid() {
			continue
		}
		if idx < 0 || ev.fitness > evals[idx].fitness {
			idx = i
		}
	}
	return idx
}

// finish evaluates the winner on the validation split and assembles the record.
func (o *Optimizer) finish(method string, winner evaluation, validation []market.Bar) record.OptimizedRecord {
	rec := record.OptimizedRecord{
		Method:  method,
		Params:  winner.params,
		Fitness: winner.fitness,
		Train:   record.MetricsOf(winner.result),
	}
	val := o.score(validation, winner.params)
	if val.err != nil {
		o.log.Warn(i18n.Get("OptimizerValidationFailed"), zap.String("method", method), zap.Error(val.err))
		return rec
	}
	rec.Validation = record.MetricsOf(val.result)
	return rec
}

func (o *Optimizer) done(method string, start time.Time, err error) {
	o.obs.RunCompleted(method, time.Since(start), err)
}

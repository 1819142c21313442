package strategy

import (
	"fmt"
	"math"
	"math/rand"
)

// Bound is the search interval for one parameter in the genetic optimizer.
type Bound struct {
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Integer bool    `json:"integer" yaml:"integer"`
}

// Draw samples uniformly within the bound. Integer bounds truncate the draw,
// so Max itself is only reached when Min == Max.
func (b Bound) Draw(rng *rand.Rand) float64 {
	v := b.Min + rng.Float64()*(b.Max-b.Min)
	if b.Integer {
		return math.Trunc(v)
	}
	return v
}

// Bounds maps parameter keys to search intervals.
type Bounds map[string]Bound

// Ranges maps parameter keys to candidate value lists for grid search.
type Ranges map[string][]float64

// DefaultBounds is the genetic search space.
func DefaultBounds() Bounds {
	return Bounds{
		KeyAvgLength:   {Min: 10, Max: 50, Integer: true},
		KeyAvgFast:     {Min: 2, Max: 10, Integer: true},
		KeyAvgSlow:     {Min: 10, Max: 40, Integer: true},
		KeyEntryMult:   {Min: 0.5, Max: 3.0},
		KeyExitMult:    {Min: 0.3, Max: 2.0},
		KeyVolLength:   {Min: 5, Max: 30, Integer: true},
		KeyStopMult:    {Min: 1.0, Max: 4.0},
		KeyPhaseLength: {Min: 20, Max: 100, Integer: true},
		KeyPhaseMult:   {Min: 0.5, Max: 2.0},
		KeyBodyMult:    {Min: 0.1, Max: 1.0},
	}
}

// DefaultRanges is the grid search space.
func DefaultRanges() Ranges {
	return Ranges{
		KeyAvgLength:   {14, 21, 28, 35},
		KeyAvgFast:     {2, 3, 4},
		KeyAvgSlow:     {15, 20, 25, 30},
		KeyEntryMult:   {1.2, 1.4, 1.6, 1.8, 2.0},
		KeyExitMult:    {0.6, 0.8, 1.0, 1.2},
		KeyVolLength:   {10, 14, 20},
		KeyStopMult:    {1.8, 2.0, 2.2, 2.5},
		KeyPhaseLength: {30, 50, 70},
		KeyPhaseMult:   {0.8, 1.0, 1.2},
		KeyBodyMult:    {0.3, 0.5, 0.7},
	}
}

// Validate rejects unknown keys, inverted intervals and integer flags that
// disagree with the parameter type.
func (b Bounds) Validate() error {
	if len(b) == 0 {
		return fmt.Errorf("%w: empty bounds", ErrInvalidParameter)
	}
	for k, bound := range b {
		if !known(k) {
			return fmt.Errorf("%w: %q", ErrUnknownParameter, k)
		}
		if bound.Min > bound.Max {
			return fmt.Errorf("%w: %s min %v > max %v", ErrInvalidParameter, k, bound.Min, bound.Max)
		}
		if bound.Integer != IsInteger(k) {
			return fmt.Errorf("%w: %s integer flag must be %v", ErrInvalidParameter, k, IsInteger(k))
		}
	}
	return nil
}

// Keys returns the bound keys in canonical order.
func (b Bounds) Keys() []string {
	return orderedKeys(func(k string) bool { _, ok := b[k]; return ok })
}

// Validate rejects unknown keys and empty candidate lists.
func (r Ranges) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("%w: empty ranges", ErrInvalidParameter)
	}
	for k, values := range r {
		if !known(k) {
			return fmt.Errorf("%w: %q", ErrUnknownParameter, k)
		}
		if len(values) == 0 {
			return fmt.Errorf("%w: %s has no candidates", ErrInvalidParameter, k)
		}
	}
	return nil
}

// Keys returns the range keys in canonical order.
func (r Ranges) Keys() []string {
	return orderedKeys(func(k string) bool { _, ok := r[k]; return ok })
}

// Size is the number of combinations in the full Cartesian product, capped
// at math.MaxInt to avoid overflow.
func (r Ranges) Size() int {
	size := 1
	for _, values := range r {
		if size > math.MaxInt/len(values) {
			return math.MaxInt
		}
		size *= len(values)
	}
	return size
}

func known(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

func orderedKeys(has func(string) bool) []string {
	out := make([]string, 0, len(Keys))
	for _, k := range Keys {
		if has(k) {
			out = append(out, k)
		}
	}
	return out
}

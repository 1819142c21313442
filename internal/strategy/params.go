package strategy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"strategy-lab/internal/indicators"
)

var (
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Parameter keys, in canonical order.
const (
	KeyAvgLength   = "avg_len"
	KeyAvgFast     = "avg_fast"
	KeyAvgSlow     = "avg_slow"
	KeyEntryMult   = "entry_mult"
	KeyExitMult    = "exit_mult"
	KeyVolLength   = "vol_len"
	KeyStopMult    = "stop_mult"
	KeyPhaseLength = "phase_len"
	KeyPhaseMult   = "phase_mult"
	KeyBodyMult    = "body_mult"
)

// Keys lists every parameter key in canonical order.
var Keys = []string{
	KeyAvgLength, KeyAvgFast, KeyAvgSlow, KeyEntryMult, KeyExitMult,
	KeyVolLength, KeyStopMult, KeyPhaseLength, KeyPhaseMult, KeyBodyMult,
}

var integerKeys = map[string]bool{
	KeyAvgLength:   true,
	KeyAvgFast:     true,
	KeyAvgSlow:     true,
	KeyVolLength:   true,
	KeyPhaseLength: true,
}

// IsInteger reports whether key holds a whole-number parameter.
func IsInteger(key string) bool {
	return integerKeys[key]
}

// ParameterSet holds the ten tunable knobs of the adaptive-average strategy.
type ParameterSet struct {
	AvgLength   int     `json:"avg_len" yaml:"avg_len"`
	AvgFast     int     `json:"avg_fast" yaml:"avg_fast"`
	AvgSlow     int     `json:"avg_slow" yaml:"avg_slow"`
	EntryMult   float64 `json:"entry_mult" yaml:"entry_mult"`
	ExitMult    float64 `json:"exit_mult" yaml:"exit_mult"`
	VolLength   int     `json:"vol_len" yaml:"vol_len"`
	StopMult    float64 `json:"stop_mult" yaml:"stop_mult"`
	PhaseLength int     `json:"phase_len" yaml:"phase_len"`
	PhaseMult   float64 `json:"phase_mult" yaml:"phase_mult"`
	BodyMult    float64 `json:"body_mult" yaml:"body_mult"`
}

// DefaultParameters returns the untuned strategy configuration.
func DefaultParameters() ParameterSet {
	return ParameterSet{
		AvgLength:   21,
		AvgFast:     2,
		AvgSlow:     20,
		EntryMult:   1.6,
		ExitMult:    0.8,
		VolLength:   14,
		StopMult:    2.2,
		PhaseLength: 50,
		PhaseMult:   1.0,
		BodyMult:    0.5,
	}
}

// Indicators maps the parameter set onto the indicator engine config.
func (p ParameterSet) Indicators() indicators.Config {
	return indicators.Config{
		AvgLength:   p.AvgLength,
		FastPeriod:  p.AvgFast,
		SlowPeriod:  p.AvgSlow,
		EntryMult:   p.EntryMult,
		ExitMult:    p.ExitMult,
		VolLength:   p.VolLength,
		StopMult:    p.StopMult,
		PhaseLength: p.PhaseLength,
		PhaseMult:   p.PhaseMult,
		BodyMult:    p.BodyMult,
	}
}

// WarmUp is the number of leading bars consumed before the first decision.
func (p ParameterSet) WarmUp() int {
	return p.Indicators().WarmUp()
}

// Validate checks every knob is usable by the indicator engine.
func (p ParameterSet) Validate() error {
	for _, k := range Keys {
		v := p.Get(k)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParameter, k)
		}
		if IsInteger(k) && v < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %v", ErrInvalidParameter, k, v)
		}
		if !IsInteger(k) && v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %v", ErrInvalidParameter, k, v)
		}
	}
	return nil
}

// Get returns the value of key as a float64 (NaN for unknown keys).
func (p ParameterSet) Get(key string) float64 {
	switch key {
	case KeyAvgLength:
		return float64(p.AvgLength)
	case KeyAvgFast:
		return float64(p.AvgFast)
	case KeyAvgSlow:
		return float64(p.AvgSlow)
	case KeyEntryMult:
		return p.EntryMult
	case KeyExitMult:
		return p.ExitMult
	case KeyVolLength:
		return float64(p.VolLength)
	case KeyStopMult:
		return p.StopMult
	case KeyPhaseLength:
		return float64(p.PhaseLength)
	case KeyPhaseMult:
		return p.PhaseMult
	case KeyBodyMult:
		return p.BodyMult
	}
	return math.NaN()
}

// With returns a copy of p with key set to v. Integer keys truncate v.
func (p ParameterSet) With(key string, v float64) (ParameterSet, error) {
	switch key {
	case KeyAvgLength:
		p.AvgLength = int(v)
	case KeyAvgFast:
		p.AvgFast = int(v)
	case KeyAvgSlow:
		p.AvgSlow = int(v)
	case KeyEntryMult:
		p.EntryMult = v
	case KeyExitMult:
		p.ExitMult = v
	case KeyVolLength:
		p.VolLength = int(v)
	case KeyStopMult:
		p.StopMult = v
	case KeyPhaseLength:
		p.PhaseLength = int(v)
	case KeyPhaseMult:
		p.PhaseMult = v
	case KeyBodyMult:
		p.BodyMult = v
	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownParameter, key)
	}
	return p, nil
}

// Map flattens p into plain int / float64 values keyed by parameter name.
func (p ParameterSet) Map() map[string]any {
	out := make(map[string]any, len(Keys))
	for _, k := range Keys {
		v := p.Get(k)
		if IsInteger(k) {
			out[k] = int(v)
		} else {
			out[k] = v
		}
	}
	return out
}

// ParameterSetFromMap builds a set from defaults overlaid with values.
// Unknown keys and non-numeric values are rejected.
func ParameterSetFromMap(values map[string]any) (ParameterSet, error) {
	p := DefaultParameters()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := ToFloat(values[k])
		if !ok {
			return p, fmt.Errorf("%w: %s is not numeric (%T)", ErrInvalidParameter, k, values[k])
		}
		if IsInteger(k) && f != math.Trunc(f) {
			return p, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidParameter, k, f)
		}
		var err error
		if p, err = p.With(k, f); err != nil {
			return p, err
		}
	}
	return p, p.Validate()
}

// ToFloat coerces the numeric types produced by decoders into float64.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

package strategy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// GeneticSettings tunes the genetic optimizer.
type GeneticSettings struct {
	Population   int     `yaml:"population"`
	Generations  int     `yaml:"generations"`
	MutationRate float64 `yaml:"mutation_rate"`
	Bounds       Bounds  `yaml:"bounds"`
}

// GridSettings tunes the grid optimizer.
type GridSettings struct {
	MaxIterations int    `yaml:"max_iterations"`
	Ranges        Ranges `yaml:"ranges"`
}

// Presets is the top-level YAML structure of the strategies file.
type Presets struct {
	Defaults ParameterSet    `yaml:"defaults"`
	Grid     GridSettings    `yaml:"grid"`
	Genetic  GeneticSettings `yaml:"genetic"`
}

// DefaultPresets returns the built-in search configuration.
func DefaultPresets() Presets {
	return Presets{
		Defaults: DefaultParameters(),
		Grid: GridSettings{
			MaxIterations: 1000,
			Ranges:        DefaultRanges(),
		},
		Genetic: GeneticSettings{
			Population:   50,
			Generations:  20,
			MutationRate: 0.1,
			Bounds:       DefaultBounds(),
		},
	}
}

// LoadPresets reads presets from a YAML file. A missing file yields the
// built-in defaults; sections left out of the file keep their defaults.
func LoadPresets(path string) (Presets, error) {
	presets := DefaultPresets()
	if path == "" {
		return presets, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return presets, nil
	}
	if err != nil {
		return presets, err
	}

	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return presets, fmt.Errorf("parse presets %s: %w", path, err)
	}
	if presets, err = file.overlay(presets); err != nil {
		return presets, fmt.Errorf("presets %s: %w", path, err)
	}
	if err := presets.Validate(); err != nil {
		return presets, fmt.Errorf("presets %s: %w", path, err)
	}
	return presets, nil
}

// Validate checks every section of the presets.
func (p Presets) Validate() error {
	if err := p.Defaults.Validate(); err != nil {
		return err
	}
	if err := p.Grid.Ranges.Validate(); err != nil {
		return err
	}
	if p.Grid.MaxIterations < 1 {
		return fmt.Errorf("%w: grid max_iterations must be >= 1", ErrInvalidParameter)
	}
	if err := p.Genetic.Bounds.Validate(); err != nil {
		return err
	}
	if p.Genetic.Population < 2 || p.Genetic.Generations < 1 {
		return fmt.Errorf("%w: genetic population must be >= 2 and generations >= 1", ErrInvalidParameter)
	}
	if p.Genetic.MutationRate < 0 || p.Genetic.MutationRate > 1 {
		return fmt.Errorf("%w: mutation_rate must be within [0, 1]", ErrInvalidParameter)
	}
	return nil
}

// presetsFile mirrors Presets with every field optional.
type presetsFile struct {
	Defaults map[string]any `yaml:"defaults"`
	Grid     struct {
		MaxIterations int    `yaml:"max_iterations"`
		Ranges        Ranges `yaml:"ranges"`
	} `yaml:"grid"`
	Genetic struct {
		Population   int      `yaml:"population"`
		Generations  int      `yaml:"generations"`
		MutationRate *float64 `yaml:"mutation_rate"`
		Bounds       Bounds   `yaml:"bounds"`
	} `yaml:"genetic"`
}

func (f presetsFile) overlay(p Presets) (Presets, error) {
	if len(f.Defaults) > 0 {
		params, err := ParameterSetFromMap(f.Defaults)
		if err != nil {
			return p, err
		}
		p.Defaults = params
	}
	if f.Grid.MaxIterations != 0 {
		p.Grid.MaxIterations = f.Grid.MaxIterations
	}
	if len(f.Grid.Ranges) > 0 {
		p.Grid.Ranges = f.Grid.Ranges
	}
	if f.Genetic.Population != 0 {
		p.Genetic.Population = f.Genetic.Population
	}
	if f.Genetic.Generations != 0 {
		p.Genetic.Generations = f.Genetic.Generations
	}
	if f.Genetic.MutationRate != nil {
		p.Genetic.MutationRate = *f.Genetic.MutationRate
	}
	if len(f.Genetic.Bounds) > 0 {
		bounds := make(Bounds, len(f.Genetic.Bounds))
		for k, b := range f.Genetic.Bounds {
			b.Integer = IsInteger(k)
			bounds[k] = b
		}
		p.Genetic.Bounds = bounds
	}
	return p, nil
}

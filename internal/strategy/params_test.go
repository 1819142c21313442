package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterSetFromMap(t *testing.T) {
	p, err := ParameterSetFromMap(map[string]any{
		KeyAvgLength: 30,
		KeyEntryMult: 1.25,
		KeyVolLength: float64(10),
	})
	require.NoError(t, err)
	assert.Equal(t, 30, p.AvgLength)
	assert.Equal(t, 1.25, p.EntryMult)
	assert.Equal(t, 10, p.VolLength)
	assert.Equal(t, DefaultParameters().StopMult, p.StopMult)
}

func TestParameterSetFromMapRejects(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   error
	}{
		{"unknown key", map[string]any{"rsi_len": 14}, ErrUnknownParameter},
		{"non numeric", map[string]any{KeyStopMult: "wide"}, ErrInvalidParameter},
		{"fractional integer", map[string]any{KeyAvgLength: 20.5}, ErrInvalidParameter},
		{"zero window", map[string]any{KeyPhaseLength: 0}, ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParameterSetFromMap(tt.values)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParameterMapRoundTrip(t *testing.T) {
	p := DefaultParameters()
	m := p.Map()

	_, isInt := m[KeyAvgLength].(int)
	assert.True(t, isInt)
	_, isFloat := m[KeyEntryMult].(float64)
	assert.True(t, isFloat)

	back, err := ParameterSetFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestWithUnknownKey(t *testing.T) {
	_, err := DefaultParameters().With("nope", 1)
	assert.ErrorIs(t, err, ErrUnknownParameter)
}

func TestDefaultSearchSpacesAreValid(t *testing.T) {
	require.NoError(t, DefaultBounds().Validate())
	require.NoError(t, DefaultRanges().Validate())
	assert.Equal(t, Keys, DefaultBounds().Keys())
	assert.Equal(t, 4*3*4*5*4*3*4*3*3*3, DefaultRanges().Size())
}

func TestBoundsValidate(t *testing.T) {
	assert.ErrorIs(t, Bounds{"foo": {Min: 1, Max: 2}}.Validate(), ErrUnknownParameter)
	assert.ErrorIs(t, Bounds{KeyStopMult: {Min: 3, Max: 2}}.Validate(), ErrInvalidParameter)
	assert.ErrorIs(t, Bounds{KeyAvgLength: {Min: 3, Max: 9}}.Validate(), ErrInvalidParameter)
	assert.ErrorIs(t, Ranges{KeyAvgLength: nil}.Validate(), ErrInvalidParameter)
}

func TestLoadPresets(t *testing.T) {
	dir := t.TempDir()

	missing, err := LoadPresets(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPresets(), missing)

	path := filepath.Join(dir, "strategies.yaml")
	doc := `
defaults:
  avg_len: 30
grid:
  ranges:
    avg_len: [10, 20]
    stop_mult: [1.5]
genetic:
  population: 12
  mutation_rate: 0
  bounds:
    avg_len: {min: 10, max: 20}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	p, err := LoadPresets(path)
	require.NoError(t, err)
	assert.Equal(t, 30, p.Defaults.AvgLength)
	assert.Equal(t, Ranges{KeyAvgLength: {10, 20}, KeyStopMult: {1.5}}, p.Grid.Ranges)
	assert.Equal(t, 1000, p.Grid.MaxIterations)
	assert.Equal(t, 12, p.Genetic.Population)
	assert.Equal(t, 20, p.Genetic.Generations)
	assert.Equal(t, 0.0, p.Genetic.MutationRate)
	assert.True(t, p.Genetic.Bounds[KeyAvgLength].Integer)
}

func TestLoadPresetsRejectsUnknownRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid:\n  ranges:\n    macd: [1]\n"), 0o644))
	_, err := LoadPresets(path)
	assert.ErrorIs(t, err, ErrUnknownParameter)
}

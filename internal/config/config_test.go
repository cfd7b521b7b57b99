package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/esrnn/pkg/constants"
	"github.com/inferloop/esrnn/pkg/errors"
)

func TestDefaultModelConfigIsValid(t *testing.T) {
	cfg := DefaultModelConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cfg.InputSize, cfg.WindowWidth())
}

func TestValidateRejectsBadConfigurations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *ModelConfig)
		code   string
	}{
		{"zero series", func(c *ModelConfig) { c.NSeries = 0 }, errors.CodeInvalidSize},
		{"zero input", func(c *ModelConfig) { c.InputSize = 0 }, errors.CodeInvalidSize},
		{"zero output", func(c *ModelConfig) { c.OutputSize = 0 }, errors.CodeInvalidSize},
		{"negative exogenous", func(c *ModelConfig) { c.ExogenousSize = -1 }, errors.CodeInvalidSize},
		{"zero hidden", func(c *ModelConfig) { c.StateHSize = 0 }, errors.CodeInvalidSize},
		{"negative noise", func(c *ModelConfig) { c.NoiseStd = -0.1 }, errors.CodeInvalidNoise},
		{"three seasonalities", func(c *ModelConfig) { c.Seasonality = []int{4, 7, 12} }, errors.CodeUnsupportedSeasonality},
		{"zero period", func(c *ModelConfig) { c.Seasonality = []int{0} }, errors.CodeInvalidSeasonality},
		{"no dilations", func(c *ModelConfig) { c.Dilations = nil }, errors.CodeInvalidDilations},
		{"empty group", func(c *ModelConfig) { c.Dilations = [][]int{{1}, {}} }, errors.CodeInvalidDilations},
		{"zero dilation", func(c *ModelConfig) { c.Dilations = [][]int{{1, 0}} }, errors.CodeInvalidDilations},
		{"unknown cell", func(c *ModelConfig) { c.CellType = "Transformer" }, errors.CodeInvalidCellType},
		{"gpu device", func(c *ModelConfig) { c.Device = "cuda" }, errors.CodeInvalidDevice},
		{"unknown anchor", func(c *ModelConfig) { c.TargetLevelAnchor = "middle" }, errors.CodeInvalidAnchor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultModelConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfiguration)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestValidateAcceptsDualSeasonality(t *testing.T) {
	// The arity is accepted here; the smoothing engine decides whether it is implemented.
	cfg := DefaultModelConfig()
	cfg.Seasonality = []int{7, 365}
	assert.NoError(t, cfg.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.Seasonality = []int{4}

	clone := cfg.Clone()
	clone.Seasonality[0] = 12
	clone.Dilations[0][0] = 99

	assert.Equal(t, 4, cfg.Seasonality[0])
	assert.Equal(t, 1, cfg.Dilations[0][0])
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultInputSize, cfg.Model.InputSize)
	assert.Equal(t, constants.DefaultCellType, cfg.Model.CellType)
	assert.Equal(t, [][]int{{1, 2}, {4, 8}}, cfg.Model.Dilations)
	assert.Equal(t, constants.DefaultLogLevel, cfg.Logging.Level)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "esrnn.yaml")
	content := `
model:
  n_series: 10
  input_size: 5
  output_size: 3
  exogenous_size: 2
  noise_std: 0.01
  seasonality: [4]
  state_hsize: 8
  dilations:
    - [1, 2]
    - [2, 6]
    - [4]
  cell_type: GRU
  add_nl_layer: true
  seed: 42
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Model.NSeries)
	assert.Equal(t, 5, cfg.Model.InputSize)
	assert.Equal(t, 3, cfg.Model.OutputSize)
	assert.Equal(t, 2, cfg.Model.ExogenousSize)
	assert.InDelta(t, 0.01, cfg.Model.NoiseStd, 1e-12)
	assert.Equal(t, []int{4}, cfg.Model.Seasonality)
	assert.Equal(t, [][]int{{1, 2}, {2, 6}, {4}}, cfg.Model.Dilations)
	assert.Equal(t, constants.CellTypeGRU, cfg.Model.CellType)
	assert.True(t, cfg.Model.AddNLLayer)
	assert.Equal(t, int64(42), cfg.Model.Seed)
	assert.Equal(t, constants.DeviceCPU, cfg.Model.Device)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsInvalidModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  cell_type: Transformer\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfiguration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigLoad, errors.GetCode(err))
}

package config

import (
	"fmt"
	"math"
	"slices"

	"github.com/inferloop/esrnn/pkg/constants"
	"github.com/inferloop/esrnn/pkg/errors"
)

// Config is the top-level configuration read by the CLI.
type Config struct {
	Model   ModelConfig   `mapstructure:"model" json:"model"`
	Logging LoggingConfig `mapstructure:"logging" json:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// ModelConfig holds the immutable per-model settings.
type ModelConfig struct {
	NSeries       int     `mapstructure:"n_series" json:"n_series"`             // Size of the per-series parameter tables
	InputSize     int     `mapstructure:"input_size" json:"input_size"`         // Observations per input window
	OutputSize    int     `mapstructure:"output_size" json:"output_size"`       // Forecast horizon
	ExogenousSize int     `mapstructure:"exogenous_size" json:"exogenous_size"` // Static features per series
	NoiseStd      float64 `mapstructure:"noise_std" json:"noise_std"`           // Training input noise

	// Seasonal periods; the arity selects the smoothing variant.
	Seasonality []int `mapstructure:"seasonality" json:"seasonality"`

	// Recurrent stack
	StateHSize int     `mapstructure:"state_hsize" json:"state_hsize"`
	Dilations  [][]int `mapstructure:"dilations" json:"dilations"`
	CellType   string  `mapstructure:"cell_type" json:"cell_type"`
	AddNLLayer bool    `mapstructure:"add_nl_layer" json:"add_nl_layer"`

	Device            string `mapstructure:"device" json:"device"`
	Seed              int64  `mapstructure:"seed" json:"seed"`
	TargetLevelAnchor string `mapstructure:"target_level_anchor" json:"target_level_anchor"`
}

// LoggingConfig configures the logrus logger built by the CLI.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"` // json or text
}

// MetricsConfig configures forward-pass instrumentation.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	Namespace string `mapstructure:"namespace" json:"namespace"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Model: *DefaultModelConfig(),
		Logging: LoggingConfig{
			Level:  constants.DefaultLogLevel,
			Format: constants.DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: constants.DefaultMetricsPrefix,
		},
	}
}

// DefaultModelConfig returns a small non-seasonal model.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		NSeries:           1,
		InputSize:         constants.DefaultInputSize,
		OutputSize:        constants.DefaultOutputSize,
		ExogenousSize:     0,
		NoiseStd:          constants.DefaultNoiseStd,
		Seasonality:       []int{},
		StateHSize:        constants.DefaultStateHSize,
		Dilations:         [][]int{{1, 2}, {4, 8}},
		CellType:          constants.DefaultCellType,
		AddNLLayer:        false,
		Device:            constants.DefaultDevice,
		Seed:              constants.DefaultSeed,
		TargetLevelAnchor: constants.DefaultTargetAnchor,
	}
}

// Validate checks the configuration and returns the first configuration error found.
func (c *ModelConfig) Validate() error {
	if c.NSeries <= 0 {
		return invalidSize("n_series", c.NSeries)
	}
	if c.InputSize <= 0 {
		return invalidSize("input_size", c.InputSize)
	}
	if c.OutputSize <= 0 {
		return invalidSize("output_size", c.OutputSize)
	}
	if c.ExogenousSize < 0 {
		return errors.NewConfigurationError(errors.CodeInvalidSize, "exogenous_size must not be negative").
			WithContext("exogenous_size", c.ExogenousSize)
	}
	if c.StateHSize <= 0 {
		return invalidSize("state_hsize", c.StateHSize)
	}

	if c.NoiseStd < 0 || math.IsNaN(c.NoiseStd) || math.IsInf(c.NoiseStd, 0) {
		return errors.NewConfigurationError(errors.CodeInvalidNoise, "noise_std must be a finite non-negative number").
			WithContext("noise_std", c.NoiseStd)
	}

	if len(c.Seasonality) > constants.MaxSeasonalities {
		return errors.NewConfigurationError(errors.CodeUnsupportedSeasonality,
			fmt.Sprintf("at most %d seasonal periods are supported, got %d", constants.MaxSeasonalities, len(c.Seasonality))).
			WithContext("seasonality", c.Seasonality)
	}
	for _, period := range c.Seasonality {
		if period <= 0 {
			return errors.NewConfigurationError(errors.CodeInvalidSeasonality, "seasonal periods must be positive").
				WithContext("seasonality", c.Seasonality)
		}
	}

	if len(c.Dilations) == 0 {
		return errors.NewConfigurationError(errors.CodeInvalidDilations, "at least one dilation group is required")
	}
	for g, group := range c.Dilations {
		if len(group) == 0 {
			return errors.NewConfigurationError(errors.CodeInvalidDilations, "dilation groups must not be empty").
				WithContext("group", g)
		}
		for _, d := range group {
			if d <= 0 {
				return errors.NewConfigurationError(errors.CodeInvalidDilations, "dilation factors must be positive").
					WithContext("group", g).
					WithContext("dilations", group)
			}
		}
	}

	if !slices.Contains(constants.SupportedCellTypes, c.CellType) {
		return errors.NewConfigurationError(errors.CodeInvalidCellType,
			fmt.Sprintf("unsupported cell type %q", c.CellType)).
			WithContext("supported", constants.SupportedCellTypes)
	}

	if c.Device != constants.DeviceCPU {
		return errors.NewConfigurationError(errors.CodeInvalidDevice,
			fmt.Sprintf("unsupported device %q", c.Device))
	}

	switch c.TargetLevelAnchor {
	case constants.TargetAnchorOutputEnd, constants.TargetAnchorOutputStart:
	default:
		return errors.NewConfigurationError(errors.CodeInvalidAnchor,
			fmt.Sprintf("unknown target level anchor %q", c.TargetLevelAnchor))
	}

	return nil
}

// WindowWidth is the width of one normalised input row.
func (c *ModelConfig) WindowWidth() int {
	return c.InputSize + c.ExogenousSize
}

// Clone returns a deep copy of the configuration.
func (c *ModelConfig) Clone() *ModelConfig {
	out := *c
	out.Seasonality = slices.Clone(c.Seasonality)
	out.Dilations = make([][]int, len(c.Dilations))
	for i, group := range c.Dilations {
		out.Dilations[i] = slices.Clone(group)
	}
	return &out
}

func invalidSize(field string, value int) error {
	return errors.NewConfigurationError(errors.CodeInvalidSize, fmt.Sprintf("%s must be positive", field)).
		WithContext(field, value)
}

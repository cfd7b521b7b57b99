package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/inferloop/esrnn/pkg/errors"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys,
// e.g. ESRNN_MODEL_INPUT_SIZE.
const EnvPrefix = "ESRNN"

// Load reads the configuration from cfgFile (YAML, JSON or TOML). An empty path
// yields the defaults merged with the environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	return FromViper(v, cfgFile != "")
}

// FromViper decodes a configuration from an already prepared viper instance.
// When requireFile is false a missing config file is not an error.
func FromViper(v *viper.Viper, requireFile bool) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if requireFile || !notFound {
			return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeConfigLoad,
				"error reading config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeConfigLoad,
			"error unmarshaling config")
	}

	if err := cfg.Model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model configuration: %w", err)
	}

	return cfg, nil
}

// SetDefaults registers every configuration key with its default value.
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault("model.n_series", def.Model.NSeries)
	v.SetDefault("model.input_size", def.Model.InputSize)
	v.SetDefault("model.output_size", def.Model.OutputSize)
	v.SetDefault("model.exogenous_size", def.Model.ExogenousSize)
	v.SetDefault("model.noise_std", def.Model.NoiseStd)
	v.SetDefault("model.seasonality", def.Model.Seasonality)
	v.SetDefault("model.state_hsize", def.Model.StateHSize)
	v.SetDefault("model.dilations", def.Model.Dilations)
	v.SetDefault("model.cell_type", def.Model.CellType)
	v.SetDefault("model.add_nl_layer", def.Model.AddNLLayer)
	v.SetDefault("model.device", def.Model.Device)
	v.SetDefault("model.seed", def.Model.Seed)
	v.SetDefault("model.target_level_anchor", def.Model.TargetLevelAnchor)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.namespace", def.Metrics.Namespace)
}

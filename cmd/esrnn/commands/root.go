package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inferloop/esrnn/pkg/constants"
)

// NewRootCmd wires the sub-commands around a shared runtime. Configuration is
// loaded through v before any sub-command runs.
func NewRootCmd(rt *Runtime, v *viper.Viper) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "esrnn",
		Short: constants.AppDescription,
		Long: `A command-line harness for the ES-RNN hybrid forecaster: exponential smoothing
decomposition feeding a dilated recurrent network.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return rt.Init(v)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rt.ConfigFile, "config", "", "config file (YAML, JSON or TOML)")
	flags.StringVar(&rt.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on success")
	flags.String("log-level", constants.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-format", constants.DefaultLogFormat, "log format (json, text)")

	for key, flag := range map[string]string{
		"logging.level":  "log-level",
		"logging.format": "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}

	rootCmd.AddCommand(NewForecastCmd(rt))
	rootCmd.AddCommand(NewDecomposeCmd(rt))
	rootCmd.AddCommand(NewWindowsCmd(rt))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd, nil
}

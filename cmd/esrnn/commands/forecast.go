package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/inferloop/esrnn/internal/params"
)

// ForecastOptions holds the forecast command flags.
type ForecastOptions struct {
	InputFile         string
	OutputFormat      string
	LevelSmoothing    float64
	SeasonalSmoothing float64
	InitialSeasonal   string
}

// NewForecastCmd builds the forecast command.
func NewForecastCmd(rt *Runtime) *cobra.Command {
	opts := &ForecastOptions{}

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast the next output_size values of each series",
		Long: `Run the inference pass of the model over every series in the input and print
the raw-scale forecast following the last observation.`,
		Example: `  # Forecast with the defaults
  esrnn forecast --input sales.csv

  # Weekly seasonality with seeded seasonal factors
  esrnn forecast --input sales.csv --config weekly.yaml --initial-seasonal 1.1,1,1,0.9,0.9,1,1.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd, rt, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file, - for stdin (required)")
	cmd.Flags().StringVarP(&opts.OutputFormat, "format", "f", "csv", "Output format (csv, json)")
	cmd.Flags().Float64Var(&opts.LevelSmoothing, "level-smoothing", 0, "Raw level smoothing coefficient for every series")
	cmd.Flags().Float64Var(&opts.SeasonalSmoothing, "seasonal-smoothing", 0, "Raw seasonal smoothing coefficient for every series")
	cmd.Flags().StringVar(&opts.InitialSeasonal, "initial-seasonal", "", "Comma separated initial seasonal factors")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runForecast(cmd *cobra.Command, rt *Runtime, opts *ForecastOptions) error {
	batch, err := readBatchFile(opts.InputFile, rt.Config.Model.ExogenousSize)
	if err != nil {
		return err
	}

	storeOpts, err := storeOptions(cmd, opts)
	if err != nil {
		return err
	}

	m, pm, err := rt.newModel(batch, storeOpts...)
	if err != nil {
		return err
	}
	m.Eval()

	start := time.Now()
	yHat, err := m.Predict(batch)
	if err != nil {
		return err
	}

	rt.log().WithFields(logrus.Fields{
		"series":   batch.Size(),
		"horizon":  rt.Config.Model.OutputSize,
		"duration": time.Since(start),
	}).Info("Forecast completed")

	if err := writeForecast(cmd.OutOrStdout(), opts.OutputFormat, batch.Idxs, yHat); err != nil {
		return err
	}
	return rt.flushMetrics(pm)
}

func storeOptions(cmd *cobra.Command, opts *ForecastOptions) ([]params.Option, error) {
	var out []params.Option
	if cmd.Flags().Changed("level-smoothing") {
		out = append(out, params.WithInitialLevelSmoothing(opts.LevelSmoothing))
	}
	if cmd.Flags().Changed("seasonal-smoothing") {
		out = append(out, params.WithInitialSeasonalSmoothing(opts.SeasonalSmoothing))
	}
	values, err := parseSeasonal(opts.InitialSeasonal)
	if err != nil {
		return nil, fmt.Errorf("invalid --initial-seasonal: %w", err)
	}
	if values != nil {
		out = append(out, params.WithInitialSeasonal(0, values))
	}
	return out, nil
}

type forecastRecord struct {
	Series   int       `json:"series"`
	Forecast []float64 `json:"forecast"`
}

func writeForecast(w io.Writer, format string, idxs []int, yHat *mat.Dense) error {
	switch format {
	case "json":
		records := make([]forecastRecord, len(idxs))
		for i, idx := range idxs {
			records[i] = forecastRecord{Series: idx, Forecast: mat.Row(nil, i, yHat)}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "csv":
		writer := csv.NewWriter(w)
		for i, idx := range idxs {
			row := []string{strconv.Itoa(idx)}
			for _, v := range mat.Row(nil, i, yHat) {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

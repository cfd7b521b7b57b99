package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/esrnn/internal/smoothing"
)

// DecomposeOptions holds the decompose command flags.
type DecomposeOptions struct {
	InputFile    string
	OutputFormat string
}

// NewDecomposeCmd builds the decompose command.
func NewDecomposeCmd(rt *Runtime) *cobra.Command {
	opts := &DecomposeOptions{}

	cmd := &cobra.Command{
		Use:   "decompose",
		Short: "Show the level and seasonal components of each series",
		Example: `  # Summary table
  esrnn decompose --input sales.csv

  # Full sequences
  esrnn decompose --input sales.csv --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompose(cmd, rt, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file, - for stdin (required)")
	cmd.Flags().StringVarP(&opts.OutputFormat, "format", "f", "text", "Output format (text, json)")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runDecompose(cmd *cobra.Command, rt *Runtime, opts *DecomposeOptions) error {
	batch, err := readBatchFile(opts.InputFile, rt.Config.Model.ExogenousSize)
	if err != nil {
		return err
	}

	m, pm, err := rt.newModel(batch)
	if err != nil {
		return err
	}

	state, err := m.Decompose(batch)
	if err != nil {
		return err
	}
	rt.log().WithField("series", batch.Size()).Debug("Decomposition completed")

	switch opts.OutputFormat {
	case "json":
		err = writeComponents(cmd.OutOrStdout(), state)
	case "text":
		err = writeSummary(cmd.OutOrStdout(), state)
	default:
		err = fmt.Errorf("unsupported output format: %s", opts.OutputFormat)
	}
	if err != nil {
		return err
	}
	return rt.flushMetrics(pm)
}

type componentRecord struct {
	Series      int         `json:"series"`
	Level       []float64   `json:"level"`
	Seasonality [][]float64 `json:"seasonality,omitempty"`
}

func writeComponents(w io.Writer, state *smoothing.State) error {
	records := make([]componentRecord, state.BatchSize())
	for i, idx := range state.Idxs {
		rec := componentRecord{Series: idx, Level: mat.Row(nil, i, state.Levels)}
		for _, seas := range state.Seasonalities {
			rec.Seasonality = append(rec.Seasonality, mat.Row(nil, i, seas))
		}
		records[i] = rec
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func writeSummary(w io.Writer, state *smoothing.State) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tLEVEL MEAN\tLEVEL STD\tLAST LEVEL\tSEASONAL RANGE")

	n := state.NTime()
	for i, idx := range state.Idxs {
		level := mat.Row(nil, i, state.Levels)
		mean, std := stat.MeanStdDev(level, nil)

		seasonal := "-"
		if len(state.Seasonalities) > 0 {
			row := mat.Row(nil, i, state.Seasonalities[0])
			seasonal = fmt.Sprintf("%.4f..%.4f", floats.Min(row), floats.Max(row))
		}

		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.4f\t%s\n", idx, mean, std, level[n-1], seasonal)
	}
	return tw.Flush()
}

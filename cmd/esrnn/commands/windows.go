package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inferloop/esrnn/internal/windows"
)

// WindowsOptions holds the windows command flags.
type WindowsOptions struct {
	InputFile string
	NTime     int
}

// NewWindowsCmd builds the windows command, which reports how a series length
// is sliced in each mode.
func NewWindowsCmd(rt *Runtime) *cobra.Command {
	opts := &WindowsOptions{}

	cmd := &cobra.Command{
		Use:   "windows",
		Short: "Show the window offsets produced for a series length",
		Example: `  esrnn windows --n-time 20
  esrnn windows --input sales.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWindows(cmd, rt, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file to take the series length from")
	cmd.Flags().IntVarP(&opts.NTime, "n-time", "n", 0, "Series length")
	cmd.MarkFlagsMutuallyExclusive("input", "n-time")

	return cmd
}

func runWindows(cmd *cobra.Command, rt *Runtime, opts *WindowsOptions) error {
	nTime := opts.NTime
	if opts.InputFile != "" {
		batch, err := readBatchFile(opts.InputFile, rt.Config.Model.ExogenousSize)
		if err != nil {
			return err
		}
		nTime = batch.NTime()
	}
	if nTime <= 0 {
		return fmt.Errorf("either --input or a positive --n-time is required")
	}

	cfg := rt.Config.Model
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "n_time=%d input_size=%d output_size=%d\n", nTime, cfg.InputSize, cfg.OutputSize)

	for _, mode := range []windows.Mode{windows.ModeTrain, windows.ModePredict} {
		offsets, err := windows.Offsets(nTime, cfg.InputSize, cfg.OutputSize, mode)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", mode, err)
			continue
		}
		fmt.Fprintf(out, "%s: %d windows, offsets %d..%d\n", mode, len(offsets), offsets[0], offsets[len(offsets)-1])
	}
	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/nvandessel/mcsolve/internal/export"
	"github.com/spf13/cobra"
)

// addPlotFlags registers the gnuplot presentation flags.
func addPlotFlags(cmd *cobra.Command) {
	defaults := export.DefaultPlotOptions()
	cmd.Flags().String("terminal", defaults.Terminal, "gnuplot terminal")
	cmd.Flags().String("size", fmt.Sprintf("%dx%d", defaults.Width, defaults.Height), "Plot size WIDTHxHEIGHT")
	cmd.Flags().String("title", defaults.Title, "Plot title")
	cmd.Flags().String("image", "", "Have gnuplot write to this file instead of a window")
}

// plotOptions reads the flags registered by addPlotFlags.
func plotOptions(cmd *cobra.Command) (export.PlotOptions, error) {
	var opts export.PlotOptions
	opts.Terminal, _ = cmd.Flags().GetString("terminal")
	opts.Title, _ = cmd.Flags().GetString("title")
	opts.Output, _ = cmd.Flags().GetString("image")

	size, _ := cmd.Flags().GetString("size")
	if size != "" {
		if _, err := fmt.Sscanf(size, "%dx%d", &opts.Width, &opts.Height); err != nil {
			return export.PlotOptions{}, fmt.Errorf("invalid size %q: want WIDTHxHEIGHT", size)
		}
	}
	return opts, nil
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <id>",
		Short: "Plot a stored run's error surface with gnuplot",
		Long: `Pipe the error surface of a stored run (discrepancy over chain length
and chain count) into gnuplot. gnuplot must be on PATH.

Examples:
  mcsolve plot run-1a2b3c4d5e6f
  mcsolve plot run-1a2b3c4d5e6f --terminal pngcairo --image error.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}
			opts, err := plotOptions(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if err := export.Plot(ctx, report, opts); err != nil {
				if errors.Is(err, export.ErrGnuplotNotFound) {
					return fmt.Errorf("%w; use 'mcsolve export gnuplot %s' to write the script instead", err, args[0])
				}
				return err
			}
			return nil
		},
	}

	addPlotFlags(cmd)

	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/mcsolve/internal/export"
	"github.com/nvandessel/mcsolve/internal/sweep"
	"github.com/spf13/cobra"
)

// gridFlag pairs a flag name with the grid field it overrides.
type gridFlag struct {
	name  string
	usage string
	field func(*sweep.Grid) *int
}

var gridFlags = []gridFlag{
	{"length-min", "First chain length", func(g *sweep.Grid) *int { return &g.LengthMin }},
	{"length-step", "Chain length increment", func(g *sweep.Grid) *int { return &g.LengthStep }},
	{"length-steps", "Number of chain lengths", func(g *sweep.Grid) *int { return &g.LengthSteps }},
	{"count-min", "First chain count", func(g *sweep.Grid) *int { return &g.CountMin }},
	{"count-step", "Chain count increment", func(g *sweep.Grid) *int { return &g.CountStep }},
	{"count-steps", "Number of chain counts", func(g *sweep.Grid) *int { return &g.CountSteps }},
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Solve over a grid of chain lengths and counts",
		Long: `Run one solve per (chain length, chain count) grid point, record the
discrepancy against the problem's exact solution, and store the completed
run. The default grid is lengths 5..49 and counts 1000..20000 step 1000.

Interrupting a sweep (Ctrl-C) discards it; nothing partial is stored.

Examples:
  mcsolve sweep
  mcsolve sweep --length-steps 10 --count-steps 5 --plot
  mcsolve sweep --problem system.yaml --gnuplot error.gp --no-save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			problem, _ := cmd.Flags().GetString("problem")
			noSave, _ := cmd.Flags().GetBool("no-save")
			plot, _ := cmd.Flags().GetBool("plot")
			gnuplotPath, _ := cmd.Flags().GetString("gnuplot")
			progress, _ := cmd.Flags().GetBool("progress")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := applyGeneratorFlags(cmd, settings); err != nil {
				return err
			}

			grid := settings.Sweep
			for _, gf := range gridFlags {
				if v, _ := cmd.Flags().GetInt(gf.name); v != 0 {
					*gf.field(&grid) = v
				}
			}

			sys, err := loadProblem(problem)
			if err != nil {
				return err
			}
			if err := sys.CheckConvergence(); err != nil {
				return err
			}

			a := newApp(cmd, settings)
			defer a.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			opts := []sweep.Option{sweep.WithLogger(a.logger), sweep.WithEvents(a.events)}
			if progress {
				stderr := cmd.ErrOrStderr()
				opts = append(opts, sweep.WithProgress(func(done, total int) {
					fmt.Fprintf(stderr, "\r%d/%d", done, total)
					if done == total {
						fmt.Fprintln(stderr)
					}
				}))
			}

			report, err := sweep.Run(ctx, a.estimator, sys, grid, opts...)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			if !noSave {
				s, err := openStore(settings)
				if err != nil {
					return err
				}
				defer s.Close()
				if _, err := s.SaveRun(ctx, report); err != nil {
					return fmt.Errorf("failed to save run: %w", err)
				}
			}

			if gnuplotPath != "" {
				if err := writeGnuplotFile(gnuplotPath, report, export.DefaultPlotOptions()); err != nil {
					return err
				}
			}

			if err := printReport(cmd, report, jsonOut); err != nil {
				return err
			}

			if plot {
				if err := export.Plot(ctx, report, export.DefaultPlotOptions()); err != nil {
					return fmt.Errorf("plot failed: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("problem", "reference", "Built-in problem name or YAML problem file")
	for _, gf := range gridFlags {
		cmd.Flags().Int(gf.name, 0, gf.usage+" (overrides config)")
	}
	cmd.Flags().Bool("no-save", false, "Do not store the completed run")
	cmd.Flags().Bool("plot", false, "Pipe the error surface to gnuplot when done")
	cmd.Flags().String("gnuplot", "", "Write the gnuplot script to this file")
	cmd.Flags().Bool("progress", false, "Print grid progress to stderr")
	addGeneratorFlags(cmd)

	return cmd
}

// writeGnuplotFile writes the report's gnuplot script to path.
func writeGnuplotFile(path string, report *sweep.Report, opts export.PlotOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := export.WriteGnuplot(f, report, opts); err != nil {
		return fmt.Errorf("failed to write gnuplot script: %w", err)
	}
	return f.Close()
}

// lengthRow is the best and worst point of one chain length.
type lengthRow struct {
	ChainLength int         `json:"chain_length"`
	Best        sweep.Point `json:"best"`
	Worst       sweep.Point `json:"worst"`
}

// lengthRows returns one row per chain length in sweep order.
func lengthRows(report *sweep.Report) []lengthRow {
	groups := report.ByLength()
	rows := make([]lengthRow, 0, len(groups))
	for _, length := range report.Grid.Lengths() {
		pts := groups[length]
		if len(pts) == 0 {
			continue
		}
		row := lengthRow{ChainLength: length, Best: pts[0], Worst: pts[0]}
		for _, p := range pts[1:] {
			if p.Discrepancy < row.Best.Discrepancy {
				row.Best = p
			}
			if p.Discrepancy > row.Worst.Discrepancy {
				row.Worst = p
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// printReport prints a sweep summary with the best point per chain length.
func printReport(cmd *cobra.Command, report *sweep.Report, jsonOut bool) error {
	out := cmd.OutOrStdout()
	best, _ := report.Best()
	rows := lengthRows(report)

	if jsonOut {
		return json.NewEncoder(out).Encode(map[string]interface{}{
			"id":          report.ID,
			"problem":     report.Problem,
			"points":      len(report.Points),
			"best":        best,
			"rows":        rows,
			"grid":        report.Grid,
			"params":      report.Params,
			"started_at":  report.StartedAt,
			"duration_ms": report.Duration.Milliseconds(),
		})
	}

	fmt.Fprintf(out, "Problem: %s, %d points in %s\n", report.Problem, len(report.Points), report.Duration.Round(time.Millisecond))
	if report.ID != "" {
		fmt.Fprintf(out, "Run: %s\n", report.ID)
	}
	fmt.Fprintf(out, "Best: length %d, count %d, discrepancy %.6f\n\n", best.ChainLength, best.ChainCount, best.Discrepancy)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LENGTH\tBEST COUNT\tMIN DISCREPANCY\tMAX DISCREPANCY")
	for _, row := range rows {
		fmt.Fprintf(w, "%d\t%d\t%.6f\t%.6f\n", row.ChainLength, row.Best.ChainCount, row.Best.Discrepancy, row.Worst.Discrepancy)
	}
	return w.Flush()
}

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nvandessel/mcsolve/internal/config"
	"github.com/nvandessel/mcsolve/internal/linsys"
	"github.com/spf13/cobra"
)

// addGeneratorFlags registers per-command PRNG overrides.
func addGeneratorFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("seed", 0, "PRNG seed (overrides config)")
	cmd.Flags().Int64("multiplier", 0, "PRNG multiplier (overrides config)")
	cmd.Flags().Int64("modulus", 0, "PRNG modulus (overrides config)")
}

// applyGeneratorFlags copies non-zero generator flags into settings.
func applyGeneratorFlags(cmd *cobra.Command, settings *config.Config) error {
	if v, _ := cmd.Flags().GetInt64("seed"); v != 0 {
		settings.Generator.Seed = v
	}
	if v, _ := cmd.Flags().GetInt64("multiplier"); v != 0 {
		settings.Generator.Multiplier = v
	}
	if v, _ := cmd.Flags().GetInt64("modulus"); v != 0 {
		settings.Generator.Modulus = v
	}
	return settings.Generator.Validate()
}

func newSolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Estimate the solution of a system once",
		Long: `Estimate x = Cx + f by simulating chain-count Markov chains of the
given length and averaging the weighted path sums.

The problem is either the built-in "reference" system or a YAML file:

  name: my-system
  form: equation      # or "iteration" (matrix is C directly)
  matrix: [[1.2, -0.3, 0.4], [0.4, 0.7, -0.2], [0.2, -0.3, 0.9]]
  vector: [-4, 2, 0]
  exact: [-2.8285714286, 5.1428571429, 2.3428571429]   # optional

Examples:
  mcsolve solve
  mcsolve solve --chains 5000 --length 20 --seed 12345
  mcsolve solve --problem system.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			problem, _ := cmd.Flags().GetString("problem")
			chains, _ := cmd.Flags().GetInt("chains")
			length, _ := cmd.Flags().GetInt("length")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := applyGeneratorFlags(cmd, settings); err != nil {
				return err
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

			start := time.Now()
			result, err := a.estimator.Solve(sys.C, sys.F, chains, length)
			if err != nil {
				return fmt.Errorf("solve failed: %w", err)
			}
			elapsed := time.Since(start)

			var discrepancy *float64
			if sys.Exact != nil {
				d, err := linsys.Discrepancy(sys.Exact, result)
				if err != nil {
					return err
				}
				discrepancy = &d
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"problem":      sys.Name,
					"result":       result,
					"exact":        sys.Exact,
					"discrepancy":  discrepancy,
					"chain_count":  chains,
					"chain_length": length,
					"params":       settings.Generator,
					"elapsed_ms":   elapsed.Milliseconds(),
				})
			}

			fmt.Fprintf(out, "Problem: %s (%d unknowns)\n", sys.Name, sys.Size())
			fmt.Fprintf(out, "Chains: %d x length %d (%s)\n", chains, length, elapsed.Round(time.Millisecond))
			for i, v := range result {
				if sys.Exact != nil {
					fmt.Fprintf(out, "  x[%d] = %12.6f   exact %12.6f\n", i, v, sys.Exact[i])
				} else {
					fmt.Fprintf(out, "  x[%d] = %12.6f\n", i, v)
				}
			}
			if discrepancy != nil {
				fmt.Fprintf(out, "Discrepancy: %.6f\n", *discrepancy)
			}
			return nil
		},
	}

	cmd.Flags().String("problem", "reference", "Built-in problem name or YAML problem file")
	cmd.Flags().IntP("chains", "n", 20000, "Number of Markov chains")
	cmd.Flags().IntP("length", "l", 50, "Transitions per chain")
	addGeneratorFlags(cmd)

	return cmd
}

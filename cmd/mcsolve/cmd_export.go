package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/mcsolve/internal/export"
	"github.com/nvandessel/mcsolve/internal/sweep"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a stored run for external tools",
		Long: `Export a stored run as a gnuplot script, an Arrow IPC stream, or a
checksummed archive that 'runs import' can read back.

Examples:
  mcsolve export gnuplot run-1a2b3c4d5e6f > error.gp
  mcsolve export arrow run-1a2b3c4d5e6f -o grid.arrows
  mcsolve export archive run-1a2b3c4d5e6f -o run.json.gz
  mcsolve export verify run.json.gz`,
	}

	cmd.AddCommand(
		newExportGnuplotCmd(),
		newExportArrowCmd(),
		newExportArchiveCmd(),
		newExportVerifyCmd(),
	)

	return cmd
}

// loadRun opens the configured store and loads one run.
func loadRun(cmd *cobra.Command, id string) (*sweep.Report, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	s, err := openStore(settings)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return s.GetRun(cmd.Context(), id)
}

// withOutput runs fn against the -o file, or stdout when none is given.
func withOutput(cmd *cobra.Command, fn func(io.Writer) error) error {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return fn(cmd.OutOrStdout())
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return err
	}
	return f.Close()
}

func newExportGnuplotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gnuplot <id>",
		Short: "Write the run's error surface as a gnuplot script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}
			opts, err := plotOptions(cmd)
			if err != nil {
				return err
			}
			return withOutput(cmd, func(w io.Writer) error {
				return export.WriteGnuplot(w, report, opts)
			})
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	addPlotFlags(cmd)

	return cmd
}

func newExportArrowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arrow <id>",
		Short: "Write the run's grid as an Arrow IPC stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}
			return withOutput(cmd, func(w io.Writer) error {
				return export.WriteArrow(w, report)
			})
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")

	return cmd
}

func newExportArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Write the full run to a checksummed archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				path = args[0] + ".json.gz"
			}

			report, err := loadRun(cmd, args[0])
			if err != nil {
				return err
			}
			if err := export.WriteArchive(path, report); err != nil {
				return fmt.Errorf("failed to write archive: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"id":     report.ID,
					"path":   path,
					"points": len(report.Points),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived run %s to %s (%d points)\n", report.ID, path, len(report.Points))
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Archive path (default <id>.json.gz)")

	return cmd
}

func newExportVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive>",
		Short: "Verify an archive's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			header, err := export.VerifyArchive(args[0])
			if err != nil {
				if jsonOut {
					json.NewEncoder(out).Encode(map[string]interface{}{
						"file":  args[0],
						"valid": false,
						"error": err.Error(),
					})
				}
				return fmt.Errorf("verification failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"file":     args[0],
					"valid":    true,
					"run_id":   header.RunID,
					"points":   header.PointCount,
					"checksum": header.Checksum,
				})
			}
			fmt.Fprintf(out, "OK: checksum verified\n")
			fmt.Fprintf(out, "  File: %s\n", args[0])
			fmt.Fprintf(out, "  Run: %s (%d points)\n", header.RunID, header.PointCount)
			return nil
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/mcsolve/internal/export"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored sweep runs",
		Long: `List, show, delete and import completed sweep runs.

Runs are stored in ~/.mcsolve/runs.db unless --db or store.path says otherwise.

Examples:
  mcsolve runs list
  mcsolve runs show run-1a2b3c4d5e6f
  mcsolve runs delete run-1a2b3c4d5e6f
  mcsolve runs import run.json.gz`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsDeleteCmd(),
		newRunsImportCmd(),
	)

	return cmd
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(settings)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(out, "No stored runs. Run 'mcsolve sweep' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROBLEM\tN\tPOINTS\tBEST\tAT (LENGTH, COUNT)\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.6f\t(%d, %d)\t%s\n",
					r.ID, r.Problem, r.Unknowns, r.Points, r.BestDiscrepancy,
					r.BestLength, r.BestCount, r.StartedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(settings)
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := s.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
			}
			return printReport(cmd, report, false)
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(settings)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"id":      args[0],
					"deleted": true,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func newRunsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive>",
		Short: "Import a run from an archive written by 'export archive'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			report, err := export.ReadArchive(args[0])
			if err != nil {
				return fmt.Errorf("failed to read archive: %w", err)
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(settings)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.SaveRun(cmd.Context(), report)
			if err != nil {
				return fmt.Errorf("failed to import run: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"id":     id,
					"points": len(report.Points),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported run %s (%d points)\n", id, len(report.Points))
			return nil
		},
	}
}

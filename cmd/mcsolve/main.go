package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/mcsolve/internal/config"
	"github.com/nvandessel/mcsolve/internal/linsys"
	"github.com/nvandessel/mcsolve/internal/logging"
	"github.com/nvandessel/mcsolve/internal/montecarlo"
	"github.com/nvandessel/mcsolve/internal/store"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mcsolve",
		Short: "Monte Carlo solver for x = Cx + f",
		Long: `mcsolve estimates the solution of the linear system x = Cx + f by
simulating Markov chains, and measures how the estimation error shrinks as
chain length and chain count grow.

Configuration is read from ~/.mcsolve/config.yaml and MCSOLVE_* variables.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.mcsolve/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace (overrides config)")
	rootCmd.PersistentFlags().String("db", "", "Run database path (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSolveCmd(),
		newSweepCmd(),
		newCheckCmd(),
		newRunsCmd(),
		newExportCmd(),
		newPlotCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "mcsolve version %s\n", version)
			}
		},
	}
}

// loadSettings loads the config (file then env) and applies the global
// flag overrides.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var (
		settings *config.Config
		err      error
	)
	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr != nil {
			return nil, fmt.Errorf("config file: %w", statErr)
		}
		settings, err = config.LoadFrom(configPath)
	} else {
		settings, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		settings.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		settings.Store.Path = v
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

// app bundles what a command needs to solve and log.
type app struct {
	settings  *config.Config
	logger    *slog.Logger
	events    *logging.EventLogger
	estimator *montecarlo.Estimator
}

// newApp builds the logger, the event log (debug and trace only) and
// an estimator from the loaded settings.
func newApp(cmd *cobra.Command, settings *config.Config) *app {
	logger := logging.NewLogger(settings.Logging.Level, cmd.ErrOrStderr())

	var events *logging.EventLogger
	if dir, err := store.HomeDir(); err == nil {
		events = logging.NewEventLogger(dir, settings.Logging.Level)
	}

	return &app{
		settings: settings,
		logger:   logger,
		events:   events,
		estimator: montecarlo.New(montecarlo.Options{
			Params: settings.Generator,
			Logger: logger,
			Events: events,
		}),
	}
}

func (a *app) Close() {
	a.events.Close()
}

// openStore opens the run database named by the settings, or the default.
func openStore(settings *config.Config) (*store.RunStore, error) {
	path := settings.Store.Path
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return s, nil
}

// loadProblem resolves a built-in problem name or a YAML problem file.
func loadProblem(name string) (linsys.System, error) {
	if sys, ok := linsys.Builtin(name); ok {
		return sys, nil
	}
	return linsys.LoadFile(name)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

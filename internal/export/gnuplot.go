// Package export renders sweep reports for external tools: gnuplot
// surface plots, Arrow IPC tables and checksummed archives.
package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/nvandessel/mcsolve/internal/sweep"
)

// ErrGnuplotNotFound is returned by Plot when no gnuplot binary is on PATH.
var ErrGnuplotNotFound = errors.New("export: gnuplot not found")

// PlotOptions controls the gnuplot script.
type PlotOptions struct {
	// Terminal is the gnuplot terminal; empty leaves gnuplot's default.
	Terminal string
	Width    int
	Height   int
	Title    string
	// Output is written as "set output" when non-empty.
	Output string
}

// DefaultPlotOptions returns an interactive 1280x720 window.
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Terminal: "wxt",
		Width:    1280,
		Height:   720,
		Title:    "Error of system solution",
	}
}

// WriteGnuplot writes a self-contained splot script with inline data:
// one "length count discrepancy" row per grid point, terminated by "e".
func WriteGnuplot(w io.Writer, r *sweep.Report, opts PlotOptions) error {
	bw := bufio.NewWriter(w)

	if opts.Terminal != "" {
		if opts.Width > 0 && opts.Height > 0 {
			fmt.Fprintf(bw, "set term %s size %d, %d\n", opts.Terminal, opts.Width, opts.Height)
		} else {
			fmt.Fprintf(bw, "set term %s\n", opts.Terminal)
		}
	}
	if opts.Output != "" {
		fmt.Fprintf(bw, "set output %q\n", opts.Output)
	}
	if opts.Title != "" {
		fmt.Fprintf(bw, "set title %q\n", opts.Title)
	}
	fmt.Fprintln(bw, "set dgrid3d")
	fmt.Fprintln(bw, `set xlabel "Markov chain length"`)
	fmt.Fprintln(bw, `set ylabel "Number of Markov chains"`)
	fmt.Fprintln(bw, `set zlabel "Error"`)
	fmt.Fprintln(bw, "splot '-' with lines")

	for _, p := range r.Points {
		fmt.Fprintf(bw, "%d %d %f\n", p.ChainLength, p.ChainCount, p.Discrepancy)
	}
	fmt.Fprintln(bw, "e")

	return bw.Flush()
}

// Plot pipes the report's script into a gnuplot process and waits for it
// to exit. With an interactive terminal gnuplot is started with -persist so
// the window outlives the pipe.
func Plot(ctx context.Context, r *sweep.Report, opts PlotOptions) error {
	bin, err := exec.LookPath("gnuplot")
	if err != nil {
		return ErrGnuplotNotFound
	}

	args := []string{}
	if opts.Output == "" {
		args = append(args, "-persist")
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("opening gnuplot pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting gnuplot: %w", err)
	}

	writeErr := WriteGnuplot(stdin, r, opts)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	switch {
	case writeErr != nil:
		return fmt.Errorf("writing gnuplot script: %w", writeErr)
	case closeErr != nil:
		return fmt.Errorf("closing gnuplot pipe: %w", closeErr)
	case waitErr != nil:
		return fmt.Errorf("gnuplot: %w", waitErr)
	}
	return nil
}

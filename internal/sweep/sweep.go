// Package sweep runs the Monte Carlo estimator over a grid of chain lengths
// and chain counts and records how the discrepancy from a reference
// solution shrinks.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/nvandessel/mcsolve/internal/linsys"
	"github.com/nvandessel/mcsolve/internal/logging"
	"github.com/nvandessel/mcsolve/internal/montecarlo"
	"github.com/nvandessel/mcsolve/internal/prng"
)

var (
	// ErrInvalidGrid is returned for grids with non-positive bounds or steps.
	ErrInvalidGrid = errors.New("sweep: invalid grid")

	// ErrNoReference is returned when the system carries no exact solution.
	ErrNoReference = errors.New("sweep: system has no exact solution")
)

// Grid bounds. MaxGridPoints caps the number of solves in one sweep and
// MaxPointValue caps any single chain length or chain count.
const (
	MaxGridPoints = 1_000_000
	MaxPointValue = math.MaxInt32
)

// Grid describes the chain length × chain count lattice. Lengths run
// LengthMin, LengthMin+LengthStep, ... for LengthSteps values, and counts
// likewise.
type Grid struct {
	LengthMin   int `json:"length_min" yaml:"length_min"`
	LengthStep  int `json:"length_step" yaml:"length_step"`
	LengthSteps int `json:"length_steps" yaml:"length_steps"`
	CountMin    int `json:"count_min" yaml:"count_min"`
	CountStep   int `json:"count_step" yaml:"count_step"`
	CountSteps  int `json:"count_steps" yaml:"count_steps"`
}

// DefaultGrid returns lengths 5..49 and counts 1000..20000.
func DefaultGrid() Grid {
	return Grid{
		LengthMin:   5,
		LengthStep:  1,
		LengthSteps: 45,
		CountMin:    1000,
		CountStep:   1000,
		CountSteps:  20,
	}
}

// Validate checks that every grid point is a valid solve.
func (g Grid) Validate() error {
	switch {
	case g.LengthMin < 1:
		return fmt.Errorf("%w: length_min must be >= 1, got %d", ErrInvalidGrid, g.LengthMin)
	case g.CountMin < 1:
		return fmt.Errorf("%w: count_min must be >= 1, got %d", ErrInvalidGrid, g.CountMin)
	case g.LengthSteps < 1 || g.CountSteps < 1:
		return fmt.Errorf("%w: step counts must be >= 1, got %d and %d", ErrInvalidGrid, g.LengthSteps, g.CountSteps)
	case g.LengthStep < 0 || g.CountStep < 0:
		return fmt.Errorf("%w: steps must be non-negative", ErrInvalidGrid)
	case g.LengthSteps > MaxGridPoints/g.CountSteps:
		return fmt.Errorf("%w: %d x %d points exceeds the maximum of %d",
			ErrInvalidGrid, g.LengthSteps, g.CountSteps, MaxGridPoints)
	case lastValue(g.LengthMin, g.LengthStep, g.LengthSteps) > MaxPointValue:
		return fmt.Errorf("%w: chain lengths exceed %d", ErrInvalidGrid, MaxPointValue)
	case lastValue(g.CountMin, g.CountStep, g.CountSteps) > MaxPointValue:
		return fmt.Errorf("%w: chain counts exceed %d", ErrInvalidGrid, MaxPointValue)
	}
	return nil
}

// lastValue is the final term of an arithmetic progression, in float64 so
// it cannot overflow.
func lastValue(first, step, steps int) float64 {
	return float64(first) + float64(steps-1)*float64(step)
}

// Work returns the total work units of every solve in g for n unknowns:
// the sum of count*length*n over the grid, computed without enumerating it.
func (g Grid) Work(n int) float64 {
	return float64(n) * seriesSum(g.LengthMin, g.LengthStep, g.LengthSteps) *
		seriesSum(g.CountMin, g.CountStep, g.CountSteps)
}

// seriesSum is the sum of an arithmetic progression.
func seriesSum(first, step, steps int) float64 {
	k := float64(steps)
	return k*float64(first) + float64(step)*k*(k-1)/2
}

// Size returns the number of grid points. Only meaningful on a valid grid.
func (g Grid) Size() int {
	return g.LengthSteps * g.CountSteps
}

// Lengths returns the chain lengths in sweep order.
func (g Grid) Lengths() []int {
	out := make([]int, g.LengthSteps)
	for i := range out {
		out[i] = g.LengthMin + i*g.LengthStep
	}
	return out
}

// Counts returns the chain counts in sweep order.
func (g Grid) Counts() []int {
	out := make([]int, g.CountSteps)
	for i := range out {
		out[i] = g.CountMin + i*g.CountStep
	}
	return out
}

// Point is the outcome of one solve in the sweep.
type Point struct {
	ChainLength int           `json:"chain_length"`
	ChainCount  int           `json:"chain_count"`
	Discrepancy float64       `json:"discrepancy"`
	Result      []float64     `json:"result"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Report is a completed sweep.
type Report struct {
	ID        string        `json:"id,omitempty"`
	Problem   string        `json:"problem"`
	System    linsys.System `json:"system"`
	Params    prng.Params   `json:"params"`
	Grid      Grid          `json:"grid"`
	Points    []Point       `json:"points"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Best returns the point with the smallest discrepancy.
func (r *Report) Best() (Point, bool) {
	if len(r.Points) == 0 {
		return Point{}, false
	}
	best := r.Points[0]
	for _, p := range r.Points[1:] {
		if p.Discrepancy < best.Discrepancy {
			best = p
		}
	}
	return best, true
}

// ByLength groups points by chain length, each group ordered by count.
func (r *Report) ByLength() map[int][]Point {
	groups := make(map[int][]Point)
	for _, p := range r.Points {
		groups[p.ChainLength] = append(groups[p.ChainLength], p)
	}
	for _, pts := range groups {
		sort.Slice(pts, func(i, j int) bool { return pts[i].ChainCount < pts[j].ChainCount })
	}
	return groups
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger   *slog.Logger
	events   *logging.EventLogger
	progress func(done, total int)
}

// WithLogger sets the progress logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// WithEvents records a "sweep_point" event per grid point.
func WithEvents(el *logging.EventLogger) Option {
	return func(o *runOptions) { o.events = el }
}

// WithProgress registers a callback invoked after every solve.
func WithProgress(fn func(done, total int)) Option {
	return func(o *runOptions) { o.progress = fn }
}

// Run solves sys at every grid point, length-major, and returns the report.
// The system must be valid and carry an exact solution. Cancellation is
// checked between solves; a cancelled sweep returns ctx.Err() and no report.
func Run(ctx context.Context, est *montecarlo.Estimator, sys linsys.System, g Grid, opts ...Option) (*Report, error) {
	o := runOptions{logger: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := sys.Validate(); err != nil {
		return nil, fmt.Errorf("invalid system: %w", err)
	}
	if sys.Exact == nil {
		return nil, ErrNoReference
	}

	started := time.Now()
	report := &Report{
		Problem:   sys.Name,
		System:    sys,
		Params:    est.Params(),
		Grid:      g,
		Points:    make([]Point, 0, g.Size()),
		StartedAt: started.UTC(),
	}

	lengths := g.Lengths()
	total := g.Size()
	for i, length := range lengths {
		for _, count := range g.Counts() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			start := time.Now()
			result, err := est.Solve(sys.C, sys.F, count, length)
			if err != nil {
				return nil, fmt.Errorf("solve at length %d, count %d: %w", length, count, err)
			}
			d, err := linsys.Discrepancy(sys.Exact, result)
			if err != nil {
				return nil, err
			}

			p := Point{
				ChainLength: length,
				ChainCount:  count,
				Discrepancy: d,
				Result:      result,
				Elapsed:     time.Since(start),
			}
			report.Points = append(report.Points, p)
			o.events.Log("sweep_point", map[string]any{
				"chain_length": length,
				"chain_count":  count,
				"discrepancy":  d,
			})
			if o.progress != nil {
				o.progress(len(report.Points), total)
			}
		}
		o.logger.Info("sweep progress", "iteration", i+1, "of", len(lengths), "chain_length", length)
	}

	report.Duration = time.Since(started)
	return report, nil
}

package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/mcsolve/internal/logging"
	"github.com/nvandessel/mcsolve/internal/prng"
)

// ErrInvalidParameter is returned for non-positive chain counts or lengths
// and for malformed systems.
var ErrInvalidParameter = errors.New("montecarlo: invalid parameter")

// Options configures an Estimator.
type Options struct {
	// Params seeds the generator each solve builds. Zero value means
	// prng.DefaultParams().
	Params prng.Params

	// Logger receives debug records per solve. Nil discards.
	Logger *slog.Logger

	// Events receives a JSONL "solve" event per solve. Nil disables.
	Events *logging.EventLogger
}

// Estimator runs Monte Carlo solves with a fixed generator configuration.
// It keeps no state between solves: every call builds its own generator
// from Params, so identical inputs produce identical results and one
// Estimator may be shared by concurrent callers.
type Estimator struct {
	params prng.Params
	logger *slog.Logger
	events *logging.EventLogger
}

// New creates an Estimator. Generator parameters are validated on each
// solve, not here.
func New(opts Options) *Estimator {
	params := opts.Params
	if params == (prng.Params{}) {
		params = prng.DefaultParams()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Estimator{
		params: params,
		logger: logger,
		events: opts.Events,
	}
}

// Params returns the generator parameters used for every solve.
func (e *Estimator) Params() prng.Params {
	return e.params
}

// Solve estimates the solution of x = Cx + f from chainCount trajectories
// of chainLength indices each. Convergence of C is the caller's concern.
func Solve(c [][]float64, f []float64, chainCount, chainLength int) ([]float64, error) {
	return New(Options{}).Solve(c, f, chainCount, chainLength)
}

// Solve estimates the solution of x = Cx + f. It returns a vector of len(f)
// or an error wrapping ErrInvalidParameter; no partial result is returned.
func (e *Estimator) Solve(c [][]float64, f []float64, chainCount, chainLength int) ([]float64, error) {
	start := time.Now()

	trajectories, model, err := e.sample(c, f, chainCount, chainLength)
	if err != nil {
		return nil, err
	}

	n := len(f)
	result := make([]float64, n)
	h := make([]float64, n)
	for _, traj := range trajectories {
		for k := 0; k < n; k++ {
			clear(h)
			h[k] = 1.0
			result[k] += PathSum(c, f, h, model, traj)
		}
	}
	for k := range result {
		result[k] /= float64(chainCount)
	}

	elapsed := time.Since(start)
	e.logger.Debug("solve complete",
		"n", n,
		"chain_count", chainCount,
		"chain_length", chainLength,
		"elapsed", elapsed)
	e.logger.Log(context.Background(), logging.LevelTrace, "solve result", "result", result)
	e.events.Log("solve", map[string]any{
		"n":            n,
		"chain_count":  chainCount,
		"chain_length": chainLength,
		"seed":         e.params.Seed,
		"elapsed_ms":   elapsed.Milliseconds(),
	})

	return result, nil
}

// EstimateFunctional estimates h·x for an arbitrary probe vector h using the
// same trajectory batch Solve would draw.
func (e *Estimator) EstimateFunctional(c [][]float64, f, h []float64, chainCount, chainLength int) (float64, error) {
	if len(h) != len(f) {
		return 0, fmt.Errorf("%w: probe has %d entries, want %d", ErrInvalidParameter, len(h), len(f))
	}

	trajectories, model, err := e.sample(c, f, chainCount, chainLength)
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, traj := range trajectories {
		sum += PathSum(c, f, h, model, traj)
	}
	return sum / float64(chainCount), nil
}

// sample validates the inputs, builds a fresh generator and draws the batch.
func (e *Estimator) sample(c [][]float64, f []float64, chainCount, chainLength int) ([][]int, TransitionModel, error) {
	if chainCount < 1 {
		return nil, TransitionModel{}, fmt.Errorf("%w: chain count must be positive, got %d", ErrInvalidParameter, chainCount)
	}
	if chainLength < 1 {
		return nil, TransitionModel{}, fmt.Errorf("%w: chain length must be positive, got %d", ErrInvalidParameter, chainLength)
	}
	if err := checkShape(c, f); err != nil {
		return nil, TransitionModel{}, err
	}

	gen, err := e.params.New()
	if err != nil {
		return nil, TransitionModel{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	n := len(f)
	return GenerateTrajectories(gen, chainCount, chainLength, n), UniformModel(n), nil
}

func checkShape(c [][]float64, f []float64) error {
	n := len(f)
	if n == 0 {
		return fmt.Errorf("%w: empty system", ErrInvalidParameter)
	}
	if len(c) != n {
		return fmt.Errorf("%w: C has %d rows, f has %d entries", ErrInvalidParameter, len(c), n)
	}
	for i, row := range c {
		if len(row) != n {
			return fmt.Errorf("%w: row %d of C has %d columns, want %d", ErrInvalidParameter, i, len(row), n)
		}
	}
	return nil
}

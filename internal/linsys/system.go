// Package linsys describes fixed-point linear systems x = Cx + f and the
// checks a Monte Carlo driver performs before sampling them.
package linsys

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmpty is returned for a system with no unknowns.
	ErrEmpty = errors.New("linsys: empty system")

	// ErrDimensionMismatch is returned when C is not square or f (or the
	// exact solution) does not match its order.
	ErrDimensionMismatch = errors.New("linsys: dimension mismatch")

	// ErrNonFinite is returned when a coefficient is NaN or ±Inf.
	ErrNonFinite = errors.New("linsys: NaN or Inf coefficient")

	// ErrNotConvergent is returned when a row of |C| sums to 1 or more.
	ErrNotConvergent = errors.New("linsys: iteration matrix is not convergent")
)

// System is a linear system in fixed-point form x = Cx + f.
type System struct {
	// Name labels the system in reports and stored runs.
	Name string `json:"name,omitempty"`

	// C is the n×n iteration matrix.
	C [][]float64 `json:"c"`

	// F is the constant vector of length n.
	F []float64 `json:"f"`

	// Exact is an optional reference solution used for discrepancy.
	Exact []float64 `json:"exact,omitempty"`
}

// Size returns the number of unknowns.
func (s System) Size() int {
	return len(s.F)
}

// Validate checks shapes and finiteness. It does not check convergence.
func (s System) Validate() error {
	n := len(s.F)
	if n == 0 {
		return ErrEmpty
	}
	if len(s.C) != n {
		return fmt.Errorf("%w: C has %d rows, f has %d entries", ErrDimensionMismatch, len(s.C), n)
	}
	for i, row := range s.C {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: C[%d][%d] = %v", ErrNonFinite, i, j, v)
			}
		}
	}
	for i, v := range s.F {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: f[%d] = %v", ErrNonFinite, i, v)
		}
	}
	if s.Exact != nil && len(s.Exact) != n {
		return fmt.Errorf("%w: exact solution has %d entries, want %d", ErrDimensionMismatch, len(s.Exact), n)
	}
	return nil
}

// CheckConvergence reports ErrNotConvergent if any row of |C| sums to 1 or
// more. The Neumann series behind the estimator only converges otherwise.
func (s System) CheckConvergence() error {
	for i, row := range s.C {
		if sum := RowAbsSum(row); sum >= 1.0 {
			return fmt.Errorf("%w: row %d has |C| sum %.6g", ErrNotConvergent, i, sum)
		}
	}
	return nil
}

// RowAbsSum returns the sum of absolute values in row.
func RowAbsSum(row []float64) float64 {
	var sum float64
	for _, v := range row {
		sum += math.Abs(v)
	}
	return sum
}

// FromEquation rewrites A x = b as x = (I - A) x + b.
func FromEquation(name string, a [][]float64, b []float64) System {
	c := make([][]float64, len(a))
	for i, row := range a {
		c[i] = make([]float64, len(row))
		for j, v := range row {
			if i == j {
				c[i][j] = 1.0 - v
			} else {
				c[i][j] = -v
			}
		}
	}
	f := make([]float64, len(b))
	copy(f, b)
	return System{Name: name, C: c, F: f}
}

// Discrepancy returns the largest component-wise absolute difference
// between exact and result.
func Discrepancy(exact, result []float64) (float64, error) {
	if len(exact) != len(result) {
		return 0, fmt.Errorf("%w: exact has %d entries, result has %d", ErrDimensionMismatch, len(exact), len(result))
	}
	var worst float64
	for i := range exact {
		if d := math.Abs(exact[i] - result[i]); d > worst {
			worst = d
		}
	}
	return worst, nil
}

// Reference returns the 3×3 demonstration system, obtained from
//
//	A = [[1.2, -0.3, 0.4], [0.4, 0.7, -0.2], [0.2, -0.3, 0.9]], b = [-4, 2, 0]
//
// via FromEquation, together with its exact solution.
func Reference() System {
	s := FromEquation("reference-3x3",
		[][]float64{
			{1.2, -0.3, 0.4},
			{0.4, 0.7, -0.2},
			{0.2, -0.3, 0.9},
		},
		[]float64{-4.0, 2.0, 0.0},
	)
	s.Exact = []float64{-2.8285714286, 5.1428571429, 2.3428571429}
	return s
}

// Builtin returns a named built-in system. "reference" and
// "reference-3x3" both name Reference.
func Builtin(name string) (System, bool) {
	switch name {
	case "reference", "reference-3x3":
		return Reference(), true
	}
	return System{}, false
}

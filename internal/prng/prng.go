// Package prng provides reproducible pseudo-random number streams for
// Monte Carlo sampling.
//
// The only generator is a multiplicative congruential one:
//
//	last = (last * multiplier) mod modulus
//
// Streams are fully determined by (modulus, seed, multiplier), so two
// generators built from the same Params replay identical draws.
package prng

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Reference parameters: modulus 2^31 with an odd seed and multiplier.
const (
	DefaultModulus    int64 = 1 << 31
	DefaultSeed       int64 = 262147
	DefaultMultiplier int64 = 262147
)

// ErrInvalidParameter is returned when a generator is constructed with a
// non-positive modulus or a seed/multiplier outside (0, modulus).
var ErrInvalidParameter = errors.New("prng: invalid parameter")

// Generator is a stateful stream of pseudo-random numbers.
// Implementations are not safe for concurrent use.
type Generator interface {
	// Next advances the stream and returns a value in [0, 1).
	Next() float64

	// NextRange returns a value in [from, to).
	NextRange(from, to float64) float64

	// NextInt returns an integer in the closed range [from, to].
	NextInt(from, to int) int

	// Reset rewinds the stream to its seed.
	Reset()

	// Clone returns an independent generator positioned at the same point
	// of the stream.
	Clone() Generator
}

// Params identifies a multiplicative stream.
type Params struct {
	Modulus    int64 `json:"modulus" yaml:"modulus"`
	Seed       int64 `json:"seed" yaml:"seed"`
	Multiplier int64 `json:"multiplier" yaml:"multiplier"`
}

// DefaultParams returns the reference parameters.
func DefaultParams() Params {
	return Params{
		Modulus:    DefaultModulus,
		Seed:       DefaultSeed,
		Multiplier: DefaultMultiplier,
	}
}

// Validate checks that p describes a usable stream.
func (p Params) Validate() error {
	if p.Modulus <= 0 {
		return fmt.Errorf("%w: modulus must be positive, got %d", ErrInvalidParameter, p.Modulus)
	}
	if p.Seed <= 0 || p.Seed >= p.Modulus {
		return fmt.Errorf("%w: seed must be in (0, %d), got %d", ErrInvalidParameter, p.Modulus, p.Seed)
	}
	if p.Multiplier <= 0 || p.Multiplier >= p.Modulus {
		return fmt.Errorf("%w: multiplier must be in (0, %d), got %d", ErrInvalidParameter, p.Modulus, p.Multiplier)
	}
	return nil
}

// New builds a generator from p.
func (p Params) New() (*Multiplicative, error) {
	return NewMultiplicative(p.Modulus, p.Seed, p.Multiplier)
}

// Multiplicative is a multiplicative congruential generator.
// The zero value is not usable; construct with NewMultiplicative.
type Multiplicative struct {
	modulus    uint64
	seed       uint64
	multiplier uint64
	last       uint64
}

var _ Generator = (*Multiplicative)(nil)

// NewMultiplicative creates a generator positioned at seed.
// Whether (seed, multiplier) yields a long period is the caller's concern.
func NewMultiplicative(modulus, seed, multiplier int64) (*Multiplicative, error) {
	p := Params{Modulus: modulus, Seed: seed, Multiplier: multiplier}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Multiplicative{
		modulus:    uint64(modulus),
		seed:       uint64(seed),
		multiplier: uint64(multiplier),
		last:       uint64(seed),
	}, nil
}

// Params returns the parameters the generator was built with.
func (m *Multiplicative) Params() Params {
	return Params{
		Modulus:    int64(m.modulus),
		Seed:       int64(m.seed),
		Multiplier: int64(m.multiplier),
	}
}

// State returns the current stream position.
func (m *Multiplicative) State() int64 {
	return int64(m.last)
}

// Next advances the stream and returns last/modulus.
func (m *Multiplicative) Next() float64 {
	// 128-bit product; hi < modulus always holds since both factors are.
	hi, lo := bits.Mul64(m.last, m.multiplier)
	m.last = bits.Rem64(hi, lo, m.modulus)
	r := float64(m.last) / float64(m.modulus)
	if r >= 1 {
		// float64 rounding for moduli beyond 2^53
		r = math.Nextafter(1, 0)
	}
	return r
}

// NextRange returns from + (to-from)*Next().
func (m *Multiplicative) NextRange(from, to float64) float64 {
	return from + (to-from)*m.Next()
}

// NextInt draws from [from-0.5, to+0.5) and rounds half up, so every
// result lies in [from, to] and each integer gets an equal-width cell.
// Callers must pass from <= to.
func (m *Multiplicative) NextInt(from, to int) int {
	v := m.NextRange(float64(from)-0.5, float64(to)+0.5)
	return int(math.Floor(v + 0.5))
}

// Reset rewinds the stream to the seed.
func (m *Multiplicative) Reset() {
	m.last = m.seed
}

// Clone snapshots the generator at its current position.
func (m *Multiplicative) Clone() Generator {
	c := *m
	return &c
}

package prng

import (
	"errors"
	"math"
	"testing"
)

func newDefault(t *testing.T) *Multiplicative {
	t.Helper()
	g, err := DefaultParams().New()
	if err != nil {
		t.Fatalf("DefaultParams().New() failed: %v", err)
	}
	return g
}

func TestNewMultiplicative_InvalidParameters(t *testing.T) {
	tests := []struct {
		name       string
		modulus    int64
		seed       int64
		multiplier int64
	}{
		{"zero modulus", 0, 1, 1},
		{"negative modulus", -8, 1, 3},
		{"zero seed", 16, 0, 3},
		{"seed equal to modulus", 16, 16, 3},
		{"negative seed", 16, -1, 3},
		{"zero multiplier", 16, 3, 0},
		{"multiplier above modulus", 16, 3, 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewMultiplicative(tt.modulus, tt.seed, tt.multiplier)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
			if g != nil {
				t.Error("expected nil generator on error")
			}
		})
	}
}

func TestMultiplicative_KnownSequence(t *testing.T) {
	g := newDefault(t)

	// 262147^k mod 2^31
	want := []int64{1572873, 7077915, 28311633, 106168563, 382206681}
	for i, w := range want {
		got := g.Next()
		if g.State() != w {
			t.Fatalf("draw %d: state = %d, want %d", i, g.State(), w)
		}
		if exp := float64(w) / float64(DefaultModulus); got != exp {
			t.Errorf("draw %d: Next() = %v, want %v", i, got, exp)
		}
	}
}

func TestMultiplicative_Determinism(t *testing.T) {
	a := newDefault(t)
	b := newDefault(t)

	for i := 0; i < 1000; i++ {
		if i%2 == 0 {
			if x, y := a.Next(), b.Next(); x != y {
				t.Fatalf("draw %d: Next() diverged: %v vs %v", i, x, y)
			}
		} else {
			if x, y := a.NextInt(-3, 7), b.NextInt(-3, 7); x != y {
				t.Fatalf("draw %d: NextInt() diverged: %d vs %d", i, x, y)
			}
		}
	}
}

func TestMultiplicative_ResetReplaysStream(t *testing.T) {
	g := newDefault(t)

	const k = 257
	first := make([]float64, k)
	for i := range first {
		first[i] = g.Next()
	}

	g.Reset()
	if g.State() != DefaultSeed {
		t.Fatalf("State() after Reset = %d, want seed %d", g.State(), DefaultSeed)
	}

	for i := range first {
		if got := g.Next(); got != first[i] {
			t.Fatalf("draw %d after reset = %v, want %v", i, got, first[i])
		}
	}
}

func TestMultiplicative_CloneIsSnapshot(t *testing.T) {
	g := newDefault(t)
	for i := 0; i < 10; i++ {
		g.Next()
	}
	pos := g.State()

	c := g.Clone().(*Multiplicative)
	if c.State() != pos {
		t.Fatalf("clone state = %d, want %d (snapshot, not seed)", c.State(), pos)
	}
	if c.Params() != g.Params() {
		t.Errorf("clone params = %+v, want %+v", c.Params(), g.Params())
	}

	// Advancing the original must not move the clone, and vice versa.
	orig := []float64{g.Next(), g.Next(), g.Next()}
	if c.State() != pos {
		t.Fatalf("clone moved with original: %d, want %d", c.State(), pos)
	}
	for i, want := range orig {
		if got := c.Next(); got != want {
			t.Errorf("clone draw %d = %v, want %v", i, got, want)
		}
	}

	// Reset on the clone returns to the shared seed, not the snapshot.
	c.Reset()
	if c.State() != DefaultSeed {
		t.Errorf("clone reset state = %d, want %d", c.State(), DefaultSeed)
	}
	if g.State() == DefaultSeed {
		t.Error("resetting the clone rewound the original")
	}
}

func TestMultiplicative_NextIntRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
	}{
		{"unit range", 0, 0},
		{"three indices", 0, 2},
		{"negative span", -5, 5},
		{"offset span", 10, 13},
		{"wide span", -1000, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newDefault(t)
			seen := make(map[int]int)
			for i := 0; i < 50000; i++ {
				v := g.NextInt(tt.from, tt.to)
				if v < tt.from || v > tt.to {
					t.Fatalf("NextInt(%d, %d) = %d, out of range", tt.from, tt.to, v)
				}
				seen[v]++
			}
			if span := tt.to - tt.from + 1; span <= 20 && len(seen) != span {
				t.Errorf("saw %d distinct values, want %d", len(seen), span)
			}
		})
	}
}

func TestMultiplicative_NextIntUniformity(t *testing.T) {
	g := newDefault(t)
	const draws = 90000
	counts := make([]int, 3)
	for i := 0; i < draws; i++ {
		counts[g.NextInt(0, 2)]++
	}
	for v, c := range counts {
		frac := float64(c) / draws
		if math.Abs(frac-1.0/3) > 0.01 {
			t.Errorf("value %d frequency = %.4f, want ~0.3333", v, frac)
		}
	}
}

func TestMultiplicative_NextIntZeroDraw(t *testing.T) {
	// An even multiplier drives the state to zero; the edge draw must still
	// land inside the range.
	g, err := NewMultiplicative(16, 4, 4)
	if err != nil {
		t.Fatalf("NewMultiplicative failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if v := g.NextInt(0, 3); v < 0 || v > 3 {
			t.Fatalf("draw %d: NextInt(0, 3) = %d", i, v)
		}
	}
	if g.State() != 0 {
		t.Errorf("State() = %d, want 0", g.State())
	}
}

func TestMultiplicative_NextRange(t *testing.T) {
	g := newDefault(t)
	for i := 0; i < 20000; i++ {
		v := g.NextRange(-2.5, 4)
		if v < -2.5 || v >= 4 {
			t.Fatalf("NextRange(-2.5, 4) = %v, out of [-2.5, 4)", v)
		}
	}
}

func TestMultiplicative_NextUnitInterval(t *testing.T) {
	// Large modulus exercises the 128-bit product path.
	g, err := NewMultiplicative(math.MaxInt64, math.MaxInt64-1, math.MaxInt64-2)
	if err != nil {
		t.Fatalf("NewMultiplicative failed: %v", err)
	}
	for i := 0; i < 10000; i++ {
		v := g.Next()
		if v < 0 || v >= 1 {
			t.Fatalf("Next() = %v, out of [0, 1)", v)
		}
		if g.State() < 0 {
			t.Fatalf("state overflowed: %d", g.State())
		}
	}
}

func TestMultiplicative_OverflowSafeProduct(t *testing.T) {
	// (2^40 * 3) mod (2^61 - 1) fits easily, but 2^40 * 2^30 would not fit
	// in 64 bits without a wide intermediate.
	const mod = 1<<61 - 1
	g, err := NewMultiplicative(mod, 1<<40, 1<<30)
	if err != nil {
		t.Fatalf("NewMultiplicative failed: %v", err)
	}
	g.Next()
	// 2^70 mod (2^61 - 1) = 2^9
	if g.State() != 1<<9 {
		t.Errorf("State() = %d, want %d", g.State(), 1<<9)
	}
}

package linsys

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/mcsolve/internal/sanitize"
	"gopkg.in/yaml.v3"
)

// Problem forms accepted in YAML problem files.
const (
	FormIteration = "iteration" // matrix is C in x = Cx + f
	FormEquation  = "equation"  // matrix is A in A x = b
)

// problemFile is the on-disk YAML layout of a system.
type problemFile struct {
	Name   string      `yaml:"name"`
	Form   string      `yaml:"form"`
	Matrix [][]float64 `yaml:"matrix"`
	Vector []float64   `yaml:"vector"`
	Exact  []float64   `yaml:"exact,omitempty"`
}

// LoadFile reads and validates a YAML problem file. A file without a name
// is named after its base name.
func LoadFile(path string) (System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return System{}, fmt.Errorf("reading problem file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return System{}, fmt.Errorf("loading %s: %w", path, err)
	}
	if s.Name == "" {
		base := filepath.Base(path)
		s.Name = sanitize.ProblemName(strings.TrimSuffix(base, filepath.Ext(base)))
	}
	return s, nil
}

// Parse decodes a YAML problem document. An empty form means iteration.
func Parse(data []byte) (System, error) {
	var pf problemFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return System{}, fmt.Errorf("parsing problem: %w", err)
	}

	return Build(pf.Name, pf.Form, pf.Matrix, pf.Vector, pf.Exact)
}

// Build assembles and validates a system from a matrix in the given form.
// An empty form means iteration. The name is sanitized.
func Build(name, form string, matrix [][]float64, vector, exact []float64) (System, error) {
	name = sanitize.ProblemName(name)

	var s System
	switch form {
	case "", FormIteration:
		s = System{Name: name, C: matrix, F: vector}
	case FormEquation:
		s = FromEquation(name, matrix, vector)
	default:
		return System{}, fmt.Errorf("invalid form: %s (valid: %s, %s)", form, FormIteration, FormEquation)
	}
	s.Exact = exact

	if err := s.Validate(); err != nil {
		return System{}, err
	}
	return s, nil
}

// Marshal encodes s as an iteration-form YAML problem document.
func Marshal(s System) ([]byte, error) {
	return yaml.Marshal(problemFile{
		Name:   s.Name,
		Form:   FormIteration,
		Matrix: s.C,
		Vector: s.F,
		Exact:  s.Exact,
	})
}

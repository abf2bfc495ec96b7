// Package mcp provides an MCP (Model Context Protocol) server for mcsolve.
package mcp

// SolveInput defines the input for mcsolve_solve tool.
type SolveInput struct {
	Problem     string      `json:"problem,omitempty" jsonschema:"Built-in problem name ('reference'); ignored when matrix is given"`
	Form        string      `json:"form,omitempty" jsonschema:"How to read matrix: 'iteration' (x = Cx + f, default) or 'equation' (Ax = b)"`
	Matrix      [][]float64 `json:"matrix,omitempty" jsonschema:"Square coefficient matrix, row-major"`
	Vector      []float64   `json:"vector,omitempty" jsonschema:"Right-hand side, one entry per row"`
	Exact       []float64   `json:"exact,omitempty" jsonschema:"Known solution; enables the discrepancy in the output"`
	ChainCount  int         `json:"chain_count" jsonschema:"Number of Markov chains to simulate (>= 1)"`
	ChainLength int         `json:"chain_length" jsonschema:"Transitions per chain (>= 1)"`
}

// SolveOutput defines the output for mcsolve_solve tool.
type SolveOutput struct {
	Problem     string    `json:"problem" jsonschema:"Problem name"`
	Result      []float64 `json:"result" jsonschema:"Estimated solution vector"`
	Discrepancy *float64  `json:"discrepancy,omitempty" jsonschema:"Max absolute deviation from the exact solution, when known"`
	ChainCount  int       `json:"chain_count" jsonschema:"Chains simulated"`
	ChainLength int       `json:"chain_length" jsonschema:"Transitions per chain"`
	WorkUnits   float64   `json:"work_units" jsonschema:"Budget charged for this solve"`
	ElapsedMs   int64     `json:"elapsed_ms" jsonschema:"Wall time of the solve"`
}

// SweepInput defines the input for mcsolve_sweep tool.
type SweepInput struct {
	Problem     string      `json:"problem,omitempty" jsonschema:"Built-in problem name ('reference'); ignored when matrix is given"`
	Form        string      `json:"form,omitempty" jsonschema:"How to read matrix: 'iteration' (default) or 'equation'"`
	Matrix      [][]float64 `json:"matrix,omitempty" jsonschema:"Square coefficient matrix, row-major"`
	Vector      []float64   `json:"vector,omitempty" jsonschema:"Right-hand side, one entry per row"`
	Exact       []float64   `json:"exact,omitempty" jsonschema:"Known solution; required when matrix is given"`
	LengthMin   int         `json:"length_min,omitempty" jsonschema:"First chain length (default from config)"`
	LengthStep  int         `json:"length_step,omitempty" jsonschema:"Chain length increment"`
	LengthSteps int         `json:"length_steps,omitempty" jsonschema:"Number of chain lengths"`
	CountMin    int         `json:"count_min,omitempty" jsonschema:"First chain count (default from config)"`
	CountStep   int         `json:"count_step,omitempty" jsonschema:"Chain count increment"`
	CountSteps  int         `json:"count_steps,omitempty" jsonschema:"Number of chain counts"`
	NoSave      bool        `json:"no_save,omitempty" jsonschema:"Do not store the completed run (default: false)"`
}

// SweepOutput defines the output for mcsolve_sweep tool.
type SweepOutput struct {
	RunID      string    `json:"run_id,omitempty" jsonschema:"ID of the stored run (empty when no_save)"`
	Problem    string    `json:"problem" jsonschema:"Problem name"`
	Points     int       `json:"points" jsonschema:"Grid points evaluated"`
	Best       PointItem `json:"best" jsonschema:"Grid point with the smallest discrepancy"`
	Rows       []RowItem `json:"rows" jsonschema:"Smallest discrepancy per chain length"`
	WorkUnits  float64   `json:"work_units" jsonschema:"Budget charged for this sweep"`
	DurationMs int64     `json:"duration_ms" jsonschema:"Wall time of the sweep"`
	Message    string    `json:"message" jsonschema:"Human-readable result message"`
}

// PointItem is one grid point without its result vector.
type PointItem struct {
	ChainLength int     `json:"chain_length"`
	ChainCount  int     `json:"chain_count"`
	Discrepancy float64 `json:"discrepancy"`
}

// RowItem summarizes one chain length of a sweep.
type RowItem struct {
	ChainLength    int     `json:"chain_length"`
	BestCount      int     `json:"best_count"`
	MinDiscrepancy float64 `json:"min_discrepancy"`
}

// RunsInput defines the input for mcsolve_runs tool.
type RunsInput struct {
	ID     string `json:"id,omitempty" jsonschema:"Run ID to show; lists runs when empty"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum runs to list (default: 20)"`
	Delete bool   `json:"delete,omitempty" jsonschema:"Delete the run given by id (default: false)"`
}

// RunsOutput defines the output for mcsolve_runs tool.
type RunsOutput struct {
	Runs    []RunItem   `json:"runs" jsonschema:"Stored runs, newest first"`
	Points  []PointItem `json:"points,omitempty" jsonschema:"Grid of the run given by id"`
	Count   int         `json:"count" jsonschema:"Number of runs returned"`
	Message string      `json:"message" jsonschema:"Human-readable result message"`
}

// RunItem provides a list view of a stored run.
type RunItem struct {
	ID              string  `json:"id"`
	Problem         string  `json:"problem"`
	Unknowns        int     `json:"unknowns"`
	Points          int     `json:"points"`
	BestDiscrepancy float64 `json:"best_discrepancy"`
	BestLength      int     `json:"best_length"`
	BestCount       int     `json:"best_count"`
	StartedAt       string  `json:"started_at"`
	DurationMs      int64   `json:"duration_ms"`
}

// CheckInput defines the input for mcsolve_check tool.
type CheckInput struct {
	Problem string      `json:"problem,omitempty" jsonschema:"Built-in problem name ('reference'); ignored when matrix is given"`
	Form    string      `json:"form,omitempty" jsonschema:"How to read matrix: 'iteration' (default) or 'equation'"`
	Matrix  [][]float64 `json:"matrix,omitempty" jsonschema:"Square coefficient matrix, row-major"`
	Vector  []float64   `json:"vector,omitempty" jsonschema:"Right-hand side, one entry per row"`
}

// CheckOutput defines the output for mcsolve_check tool.
type CheckOutput struct {
	Problem    string    `json:"problem" jsonschema:"Problem name"`
	Unknowns   int       `json:"unknowns" jsonschema:"System size"`
	RowSums    []float64 `json:"row_sums" jsonschema:"Absolute row sums of the iteration matrix C"`
	MaxRowSum  float64   `json:"max_row_sum" jsonschema:"Largest absolute row sum"`
	Convergent bool      `json:"convergent" jsonschema:"Whether every row sum is below 1"`
	Message    string    `json:"message" jsonschema:"Human-readable result message"`
}

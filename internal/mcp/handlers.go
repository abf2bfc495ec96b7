package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/mcsolve/internal/linsys"
	"github.com/nvandessel/mcsolve/internal/montecarlo"
	"github.com/nvandessel/mcsolve/internal/ratelimit"
	"github.com/nvandessel/mcsolve/internal/store"
	"github.com/nvandessel/mcsolve/internal/sweep"
)

// defaultRunsLimit caps mcsolve_runs listings when no limit is given.
const defaultRunsLimit = 20

// registerTools registers all mcsolve MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mcsolve_solve",
		Description: "Estimate the solution of x = Cx + f by simulating Markov chains",
	}, s.handleSolve)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mcsolve_sweep",
		Description: "Solve over a grid of chain lengths and counts, record the error against the exact solution and store the run",
	}, s.handleSweep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mcsolve_runs",
		Description: "List stored sweep runs, show one run's grid, or delete a run",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "mcsolve_check",
		Description: "Check whether a system satisfies the convergence condition (every absolute row sum of C below 1)",
	}, s.handleCheck)
}

// resolveSystem builds the system a tool call refers to: an inline matrix
// when one is given, otherwise a built-in problem (default "reference").
func resolveSystem(problem, form string, matrix [][]float64, vector, exact []float64) (linsys.System, error) {
	if matrix != nil || vector != nil {
		name := problem
		if name == "" {
			name = "inline"
		}
		return linsys.Build(name, form, matrix, vector, exact)
	}

	if problem == "" {
		problem = "reference"
	}
	sys, ok := linsys.Builtin(problem)
	if !ok {
		return linsys.System{}, fmt.Errorf("unknown problem: %s (valid: reference, or pass matrix and vector)", problem)
	}
	return sys, nil
}

// handleSolve implements the mcsolve_solve tool.
func (s *Server) handleSolve(ctx context.Context, req *sdk.CallToolRequest, args SolveInput) (_ *sdk.CallToolResult, _ SolveOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("mcsolve_solve", start, retErr, sanitizeToolParams(map[string]interface{}{
			"problem": args.Problem, "form": args.Form, "matrix": args.Matrix, "vector": args.Vector,
			"chain_count": args.ChainCount, "chain_length": args.ChainLength,
		}))
	}()

	sys, err := resolveSystem(args.Problem, args.Form, args.Matrix, args.Vector, args.Exact)
	if err != nil {
		return nil, SolveOutput{}, err
	}
	if err := sys.CheckConvergence(); err != nil {
		return nil, SolveOutput{}, err
	}
	if args.ChainCount < 1 || args.ChainLength < 1 {
		return nil, SolveOutput{}, fmt.Errorf("%w: chain_count and chain_length must be >= 1, got %d and %d",
			montecarlo.ErrInvalidParameter, args.ChainCount, args.ChainLength)
	}

	cost := ratelimit.WorkUnits(args.ChainCount, args.ChainLength, sys.Size())
	if err := ratelimit.CheckBudget(s.toolLimiters, "mcsolve_solve", cost); err != nil {
		return nil, SolveOutput{}, err
	}

	solveStart := time.Now()
	result, err := s.estimator.Solve(sys.C, sys.F, args.ChainCount, args.ChainLength)
	if err != nil {
		return nil, SolveOutput{}, fmt.Errorf("solve failed: %w", err)
	}

	out := SolveOutput{
		Problem:     sys.Name,
		Result:      result,
		ChainCount:  args.ChainCount,
		ChainLength: args.ChainLength,
		WorkUnits:   cost,
		ElapsedMs:   time.Since(solveStart).Milliseconds(),
	}
	if sys.Exact != nil {
		d, err := linsys.Discrepancy(sys.Exact, result)
		if err != nil {
			return nil, SolveOutput{}, err
		}
		out.Discrepancy = &d
	}

	return nil, out, nil
}

// sweepGrid overlays the non-zero grid fields of args on the configured grid.
func (s *Server) sweepGrid(args SweepInput) sweep.Grid {
	g := s.settings.Sweep
	overlay := []struct {
		v   int
		dst *int
	}{
		{args.LengthMin, &g.LengthMin},
		{args.LengthStep, &g.LengthStep},
		{args.LengthSteps, &g.LengthSteps},
		{args.CountMin, &g.CountMin},
		{args.CountStep, &g.CountStep},
		{args.CountSteps, &g.CountSteps},
	}
	for _, o := range overlay {
		if o.v != 0 {
			*o.dst = o.v
		}
	}
	return g
}

// handleSweep implements the mcsolve_sweep tool.
func (s *Server) handleSweep(ctx context.Context, req *sdk.CallToolRequest, args SweepInput) (_ *sdk.CallToolResult, _ SweepOutput, retErr error) {
	start := time.Now()
	g := s.sweepGrid(args)
	defer func() {
		s.auditTool("mcsolve_sweep", start, retErr, sanitizeToolParams(map[string]interface{}{
			"problem": args.Problem, "form": args.Form, "matrix": args.Matrix, "vector": args.Vector,
			"exact": args.Exact, "grid": fmt.Sprintf("%dx%d", g.LengthSteps, g.CountSteps), "no_save": args.NoSave,
		}))
	}()

	sys, err := resolveSystem(args.Problem, args.Form, args.Matrix, args.Vector, args.Exact)
	if err != nil {
		return nil, SweepOutput{}, err
	}
	if sys.Exact == nil {
		return nil, SweepOutput{}, sweep.ErrNoReference
	}
	if err := sys.CheckConvergence(); err != nil {
		return nil, SweepOutput{}, err
	}
	if err := g.Validate(); err != nil {
		return nil, SweepOutput{}, err
	}

	cost := g.Work(sys.Size())
	if err := ratelimit.CheckBudget(s.toolLimiters, "mcsolve_sweep", cost); err != nil {
		return nil, SweepOutput{}, err
	}

	report, err := sweep.Run(ctx, s.estimator, sys, g,
		sweep.WithLogger(s.logger), sweep.WithEvents(s.events))
	if err != nil {
		return nil, SweepOutput{}, fmt.Errorf("sweep failed: %w", err)
	}

	out := SweepOutput{
		Problem:    report.Problem,
		Points:     len(report.Points),
		Rows:       rowItems(report),
		WorkUnits:  cost,
		DurationMs: report.Duration.Milliseconds(),
	}
	if best, ok := report.Best(); ok {
		out.Best = pointItem(best)
	}

	if !args.NoSave {
		id, err := s.store.SaveRun(ctx, report)
		if err != nil {
			return nil, SweepOutput{}, fmt.Errorf("failed to save run: %w", err)
		}
		out.RunID = id
		out.Message = fmt.Sprintf("Swept %d points, best discrepancy %.6f, saved as %s", out.Points, out.Best.Discrepancy, id)
	} else {
		out.Message = fmt.Sprintf("Swept %d points, best discrepancy %.6f", out.Points, out.Best.Discrepancy)
	}

	return nil, out, nil
}

func pointItem(p sweep.Point) PointItem {
	return PointItem{ChainLength: p.ChainLength, ChainCount: p.ChainCount, Discrepancy: p.Discrepancy}
}

// rowItems returns the best point of each chain length in sweep order.
func rowItems(r *sweep.Report) []RowItem {
	groups := r.ByLength()
	rows := make([]RowItem, 0, len(groups))
	for _, length := range r.Grid.Lengths() {
		pts := groups[length]
		if len(pts) == 0 {
			continue
		}
		best := pts[0]
		for _, p := range pts[1:] {
			if p.Discrepancy < best.Discrepancy {
				best = p
			}
		}
		rows = append(rows, RowItem{ChainLength: length, BestCount: best.ChainCount, MinDiscrepancy: best.Discrepancy})
	}
	return rows
}

func runItem(rs store.RunSummary) RunItem {
	return RunItem{
		ID:              rs.ID,
		Problem:         rs.Problem,
		Unknowns:        rs.Unknowns,
		Points:          rs.Points,
		BestDiscrepancy: rs.BestDiscrepancy,
		BestLength:      rs.BestLength,
		BestCount:       rs.BestCount,
		StartedAt:       rs.StartedAt.Format(time.RFC3339),
		DurationMs:      rs.Duration.Milliseconds(),
	}
}

// handleRuns implements the mcsolve_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("mcsolve_runs", start, retErr, sanitizeToolParams(map[string]interface{}{
			"id": args.ID, "limit": args.Limit, "delete": args.Delete,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "mcsolve_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	if args.Delete {
		if args.ID == "" {
			return nil, RunsOutput{}, fmt.Errorf("delete requires id")
		}
		if err := s.store.DeleteRun(ctx, args.ID); err != nil {
			return nil, RunsOutput{}, err
		}
		return nil, RunsOutput{
			Runs:    []RunItem{},
			Message: fmt.Sprintf("Deleted run %s", args.ID),
		}, nil
	}

	if args.ID != "" {
		report, err := s.store.GetRun(ctx, args.ID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		points := make([]PointItem, len(report.Points))
		for i, p := range report.Points {
			points[i] = pointItem(p)
		}
		return nil, RunsOutput{
			Runs:    []RunItem{runItem(store.Summarize(report))},
			Points:  points,
			Count:   1,
			Message: fmt.Sprintf("Run %s: %d points", report.ID, len(points)),
		}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	summaries, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, err
	}

	runs := make([]RunItem, len(summaries))
	for i, rs := range summaries {
		runs[i] = runItem(rs)
	}
	msg := fmt.Sprintf("%d stored runs", len(runs))
	if len(runs) == 0 {
		msg = "No stored runs yet. Run mcsolve_sweep to create one."
	}
	return nil, RunsOutput{Runs: runs, Count: len(runs), Message: msg}, nil
}

// handleCheck implements the mcsolve_check tool.
func (s *Server) handleCheck(ctx context.Context, req *sdk.CallToolRequest, args CheckInput) (_ *sdk.CallToolResult, _ CheckOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("mcsolve_check", start, retErr, sanitizeToolParams(map[string]interface{}{
			"problem": args.Problem, "form": args.Form, "matrix": args.Matrix, "vector": args.Vector,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "mcsolve_check"); err != nil {
		return nil, CheckOutput{}, err
	}

	sys, err := resolveSystem(args.Problem, args.Form, args.Matrix, args.Vector, nil)
	if err != nil {
		return nil, CheckOutput{}, err
	}

	out := CheckOutput{
		Problem:  sys.Name,
		Unknowns: sys.Size(),
		RowSums:  make([]float64, sys.Size()),
	}
	for i, row := range sys.C {
		out.RowSums[i] = linsys.RowAbsSum(row)
		if out.RowSums[i] > out.MaxRowSum {
			out.MaxRowSum = out.RowSums[i]
		}
	}

	err = sys.CheckConvergence()
	switch {
	case err == nil:
		out.Convergent = true
		out.Message = fmt.Sprintf("Convergent: max absolute row sum %.6f < 1", out.MaxRowSum)
	case errors.Is(err, linsys.ErrNotConvergent):
		out.Message = err.Error()
	default:
		return nil, CheckOutput{}, err
	}

	return nil, out, nil
}

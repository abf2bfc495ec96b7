package mcp

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/mcsolve/internal/config"
	"github.com/nvandessel/mcsolve/internal/linsys"
	"github.com/nvandessel/mcsolve/internal/montecarlo"
	"github.com/nvandessel/mcsolve/internal/ratelimit"
	"github.com/nvandessel/mcsolve/internal/store"
	"github.com/nvandessel/mcsolve/internal/sweep"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	tmpDir := t.TempDir()
	isolateHome(t)

	settings := config.Default()
	settings.Sweep = sweep.Grid{
		LengthMin: 5, LengthStep: 5, LengthSteps: 2,
		CountMin: 100, CountStep: 100, CountSteps: 2,
	}

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		Settings: settings,
		DBPath:   filepath.Join(tmpDir, "runs.db"),
		AuditDir: tmpDir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func TestHandleSolve_Reference(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	result, out, err := server.handleSolve(ctx, &sdk.CallToolRequest{}, SolveInput{
		ChainCount:  20000,
		ChainLength: 50,
	})
	if err != nil {
		t.Fatalf("handleSolve failed: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result (SDK auto-populates)")
	}

	if out.Problem != "reference-3x3" {
		t.Errorf("Problem = %q, want reference-3x3", out.Problem)
	}
	if len(out.Result) != 3 {
		t.Fatalf("len(Result) = %d, want 3", len(out.Result))
	}
	if out.Discrepancy == nil {
		t.Fatal("expected discrepancy for a problem with an exact solution")
	}
	if *out.Discrepancy >= 0.5 {
		t.Errorf("Discrepancy = %f, want < 0.5", *out.Discrepancy)
	}
	if out.WorkUnits != 3e6 {
		t.Errorf("WorkUnits = %f, want 3e6", out.WorkUnits)
	}

	// Matches a direct solve with the same parameters.
	direct, err := montecarlo.Solve(linsys.Reference().C, linsys.Reference().F, 20000, 50)
	if err != nil {
		t.Fatalf("direct Solve failed: %v", err)
	}
	for i := range direct {
		if direct[i] != out.Result[i] {
			t.Errorf("Result[%d] = %v, direct = %v", i, out.Result[i], direct[i])
		}
	}
}

func TestHandleSolve_InlineSystem(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleSolve(context.Background(), nil, SolveInput{
		Problem:     "scalar",
		Matrix:      [][]float64{{0.5}},
		Vector:      []float64{1},
		ChainCount:  10,
		ChainLength: 60,
	})
	if err != nil {
		t.Fatalf("handleSolve failed: %v", err)
	}
	if out.Problem != "scalar" {
		t.Errorf("Problem = %q, want scalar", out.Problem)
	}
	if out.Discrepancy != nil {
		t.Error("expected no discrepancy without an exact solution")
	}
	// n=1 has no sampling noise: the estimate is the truncated series.
	if math.Abs(out.Result[0]-2) > 1e-9 {
		t.Errorf("Result = %v, want ~2", out.Result)
	}
}

func TestHandleSolve_Errors(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		args    SolveInput
		wantErr error
		wantMsg string
	}{
		{
			name:    "zero chain count",
			args:    SolveInput{ChainCount: 0, ChainLength: 5},
			wantErr: montecarlo.ErrInvalidParameter,
		},
		{
			name:    "zero chain length",
			args:    SolveInput{ChainCount: 5, ChainLength: 0},
			wantErr: montecarlo.ErrInvalidParameter,
		},
		{
			name:    "unknown problem",
			args:    SolveInput{Problem: "hilbert", ChainCount: 5, ChainLength: 5},
			wantMsg: "unknown problem",
		},
		{
			name: "dimension mismatch",
			args: SolveInput{
				Matrix: [][]float64{{0.1, 0.2}, {0.3, 0.1}}, Vector: []float64{1},
				ChainCount: 5, ChainLength: 5,
			},
			wantErr: linsys.ErrDimensionMismatch,
		},
		{
			name: "not convergent",
			args: SolveInput{
				Matrix: [][]float64{{0.6, 0.6}, {0.1, 0.1}}, Vector: []float64{1, 1},
				ChainCount: 5, ChainLength: 5,
			},
			wantErr: linsys.ErrNotConvergent,
		},
		{
			name:    "over budget",
			args:    SolveInput{ChainCount: 1_000_000, ChainLength: 100},
			wantErr: ratelimit.ErrBudgetExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleSolve(ctx, nil, tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestHandleSweep_SavesRun(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleSweep(ctx, nil, SweepInput{})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}

	if out.Points != 4 {
		t.Errorf("Points = %d, want 4", out.Points)
	}
	if out.RunID == "" {
		t.Fatal("expected a run ID")
	}
	if len(out.Rows) != 2 || out.Rows[0].ChainLength != 5 || out.Rows[1].ChainLength != 10 {
		t.Errorf("Rows = %+v, want lengths 5 and 10", out.Rows)
	}
	if out.Best.Discrepancy <= 0 {
		t.Errorf("Best = %+v", out.Best)
	}
	for _, row := range out.Rows {
		if row.MinDiscrepancy < out.Best.Discrepancy {
			t.Errorf("row %+v beats overall best %+v", row, out.Best)
		}
	}
	// lengths 5,10 × counts 100,200 × 3 unknowns
	if out.WorkUnits != 3*(5+10)*(100+200) {
		t.Errorf("WorkUnits = %f", out.WorkUnits)
	}

	report, err := server.store.GetRun(ctx, out.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if len(report.Points) != 4 {
		t.Errorf("stored points = %d, want 4", len(report.Points))
	}
}

func TestHandleSweep_GridOverride(t *testing.T) {
	server := setupTestServer(t)

	_, out, err := server.handleSweep(context.Background(), nil, SweepInput{
		LengthMin:   3,
		LengthSteps: 1,
		CountSteps:  3,
		NoSave:      true,
	})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}
	if out.Points != 3 {
		t.Errorf("Points = %d, want 3", out.Points)
	}
	if out.RunID != "" {
		t.Errorf("RunID = %q, want empty with no_save", out.RunID)
	}
	if len(out.Rows) != 1 || out.Rows[0].ChainLength != 3 {
		t.Errorf("Rows = %+v", out.Rows)
	}

	runs, err := server.store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("no_save sweep stored %d runs", len(runs))
	}
}

func TestHandleSweep_Errors(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, _, err := server.handleSweep(ctx, nil, SweepInput{
		Matrix: [][]float64{{0.5}},
		Vector: []float64{1},
	})
	if !errors.Is(err, sweep.ErrNoReference) {
		t.Errorf("error = %v, want ErrNoReference", err)
	}

	_, _, err = server.handleSweep(ctx, nil, SweepInput{LengthStep: -1})
	if !errors.Is(err, sweep.ErrInvalidGrid) {
		t.Errorf("error = %v, want ErrInvalidGrid", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = server.handleSweep(cancelled, nil, SweepInput{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestHandleSweep_OversizedGrid(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		args    SweepInput
		wantErr error
	}{
		{"length steps near 2^62", SweepInput{LengthSteps: 1 << 62, CountSteps: 1}, sweep.ErrInvalidGrid},
		{"point product overflows", SweepInput{LengthSteps: 1 << 62, CountSteps: 8}, sweep.ErrInvalidGrid},
		{"a billion lengths", SweepInput{LengthSteps: 1_000_000_000, CountSteps: 1}, sweep.ErrInvalidGrid},
		{"length overflows int", SweepInput{LengthStep: 1 << 61, LengthSteps: 8}, sweep.ErrInvalidGrid},
		{"valid grid over budget", SweepInput{CountMin: 100_000_000, LengthSteps: 1000, CountSteps: 1000}, ratelimit.ErrBudgetExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleSweep(ctx, nil, tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleRuns(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	_, empty, err := server.handleRuns(ctx, nil, RunsInput{})
	if err != nil {
		t.Fatalf("handleRuns failed: %v", err)
	}
	if empty.Count != 0 || empty.Runs == nil {
		t.Errorf("empty listing = %+v", empty)
	}

	_, sw, err := server.handleSweep(ctx, nil, SweepInput{})
	if err != nil {
		t.Fatalf("handleSweep failed: %v", err)
	}

	t.Run("list", func(t *testing.T) {
		_, out, err := server.handleRuns(ctx, nil, RunsInput{})
		if err != nil {
			t.Fatalf("handleRuns failed: %v", err)
		}
		if out.Count != 1 || out.Runs[0].ID != sw.RunID {
			t.Errorf("listing = %+v, want run %s", out, sw.RunID)
		}
		if out.Runs[0].BestDiscrepancy != sw.Best.Discrepancy {
			t.Errorf("BestDiscrepancy = %f, want %f", out.Runs[0].BestDiscrepancy, sw.Best.Discrepancy)
		}
	})

	t.Run("show", func(t *testing.T) {
		_, out, err := server.handleRuns(ctx, nil, RunsInput{ID: sw.RunID})
		if err != nil {
			t.Fatalf("handleRuns failed: %v", err)
		}
		if len(out.Points) != 4 {
			t.Errorf("len(Points) = %d, want 4", len(out.Points))
		}
		if out.Runs[0].Unknowns != 3 {
			t.Errorf("Unknowns = %d, want 3", out.Runs[0].Unknowns)
		}
	})

	t.Run("delete requires id", func(t *testing.T) {
		if _, _, err := server.handleRuns(ctx, nil, RunsInput{Delete: true}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if _, _, err := server.handleRuns(ctx, nil, RunsInput{ID: sw.RunID, Delete: true}); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		_, _, err := server.handleRuns(ctx, nil, RunsInput{ID: sw.RunID})
		if !errors.Is(err, store.ErrRunNotFound) {
			t.Errorf("error = %v, want ErrRunNotFound", err)
		}
	})
}

func TestHandleCheck(t *testing.T) {
	server := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		args       CheckInput
		convergent bool
		maxRowSum  float64
	}{
		{
			name:       "reference",
			args:       CheckInput{},
			convergent: true,
			maxRowSum:  0.9, // row 0 of I - A: 0.2 + 0.3 + 0.4
		},
		{
			name:       "divergent",
			args:       CheckInput{Matrix: [][]float64{{0.5, 0.5}, {0.1, 0.2}}, Vector: []float64{1, 1}},
			convergent: false,
			maxRowSum:  1.0,
		},
		{
			name:       "equation form",
			args:       CheckInput{Form: "equation", Matrix: [][]float64{{1.5}}, Vector: []float64{1}},
			convergent: true,
			maxRowSum:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := server.handleCheck(ctx, nil, tt.args)
			if err != nil {
				t.Fatalf("handleCheck failed: %v", err)
			}
			if out.Convergent != tt.convergent {
				t.Errorf("Convergent = %v, want %v (%s)", out.Convergent, tt.convergent, out.Message)
			}
			if math.Abs(out.MaxRowSum-tt.maxRowSum) > 1e-12 {
				t.Errorf("MaxRowSum = %v, want %v", out.MaxRowSum, tt.maxRowSum)
			}
			if len(out.RowSums) != out.Unknowns {
				t.Errorf("len(RowSums) = %d, Unknowns = %d", len(out.RowSums), out.Unknowns)
			}
		})
	}

	if _, _, err := server.handleCheck(ctx, nil, CheckInput{Matrix: [][]float64{{0.1}}}); err == nil {
		t.Error("expected error for a matrix without a vector")
	}
}

func TestHandleCheck_RateLimited(t *testing.T) {
	server := setupTestServer(t)
	server.toolLimiters["mcsolve_check"] = ratelimit.NewLimiter(0, 1)

	if _, _, err := server.handleCheck(context.Background(), nil, CheckInput{}); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	_, _, err := server.handleCheck(context.Background(), nil, CheckInput{})
	if !errors.Is(err, ratelimit.ErrBudgetExceeded) {
		t.Errorf("error = %v, want ErrBudgetExceeded", err)
	}
}

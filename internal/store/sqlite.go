package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/mcsolve/internal/linsys"
	"github.com/nvandessel/mcsolve/internal/prng"
	"github.com/nvandessel/mcsolve/internal/sweep"
)

// timeLayout is a fixed-width UTC timestamp, so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("store: run not found")

// RunStore stores completed sweep reports. Partial sweeps are never saved.
type RunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// RunSummary is a one-line view of a stored run.
type RunSummary struct {
	ID              string        `json:"id"`
	Problem         string        `json:"problem"`
	Unknowns        int           `json:"unknowns"`
	Points          int           `json:"points"`
	BestDiscrepancy float64       `json:"best_discrepancy"`
	BestLength      int           `json:"best_chain_length"`
	BestCount       int           `json:"best_chain_count"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

// Summarize builds the summary ListRuns would return for r.
func Summarize(r *sweep.Report) RunSummary {
	rs := RunSummary{
		ID:        r.ID,
		Problem:   r.Problem,
		Unknowns:  r.System.Size(),
		Points:    len(r.Points),
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
	}
	if best, ok := r.Best(); ok {
		rs.BestDiscrepancy = best.Discrepancy
		rs.BestLength = best.ChainLength
		rs.BestCount = best.ChainCount
	}
	return rs
}

// Open opens (creating if needed) the run database at path.
func Open(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &RunStore{db: db, dbPath: path}, nil
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// NewRunID derives a stable run ID from the problem name and start time.
func NewRunID(problem string, startedAt time.Time) string {
	h := sha256.Sum256([]byte(problem + "|" + strconv.FormatInt(startedAt.UnixNano(), 10)))
	return "run-" + hex.EncodeToString(h[:6])
}

// SaveRun stores r and returns its ID. An empty r.ID is filled in once the
// run is committed.
func (s *RunStore) SaveRun(ctx context.Context, r *sweep.Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report is required")
	}
	id := r.ID
	if id == "" {
		id = NewRunID(r.Problem, r.StartedAt)
	}

	systemJSON, err := json.Marshal(r.System)
	if err != nil {
		return "", fmt.Errorf("marshal system: %w", err)
	}
	gridJSON, err := json.Marshal(r.Grid)
	if err != nil {
		return "", fmt.Errorf("marshal grid: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, problem, system, unknowns, modulus, seed, multiplier,
		                  grid, started_at, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Problem, string(systemJSON), r.System.Size(),
		r.Params.Modulus, r.Params.Seed, r.Params.Multiplier,
		string(gridJSON), r.StartedAt.UTC().Format(timeLayout),
		int64(r.Duration), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (run_id, chain_length, chain_count, discrepancy, result, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range r.Points {
		resultJSON, err := json.Marshal(p.Result)
		if err != nil {
			return "", fmt.Errorf("marshal result: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, p.ChainLength, p.ChainCount,
			p.Discrepancy, string(resultJSON), int64(p.Elapsed)); err != nil {
			return "", fmt.Errorf("failed to insert point (%d, %d): %w", p.ChainLength, p.ChainCount, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	r.ID = id
	return id, nil
}

// GetRun loads a full report.
func (s *RunStore) GetRun(ctx context.Context, id string) (*sweep.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		r                    sweep.Report
		systemJSON, gridJSON string
		startedAt            string
		durationNS           int64
		modulus, seed, mult  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, problem, system, modulus, seed, multiplier, grid, started_at, duration_ns
		FROM runs WHERE id = ?`, id).Scan(
		&r.ID, &r.Problem, &systemJSON, &modulus, &seed, &mult, &gridJSON, &startedAt, &durationNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var sys linsys.System
	if err := json.Unmarshal([]byte(systemJSON), &sys); err != nil {
		return nil, fmt.Errorf("unmarshal system: %w", err)
	}
	if err := json.Unmarshal([]byte(gridJSON), &r.Grid); err != nil {
		return nil, fmt.Errorf("unmarshal grid: %w", err)
	}
	r.System = sys
	r.Params = prng.Params{Modulus: modulus, Seed: seed, Multiplier: mult}
	r.Duration = time.Duration(durationNS)
	if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chain_length, chain_count, discrepancy, result, elapsed_ns
		FROM points WHERE run_id = ?
		ORDER BY chain_length, chain_count`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p          sweep.Point
			resultJSON string
			elapsedNS  int64
		)
		if err := rows.Scan(&p.ChainLength, &p.ChainCount, &p.Discrepancy, &resultJSON, &elapsedNS); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		if err := json.Unmarshal([]byte(resultJSON), &p.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		p.Elapsed = time.Duration(elapsedNS)
		r.Points = append(r.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate points: %w", err)
	}

	return &r, nil
}

// ListRuns returns run summaries, newest first. limit <= 0 means all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT r.id, r.problem, r.unknowns, r.started_at, r.duration_ns,
		       (SELECT COUNT(*) FROM points p WHERE p.run_id = r.id),
		       b.discrepancy, b.chain_length, b.chain_count
		FROM runs r
		LEFT JOIN points b ON b.rowid = (
		    SELECT p.rowid FROM points p WHERE p.run_id = r.id
		    ORDER BY p.discrepancy ASC LIMIT 1)
		ORDER BY r.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs         RunSummary
			startedAt  string
			durationNS int64
			best       sql.NullFloat64
			bestLen    sql.NullInt64
			bestCount  sql.NullInt64
		)
		if err := rows.Scan(&rs.ID, &rs.Problem, &rs.Unknowns, &startedAt, &durationNS,
			&rs.Points, &best, &bestLen, &bestCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rs.StartedAt, _ = time.Parse(timeLayout, startedAt)
		rs.Duration = time.Duration(durationNS)
		rs.BestDiscrepancy = best.Float64
		rs.BestLength = int(bestLen.Int64)
		rs.BestCount = int(bestCount.Int64)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its points.
func (s *RunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

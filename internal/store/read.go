package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/relayout/internal/pass"
)

const runColumns = `id, source, module_hash, options, iterations, converged,
	conversions_before, conversions_after, first_seq, last_seq`

// ErrRunNotFound is returned by ReadRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r         Run
		optsJSON  string
		converged int
	)
	if err := row.Scan(
		&r.ID,
		&r.Source,
		&r.ModuleHash,
		&optsJSON,
		&r.Iterations,
		&converged,
		&r.Before,
		&r.After,
		&r.FirstSeq,
		&r.LastSeq,
	); err != nil {
		return Run{}, err
	}
	opts, err := unmarshalOptions(optsJSON)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: %w", r.ID, err)
	}
	r.Options = opts
	r.Converged = converged == 1
	return r, nil
}

// ReadRun returns the run with id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// ReadRuns returns every run, oldest first by sequence number.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs
		ORDER BY first_seq ASC, id COLLATE BINARY ASC`)
}

// RunsForModule returns the runs whose input hashed to moduleHash.
func (s *Store) RunsForModule(ctx context.Context, moduleHash string) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs
		WHERE module_hash = ?
		ORDER BY first_seq ASC, id COLLATE BINARY ASC`, moduleHash)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DecisionFilter narrows QueryDecisions. Empty fields match everything.
type DecisionFilter struct {
	Phase   pass.Phase
	Outcome pass.Outcome
}

// ReadDecisions returns the decisions of a run ordered by seq. An unknown
// run yields an empty slice.
func (s *Store) ReadDecisions(ctx context.Context, runID string) ([]pass.Decision, error) {
	return s.QueryDecisions(ctx, runID, DecisionFilter{})
}

// QueryDecisions returns the decisions of a run matching f, ordered by seq.
func (s *Store) QueryDecisions(ctx context.Context, runID string, f DecisionFilter) ([]pass.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, iteration, phase, func, subject, target, delta, outcome, reason
		FROM decisions
		WHERE run_id = ?
		  AND (? = '' OR phase = ?)
		  AND (? = '' OR outcome = ?)
		ORDER BY seq ASC, id ASC
	`, runID, string(f.Phase), string(f.Phase), string(f.Outcome), string(f.Outcome))
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	decisions := []pass.Decision{}
	for rows.Next() {
		var (
			d              pass.Decision
			phase, outcome string
		)
		if err := rows.Scan(
			&d.Seq,
			&d.Iteration,
			&phase,
			&d.Func,
			&d.Subject,
			&d.Target,
			&d.Delta,
			&outcome,
			&d.Reason,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Phase = pass.Phase(phase)
		d.Outcome = pass.Outcome(outcome)
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return decisions, nil
}

// LastSeq returns the highest decision sequence number stored, or 0 for an
// empty log. A new run continues from here with pass.NewClockAt.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM decisions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

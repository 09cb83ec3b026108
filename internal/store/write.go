package store

import (
	"context"
	"fmt"

	"github.com/roach88/relayout/internal/pass"
)

// Run is a stored optimizer run.
type Run struct {
	ID         string
	Source     string // path or name of the input graph
	ModuleHash string
	Options    map[string]any
	Iterations int
	Converged  bool
	Before     int
	After      int
	FirstSeq   int64
	LastSeq    int64
}

// RunFromReport builds the run row for report.
func RunFromReport(source string, report *pass.Report, opts map[string]any) Run {
	r := Run{
		ID:         report.RunID,
		Source:     source,
		ModuleHash: report.ModuleHash,
		Options:    opts,
		Iterations: report.Iterations,
		Converged:  report.Converged,
		Before:     report.Before,
		After:      report.After,
	}
	if n := len(report.Decisions); n > 0 {
		r.FirstSeq = report.Decisions[0].Seq
		r.LastSeq = report.Decisions[n-1].Seq
	}
	return r
}

// WriteReport stores a run and all of its decisions in one transaction.
// Writing a run ID that already exists is an error.
func (s *Store) WriteReport(ctx context.Context, source string, report *pass.Report, opts map[string]any) error {
	run := RunFromReport(source, report, opts)
	optsJSON, err := marshalOptions(run.Options)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, source, module_hash, options, iterations, converged,
		 conversions_before, conversions_after, first_seq, last_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Source,
		run.ModuleHash,
		optsJSON,
		run.Iterations,
		boolToInt(run.Converged),
		run.Before,
		run.After,
		run.FirstSeq,
		run.LastSeq,
	)
	if err != nil {
		return fmt.Errorf("write report: insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO decisions
		(run_id, seq, iteration, phase, func, subject, target, delta, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write report: prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range report.Decisions {
		if _, err := stmt.ExecContext(ctx,
			run.ID,
			d.Seq,
			d.Iteration,
			string(d.Phase),
			d.Func,
			d.Subject,
			d.Target,
			d.Delta,
			string(d.Outcome),
			d.Reason,
		); err != nil {
			return fmt.Errorf("write report: decision seq=%d: %w", d.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: commit: %w", err)
	}
	return nil
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/relayout/internal/pass"
)

// createTestStore opens a fresh database under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport builds a report with one decision per outcome, numbered
// from firstSeq.
func createTestReport(runID string, firstSeq int64) *pass.Report {
	return &pass.Report{
		RunID:      runID,
		ModuleHash: "module-hash",
		Iterations: 2,
		Converged:  true,
		Before:     3,
		After:      1,
		Decisions: []pass.Decision{
			{Seq: firstSeq, Iteration: 1, Phase: pass.PhaseHoist, Func: "kernel", Subject: "%4", Target: "#blocked<[4] [32] [4] [0]>", Delta: -1, Outcome: pass.OutcomeApplied},
			{Seq: firstSeq + 1, Iteration: 1, Phase: pass.PhaseBackward, Func: "kernel", Subject: "convert_layout#9", Target: "#blocked<[4] [32] [4] [0]>", Outcome: pass.OutcomeInfeasible, Reason: "atomic_rmw#7: expensive"},
			{Seq: firstSeq + 2, Iteration: 2, Phase: pass.PhaseBackward, Func: "kernel", Subject: "convert_layout#12", Target: "#blocked<[1] [32] [4] [0]>", Delta: 0, Outcome: pass.OutcomeApplied},
		},
	}
}

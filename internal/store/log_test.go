package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relayout/internal/pass"
)

func TestWriteReport_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	report := createTestReport("run-1", 1)
	opts := map[string]any{"max_iterations": 10, "hoisting": true, "num_warps": 4}

	require.NoError(t, s.WriteReport(ctx, "kernel.cue", report, opts))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "kernel.cue", run.Source)
	assert.Equal(t, "module-hash", run.ModuleHash)
	assert.True(t, run.Converged)
	assert.Equal(t, 2, run.Iterations)
	assert.Equal(t, 3, run.Before)
	assert.Equal(t, 1, run.After)
	assert.Equal(t, int64(1), run.FirstSeq)
	assert.Equal(t, int64(3), run.LastSeq)
	assert.Equal(t, map[string]any{"max_iterations": int64(10), "hoisting": true, "num_warps": int64(4)}, run.Options)

	decisions, err := s.ReadDecisions(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, report.Decisions, decisions)
}

func TestWriteReport_DuplicateRunFails(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteReport(ctx, "a", createTestReport("run-1", 1), nil))
	err := s.WriteReport(ctx, "a", createTestReport("run-1", 10), nil)
	require.Error(t, err)

	decisions, err := s.ReadDecisions(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, decisions, 3, "failed write left nothing behind")
}

func TestWriteReport_NoDecisions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	report := &pass.Report{RunID: "quiet", ModuleHash: "h", Iterations: 1, Converged: true}

	require.NoError(t, s.WriteReport(ctx, "quiet.cue", report, nil))

	run, err := s.ReadRun(ctx, "quiet")
	require.NoError(t, err)
	assert.Zero(t, run.FirstSeq)
	assert.Empty(t, run.Options)

	decisions, err := s.ReadDecisions(ctx, "quiet")
	require.NoError(t, err)
	assert.NotNil(t, decisions)
	assert.Empty(t, decisions)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReadRuns_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteReport(ctx, "b", createTestReport("run-b", 10), nil))
	require.NoError(t, s.WriteReport(ctx, "a", createTestReport("run-a", 1), nil))

	runs, err := s.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestRunsForModule(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	other := createTestReport("run-2", 10)
	other.ModuleHash = "other-hash"

	require.NoError(t, s.WriteReport(ctx, "a", createTestReport("run-1", 1), nil))
	require.NoError(t, s.WriteReport(ctx, "b", other, nil))

	runs, err := s.RunsForModule(ctx, "other-hash")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, s.WriteReport(ctx, "a", createTestReport("run-1", 1), nil))
	require.NoError(t, s.WriteReport(ctx, "b", createTestReport("run-2", 4), nil))

	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), seq)

	clock := pass.NewClockAt(seq)
	assert.Equal(t, int64(7), clock.Next())
}

func TestQueryDecisions_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteReport(ctx, "kernel.cue", createTestReport("run-1", 1), nil))

	tests := []struct {
		name   string
		filter DecisionFilter
		seqs   []int64
	}{
		{"all", DecisionFilter{}, []int64{1, 2, 3}},
		{"phase", DecisionFilter{Phase: pass.PhaseBackward}, []int64{2, 3}},
		{"outcome", DecisionFilter{Outcome: pass.OutcomeApplied}, []int64{1, 3}},
		{"both", DecisionFilter{Phase: pass.PhaseHoist, Outcome: pass.OutcomeInfeasible}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryDecisions(ctx, "run-1", tt.filter)
			require.NoError(t, err)
			var seqs []int64
			for _, d := range got {
				seqs = append(seqs, d.Seq)
			}
			assert.Equal(t, tt.seqs, seqs)
		})
	}
}

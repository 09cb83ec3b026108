package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relayout/internal/pass"
	"github.com/roach88/relayout/internal/store"
	"github.com/roach88/relayout/internal/testutil"
)

func newOpt(format, runID string) *OptOptions {
	return &OptOptions{
		RootOptions:   &RootOptions{Format: format},
		MaxIterations: pass.DefaultMaxIterations,
		RunIDs:        testutil.NewFixedRunIDGenerator(runID),
	}
}

func TestOptRemovesFoldableConversion(t *testing.T) {
	out, errOut, err := execute(NewOptCommand(textOpts()), graphPath("sum.cue"))
	require.NoError(t, err)
	assert.NotContains(t, out, "convert_layout")
	assert.Contains(t, out, "func @kernel()")
	assert.Contains(t, errOut, "✓ 1 -> 0 conversion(s), 2 iteration(s), converged")
}

func TestOptJSON(t *testing.T) {
	out, _, err := execute(NewOptCommand(jsonOpts()), graphPath("sum.cue"))
	require.NoError(t, err)

	var result OptResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, result.Before)
	assert.Equal(t, 0, result.After)
	assert.True(t, result.Converged)
	assert.False(t, result.Stored)
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, pass.PhaseBackward, result.Decisions[0].Phase)
	assert.Equal(t, pass.OutcomeApplied, result.Decisions[0].Outcome)
	assert.NotEmpty(t, result.RunID)
}

func TestOptLoopHoist(t *testing.T) {
	out, _, err := execute(NewOptCommand(jsonOpts()), graphPath("loop.cue"))
	require.NoError(t, err)

	var result OptResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 2, result.After)
	require.NotEmpty(t, result.Decisions)
	assert.Equal(t, pass.PhaseHoist, result.Decisions[0].Phase)
	assert.Equal(t, pass.OutcomeApplied, result.Decisions[0].Outcome)
}

func TestOptNoHoist(t *testing.T) {
	out, _, err := execute(NewOptCommand(jsonOpts()), graphPath("loop.cue"), "--no-hoist")
	require.NoError(t, err)

	var result OptResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 1, result.After)
	for _, d := range result.Decisions {
		assert.NotEqual(t, pass.PhaseHoist, d.Phase)
	}
}

func TestOptWritesOutputFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "sum.opt.ir")
	out, _, err := execute(NewOptCommand(textOpts()), graphPath("sum.cue"), "-o", outFile)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "module attributes")
}

func TestOptStoresRunsWithContinuingSequence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relayout.db")

	first := newOpt("json", "run-a")
	_, _, err := execute(NewOptCommandWith(first), "--db", dbPath, graphPath("sum.cue"))
	require.NoError(t, err)
	second := newOpt("json", "run-b")
	_, _, err = execute(NewOptCommandWith(second), "--db", dbPath, graphPath("loop.cue"))
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	runs, err := st.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
	assert.Equal(t, graphPath("sum.cue"), runs[0].Source)
	assert.Greater(t, runs[1].FirstSeq, runs[0].LastSeq)
	assert.Equal(t, true, runs[0].Options["hoist"])

	decisions, err := st.ReadDecisions(ctx, "run-b")
	require.NoError(t, err)
	require.NotEmpty(t, decisions)
	assert.Equal(t, pass.PhaseHoist, decisions[0].Phase)
}

func TestOptHardwareOverrideIsStored(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relayout.db")
	opts := newOpt("text", "run-hw")
	_, _, err := execute(NewOptCommandWith(opts), "--db", dbPath, "--num-warps", "8", graphPath("sum.cue"))
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.ReadRun(context.Background(), "run-hw")
	require.NoError(t, err)
	assert.EqualValues(t, 8, run.Options["num_warps"])
	assert.EqualValues(t, 32, run.Options["threads_per_warp"])
}

func TestOptInvalidGraph(t *testing.T) {
	out, _, err := execute(NewOptCommand(textOpts()), graphPath("stale_loop.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[E111]")
}

func TestOptRejectsNonPositiveIterations(t *testing.T) {
	_, _, err := execute(NewOptCommand(textOpts()), "--max-iterations", "0", graphPath("sum.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOptNonExistentGraph(t *testing.T) {
	_, _, err := execute(NewOptCommand(textOpts()), "/nonexistent/graph.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulateJSON(t *testing.T, args ...string) SimulationResult {
	t.Helper()
	out, _, err := execute(NewSimulateCommand(jsonOpts()), args...)
	require.NoError(t, err)
	var result SimulationResult
	resp := decodeResponse(t, out, &result)
	require.Equal(t, "ok", resp.Status)
	return result
}

func TestSimulateBackwardFromConversion(t *testing.T) {
	result := simulateJSON(t, graphPath("sum.cue"), "--value", "out")

	assert.Equal(t, "backward", result.Mode)
	assert.Equal(t, "kernel", result.Func)
	assert.True(t, result.Feasible)
	assert.Equal(t, 0, result.Delta)
	assert.Contains(t, result.Seed, "add#")
	require.Len(t, result.Planned, 3)
	assert.Equal(t, "sum", result.Planned[0].Value)
	assert.Equal(t, result.Target, result.Planned[0].Layout)
	assert.Len(t, result.Duplicated, 1)
}

func TestSimulateBackwardWithNamedLayout(t *testing.T) {
	for _, name := range []string{"b4", "#b4"} {
		t.Run(name, func(t *testing.T) {
			result := simulateJSON(t, graphPath("sum.cue"), "--value", "sum", "--layout", name)
			assert.True(t, result.Feasible)
			assert.Equal(t, 0, result.Delta)
		})
	}
}

func TestSimulateBackwardIntoStagingLayout(t *testing.T) {
	result := simulateJSON(t, graphPath("sum.cue"), "--value", "sum", "--layout", "shared")

	assert.Equal(t, "backward", result.Mode)
	assert.Equal(t, "#shared<{vec=1, perPhase=1, maxPhase=1, order=[0]}>", result.Target)
}

func TestSimulateBackwardInfeasible(t *testing.T) {
	out, _, err := execute(NewSimulateCommand(textOpts()), graphPath("atomic.cue"), "--value", "out")
	require.NoError(t, err)
	assert.Contains(t, out, "✗ backward out: infeasible")
	assert.Contains(t, out, "atomic_rmw")
}

func TestSimulateHoist(t *testing.T) {
	result := simulateJSON(t, graphPath("loop.cue"), "--hoist", "--value", "cur")
	assert.Equal(t, "hoist", result.Mode)
	assert.True(t, result.Feasible)
	assert.Equal(t, 1, result.Conversions)
	assert.NotEmpty(t, result.Target)
}

func TestSimulateHoistNothingToDo(t *testing.T) {
	out, _, err := execute(NewSimulateCommand(textOpts()), graphPath("staging.cue"), "--hoist", "--value", "cur")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ hoist cur: nothing to hoist")
}

func TestSimulateTextPlan(t *testing.T) {
	out, _, err := execute(NewSimulateCommand(textOpts()), graphPath("sum.cue"), "--value", "out")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ backward out: delta 0")
	assert.Contains(t, out, "  sum -> ")
}

func TestSimulateErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains string
	}{
		{"missing value flag", []string{graphPath("sum.cue")}, ExitFailure, "required flag"},
		{"unknown value", []string{graphPath("sum.cue"), "--value", "nope"}, ExitCommandError, "no value named"},
		{"unknown func", []string{graphPath("sum.cue"), "--func", "main", "--value", "out"}, ExitCommandError, "no function"},
		{"not a conversion", []string{graphPath("sum.cue"), "--value", "sum"}, ExitFailure, "not the result of a conversion"},
		{"undefined layout", []string{graphPath("sum.cue"), "--value", "sum", "--layout", "b9"}, ExitFailure, "undefined layout"},
		{"hoist with layout", []string{graphPath("loop.cue"), "--hoist", "--value", "cur", "--layout", "b4"}, ExitCommandError, "cannot be combined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(NewSimulateCommand(textOpts()), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

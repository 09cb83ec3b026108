package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relayout/internal/compiler"
)

func TestValidateValidGraph(t *testing.T) {
	for _, name := range []string{"sum.cue", "loop.cue", "atomic.cue", "staging.cue"} {
		t.Run(name, func(t *testing.T) {
			out, _, err := execute(NewValidateCommand(textOpts()), graphPath(name))
			require.NoError(t, err)
			assert.Contains(t, out, "✓ Graph is valid")
		})
	}
}

func TestValidateValidGraphJSON(t *testing.T) {
	out, _, err := execute(NewValidateCommand(jsonOpts()), graphPath("sum.cue"))
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateStaleLoopTypes(t *testing.T) {
	out, _, err := execute(NewValidateCommand(textOpts()), graphPath("stale_loop.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "validation error(s)")
	assert.Contains(t, out, "["+compiler.ErrLoopTypes+"]")
}

func TestValidateStaleLoopTypesJSON(t *testing.T) {
	out, _, err := execute(NewValidateCommand(jsonOpts()), graphPath("stale_loop.cue"))
	require.Error(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidGraph, resp.Error.Code)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	for _, e := range result.Errors {
		assert.Equal(t, compiler.ErrLoopTypes, e.Code)
	}
}

func TestValidateCompileFailureIsAFinding(t *testing.T) {
	out, _, err := execute(NewValidateCommand(jsonOpts()), filepath.Join("testdata", "bad_op.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrCodeBadOp, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Field, "bad_op.cue:")
	assert.Equal(t, `unknown op "frobnicate"`, result.Errors[0].Message)
}

func TestValidateNonExistentPath(t *testing.T) {
	_, _, err := execute(NewValidateCommand(textOpts()), "/nonexistent/graph.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileFailure(t *testing.T) {
	assert.False(t, compileFailure(ErrCodeNotFound))
	assert.False(t, compileFailure(ErrCodeNoFiles))
	assert.True(t, compileFailure(ErrCodeBadOp))
	assert.True(t, compileFailure(ErrCodeSchema))
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "relayout", cmd.Use)
	assert.Contains(t, cmd.Long, "layout conversions")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "opt", "simulate", "dot", "test", "trace"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"compile", []string{"output"}},
		{"opt", []string{"db", "output", "max-iterations", "num-warps", "threads-per-warp", "no-hoist"}},
		{"simulate", []string{"func", "value", "layout", "hoist", "num-warps", "threads-per-warp"}},
		{"dot", []string{"func", "output"}},
		{"test", []string{"update", "filter", "golden-dir"}},
		{"trace", []string{"db", "run", "module", "phase", "outcome"}},
	}
	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "--%s", name)
			}
		})
	}
}

func TestOptMaxIterationsDefault(t *testing.T) {
	root := NewRootCommand()
	opt, _, err := root.Find([]string{"opt"})
	require.NoError(t, err)
	assert.Equal(t, "10", opt.Flags().Lookup("max-iterations").DefValue)
}

func TestCommandHelp(t *testing.T) {
	for _, name := range []string{"compile", "opt", "simulate", "trace"} {
		t.Run(name, func(t *testing.T) {
			out, _, err := execute(NewRootCommand(), name, "--help")
			require.NoError(t, err)
			assert.Contains(t, out, "Examples:")
			assert.Contains(t, out, "relayout "+name)
		})
	}
}

func TestFormatValidation(t *testing.T) {
	for format, ok := range map[string]bool{"text": true, "json": true, "yaml": false, "": false} {
		err := (&RootOptions{Format: format}).check(nil, nil)
		if ok {
			assert.NoError(t, err, format)
		} else {
			assert.Error(t, err, format)
		}
	}
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(NewRootCommand(), "--format", "xml", "compile", graphPath("sum.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

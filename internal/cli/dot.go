package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/relayout/internal/ir"
)

// DotOptions holds flags for the dot command.
type DotOptions struct {
	*RootOptions
	Func   string
	Output string // directory, one <func>.dot per function
}

// NewDotCommand creates the dot command.
func NewDotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dot <graph>",
		Short: "Export a function as a Graphviz graph",
		Long: `Render functions as Graphviz digraphs with values coloured by layout.

Values are boxes, instructions are ellipses. Blocked values are green,
sliced yellow, matrix-accumulate lightslateblue, dot operands orange,
shared orangered and non-tensors white.

Examples:
  relayout dot ./kernel.cue | dot -Tsvg > kernel.svg
  relayout dot ./kernel.cue --func kernel
  relayout dot ./graphs -o ./out`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDot(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Func, "func", "", "only this function (default: all)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write <func>.dot files to this directory")

	return cmd
}

func runDot(opts *DotOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	g, err := LoadGraph(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}
	funcs := g.Module.Funcs
	if opts.Func != "" {
		f, err := selectFunc(g.Module, opts.Func)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "unknown function", err)
		}
		funcs = []*ir.Func{f}
	}

	marker := ir.NewLayoutMarker()
	if opts.Output != "" {
		if err := os.MkdirAll(opts.Output, 0755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create output directory", err)
		}
		var written []string
		for _, f := range funcs {
			file := filepath.Join(opts.Output, f.Name+".dot")
			if err := marker.DumpToFile(f, file); err != nil {
				_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to write graph", err)
			}
			formatter.VerboseLog("Wrote %s", file)
			written = append(written, file)
		}
		if formatter.JSON() {
			return formatter.Success(map[string]any{"files": written})
		}
		fmt.Fprintf(formatter.Writer, "✓ Wrote %d graph(s) to %s\n", len(written), opts.Output)
		return nil
	}

	graphs := make(map[string]string, len(funcs))
	for _, f := range funcs {
		graphs[f.Name] = marker.Dump(f)
	}
	if formatter.JSON() {
		return formatter.Success(map[string]any{"graphs": graphs})
	}
	for _, f := range funcs {
		fmt.Fprint(formatter.Writer, graphs[f.Name])
	}
	return nil
}

package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/relayout/internal/compiler"
	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/pass"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult summarizes a compiled graph.
type CompilationResult struct {
	Funcs       []FuncSummary `json:"funcs"`
	Layouts     []string      `json:"layouts"`
	Conversions int           `json:"conversions"`
	ModuleHash  string        `json:"module_hash"`
	IR          string        `json:"ir"`
}

// FuncSummary counts the contents of one function.
type FuncSummary struct {
	Name         string `json:"name"`
	Args         int    `json:"args"`
	Instructions int    `json:"instructions"`
	Conversions  int    `json:"conversions"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph>",
		Short: "Compile a CUE graph description to IR",
		Long: `Compile a CUE graph description and print its IR.

<graph> is a .cue file or a directory holding one CUE package. The
description is checked against the graph schema; values are resolved by
name and every type is parsed.

Examples:
  relayout compile ./kernel.cue
  relayout compile ./kernel.cue -o kernel.ir
  relayout compile ./graphs/matmul --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the IR to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	g, err := LoadGraph(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}
	formatter.VerboseLog("Compiled %d func(s), %d layout(s) from %s", len(g.Module.Funcs), len(g.Layouts), path)

	result, err := summarize(g)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash module", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(result.IR), 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		formatter.VerboseLog("Wrote IR to %s", opts.Output)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	w := formatter.Writer
	if opts.Output != "" {
		fmt.Fprintf(w, "✓ Compiled %d func(s), %d conversion(s) -> %s\n", len(result.Funcs), result.Conversions, opts.Output)
		return nil
	}
	fmt.Fprint(w, result.IR)
	return nil
}

func summarize(g *compiler.Graph) (*CompilationResult, error) {
	hash, err := ir.ModuleHash(g.Module)
	if err != nil {
		return nil, err
	}
	result := &CompilationResult{
		Funcs:       make([]FuncSummary, 0, len(g.Module.Funcs)),
		Layouts:     sortedLayoutNames(g.Layouts),
		Conversions: pass.CountConversions(g.Module),
		ModuleHash:  hash,
		IR:          ir.Print(g.Module),
	}
	for _, f := range g.Module.Funcs {
		s := FuncSummary{Name: f.Name, Args: len(f.Entry().Args())}
		f.Walk(func(inst *ir.Instruction) {
			s.Instructions++
			if inst.Kind == ir.OpConvertLayout {
				s.Conversions++
			}
		})
		result.Funcs = append(result.Funcs, s)
	}
	return result, nil
}

func sortedLayoutNames(layouts map[string]ir.Layout) []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relayout/internal/compiler"
	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/layout"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Func           string
	Value          string
	Layout         string
	Hoist          bool
	NumWarps       int
	ThreadsPerWarp int
}

// SimulationResult is the outcome of one read-only analysis.
type SimulationResult struct {
	Mode     string `json:"mode"` // "backward" or "hoist"
	Func     string `json:"func"`
	Value    string `json:"value"`
	Target   string `json:"target,omitempty"`
	Feasible bool   `json:"feasible"`
	Reason   string `json:"reason,omitempty"`

	// Backward only.
	Delta      int            `json:"delta"`
	Seed       string         `json:"seed,omitempty"`
	Planned    []PlannedValue `json:"planned,omitempty"`
	Duplicated []string       `json:"duplicated,omitempty"`

	// Hoist only.
	Conversions int `json:"conversions"`
}

// PlannedValue is a value the backward plan would produce in Layout.
type PlannedValue struct {
	Value  string `json:"value"`
	Layout string `json:"layout"`
	Folds  bool   `json:"folds,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <graph>",
		Short: "Run a layout analysis without changing the graph",
		Long: `Ask the simulator what a rewrite would cost, without performing it.

Backward mode (default): --value names the result of a conversion and the
simulator estimates the change in conversion count if the conversion's
source were produced directly in the converted layout. With --layout,
--value may name any produced value and the named layout is the target.

Hoist mode (--hoist): --value names a loop-carried parameter and the
simulator decides whether its conversions can move out of the loop.

Examples:
  relayout simulate ./kernel.cue --value out
  relayout simulate ./kernel.cue --value sum --layout b4
  relayout simulate ./loop.cue --hoist --value cur --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Func, "func", "", "function to analyze (default: the first)")
	cmd.Flags().StringVar(&opts.Value, "value", "", "value to analyze (required)")
	_ = cmd.MarkFlagRequired("value")
	cmd.Flags().StringVar(&opts.Layout, "layout", "", "target layout name, or \"shared\" for the staging layout (backward mode)")
	cmd.Flags().BoolVar(&opts.Hoist, "hoist", false, "decide loop hoisting for a loop-carried parameter")
	cmd.Flags().IntVar(&opts.NumWarps, "num-warps", 0, "override the graph's num_warps attribute")
	cmd.Flags().IntVar(&opts.ThreadsPerWarp, "threads-per-warp", 0, "override the graph's threads_per_warp attribute")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Hoist && opts.Layout != "" {
		return NewExitError(ExitCommandError, "--layout cannot be combined with --hoist")
	}

	g, err := LoadGraph(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}
	applyHardware(g.Module, opts.NumWarps, opts.ThreadsPerWarp)

	f, err := selectFunc(g.Module, opts.Func)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown function", err)
	}
	v := f.Lookup(opts.Value)
	if v == nil {
		err := fmt.Errorf("%s has no value named %q", f.Name, opts.Value)
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown value", err)
	}

	sim := layout.NewSimulator(layout.NewClassifier(layout.HardwareFromModule(g.Module)))
	var result *SimulationResult
	if opts.Hoist {
		result, err = simulateHoist(sim, v)
	} else {
		result, err = simulateBackward(sim, g, v, opts.Layout)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "simulation failed", err)
	}
	result.Func, result.Value = f.Name, opts.Value
	formatter.VerboseLog("Simulated %s of %s in %s", result.Mode, opts.Value, f.Name)

	if formatter.JSON() {
		return formatter.Success(result)
	}
	printSimulation(formatter, result)
	return nil
}

func selectFunc(m *ir.Module, name string) (*ir.Func, error) {
	if name == "" {
		if len(m.Funcs) == 0 {
			return nil, fmt.Errorf("graph has no function")
		}
		return m.Funcs[0], nil
	}
	f := m.Func(name)
	if f == nil {
		return nil, fmt.Errorf("graph has no function %q", name)
	}
	return f, nil
}

// simulateBackward seeds the simulator at v's producer. Without an explicit
// layout, v must be a conversion result: the seed is then the conversion's
// source producer and the target its result layout.
// stagingLayout names the scratch-memory layout derived from the analyzed
// value's blocked layout, unless the graph defines a layout of that name.
const stagingLayout = "shared"

func targetLayout(g *compiler.Graph, v *ir.Value, name string) (ir.Layout, error) {
	if l, ok := g.Layout(name); ok {
		return l, nil
	}
	if strings.TrimPrefix(name, "#") != stagingLayout {
		return nil, fmt.Errorf("undefined layout %q (have %v)", name, sortedLayoutNames(g.Layouts))
	}
	tt, ok := ir.AsTensor(v.Type())
	if !ok {
		return nil, fmt.Errorf("%q is not a tensor", v.Name)
	}
	return layout.SharedFromBlocked(tt)
}

func simulateBackward(sim *layout.Simulator, g *compiler.Graph, v *ir.Value, layoutName string) (*SimulationResult, error) {
	result := &SimulationResult{Mode: "backward"}

	var seed *ir.Instruction
	var target ir.Layout
	if layoutName != "" {
		l, err := targetLayout(g, v, layoutName)
		if err != nil {
			return nil, err
		}
		seed, target = v.Def(), l
		if seed == nil {
			return nil, fmt.Errorf("%q has no producer", v.Name)
		}
	} else {
		cvt := v.Def()
		if cvt == nil || cvt.Kind != ir.OpConvertLayout {
			return nil, fmt.Errorf("%q is not the result of a conversion; pass --layout", v.Name)
		}
		seed, target = cvt.Operand(0).Def(), ir.LayoutOf(v.Type())
		if seed == nil {
			return nil, fmt.Errorf("source of %q has no producer", v.Name)
		}
	}
	result.Seed = seed.String()
	result.Target = target.String()

	plan, err := sim.Backward(seed, target)
	if layout.IsInvariantViolation(err) {
		return nil, err
	}
	if err != nil {
		result.Reason = err.Error()
		return result, nil
	}
	result.Feasible = true
	result.Delta = plan.Delta
	for _, pv := range plan.Values() {
		l, _ := plan.LayoutOf(pv)
		result.Planned = append(result.Planned, PlannedValue{
			Value:  valueName(pv),
			Layout: l.String(),
			Folds:  plan.Folds(pv),
		})
	}
	for _, inst := range plan.Processed() {
		result.Duplicated = append(result.Duplicated, inst.String())
	}
	sort.Strings(result.Duplicated)
	return result, nil
}

func simulateHoist(sim *layout.Simulator, v *ir.Value) (*SimulationResult, error) {
	result := &SimulationResult{Mode: "hoist"}
	plan, err := sim.CanHoist(v)
	if layout.IsInvariantViolation(err) {
		return nil, err
	}
	if err != nil {
		result.Reason = err.Error()
		return result, nil
	}
	result.Feasible = true
	result.Conversions = len(plan.Conversions)
	if !plan.Empty() {
		result.Target = plan.Target.String()
	}
	return result, nil
}

func valueName(v *ir.Value) string {
	if v.Name != "" {
		return v.Name
	}
	return v.String()
}

func printSimulation(formatter *OutputFormatter, r *SimulationResult) {
	w := formatter.Writer
	if !r.Feasible {
		fmt.Fprintf(w, "✗ %s %s: infeasible\n", r.Mode, r.Value)
		fmt.Fprintf(w, "  %s\n", r.Reason)
		return
	}
	switch r.Mode {
	case "hoist":
		if r.Conversions == 0 {
			fmt.Fprintf(w, "✓ hoist %s: nothing to hoist\n", r.Value)
			return
		}
		fmt.Fprintf(w, "✓ hoist %s: %d conversion(s) to %s\n", r.Value, r.Conversions, r.Target)
	default:
		fmt.Fprintf(w, "✓ backward %s: delta %d (seed %s, target %s)\n", r.Value, r.Delta, r.Seed, r.Target)
		for _, p := range r.Planned {
			suffix := ""
			if p.Folds {
				suffix = " (folds)"
			}
			fmt.Fprintf(w, "  %s -> %s%s\n", p.Value, p.Layout, suffix)
		}
	}
}

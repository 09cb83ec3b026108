package harness

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/relayout/internal/compiler"
	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/layout"
	"github.com/roach88/relayout/internal/pass"
	"github.com/roach88/relayout/internal/testutil"
)

// Harness holds the deterministic helpers one scenario runs with.
type Harness struct {
	clock  *testutil.RecordingClock
	runIDs *testutil.FixedRunIDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the graph description
//  2. Apply hardware overrides and validate the input
//  3. Run the probes on the input graph
//  4. Run the passes in order
//  5. Validate the output and evaluate the assertions
//
// An error is returned only when the scenario cannot be executed; failed
// probes and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		clock:  testutil.NewRecordingClock(),
		runIDs: testutil.NewFixedRunIDGenerator(""),
		logger: pass.DiscardLogger(),
	}

	src, err := os.ReadFile(scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	m, err := compiler.CompileSource(scenario.Graph, src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph: %w", err)
	}
	if n := scenario.Options.NumWarps; n > 0 {
		m.Attrs["num_warps"] = n
	}
	if n := scenario.Options.ThreadsPerWarp; n > 0 {
		m.Attrs["threads_per_warp"] = n
	}

	result := NewResult()
	result.InputErrors = compiler.Validate(m)
	result.ConversionsBefore = pass.CountConversions(m)

	if err := h.probe(m, scenario.Probes, result); err != nil {
		return nil, err
	}
	for _, name := range scenario.passes() {
		if err := h.runPass(m, name, scenario.Options, result); err != nil {
			return nil, fmt.Errorf("pass %s: %w", name, err)
		}
	}

	result.Module = m
	result.Output = ir.Print(m)
	result.OutputErrors = compiler.Validate(m)
	result.ConversionsAfter = pass.CountConversions(m)

	for _, a := range scenario.Assertions {
		if err := evaluate(a, result); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

func (h *Harness) runPass(m *ir.Module, name string, opts RunOptions, result *Result) error {
	switch name {
	case PassOptimize:
		runOpts := []pass.Option{
			pass.WithLogger(h.logger),
			pass.WithClock(h.clock),
			pass.WithRunID(h.runIDs),
			pass.WithHoisting(!opts.NoHoist),
		}
		if opts.MaxIterations > 0 {
			runOpts = append(runOpts, pass.WithMaxIterations(opts.MaxIterations))
		}
		report, err := pass.Run(m, runOpts...)
		if err != nil {
			return err
		}
		result.Report = report
		result.Decisions = append(result.Decisions, report.Decisions...)
		return nil
	case PassFixup:
		_, err := layout.FixupLoops(m)
		return err
	case PassCanonicalize:
		_, err := pass.Canonicalize(m)
		return err
	case PassSweep:
		_, err := pass.SweepDeadCode(m)
		return err
	default:
		return fmt.Errorf("unknown pass %q", name)
	}
}

func (h *Harness) probe(m *ir.Module, probes []Probe, result *Result) error {
	if len(probes) == 0 {
		return nil
	}
	sim := layout.NewSimulator(layout.NewClassifier(layout.HardwareFromModule(m)))
	for idx, p := range probes {
		f, err := probeFunc(m, p)
		if err != nil {
			return fmt.Errorf("probes[%d]: %w", idx, err)
		}
		v := f.Lookup(p.Value)
		if v == nil {
			return fmt.Errorf("probes[%d]: %s has no value named %q", idx, f.Name, p.Value)
		}

		var pr ProbeResult
		switch p.Type {
		case ProbeBackward:
			pr, err = probeBackward(sim, v)
		case ProbeHoist:
			pr, err = probeHoist(sim, v)
		}
		if err != nil {
			return fmt.Errorf("probes[%d]: %w", idx, err)
		}
		pr.Type, pr.Value = p.Type, p.Value
		result.Probes = append(result.Probes, pr)
		if err := checkProbe(p, pr); err != nil {
			result.AddError(err.Error())
		}
	}
	return nil
}

func probeFunc(m *ir.Module, p Probe) (*ir.Func, error) {
	if p.Func == "" {
		if len(m.Funcs) == 0 {
			return nil, fmt.Errorf("graph has no function")
		}
		return m.Funcs[0], nil
	}
	f := m.Func(p.Func)
	if f == nil {
		return nil, fmt.Errorf("graph has no function %q", p.Func)
	}
	return f, nil
}

// probeBackward seeds the simulator at the producer of the conversion whose
// result is v.
func probeBackward(sim *layout.Simulator, v *ir.Value) (ProbeResult, error) {
	cvt := v.Def()
	if cvt == nil || cvt.Kind != ir.OpConvertLayout {
		return ProbeResult{}, fmt.Errorf("%q is not the result of a conversion", v.Name)
	}
	seed := cvt.Operand(0).Def()
	if seed == nil {
		return ProbeResult{}, fmt.Errorf("source of %q has no producer", v.Name)
	}
	plan, err := sim.Backward(seed, ir.LayoutOf(v.Type()))
	if layout.IsInvariantViolation(err) {
		return ProbeResult{}, err
	}
	if err != nil {
		return ProbeResult{Reason: err.Error()}, nil
	}
	return ProbeResult{Feasible: true, Delta: plan.Delta}, nil
}

func probeHoist(sim *layout.Simulator, v *ir.Value) (ProbeResult, error) {
	plan, err := sim.CanHoist(v)
	if layout.IsInvariantViolation(err) {
		return ProbeResult{}, err
	}
	if err != nil {
		return ProbeResult{Reason: err.Error()}, nil
	}
	return ProbeResult{Feasible: true, Conversions: len(plan.Conversions)}, nil
}

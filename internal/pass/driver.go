package pass

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/layout"
)

// Run eliminates layout conversions in m until a fixpoint or the iteration
// bound. m is modified in place. Infeasible and unprofitable candidates are
// reported, not returned as errors; only invariant violations abort.
func Run(m *ir.Module, opts ...Option) (*Report, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Classifier == nil {
		o.Classifier = layout.NewClassifier(layout.HardwareFromModule(m))
	}
	hash, err := ir.ModuleHash(m)
	if err != nil {
		return nil, fmt.Errorf("hash input module: %w", err)
	}

	d := &driver{
		module: m,
		opts:   o,
		sim:    layout.NewSimulator(o.Classifier),
		log:    o.Logger,
		report: &Report{
			RunID:      o.RunID.Generate(),
			ModuleHash: hash,
			Before:     CountConversions(m),
		},
	}
	d.log.Info("relayout run starting",
		"run_id", d.report.RunID,
		"conversions", d.report.Before,
	)

	for iter := 1; iter <= o.MaxIterations; iter++ {
		d.iteration = iter
		changed, err := d.iterate()
		d.report.Iterations = iter
		if err != nil {
			return d.report, err
		}
		if !changed {
			d.report.Converged = true
			break
		}
	}
	d.report.After = CountConversions(m)

	if !d.report.Converged {
		d.log.Warn("relayout did not converge",
			"run_id", d.report.RunID,
			"max_iterations", o.MaxIterations,
		)
	}
	d.log.Info("relayout run finished",
		"run_id", d.report.RunID,
		"iterations", d.report.Iterations,
		"before", d.report.Before,
		"after", d.report.After,
	)
	return d.report, nil
}

type driver struct {
	module    *ir.Module
	opts      Options
	sim       *layout.Simulator
	log       *slog.Logger
	report    *Report
	iteration int
}

func (d *driver) iterate() (bool, error) {
	changed := false
	for _, f := range d.module.Funcs {
		if d.opts.Hoisting {
			c, err := d.hoistFunc(f)
			if err != nil {
				return changed, fmt.Errorf("hoist %s: %w", f.Name, err)
			}
			changed = changed || c
		}
		c, err := d.backwardFunc(f)
		if err != nil {
			return changed, fmt.Errorf("backward %s: %w", f.Name, err)
		}
		changed = changed || c
	}

	folded, err := Canonicalize(d.module)
	if err != nil {
		return changed, fmt.Errorf("canonicalize: %w", err)
	}
	swept, err := SweepDeadCode(d.module)
	if err != nil {
		return changed, fmt.Errorf("sweep: %w", err)
	}
	d.log.Debug("iteration finished",
		"iteration", d.iteration,
		"folded", folded,
		"swept", swept,
	)
	return changed || folded > 0 || swept > 0, nil
}

// hoistFunc tries every loop-carried parameter of every for loop in f.
func (d *driver) hoistFunc(f *ir.Func) (bool, error) {
	changed := false
	for _, loop := range f.Collect(ir.OpFor) {
		if loop.Erased() {
			continue
		}
		body := loop.Region(0).Blocks()[0]
		for _, param := range body.Args()[d.sim.InductionSlots:] {
			if !ir.IsTensor(param.Type()) {
				continue
			}
			plan, err := d.sim.CanHoist(param)
			if layout.IsInvariantViolation(err) {
				return changed, err
			}
			if err != nil {
				d.record(PhaseHoist, f, param.String(), "", 0, OutcomeInfeasible, reasonOf(err))
				continue
			}
			if plan.Empty() {
				continue
			}

			total, inLoops := CountConversions(d.module), conversionsInLoops(f)
			txn := layout.Begin(d.module)
			if err := layout.ExecuteHoist(txn, plan); err != nil {
				return changed, err
			}
			txn.Commit()
			if _, err := layout.FixupLoops(d.module); err != nil {
				return changed, err
			}
			d.record(PhaseHoist, f, param.String(), plan.Target.String(),
				CountConversions(d.module)-total, OutcomeApplied,
				fmt.Sprintf("conversions inside loops: %d -> %d", inLoops, conversionsInLoops(f)))
			changed = true
			// The loop was rebuilt; its remaining parameters are revisited
			// in the next iteration.
			break
		}
	}
	return changed, nil
}

// backwardFunc tries to remove every conversion in f by pushing its layout
// into the producer of its source.
func (d *driver) backwardFunc(f *ir.Func) (bool, error) {
	changed := false
	for _, cvt := range f.Collect(ir.OpConvertLayout) {
		if cvt.Erased() {
			continue
		}
		src := cvt.Operand(0)
		def := src.Def()
		target := ir.LayoutOf(cvt.Result(0).Type())
		if def == nil || def.Block() != cvt.Block() || !movable(ir.LayoutOf(src.Type()), target) {
			continue
		}

		plan, err := d.sim.Backward(def, target)
		if layout.IsInvariantViolation(err) {
			return changed, err
		}
		if err != nil {
			d.record(PhaseBackward, f, cvt.String(), target.String(), 0, OutcomeInfeasible, reasonOf(err))
			continue
		}
		if !plan.Profitable() {
			d.record(PhaseBackward, f, cvt.String(), target.String(), plan.Delta, OutcomeUnprofitable, "")
			continue
		}

		txn := layout.Begin(d.module)
		if err := layout.Execute(txn, plan); err != nil {
			if derr := txn.Discard(); derr != nil {
				return changed, derr
			}
			if layout.IsInvariantViolation(err) {
				return changed, err
			}
			d.record(PhaseBackward, f, cvt.String(), target.String(), plan.Delta, OutcomeInfeasible, reasonOf(err))
			continue
		}
		replacement := txn.Mapping.Lookup(src)
		ir.ReplaceAllUsesWith(cvt.Result(0), replacement)
		subject := cvt.String()
		if err := ir.Erase(cvt); err != nil {
			return changed, err
		}
		txn.Commit()
		d.record(PhaseBackward, f, subject, target.String(), plan.Delta, OutcomeApplied, "")
		changed = true
	}
	return changed, nil
}

// movable: conversions into or out of scratch memory and into matrix
// operands are real data movement, not layout bookkeeping.
func movable(from, to ir.Layout) bool {
	switch from.(type) {
	case ir.Shared, nil:
		return false
	}
	switch to.(type) {
	case ir.Shared, ir.DotOperand, nil:
		return false
	}
	return true
}

func (d *driver) record(phase Phase, f *ir.Func, subject, target string, delta int, outcome Outcome, reason string) {
	dec := Decision{
		Seq:       d.opts.Clock.Next(),
		Iteration: d.iteration,
		Phase:     phase,
		Func:      f.Name,
		Subject:   subject,
		Target:    target,
		Delta:     delta,
		Outcome:   outcome,
		Reason:    reason,
	}
	d.report.Decisions = append(d.report.Decisions, dec)

	level := slog.LevelDebug
	if outcome == OutcomeApplied {
		level = slog.LevelInfo
	}
	d.log.Log(context.Background(), level, "layout decision",
		"seq", dec.Seq,
		"phase", string(phase),
		"func", f.Name,
		"seed", subject,
		"target", target,
		"delta", delta,
		"outcome", string(outcome),
	)
}

func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// conversionsInLoops counts the conversions of f nested in a for loop; these
// run once per iteration.
func conversionsInLoops(f *ir.Func) int {
	n := 0
	f.Walk(func(inst *ir.Instruction) {
		if inst.Kind != ir.OpConvertLayout {
			return
		}
		for p := inst.ParentOp(); p != nil; p = p.ParentOp() {
			if p.Kind == ir.OpFor {
				n++
				return
			}
		}
	})
	return n
}

package layout

import (
	"github.com/roach88/relayout/internal/ir"
)

// Simulator runs the read-only layout analyses. It never mutates the graph.
type Simulator struct {
	Classifier *Classifier

	// InductionSlots is the number of leading loop-body arguments that are
	// not loop-carried parameters. For loops it is 1: slot 0 holds the
	// induction variable, so parameter i is body argument i+1.
	InductionSlots int
}

// NewSimulator returns a simulator using c.
func NewSimulator(c *Classifier) *Simulator {
	return &Simulator{Classifier: c, InductionSlots: 1}
}

type pending struct {
	inst   *ir.Instruction
	layout ir.Layout
}

// Backward estimates the net change in conversion count if seed's result
// were produced directly in target, by pushing the requirement through
// seed's operands.
//
// The walk starts with a delta of 1 for the conversion on seed's result. Each
// duplicated instruction removes one conversion; each operand whose producer
// can neither absorb the layout nor be duplicated adds one. Producers in
// another block, block arguments and non-tensor operands stop the walk
// without cost.
//
// When no legal plan exists the returned plan has Delta == Infeasible and
// the error says why (IsInfeasible). Invariant violations are returned as
// is.
func (s *Simulator) Backward(seed *ir.Instruction, target ir.Layout) (*Plan, error) {
	plan := newPlan(seed, target)
	if seed != nil && seed.NumResults() > 0 {
		plan.record(seed.Result(0), target)
	}

	stack := []pending{{inst: seed, layout: target}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.Classifier.IsExpensive(cur.inst, cur.layout) {
			plan.fail()
			return plan, infeasible(cur.inst, "expensive to rematerialize in %s", cur.layout)
		}
		plan.Delta--
		plan.markProcessed(cur.inst)

		var required ir.Layout
		for idx, operand := range cur.inst.OperandValues() {
			if idx == 0 {
				var err error
				if required, err = Invert(cur.layout, cur.inst); err != nil {
					plan.fail()
					return plan, err
				}
			}
			if !plan.record(operand, required) {
				prev, _ := plan.LayoutOf(operand)
				plan.fail()
				return plan, infeasible(cur.inst, "operand %d already required in %s, now %s", idx, prev, required)
			}
			if ir.IsTensorPointer(operand.Type()) {
				plan.fail()
				return plan, infeasible(cur.inst, "operand %d is a tensor pointer", idx)
			}

			def := operand.Def()
			if !ir.IsTensor(operand.Type()) || def == nil || plan.IsProcessed(def) || def.Block() != cur.inst.Block() {
				continue
			}
			if s.Classifier.CanFold(def, required) {
				plan.folds[operand] = true
				continue
			}
			plan.Delta++
			stack = append(stack, pending{inst: def, layout: required})
		}
	}
	return plan, nil
}

package layout

import (
	"github.com/roach88/relayout/internal/ir"
)

// HoistPlan lists the conversions of a loop parameter that disappear when
// the parameter is carried in Target. An empty plan means there is nothing
// to hoist.
type HoistPlan struct {
	Param  *ir.Value
	Loop   *ir.Instruction
	Target ir.Layout

	// Index is the parameter's position among the loop-carried values;
	// the parameter is body argument Index+InductionSlots.
	Index          int
	InductionSlots int

	Conversions []*ir.Instruction
	Others      []*ir.Instruction

	sim *Simulator
}

// Empty reports whether the plan removes no conversions.
func (h *HoistPlan) Empty() bool { return len(h.Conversions) == 0 }

// CanHoist decides whether every conversion consuming param, a loop-carried
// parameter, can be removed by carrying param already converted.
//
// Parameters of while loops are never hoisted. Parameters of anything other
// than a for loop trivially succeed with an empty plan. Conversions from a
// shared source to a dot operand, and to a shared layout without
// vectorization, are ignored. All remaining conversions must agree on one
// target and live in the loop body together with every other consumer, and
// the other consumers must pass ForwardInLoop.
func (s *Simulator) CanHoist(param *ir.Value) (*HoistPlan, error) {
	plan := &HoistPlan{Param: param, InductionSlots: s.InductionSlots, sim: s}
	blk := param.OwnerBlock()
	if blk == nil {
		return nil, invariant(nil, "%s is not a block argument", param)
	}
	owner := blk.ParentOp()
	if owner != nil && owner.Kind == ir.OpWhile {
		return nil, infeasible(owner, "parameters of while loops are not hoisted")
	}
	if owner == nil || owner.Kind != ir.OpFor {
		return plan, nil
	}
	plan.Loop = owner
	plan.Index = param.ArgNumber() - s.InductionSlots

	declared := ir.LayoutOf(param.Type())
	targets := make(map[string]ir.Layout)
	var order []string
	for _, user := range param.Users() {
		if user.Kind != ir.OpConvertLayout {
			plan.Others = append(plan.Others, user)
			continue
		}
		next := ir.LayoutOf(user.Result(0).Type())
		if isNoOpConversion(declared, next) {
			continue
		}
		plan.Conversions = append(plan.Conversions, user)
		key := ir.LayoutKey(next)
		if _, ok := targets[key]; !ok {
			targets[key] = next
			order = append(order, key)
		}
	}

	if len(plan.Conversions) == 0 {
		return plan, nil
	}
	if len(order) > 1 {
		return nil, infeasible(owner, "conversions of %s disagree on %d target layouts", param, len(order))
	}
	plan.Target = targets[order[0]]

	body := owner.Region(0).Blocks()[0]
	for _, cvt := range plan.Conversions {
		if cvt.Block() != body {
			return nil, infeasible(cvt, "conversion is not in the loop body")
		}
	}
	for _, other := range plan.Others {
		if other.Block() != body {
			return nil, infeasible(other, "consumer is not in the loop body")
		}
		if err := s.ForwardInLoop(other, param, plan.Target); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// isNoOpConversion: shared -> dot operand and -> unvectorized shared are
// staging conversions that hoisting cannot remove.
func isNoOpConversion(from, to ir.Layout) bool {
	if _, ok := from.(ir.Shared); ok {
		if _, ok := to.(ir.DotOperand); ok {
			return true
		}
	}
	if sh, ok := to.(ir.Shared); ok && sh.Vec == 1 {
		return true
	}
	return false
}

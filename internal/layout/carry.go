package layout

import (
	"golang.org/x/tools/container/intsets"

	"github.com/roach88/relayout/internal/ir"
)

// forOperandOffset is the number of for-loop operands (lb, ub, step) that
// precede the initial values.
const forOperandOffset = 3

// ExecuteHoist carries plan.Param in plan.Target.
//
// The initial value is converted before the loop and the parameter is
// retyped. The hoisted conversions are removed. The consumers validated by
// ForwardInLoop are retyped forward in the new layout. Operands they read
// from outside the slice are rebuilt in the new layout when a profitable
// backward plan exists; otherwise they get one conversion, placed before the
// loop when the operand is loop invariant. Yielded values
// are converted to their parameter's layout where they disagree, and the
// loop result is converted back to the old layout for consumers after the
// loop. The loop itself is left with an inconsistent result type for
// FixupLoops to rebuild.
//
// Instructions are retyped in place; only the created conversions are
// tracked by txn.
func ExecuteHoist(txn *Txn, plan *HoistPlan) error {
	if plan.Empty() {
		return nil
	}
	loop, param, target := plan.Loop, plan.Param, plan.Target
	slot := forOperandOffset + plan.Index
	if loop == nil || slot >= loop.NumOperands() || plan.Index >= loop.NumResults() {
		return invariant(nil, "%s is not parameter %d of a for loop", param, plan.Index)
	}
	old := ir.LayoutOf(param.Type())
	b := txn.Builder

	b.SetInsertionPointBefore(loop)
	initCvt, err := b.CreateConvert(loop.Operand(slot), target)
	if err != nil {
		return invariant(err, "converting initial value of %s", param)
	}
	loop.SetOperand(slot, initCvt.Result(0))
	param.SetType(ir.WithLayout(param.Type(), target))

	for _, cvt := range plan.Conversions {
		ir.ReplaceAllUsesWith(cvt.Result(0), param)
		if err := ir.Erase(cvt); err != nil {
			return invariant(err, "removing hoisted conversion")
		}
	}

	if err := retypeForward(txn, plan); err != nil {
		return err
	}

	body := loop.Region(0).Blocks()[0]
	if yield := body.Terminator(); yield != nil {
		for idx, v := range yield.OperandValues() {
			want := ir.LayoutOf(body.Arg(idx + plan.InductionSlots).Type())
			if want == nil || ir.LayoutEqual(ir.LayoutOf(v.Type()), want) {
				continue
			}
			b.SetInsertionPointBefore(yield)
			cvt, err := b.CreateConvert(v, want)
			if err != nil {
				return invariant(err, "converting yielded value %d", idx)
			}
			yield.SetOperand(idx, cvt.Result(0))
		}
	}

	result := loop.Result(plan.Index)
	if result.HasUses() {
		b.SetInsertionPointAfter(loop)
		back, err := b.CreateConvert(result, old)
		if err != nil {
			return invariant(err, "converting result of %s", loop)
		}
		ir.ReplaceUsesWithIf(result, back.Result(0), func(o *ir.Operand) bool {
			return o.Owner() != back
		})
	}
	return nil
}

// retypeForward moves the forward slices of the plan's other consumers to
// the target layout, producers before consumers.
func retypeForward(txn *Txn, plan *HoistPlan) error {
	var seen intsets.Sparse
	var members []*ir.Instruction
	for _, other := range plan.Others {
		slice, _, _ := forwardSlice(other)
		for _, inst := range slice {
			if inst.Kind == ir.OpYield || !seen.Insert(inst.ID()) {
				continue
			}
			members = append(members, inst)
		}
	}
	ordered, err := ir.TopoSort(members, nil)
	if err != nil {
		return invariant(err, "ordering consumers of %s", plan.Param)
	}

	target := plan.Target
	relaid := make(map[*ir.Value]*ir.Value)
	for _, inst := range ordered {
		for idx, v := range inst.OperandValues() {
			tt, ok := ir.AsTensor(v.Type())
			if !ok || tt.Rank() != target.Rank() || ir.LayoutEqual(tt.Layout, target) {
				continue
			}
			if def := v.Def(); def != nil && seen.Has(def.ID()) {
				continue
			}
			rep, ok := relaid[v]
			if !ok {
				var err error
				if rep, err = relayOperand(txn, plan, v); err != nil {
					return err
				}
				relaid[v] = rep
			}
			inst.SetOperand(idx, rep)
		}
		if ir.HasTypeInference(inst.Kind) {
			types, err := ir.InferResultTypes(inst)
			if err != nil {
				return invariant(err, "retyping %s", inst)
			}
			for idx, t := range types {
				inst.Result(idx).SetType(t)
			}
			continue
		}
		for _, r := range inst.Results() {
			if tt, ok := ir.AsTensor(r.Type()); ok && tt.Rank() == target.Rank() {
				r.SetType(tt.WithLayout(target))
			}
		}
	}
	return nil
}

// relayOperand produces v in the plan's target for consumers in the forward
// slice. A producer with a profitable backward plan is rematerialized in
// the target. Anything else is converted once: before the loop when v is
// loop invariant, else ahead of its first user.
func relayOperand(txn *Txn, plan *HoistPlan, v *ir.Value) (*ir.Value, error) {
	target := plan.Target
	if def := v.Def(); def != nil && def.Kind != ir.OpConvertLayout && plan.sim != nil {
		remat, err := plan.sim.Backward(def, target)
		if IsInvariantViolation(err) {
			return nil, err
		}
		if err == nil && remat.Profitable() {
			sub := &Txn{Builder: txn.Builder, Mapping: ir.NewMapping()}
			if err := Execute(sub, remat); err != nil {
				return nil, err
			}
			if rep := sub.Mapping.Lookup(v); ir.LayoutEqual(ir.LayoutOf(rep.Type()), target) {
				return rep, nil
			}
		}
	}

	b := txn.Builder
	if loopInvariant(plan.Loop, v) {
		b.SetInsertionPointBefore(plan.Loop)
	} else {
		first, err := ir.FirstUser(v)
		if err != nil {
			return nil, invariant(err, "placing conversion of %s", v)
		}
		b.SetInsertionPointBefore(enclosingIn(v.ParentBlock(), first))
	}
	cvt, err := b.CreateConvert(v, target)
	if err != nil {
		return nil, invariant(err, "converting %s", v)
	}
	return cvt.Result(0), nil
}

func loopInvariant(loop *ir.Instruction, v *ir.Value) bool {
	if def := v.Def(); def != nil {
		return !loop.IsAncestorOf(def)
	}
	owner := v.OwnerBlock().ParentOp()
	return owner == nil || !loop.IsAncestorOf(owner)
}

// enclosingIn returns inst or the ancestor of inst that sits directly in
// blk.
func enclosingIn(blk *ir.Block, inst *ir.Instruction) *ir.Instruction {
	for inst.Block() != blk && inst.ParentOp() != nil {
		inst = inst.ParentOp()
	}
	return inst
}

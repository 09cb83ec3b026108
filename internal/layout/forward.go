package layout

import (
	"golang.org/x/tools/container/intsets"

	"github.com/roach88/relayout/internal/ir"
)

// useRecord is one edge of a forward slice: value consumed by operand index
// of owner.
type useRecord struct {
	value *ir.Value
	owner *ir.Instruction
	index int
}

// forwardSlice collects start and every transitive consumer of its results,
// including instructions nested in the regions of slice members, together
// with every use edge followed.
func forwardSlice(start *ir.Instruction) ([]*ir.Instruction, *intsets.Sparse, []useRecord) {
	var members []*ir.Instruction
	var uses []useRecord
	visited := &intsets.Sparse{}

	work := []*ir.Instruction{start}
	visited.Insert(start.ID())
	for len(work) > 0 {
		inst := work[len(work)-1]
		work = work[:len(work)-1]
		members = append(members, inst)

		for _, r := range inst.Regions() {
			for _, blk := range r.Blocks() {
				for _, nested := range blk.Instructions() {
					if visited.Insert(nested.ID()) {
						work = append(work, nested)
					}
				}
			}
		}
		for _, res := range inst.Results() {
			for _, u := range res.Uses() {
				uses = append(uses, useRecord{value: res, owner: u.Owner(), index: u.Index()})
				if visited.Insert(u.Owner().ID()) {
					work = append(work, u.Owner())
				}
			}
		}
	}
	return members, visited, uses
}

// ForwardInLoop checks whether the consumers reachable from start can all
// run in target when param, a loop-carried parameter, is carried in target
// instead of its declared layout. It returns nil when they can.
//
// Shared and sliced targets are never pushed forward. Every instruction in
// the slice other than start and yields must be cheap and layout-agnostic
// (elementwise, same operand and result layout, or one of store, assert,
// print, reduce). Operands produced outside the slice must be convertible
// at no net cost. A yield that feeds a different parameter than param must
// already yield that parameter's layout.
func (s *Simulator) ForwardInLoop(start *ir.Instruction, param *ir.Value, target ir.Layout) error {
	switch target.(type) {
	case ir.Shared, ir.Sliced:
		return infeasible(start, "%s layouts are not pushed forward", target.Kind())
	}

	members, inSlice, uses := forwardSlice(start)
	for _, inst := range members {
		if inst.Kind == ir.OpYield {
			continue
		}
		if inst != start {
			if s.Classifier.IsExpensive(inst, target) {
				return infeasible(inst, "expensive to rematerialize in %s", target)
			}
			if !layoutAgnostic(inst.Kind) {
				return infeasible(inst, "%s does not preserve layouts", inst.Kind)
			}
		}
		for _, operand := range inst.OperandValues() {
			def := operand.Def()
			if def == nil || def.Kind == ir.OpConvertLayout || inSlice.Has(def.ID()) {
				continue
			}
			plan, err := s.Backward(def, target)
			if IsInvariantViolation(err) {
				return err
			}
			if plan.Delta > 0 {
				return infeasible(inst, "operand produced by %s would need a new conversion", def)
			}
		}
	}

	paramIdx := param.ArgNumber() - s.InductionSlots
	for _, u := range uses {
		if u.owner.Kind != ir.OpYield || u.index == paramIdx {
			continue
		}
		yielded, ok := ir.AsTensor(u.owner.Operand(u.index).Type())
		if !ok || !ir.LayoutEqual(yielded.Layout, ir.LayoutOf(param.Type())) {
			return infeasible(u.owner, "yield operand %d feeds another parameter in a different layout", u.index)
		}
	}
	return nil
}

func layoutAgnostic(k ir.OpKind) bool {
	if k.IsElementwise() || k.Has(ir.TraitSameOperandsAndResultLayout) {
		return true
	}
	switch k {
	case ir.OpStore, ir.OpAssert, ir.OpPrint, ir.OpReduce:
		return true
	default:
		return false
	}
}

package layout

import (
	"github.com/roach88/relayout/internal/ir"
)

// Invert returns the layout inst's tensor operands must have for its result
// to come out in target.
//
// Axis insertion requires the operand sliced along the new axis. Reduction
// is defined only when target is a slice along the reduced axis, and then
// requires the slice's parent. Concatenation and reshape cannot be inverted.
// Every other kind keeps the layout unchanged.
func Invert(target ir.Layout, inst *ir.Instruction) (ir.Layout, error) {
	switch inst.Kind {
	case ir.OpExpandDims:
		axis, ok := inst.IntAttr("axis")
		if !ok {
			return nil, invariant(nil, "%s has no integer axis attribute", inst)
		}
		return ir.Sliced{Dim: axis, Parent: target}, nil

	case ir.OpReduce:
		axis, ok := inst.IntAttr("axis")
		if !ok {
			return nil, invariant(nil, "%s has no integer axis attribute", inst)
		}
		sl, ok := target.(ir.Sliced)
		if !ok {
			return nil, undefinedInversion(inst, "reduction needs a slice layout, got %s", target)
		}
		if sl.Dim != axis {
			return nil, undefinedInversion(inst, "slice dim %d does not match reduction axis %d", sl.Dim, axis)
		}
		return sl.Parent, nil

	case ir.OpCat, ir.OpView:
		return nil, undefinedInversion(inst, "%s cannot be inverted", inst.Kind)

	case ir.OpConvertLayout, ir.OpConstant, ir.OpMakeRange, ir.OpSplat, ir.OpBroadcast,
		ir.OpLoad, ir.OpStore, ir.OpExtractSlice, ir.OpAllocTensor, ir.OpInsertSliceAsync,
		ir.OpAtomicRMW, ir.OpAtomicCAS, ir.OpDot,
		ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMax, ir.OpMin, ir.OpExp,
		ir.OpCmp, ir.OpSelect, ir.OpCast, ir.OpAddPtr,
		ir.OpFor, ir.OpWhile, ir.OpIf, ir.OpYield, ir.OpCondition, ir.OpReturn,
		ir.OpAssert, ir.OpPrint:
		return target, nil

	default:
		return nil, invariant(nil, "unknown op kind %s", inst.Kind)
	}
}

package ir

import (
	"slices"

	"github.com/pkg/errors"
)

// HasTypeInference reports whether InferResultTypes supports kind k.
func HasTypeInference(k OpKind) bool {
	return k.Has(TraitInferType)
}

// InferResultTypes computes the result types of inst from its current
// operand types and attributes. Only kinds with TraitInferType are
// supported: expand_dims, reduce, broadcast and the elementwise ops.
func InferResultTypes(inst *Instruction) ([]Type, error) {
	switch inst.Kind {
	case OpExpandDims:
		return inferExpandDims(inst)
	case OpReduce:
		return inferReduce(inst)
	default:
		if inst.Kind.Has(TraitInferType) {
			return inferSameLayout(inst)
		}
		return nil, errors.Errorf("%s: no type inference for kind %s", inst, inst.Kind)
	}
}

func inferExpandDims(inst *Instruction) ([]Type, error) {
	if inst.NumOperands() != 1 {
		return nil, errors.Errorf("%s: expand_dims expects 1 operand, got %d", inst, inst.NumOperands())
	}
	src, ok := AsTensor(inst.Operand(0).Type())
	if !ok {
		return nil, errors.Errorf("%s: expand_dims operand must be a tensor, got %s", inst, inst.Operand(0).Type())
	}
	axis, ok := inst.IntAttr("axis")
	if !ok || axis < 0 || axis > src.Rank() {
		return nil, errors.Errorf("%s: expand_dims axis %v out of range for rank %d", inst, inst.Attrs["axis"], src.Rank())
	}
	shape := slices.Insert(slices.Clone(src.Shape), axis, int64(1))

	var layout Layout
	if src.Layout != nil {
		sl, ok := src.Layout.(Sliced)
		if !ok || sl.Dim != axis {
			return nil, errors.Errorf("%s: expand_dims along %d needs a slice layout on dim %d, got %s",
				inst, axis, axis, src.Layout)
		}
		layout = sl.Parent
	}
	return []Type{TensorType{Shape: shape, Elem: src.Elem, Layout: layout}}, nil
}

func inferReduce(inst *Instruction) ([]Type, error) {
	if inst.NumOperands() != 1 {
		return nil, errors.Errorf("%s: reduce expects 1 operand, got %d", inst, inst.NumOperands())
	}
	src, ok := AsTensor(inst.Operand(0).Type())
	if !ok {
		return nil, errors.Errorf("%s: reduce operand must be a tensor, got %s", inst, inst.Operand(0).Type())
	}
	axis, ok := inst.IntAttr("axis")
	if !ok || axis < 0 || axis >= src.Rank() {
		return nil, errors.Errorf("%s: reduce axis %v out of range for rank %d", inst, inst.Attrs["axis"], src.Rank())
	}
	if src.Rank() == 1 {
		return []Type{src.Elem}, nil
	}
	shape := slices.Delete(slices.Clone(src.Shape), axis, axis+1)
	var layout Layout
	if src.Layout != nil {
		layout = Sliced{Dim: axis, Parent: src.Layout}
	}
	return []Type{TensorType{Shape: shape, Elem: src.Elem, Layout: layout}}, nil
}

// inferSameLayout keeps each result's shape and element type and takes the
// layout of the first tensor operand.
func inferSameLayout(inst *Instruction) ([]Type, error) {
	var src TensorType
	found := false
	for _, v := range inst.OperandValues() {
		if tt, ok := AsTensor(v.Type()); ok {
			src, found = tt, true
			break
		}
	}
	types := make([]Type, len(inst.results))
	for idx, r := range inst.results {
		tt, ok := AsTensor(r.Type())
		if !ok || !found {
			types[idx] = r.Type()
			continue
		}
		if inst.Kind != OpBroadcast && src.Rank() != tt.Rank() {
			return nil, errors.Errorf("%s: operand rank %d does not match result rank %d", inst, src.Rank(), tt.Rank())
		}
		types[idx] = tt.WithLayout(src.Layout)
	}
	return types, nil
}

package layout

import (
	"github.com/roach88/relayout/internal/ir"
)

// Execute rematerializes an accepted plan inside txn.
//
// Values without a producer are converted at the start of their block.
// Producers are visited in topological order. Conversions collapse onto
// their remapped source. Other duplicated producers are cloned right after
// the original with operands rewritten through the substitution map and
// result types re-inferred, and producers that absorb the conversion are
// cloned directly in the new layout. Any other producer gets a conversion
// placed after it. Every planned value ends up mapped in txn.Mapping to a
// replacement in its planned layout.
func Execute(txn *Txn, plan *Plan) error {
	if !plan.Feasible() {
		return infeasible(plan.Seed, "plan is infeasible")
	}

	var frontier []*ir.Value
	var producers []*ir.Instruction
	seen := make(map[*ir.Instruction]bool)
	for _, v := range plan.Values() {
		if !ir.IsTensor(v.Type()) {
			continue
		}
		def := v.Def()
		if def == nil {
			frontier = append(frontier, v)
			continue
		}
		if !seen[def] {
			seen[def] = true
			producers = append(producers, def)
		}
	}
	sorted, err := ir.TopoSort(producers, txn.Mapping)
	if err != nil {
		return invariant(err, "ordering planned producers")
	}

	for _, v := range frontier {
		if err := rematerializeArg(txn, plan, v); err != nil {
			return err
		}
	}
	clones := make(map[*ir.Instruction]*ir.Instruction)
	for _, def := range sorted {
		for _, v := range def.Results() {
			if _, ok := plan.LayoutOf(v); !ok || !ir.IsTensor(v.Type()) {
				continue
			}
			if err := rematerializeResult(txn, plan, v, clones); err != nil {
				return err
			}
		}
	}
	return nil
}

func rematerializeArg(txn *Txn, plan *Plan, v *ir.Value) error {
	want, _ := plan.LayoutOf(v)
	if ir.LayoutEqual(ir.LayoutOf(v.Type()), want) {
		return mapValue(txn, v, v)
	}
	txn.Builder.SetInsertionPointToStart(v.OwnerBlock())
	cvt, err := txn.Builder.CreateConvert(v, want)
	if err != nil {
		return invariant(err, "converting block argument %s", v)
	}
	return mapValue(txn, v, cvt.Result(0))
}

func rematerializeResult(txn *Txn, plan *Plan, v *ir.Value, clones map[*ir.Instruction]*ir.Instruction) error {
	want, _ := plan.LayoutOf(v)
	def := v.Def()
	var cur *ir.Value
	anchor := def

	switch {
	case def.Kind == ir.OpConvertLayout && (plan.IsProcessed(def) || plan.Folds(v)):
		folded, err := foldInto(txn, def, v, want)
		if err != nil {
			return err
		}
		cur = folded

	case plan.IsProcessed(def):
		clone, ok := clones[def]
		if !ok {
			var err error
			if clone, err = cloneWithInferType(txn, def, plan); err != nil {
				return err
			}
			clones[def] = clone
		}
		cur = clone.Result(v.ResultIndex())
		anchor = clone

	case plan.Folds(v):
		folded, err := foldInto(txn, def, v, want)
		if err != nil {
			return err
		}
		cur = folded
		if folded.Def() != nil && folded.Def() != def {
			anchor = folded.Def()
		}

	default:
		cur = v
	}

	if !ir.LayoutEqual(ir.LayoutOf(cur.Type()), want) {
		txn.Builder.SetInsertionPointAfter(anchor)
		cvt, err := txn.Builder.CreateConvert(cur, want)
		if err != nil {
			return invariant(err, "converting %s", v)
		}
		cur = cvt.Result(0)
	}
	return mapValue(txn, v, cur)
}

// cloneWithInferType clones def after itself with operands remapped. Result
// tensors take their planned layout, or the seed's target for results the
// plan does not mention; kinds with structural type inference then
// recompute their result types from the new operands.
func cloneWithInferType(txn *Txn, def *ir.Instruction, plan *Plan) (*ir.Instruction, error) {
	txn.Builder.SetInsertionPointAfter(def)
	clone, err := txn.Builder.Clone(def, txn.Mapping)
	if err != nil {
		return nil, invariant(err, "cloning %s", def)
	}
	for idx, r := range clone.Results() {
		l, ok := plan.LayoutOf(def.Result(idx))
		if !ok {
			l = plan.Target
		}
		r.SetType(ir.WithLayout(r.Type(), l))
	}
	if ir.HasTypeInference(clone.Kind) {
		if types, err := ir.InferResultTypes(clone); err == nil {
			for idx, t := range types {
				clone.Result(idx).SetType(t)
			}
		}
	}
	return clone, nil
}

// foldInto produces v directly in want from its producer def. A conversion
// collapses onto its own source; any other foldable producer is cloned with
// its result re-laid-out.
func foldInto(txn *Txn, def *ir.Instruction, v *ir.Value, want ir.Layout) (*ir.Value, error) {
	if def.Kind == ir.OpConvertLayout {
		src := txn.Mapping.Lookup(def.Operand(0))
		if ir.LayoutEqual(ir.LayoutOf(src.Type()), want) {
			return src, nil
		}
		txn.Builder.SetInsertionPointAfter(def)
		cvt, err := txn.Builder.CreateConvert(src, want)
		if err != nil {
			return nil, invariant(err, "folding %s", def)
		}
		return cvt.Result(0), nil
	}
	txn.Builder.SetInsertionPointAfter(def)
	clone, err := txn.Builder.Clone(def, txn.Mapping)
	if err != nil {
		return nil, invariant(err, "folding %s", def)
	}
	res := clone.Result(v.ResultIndex())
	res.SetType(ir.WithLayout(res.Type(), want))
	return res, nil
}

func mapValue(txn *Txn, from, to *ir.Value) error {
	if err := txn.Mapping.Map(from, to); err != nil {
		return invariant(err, "recording replacement for %s", from)
	}
	return nil
}

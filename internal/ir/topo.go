package ir

import (
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/tools/container/intsets"
)

// TopoSort orders instrs so that every producer precedes its consumers.
// Operands are resolved through mapping first, so values already replaced
// do not create edges. Ties keep the input order. A cycle among instrs is
// an error.
func TopoSort(instrs []*Instruction, mapping *Mapping) ([]*Instruction, error) {
	var members intsets.Sparse
	pos := make(map[int]int, len(instrs))
	for idx, inst := range instrs {
		if !members.Insert(inst.id) {
			return nil, errors.Errorf("topological sort: %s listed twice", inst)
		}
		pos[inst.id] = idx
	}

	indegree := make([]int, len(instrs))
	consumers := make([][]int, len(instrs))
	for idx, inst := range instrs {
		var seen intsets.Sparse
		for _, v := range operandClosure(inst) {
			if mapping != nil {
				v = mapping.Lookup(v)
			}
			def := v.Def()
			if def == nil || def == inst || !members.Has(def.id) {
				continue
			}
			if !seen.Insert(def.id) {
				continue
			}
			p := pos[def.id]
			consumers[p] = append(consumers[p], idx)
			indegree[idx]++
		}
	}

	var ready []int
	for idx := range instrs {
		if indegree[idx] == 0 {
			ready = append(ready, idx)
		}
	}
	out := make([]*Instruction, 0, len(instrs))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		out = append(out, instrs[cur])
		for _, next := range consumers[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				at, _ := slices.BinarySearch(ready, next)
				ready = slices.Insert(ready, at, next)
			}
		}
	}
	if len(out) != len(instrs) {
		return nil, errors.Errorf("topological sort: cycle among %d instructions", len(instrs)-len(out))
	}
	return out, nil
}

// operandClosure returns the operands of inst and of every instruction
// nested in it that are defined outside inst.
func operandClosure(inst *Instruction) []*Value {
	vals := inst.OperandValues()
	for _, r := range inst.regions {
		WalkRegion(r, PreOrder, func(child *Instruction) {
			for _, o := range child.operands {
				if o.value == nil {
					continue
				}
				if def := o.value.Def(); def != nil && inst.IsAncestorOf(def) {
					continue
				}
				if blk := o.value.OwnerBlock(); blk != nil && blk.ParentOp() != nil && inst.IsAncestorOf(blk.ParentOp()) {
					continue
				}
				vals = append(vals, o.value)
			}
		})
	}
	return vals
}

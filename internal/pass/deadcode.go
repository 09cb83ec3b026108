package pass

import (
	"golang.org/x/tools/container/intsets"

	"github.com/roach88/relayout/internal/ir"
)

// SweepDeadCode erases pure instructions none of whose results are used,
// including those that become dead as their users go. It returns the
// number of instructions erased.
func SweepDeadCode(m *ir.Module) (int, error) {
	var work []*ir.Instruction
	var queued intsets.Sparse
	push := func(inst *ir.Instruction) {
		if inst != nil && queued.Insert(inst.ID()) {
			work = append(work, inst)
		}
	}
	m.Walk(push)

	erased := 0
	for len(work) > 0 {
		inst := work[len(work)-1]
		work = work[:len(work)-1]
		queued.Remove(inst.ID())
		if inst.Erased() || !isDead(inst) {
			continue
		}
		operands := inst.OperandValues()
		if err := ir.Erase(inst); err != nil {
			return erased, err
		}
		erased++
		for _, v := range operands {
			if v != nil {
				push(v.Def())
			}
		}
	}
	return erased, nil
}

func isDead(inst *ir.Instruction) bool {
	if !inst.Kind.IsPure() || inst.NumRegions() > 0 || inst.NumResults() == 0 {
		return false
	}
	for _, r := range inst.Results() {
		if r.HasUses() {
			return false
		}
	}
	return true
}

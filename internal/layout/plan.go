package layout

import (
	"golang.org/x/tools/container/intsets"

	"github.com/roach88/relayout/internal/ir"
)

// Plan is the outcome of a backward simulation: the net conversion delta,
// the instructions to duplicate and the layout every touched value must be
// produced in.
type Plan struct {
	Seed   *ir.Instruction
	Target ir.Layout

	// Delta is the net change in conversion count, or Infeasible.
	Delta int

	processed     intsets.Sparse
	processedList []*ir.Instruction
	values        []*ir.Value
	layouts       map[*ir.Value]ir.Layout
	folds         map[*ir.Value]bool
}

func newPlan(seed *ir.Instruction, target ir.Layout) *Plan {
	return &Plan{
		Seed:    seed,
		Target:  target,
		Delta:   1,
		layouts: make(map[*ir.Value]ir.Layout),
		folds:   make(map[*ir.Value]bool),
	}
}

// Feasible reports whether a legal plan exists.
func (p *Plan) Feasible() bool { return p.Delta != Infeasible }

// Profitable reports whether executing the plan does not increase the
// number of conversions.
func (p *Plan) Profitable() bool { return p.Feasible() && p.Delta <= 0 }

// Values returns the planned values in record order. The seed's result
// comes first.
func (p *Plan) Values() []*ir.Value {
	out := make([]*ir.Value, len(p.values))
	copy(out, p.values)
	return out
}

// Len returns the number of planned values.
func (p *Plan) Len() int { return len(p.values) }

// LayoutOf returns the required layout recorded for v.
func (p *Plan) LayoutOf(v *ir.Value) (ir.Layout, bool) {
	l, ok := p.layouts[v]
	return l, ok
}

// Processed returns the instructions to duplicate in visit order.
func (p *Plan) Processed() []*ir.Instruction {
	out := make([]*ir.Instruction, len(p.processedList))
	copy(out, p.processedList)
	return out
}

// IsProcessed reports whether inst will be duplicated.
func (p *Plan) IsProcessed(inst *ir.Instruction) bool {
	return inst != nil && p.processed.Has(inst.ID())
}

// Folds reports whether v's producer absorbs the conversion to v's planned
// layout instead of needing an explicit one.
func (p *Plan) Folds(v *ir.Value) bool { return p.folds[v] }

func (p *Plan) markProcessed(inst *ir.Instruction) {
	if p.processed.Insert(inst.ID()) {
		p.processedList = append(p.processedList, inst)
	}
}

// record stores v's required layout. It returns false when v already has a
// different requirement.
func (p *Plan) record(v *ir.Value, l ir.Layout) bool {
	if prev, ok := p.layouts[v]; ok {
		return ir.LayoutEqual(prev, l)
	}
	p.layouts[v] = l
	p.values = append(p.values, v)
	return true
}

func (p *Plan) fail() {
	p.Delta = Infeasible
}

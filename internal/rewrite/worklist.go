package rewrite

import (
	"golang.org/x/tools/container/intsets"

	"github.com/roach88/relayout/internal/ir"
)

// worklist is a FIFO of instructions awaiting pattern matching. An
// instruction is queued at most once until it is popped again.
type worklist struct {
	items  []*ir.Instruction
	queued intsets.Sparse
}

func newWorklist() *worklist {
	return &worklist{items: make([]*ir.Instruction, 0, 64)}
}

// Push adds inst to the back of the queue. It returns false when inst is
// already queued.
func (w *worklist) Push(inst *ir.Instruction) bool {
	if inst == nil || !w.queued.Insert(inst.ID()) {
		return false
	}
	w.items = append(w.items, inst)
	return true
}

// Pop removes and returns the front instruction.
func (w *worklist) Pop() (*ir.Instruction, bool) {
	if len(w.items) == 0 {
		return nil, false
	}
	inst := w.items[0]

	// Clear the slot so the backing array does not pin erased instructions.
	w.items[0] = nil
	if len(w.items) == 1 {
		w.items = w.items[:0]
	} else {
		w.items = w.items[1:]
	}
	w.queued.Remove(inst.ID())
	return inst, true
}

// Len returns the number of queued instructions.
func (w *worklist) Len() int { return len(w.items) }

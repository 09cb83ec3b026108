package layout

import (
	"github.com/roach88/relayout/internal/ir"
)

// Txn is one rewrite attempt: a substitution map and an insertion cursor.
// Every instruction created through Builder is remembered so that Discard
// can remove them all.
type Txn struct {
	Builder *ir.Builder
	Mapping *ir.Mapping

	created []*ir.Instruction
	closed  bool
}

// Begin starts a transaction on m.
func Begin(m *ir.Module) *Txn {
	t := &Txn{Builder: ir.NewBuilder(m), Mapping: ir.NewMapping()}
	t.Builder.OnCreate(func(inst *ir.Instruction) {
		t.created = append(t.created, inst)
	})
	return t
}

// Created returns the instructions created so far, in creation order.
func (t *Txn) Created() []*ir.Instruction {
	out := make([]*ir.Instruction, len(t.created))
	copy(out, t.created)
	return out
}

// Commit keeps every mutation. The transaction cannot be used afterwards.
func (t *Txn) Commit() {
	t.closed = true
	t.Builder.OnCreate(nil)
}

// Discard erases every instruction the transaction created, newest first.
// Callers must not have redirected original uses to created values.
func (t *Txn) Discard() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.Builder.OnCreate(nil)
	for i := len(t.created) - 1; i >= 0; i-- {
		inst := t.created[i]
		if inst.Erased() {
			continue
		}
		if err := ir.Erase(inst); err != nil {
			return invariant(err, "discarding transaction")
		}
	}
	t.created = nil
	return nil
}

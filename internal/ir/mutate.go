package ir

import (
	"slices"

	"github.com/pkg/errors"
)

// detach removes inst from its block without touching its uses.
func (i *Instruction) detach() {
	if i.block == nil {
		return
	}
	if idx := i.block.indexOf(i); idx >= 0 {
		i.block.instrs = slices.Delete(i.block.instrs, idx, idx+1)
	}
	i.block = nil
}

func (b *Block) insertAt(idx int, inst *Instruction) {
	inst.detach()
	inst.block = b
	b.instrs = slices.Insert(b.instrs, idx, inst)
}

// Append moves inst to the end of b.
func (b *Block) Append(inst *Instruction) {
	inst.detach()
	inst.block = b
	b.instrs = append(b.instrs, inst)
}

// Prepend moves inst to the start of b.
func (b *Block) Prepend(inst *Instruction) {
	b.insertAt(0, inst)
}

// MoveBefore moves i immediately before anchor, possibly across blocks.
func (i *Instruction) MoveBefore(anchor *Instruction) {
	if i == anchor {
		return
	}
	i.detach()
	blk := anchor.block
	blk.insertAt(blk.indexOf(anchor), i)
}

// MoveAfter moves i immediately after anchor, possibly across blocks.
func (i *Instruction) MoveAfter(anchor *Instruction) {
	if i == anchor {
		return
	}
	i.detach()
	blk := anchor.block
	blk.insertAt(blk.indexOf(anchor)+1, i)
}

// Erase removes inst and everything nested in it from the graph. Results
// must be unused.
func Erase(inst *Instruction) error {
	if inst.erased {
		return errors.Errorf("erase %s: already erased", inst)
	}
	for _, r := range inst.results {
		for _, u := range r.uses {
			if !inst.IsAncestorOf(u.owner) {
				return errors.Errorf("erase %s: result %s still used by %s", inst, r, u.owner)
			}
		}
	}
	inst.detach()
	dropReferences(inst)
	return nil
}

// dropReferences clears every operand of inst and its nested instructions,
// innermost first, and marks them erased.
func dropReferences(inst *Instruction) {
	for _, r := range inst.regions {
		for _, b := range r.blocks {
			for idx := len(b.instrs) - 1; idx >= 0; idx-- {
				dropReferences(b.instrs[idx])
			}
		}
	}
	for _, o := range inst.operands {
		o.Set(nil)
	}
	inst.erased = true
}

// ReplaceAllUsesWith redirects every use of from to to.
func ReplaceAllUsesWith(from, to *Value) {
	if from == to {
		return
	}
	for _, u := range from.Uses() {
		u.Set(to)
	}
}

// ReplaceUsesWithIf redirects the uses of from for which keep returns true.
func ReplaceUsesWithIf(from, to *Value, keep func(*Operand) bool) {
	if from == to {
		return
	}
	for _, u := range from.Uses() {
		if keep(u) {
			u.Set(to)
		}
	}
}

// ReplaceOp redirects each result of old to the matching replacement value
// and erases old.
func ReplaceOp(old *Instruction, replacements []*Value) error {
	if len(replacements) != len(old.results) {
		return errors.Errorf("replace %s: %d replacement values for %d results",
			old, len(replacements), len(old.results))
	}
	for idx, r := range old.results {
		ReplaceAllUsesWith(r, replacements[idx])
	}
	return Erase(old)
}

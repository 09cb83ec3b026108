package ir

import "github.com/pkg/errors"

// WalkOrder selects whether nested instructions are visited before or after
// the instruction owning them.
type WalkOrder int

const (
	PostOrder WalkOrder = iota
	PreOrder
)

// WalkBlock visits every instruction in blk and its nested regions. The
// callback may erase the instruction it is given.
func WalkBlock(blk *Block, order WalkOrder, fn func(*Instruction)) {
	for _, inst := range blk.Instructions() {
		if inst.erased {
			continue
		}
		if order == PreOrder {
			fn(inst)
			if inst.erased {
				continue
			}
		}
		for _, r := range inst.regions {
			WalkRegion(r, order, fn)
		}
		if order == PostOrder {
			fn(inst)
		}
	}
}

// WalkRegion visits every instruction in r.
func WalkRegion(r *Region, order WalkOrder, fn func(*Instruction)) {
	for _, blk := range r.blocks {
		WalkBlock(blk, order, fn)
	}
}

// Walk visits every instruction of f in post-order.
func (f *Func) Walk(fn func(*Instruction)) {
	WalkRegion(f.Body, PostOrder, fn)
}

// Walk visits every instruction of every function in post-order.
func (m *Module) Walk(fn func(*Instruction)) {
	for _, f := range m.Funcs {
		f.Walk(fn)
	}
}

// Collect returns the instructions of kind k in f, in post-order.
func (f *Func) Collect(k OpKind) []*Instruction {
	var out []*Instruction
	f.Walk(func(inst *Instruction) {
		if inst.Kind == k {
			out = append(out, inst)
		}
	})
	return out
}

// FirstUser returns the user of v that comes first in a post-order walk of
// v's defining block.
func FirstUser(v *Value) (*Instruction, error) {
	blk := v.ParentBlock()
	if blk == nil {
		return nil, errors.Errorf("first user of %s: value has no parent block", v)
	}
	position := make(map[*Instruction]int)
	WalkBlock(blk, PostOrder, func(inst *Instruction) {
		position[inst] = len(position)
	})
	var first *Instruction
	best := -1
	for _, user := range v.Users() {
		pos, ok := position[user]
		if !ok {
			return nil, errors.Errorf("first user of %s: user %s is outside block %d", v, user, blk.id)
		}
		if best < 0 || pos < best {
			best = pos
			first = user
		}
	}
	if first == nil {
		return nil, errors.Errorf("first user of %s: value has no users", v)
	}
	return first, nil
}

// Lookup returns the value of f carrying the name hint name: a block
// argument or an instruction result, nested regions included. It returns nil
// when no value has that name.
func (f *Func) Lookup(name string) *Value {
	if name == "" {
		return nil
	}
	var found *Value
	match := func(vs []*Value) {
		for _, v := range vs {
			if found == nil && v.Name == name {
				found = v
			}
		}
	}
	match(f.Entry().Args())
	WalkRegion(f.Body, PreOrder, func(inst *Instruction) {
		match(inst.Results())
		for _, r := range inst.Regions() {
			for _, blk := range r.Blocks() {
				match(blk.Args())
			}
		}
	})
	return found
}

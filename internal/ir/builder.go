package ir

import (
	"maps"

	"github.com/pkg/errors"
)

// Builder creates instructions at an insertion cursor. New instructions are
// placed before the cursor's anchor, or at the end of the block when the
// anchor is nil, so consecutive creations keep their creation order.
type Builder struct {
	module *Module
	block  *Block
	before *Instruction

	onCreate func(*Instruction)
}

// NewBuilder returns a builder for m with no insertion point.
func NewBuilder(m *Module) *Builder {
	return &Builder{module: m}
}

// Module returns the module the builder allocates IDs from.
func (b *Builder) Module() *Module { return b.module }

// OnCreate registers fn to be called for every instruction the builder
// creates, nested clones included.
func (b *Builder) OnCreate(fn func(*Instruction)) {
	b.onCreate = fn
}

// SetInsertionPointBefore places the cursor immediately before inst.
func (b *Builder) SetInsertionPointBefore(inst *Instruction) {
	b.block = inst.block
	b.before = inst
}

// SetInsertionPointAfter places the cursor immediately after inst.
func (b *Builder) SetInsertionPointAfter(inst *Instruction) {
	b.block = inst.block
	b.before = inst.Next()
}

// SetInsertionPointToStart places the cursor at the start of blk.
func (b *Builder) SetInsertionPointToStart(blk *Block) {
	b.block = blk
	b.before = nil
	if len(blk.instrs) > 0 {
		b.before = blk.instrs[0]
	}
}

// SetInsertionPointToEnd places the cursor at the end of blk.
func (b *Builder) SetInsertionPointToEnd(blk *Block) {
	b.block = blk
	b.before = nil
}

// InsertionBlock returns the block the cursor points into.
func (b *Builder) InsertionBlock() *Block { return b.block }

func (b *Builder) insert(inst *Instruction) {
	if b.block == nil {
		return
	}
	if b.before != nil && b.before.block == b.block {
		b.block.insertAt(b.block.indexOf(b.before), inst)
		return
	}
	b.block.Append(inst)
}

func (b *Builder) newInstruction(kind OpKind, operands []*Value, resultTypes []Type, attrs map[string]any) *Instruction {
	inst := &Instruction{
		Kind:   kind,
		Attrs:  maps.Clone(attrs),
		id:     b.module.newID(),
		module: b.module,
	}
	if inst.Attrs == nil {
		inst.Attrs = make(map[string]any)
	}
	for idx, v := range operands {
		o := &Operand{owner: inst, index: idx}
		o.Set(v)
		inst.operands = append(inst.operands, o)
	}
	for idx, t := range resultTypes {
		inst.results = append(inst.results, &Value{id: b.module.newID(), typ: t, def: inst, resultIdx: idx})
	}
	return inst
}

// Create builds an instruction and inserts it at the cursor.
func (b *Builder) Create(kind OpKind, operands []*Value, resultTypes []Type, attrs map[string]any) *Instruction {
	inst := b.newInstruction(kind, operands, resultTypes, attrs)
	b.insert(inst)
	if b.onCreate != nil {
		b.onCreate(inst)
	}
	return inst
}

// CreateConvert inserts a conversion of v to layout l. v must be a tensor.
func (b *Builder) CreateConvert(v *Value, l Layout) (*Instruction, error) {
	tt, ok := AsTensor(v.Type())
	if !ok {
		return nil, errors.Errorf("convert_layout: operand %s has non-tensor type %s", v, v.Type())
	}
	return b.Create(OpConvertLayout, []*Value{v}, []Type{tt.WithLayout(l)}, nil), nil
}

// CreateFor inserts a for loop over [lb, ub) by step carrying inits. The
// body block receives the induction variable followed by one parameter per
// init; the caller fills it and terminates it with a yield.
func (b *Builder) CreateFor(lb, ub, step *Value, inits []*Value) *Instruction {
	operands := append([]*Value{lb, ub, step}, inits...)
	types := make([]Type, len(inits))
	for idx, v := range inits {
		types[idx] = v.Type()
	}
	loop := b.Create(OpFor, operands, types, nil)
	body := loop.AddRegion().AddBlock(lb.Type())
	for _, t := range types {
		body.AddArg(t)
	}
	return loop
}

// Clone copies inst at the cursor with operands rewritten through mapping.
// Nested regions are cloned deeply; values defined inside them are mapped in
// a private overlay, and the clone's own results are not added to mapping.
func (b *Builder) Clone(inst *Instruction, mapping *Mapping) (*Instruction, error) {
	operands := make([]*Value, len(inst.operands))
	for idx, o := range inst.operands {
		operands[idx] = mapping.Lookup(o.value)
	}
	types := make([]Type, len(inst.results))
	for idx, r := range inst.results {
		types[idx] = r.typ
	}
	clone := b.newInstruction(inst.Kind, operands, types, inst.Attrs)
	for idx, r := range inst.results {
		clone.results[idx].Name = r.Name
	}
	b.insert(clone)
	if b.onCreate != nil {
		b.onCreate(clone)
	}
	if len(inst.regions) == 0 {
		return clone, nil
	}

	inner := mapping.Child()
	nested := &Builder{module: b.module, onCreate: b.onCreate}
	for _, r := range inst.regions {
		nr := clone.AddRegion()
		for _, blk := range r.blocks {
			nb := nr.AddBlock()
			for _, arg := range blk.args {
				na := nb.AddArg(arg.typ)
				na.Name = arg.Name
				if err := inner.Map(arg, na); err != nil {
					return nil, errors.WithMessagef(err, "clone %s", inst)
				}
			}
		}
	}
	for ri, r := range inst.regions {
		for bi, blk := range r.blocks {
			nested.SetInsertionPointToEnd(clone.regions[ri].blocks[bi])
			for _, child := range blk.instrs {
				cc, err := nested.Clone(child, inner)
				if err != nil {
					return nil, err
				}
				for idx, res := range child.results {
					if err := inner.Map(res, cc.results[idx]); err != nil {
						return nil, errors.WithMessagef(err, "clone %s", inst)
					}
				}
			}
		}
	}
	return clone, nil
}

// CloneAndMap clones inst and records each original result -> clone result
// in mapping.
func (b *Builder) CloneAndMap(inst *Instruction, mapping *Mapping) (*Instruction, error) {
	clone, err := b.Clone(inst, mapping)
	if err != nil {
		return nil, err
	}
	for idx, r := range inst.results {
		if err := mapping.Map(r, clone.results[idx]); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

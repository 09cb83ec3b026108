package ir

import (
	"slices"
	"strconv"
)

// Module is the unit of optimization: a set of functions plus module-level
// attributes such as the hardware configuration.
type Module struct {
	Attrs map[string]any
	Funcs []*Func

	nextID int
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{Attrs: make(map[string]any)}
}

func (m *Module) newID() int {
	m.nextID++
	return m.nextID
}

// IntAttr returns the integer attribute name, or def when it is absent or
// not an integer.
func (m *Module) IntAttr(name string, def int) int {
	if n, ok := intValue(m.Attrs[name]); ok {
		return n
	}
	return def
}

// NewFunc appends a function whose entry block takes arguments of argTypes.
func (m *Module) NewFunc(name string, argTypes ...Type) *Func {
	f := &Func{Name: name, module: m}
	f.Body = newRegion(m, nil)
	f.Body.AddBlock(argTypes...)
	m.Funcs = append(m.Funcs, f)
	return f
}

// Func returns the function called name, or nil.
func (m *Module) Func(name string) *Func {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Func is a named function with a single-region body.
type Func struct {
	Name string
	Body *Region

	module *Module
}

// Module returns the owning module.
func (f *Func) Module() *Module { return f.module }

// Entry returns the first block of the body.
func (f *Func) Entry() *Block { return f.Body.blocks[0] }

// Region is an ordered list of blocks owned by an instruction or a function.
type Region struct {
	blocks []*Block
	parent *Instruction
	module *Module
}

func newRegion(m *Module, parent *Instruction) *Region {
	return &Region{parent: parent, module: m}
}

// Blocks returns the blocks of the region.
func (r *Region) Blocks() []*Block { return r.blocks }

// ParentOp returns the instruction owning the region, or nil for a
// function body.
func (r *Region) ParentOp() *Instruction { return r.parent }

// AddBlock appends a block with arguments of the given types.
func (r *Region) AddBlock(argTypes ...Type) *Block {
	b := &Block{id: r.module.newID(), region: r}
	for _, t := range argTypes {
		b.AddArg(t)
	}
	r.blocks = append(r.blocks, b)
	return b
}

// Block is a straight-line sequence of instructions with arguments.
type Block struct {
	id     int
	args   []*Value
	instrs []*Instruction
	region *Region
}

// ID returns the module-unique block identifier.
func (b *Block) ID() int { return b.id }

// Args returns the block arguments.
func (b *Block) Args() []*Value { return b.args }

// Arg returns argument i.
func (b *Block) Arg(i int) *Value { return b.args[i] }

// Instructions returns a snapshot of the instructions in order. Mutating the
// block while iterating the snapshot is safe.
func (b *Block) Instructions() []*Instruction { return slices.Clone(b.instrs) }

// Len returns the number of instructions in the block.
func (b *Block) Len() int { return len(b.instrs) }

// Region returns the region containing the block.
func (b *Block) Region() *Region { return b.region }

// ParentOp returns the instruction owning the block's region, or nil.
func (b *Block) ParentOp() *Instruction { return b.region.parent }

// Terminator returns the last instruction when it is a terminator.
func (b *Block) Terminator() *Instruction {
	if len(b.instrs) == 0 {
		return nil
	}
	last := b.instrs[len(b.instrs)-1]
	if !last.Kind.IsTerminator() {
		return nil
	}
	return last
}

// AddArg appends a block argument of type t.
func (b *Block) AddArg(t Type) *Value {
	v := &Value{id: b.region.module.newID(), typ: t, block: b, index: len(b.args), resultIdx: -1}
	b.args = append(b.args, v)
	return v
}

func (b *Block) indexOf(inst *Instruction) int {
	return slices.Index(b.instrs, inst)
}

// Instruction is one operation in the graph.
type Instruction struct {
	Kind  OpKind
	Attrs map[string]any

	id       int
	operands []*Operand
	results  []*Value
	regions  []*Region
	block    *Block
	module   *Module
	erased   bool
}

// ID returns the module-unique instruction identifier.
func (i *Instruction) ID() int { return i.id }

// Name returns the printed kind name.
func (i *Instruction) Name() string { return i.Kind.String() }

// Operands returns the operand use records in order.
func (i *Instruction) Operands() []*Operand { return i.operands }

// NumOperands returns the operand count.
func (i *Instruction) NumOperands() int { return len(i.operands) }

// Operand returns the value of operand idx.
func (i *Instruction) Operand(idx int) *Value { return i.operands[idx].value }

// OperandValues returns the operand values in order.
func (i *Instruction) OperandValues() []*Value {
	vals := make([]*Value, len(i.operands))
	for idx, o := range i.operands {
		vals[idx] = o.value
	}
	return vals
}

// SetOperand replaces operand idx with v, updating use lists.
func (i *Instruction) SetOperand(idx int, v *Value) {
	i.operands[idx].Set(v)
}

// Results returns the result values.
func (i *Instruction) Results() []*Value { return i.results }

// NumResults returns the result count.
func (i *Instruction) NumResults() int { return len(i.results) }

// Result returns result idx.
func (i *Instruction) Result(idx int) *Value { return i.results[idx] }

// Regions returns the nested regions.
func (i *Instruction) Regions() []*Region { return i.regions }

// NumRegions returns the number of nested regions.
func (i *Instruction) NumRegions() int { return len(i.regions) }

// Region returns nested region idx.
func (i *Instruction) Region(idx int) *Region { return i.regions[idx] }

// AddRegion appends an empty nested region.
func (i *Instruction) AddRegion() *Region {
	r := newRegion(i.module, i)
	i.regions = append(i.regions, r)
	return r
}

// Block returns the containing block, or nil when detached.
func (i *Instruction) Block() *Block { return i.block }

// ParentOp returns the instruction whose region contains this one.
func (i *Instruction) ParentOp() *Instruction {
	if i.block == nil {
		return nil
	}
	return i.block.ParentOp()
}

// Erased reports whether the instruction was removed from the graph.
func (i *Instruction) Erased() bool { return i.erased }

// IntAttr returns an integer attribute.
func (i *Instruction) IntAttr(name string) (int, bool) {
	return intValue(i.Attrs[name])
}

// StringAttr returns a string attribute.
func (i *Instruction) StringAttr(name string) (string, bool) {
	s, ok := i.Attrs[name].(string)
	return s, ok
}

// IsBeforeInBlock reports whether i precedes other in their common block.
func (i *Instruction) IsBeforeInBlock(other *Instruction) bool {
	if i.block == nil || i.block != other.block {
		return false
	}
	return i.block.indexOf(i) < i.block.indexOf(other)
}

// Next returns the instruction following i in its block, or nil.
func (i *Instruction) Next() *Instruction {
	if i.block == nil {
		return nil
	}
	idx := i.block.indexOf(i)
	if idx < 0 || idx+1 >= len(i.block.instrs) {
		return nil
	}
	return i.block.instrs[idx+1]
}

// IsAncestorOf reports whether other is i itself or nested in one of i's
// regions.
func (i *Instruction) IsAncestorOf(other *Instruction) bool {
	for cur := other; cur != nil; cur = cur.ParentOp() {
		if cur == i {
			return true
		}
	}
	return false
}

func (i *Instruction) String() string {
	return i.Kind.String() + "#" + strconv.Itoa(i.id)
}

// Operand is a use record: the value consumed by operand Index of Owner.
type Operand struct {
	owner *Instruction
	index int
	value *Value
}

// Owner returns the consuming instruction.
func (o *Operand) Owner() *Instruction { return o.owner }

// Index returns the operand position within the owner.
func (o *Operand) Index() int { return o.index }

// Get returns the consumed value.
func (o *Operand) Get() *Value { return o.value }

// Set redirects the use to v.
func (o *Operand) Set(v *Value) {
	if o.value == v {
		return
	}
	if o.value != nil {
		o.value.removeUse(o)
	}
	o.value = v
	if v != nil {
		v.uses = append(v.uses, o)
	}
}

// Value is an SSA value: an instruction result or a block argument.
type Value struct {
	// Name is an optional hint carried over from the source graph.
	Name string

	id        int
	typ       Type
	def       *Instruction
	resultIdx int
	block     *Block
	index     int
	uses      []*Operand
}

// ID returns the module-unique value identifier.
func (v *Value) ID() int { return v.id }

// Type returns the value's type.
func (v *Value) Type() Type { return v.typ }

// SetType changes the value's type in place.
func (v *Value) SetType(t Type) { v.typ = t }

// Def returns the producing instruction, or nil for a block argument.
func (v *Value) Def() *Instruction { return v.def }

// ResultIndex returns the result position within Def, or -1.
func (v *Value) ResultIndex() int { return v.resultIdx }

// IsBlockArg reports whether v is a block argument.
func (v *Value) IsBlockArg() bool { return v.block != nil }

// OwnerBlock returns the block v is an argument of, or nil.
func (v *Value) OwnerBlock() *Block { return v.block }

// ArgNumber returns the argument position of a block argument, or -1.
func (v *Value) ArgNumber() int {
	if v.block == nil {
		return -1
	}
	return v.index
}

// ParentBlock returns the block that defines v.
func (v *Value) ParentBlock() *Block {
	if v.block != nil {
		return v.block
	}
	if v.def != nil {
		return v.def.block
	}
	return nil
}

// Uses returns a snapshot of the use records in creation order.
func (v *Value) Uses() []*Operand { return slices.Clone(v.uses) }

// HasUses reports whether any instruction consumes v.
func (v *Value) HasUses() bool { return len(v.uses) > 0 }

// Users returns the distinct consuming instructions in use order.
func (v *Value) Users() []*Instruction {
	users := make([]*Instruction, 0, len(v.uses))
	for _, u := range v.uses {
		if !slices.Contains(users, u.owner) {
			users = append(users, u.owner)
		}
	}
	return users
}

func (v *Value) removeUse(o *Operand) {
	if idx := slices.Index(v.uses, o); idx >= 0 {
		v.uses = slices.Delete(v.uses, idx, idx+1)
	}
}

func (v *Value) String() string {
	return "%" + strconv.Itoa(v.id)
}

func intValue(a any) (int, bool) {
	switch n := a.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	default:
		return 0, false
	}
}

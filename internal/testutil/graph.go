package testutil

import (
	"github.com/roach88/relayout/internal/ir"
)

// Blocked1D returns a one-dimensional blocked layout over 4 warps of 32
// threads with sizePerThread contiguous elements per thread.
func Blocked1D(sizePerThread int) ir.Blocked {
	return ir.Blocked{
		SizePerThread:  []int{sizePerThread},
		ThreadsPerWarp: []int{32},
		WarpsPerCTA:    []int{4},
		Order:          []int{0},
	}
}

// Blocked2D returns a row-major two-dimensional blocked layout.
func Blocked2D(sizePerThread ...int) ir.Blocked {
	if len(sizePerThread) != 2 {
		sizePerThread = []int{1, 4}
	}
	return ir.Blocked{
		SizePerThread:  sizePerThread,
		ThreadsPerWarp: []int{8, 4},
		WarpsPerCTA:    []int{4, 1},
		Order:          []int{1, 0},
	}
}

// Tensor returns an f32 tensor type of the given shape in l.
func Tensor(l ir.Layout, shape ...int64) ir.TensorType {
	return ir.TensorType{Shape: shape, Elem: ir.F32, Layout: l}
}

// Kernel is a one-function module under construction. B appends to the end
// of the function's entry block unless moved.
type Kernel struct {
	M *ir.Module
	F *ir.Func
	B *ir.Builder
}

// NewKernel returns a module holding function "kernel" with the given
// argument types.
func NewKernel(argTypes ...ir.Type) *Kernel {
	m := ir.NewModule()
	f := m.NewFunc("kernel", argTypes...)
	b := ir.NewBuilder(m)
	b.SetInsertionPointToEnd(f.Entry())
	return &Kernel{M: m, F: f, B: b}
}

// Arg returns function argument i.
func (k *Kernel) Arg(i int) *ir.Value { return k.F.Entry().Arg(i) }

// Op creates an instruction with a single result of type t.
func (k *Kernel) Op(kind ir.OpKind, t ir.Type, operands ...*ir.Value) *ir.Value {
	return k.B.Create(kind, operands, []ir.Type{t}, nil).Result(0)
}

// Const creates a zero constant of type t.
func (k *Kernel) Const(t ir.Type) *ir.Value {
	return k.B.Create(ir.OpConstant, nil, []ir.Type{t}, map[string]any{"value": 0}).Result(0)
}

// Int creates an i32 constant.
func (k *Kernel) Int(n int) *ir.Value {
	return k.B.Create(ir.OpConstant, nil, []ir.Type{ir.I32}, map[string]any{"value": n}).Result(0)
}

// Convert creates a conversion of v to l.
func (k *Kernel) Convert(v *ir.Value, l ir.Layout) *ir.Value {
	cvt, err := k.B.CreateConvert(v, l)
	if err != nil {
		panic(err)
	}
	return cvt.Result(0)
}

// Return terminates the entry block.
func (k *Kernel) Return(vs ...*ir.Value) *ir.Instruction {
	return k.B.Create(ir.OpReturn, vs, nil, nil)
}

// Loop is a for loop under construction. Body appends into the loop body;
// call Yield to terminate it.
type Loop struct {
	Inst *ir.Instruction
	Body *ir.Builder
}

// For creates a loop over [0, 8) carrying inits.
func (k *Kernel) For(inits ...*ir.Value) *Loop {
	lb, ub, step := k.Int(0), k.Int(8), k.Int(1)
	inst := k.B.CreateFor(lb, ub, step, inits)
	body := ir.NewBuilder(k.M)
	body.SetInsertionPointToEnd(inst.Region(0).Blocks()[0])
	return &Loop{Inst: inst, Body: body}
}

// Param returns loop-carried parameter i (body argument i+1).
func (l *Loop) Param(i int) *ir.Value {
	return l.Inst.Region(0).Blocks()[0].Arg(i + 1)
}

// Op creates a single-result instruction in the loop body.
func (l *Loop) Op(kind ir.OpKind, t ir.Type, operands ...*ir.Value) *ir.Value {
	return l.Body.Create(kind, operands, []ir.Type{t}, nil).Result(0)
}

// Convert creates a conversion in the loop body.
func (l *Loop) Convert(v *ir.Value, to ir.Layout) *ir.Value {
	cvt, err := l.Body.CreateConvert(v, to)
	if err != nil {
		panic(err)
	}
	return cvt.Result(0)
}

// Yield terminates the loop body.
func (l *Loop) Yield(vs ...*ir.Value) *ir.Instruction {
	return l.Body.Create(ir.OpYield, vs, nil, nil)
}

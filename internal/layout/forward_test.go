package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/testutil"
)

func TestForwardSlice_CrossesIntoRegions(t *testing.T) {
	tt := testutil.Tensor(testutil.Blocked1D(1), 128)
	k := testutil.NewKernel(tt, ir.I1)
	e := k.Op(ir.OpExp, tt, k.Arg(0))
	branch := k.B.Create(ir.OpIf, []*ir.Value{k.Arg(1)}, nil, nil)
	inner := ir.NewBuilder(k.M)
	inner.SetInsertionPointToEnd(branch.AddRegion().AddBlock())
	nested := inner.Create(ir.OpPrint, nil, nil, nil)
	k.B.Create(ir.OpStore, []*ir.Value{k.Arg(0), e}, nil, nil)

	members, visited, uses := forwardSlice(e.Def())
	assert.Len(t, members, 2, "exp and store")
	assert.False(t, visited.Has(branch.ID()))
	assert.Len(t, uses, 1)

	members, visited, _ = forwardSlice(branch)
	assert.Equal(t, []*ir.Instruction{branch, nested}, members)
	assert.True(t, visited.Has(nested.ID()))
}

func TestForwardInLoop_RejectsSharedAndSliced(t *testing.T) {
	tt := testutil.Tensor(testutil.Blocked1D(1), 128)
	k := testutil.NewKernel(tt)
	loop := k.For(k.Arg(0))
	start := loop.Op(ir.OpExp, tt, loop.Param(0))
	loop.Yield(start)

	s := newSimulator()
	err := s.ForwardInLoop(start.Def(), loop.Param(0), ir.Shared{Vec: 4, PerPhase: 1, MaxPhase: 8, Order: []int{0}})
	assert.True(t, IsInfeasible(err))
	err = s.ForwardInLoop(start.Def(), loop.Param(0), ir.Sliced{Dim: 0, Parent: testutil.Blocked2D()})
	assert.True(t, IsInfeasible(err))

	assert.NoError(t, s.ForwardInLoop(start.Def(), loop.Param(0), testutil.Blocked1D(4)))
}

func TestForwardInLoop_ConsumersMustPreserveLayout(t *testing.T) {
	tt := testutil.Tensor(testutil.Blocked1D(1), 128)
	k := testutil.NewKernel(tt)
	loop := k.For(k.Arg(0))
	start := loop.Op(ir.OpExp, tt, loop.Param(0))
	reshaped := loop.Op(ir.OpView, testutil.Tensor(testutil.Blocked2D(), 8, 16), start)
	loop.Body.Create(ir.OpPrint, []*ir.Value{reshaped}, nil, nil)
	loop.Yield(start)

	err := newSimulator().ForwardInLoop(start.Def(), loop.Param(0), testutil.Blocked1D(4))
	require.Error(t, err)
	assert.True(t, IsInfeasible(err))
	assert.Contains(t, err.Error(), "view")
}

func TestForwardInLoop_ExpensiveConsumer(t *testing.T) {
	tt := testutil.Tensor(testutil.Blocked1D(1), 128)
	k := testutil.NewKernel(tt)
	loop := k.For(k.Arg(0))
	start := loop.Op(ir.OpExp, tt, loop.Param(0))
	acc := loop.Op(ir.OpDot, tt, start, start)
	loop.Yield(acc)

	err := newSimulator().ForwardInLoop(start.Def(), loop.Param(0), testutil.Blocked1D(4))
	assert.True(t, IsInfeasible(err))
}

func TestForwardInLoop_OperandNeedingNewConversion(t *testing.T) {
	tt := testutil.Tensor(testutil.Blocked1D(1), 512)
	k := testutil.NewKernel(tt, ptrTensor(512))
	loop := k.For(k.Arg(0))
	loaded := loop.Op(ir.OpLoad, tt, k.Arg(1))
	scaled := loop.Op(ir.OpExp, tt, loaded)
	start := loop.Op(ir.OpAdd, tt, loop.Param(0), scaled)
	loop.Yield(start)

	err := newSimulator().ForwardInLoop(start.Def(), loop.Param(0), testutil.Blocked1D(4))
	assert.True(t, IsInfeasible(err))

	// A constant operand folds the layout for free.
	k2 := testutil.NewKernel(tt)
	loop2 := k2.For(k2.Arg(0))
	one := loop2.Body.Create(ir.OpConstant, nil, []ir.Type{tt}, map[string]any{"value": 1}).Result(0)
	start2 := loop2.Op(ir.OpAdd, tt, loop2.Param(0), one)
	loop2.Yield(start2)

	assert.NoError(t, newSimulator().ForwardInLoop(start2.Def(), loop2.Param(0), testutil.Blocked1D(4)))
}

func TestForwardInLoop_YieldIntoAnotherParameter(t *testing.T) {
	b1 := testutil.Tensor(testutil.Blocked1D(1), 128)
	b2 := testutil.Tensor(testutil.Blocked1D(2), 128)
	k := testutil.NewKernel(b1, b2)

	loop := k.For(k.Arg(0), k.Arg(1))
	start := loop.Op(ir.OpExp, b2, loop.Param(0))
	loop.Yield(loop.Param(0), start)

	err := newSimulator().ForwardInLoop(start.Def(), loop.Param(0), testutil.Blocked1D(4))
	require.Error(t, err)
	assert.True(t, IsInfeasible(err))

	// Feeding back into the same parameter is fine.
	k2 := testutil.NewKernel(b1, b2)
	loop2 := k2.For(k2.Arg(0), k2.Arg(1))
	start2 := loop2.Op(ir.OpExp, b1, loop2.Param(0))
	loop2.Yield(start2, loop2.Param(1))
	assert.NoError(t, newSimulator().ForwardInLoop(start2.Def(), loop2.Param(0), testutil.Blocked1D(4)))
}

func TestForwardInLoop_InductionSlotsConfigurable(t *testing.T) {
	b1 := testutil.Tensor(testutil.Blocked1D(1), 128)
	b2 := testutil.Tensor(testutil.Blocked1D(2), 128)
	k := testutil.NewKernel(b1, b2)
	loop := k.For(k.Arg(0), k.Arg(1))
	start := loop.Op(ir.OpExp, b2, loop.Param(0))
	loop.Yield(loop.Param(0), start)

	// Without an induction slot, body argument 1 is parameter 1, the slot
	// start is yielded into.
	s := newSimulator()
	require.Error(t, s.ForwardInLoop(start.Def(), loop.Param(0), testutil.Blocked1D(4)))
	s.InductionSlots = 0
	assert.NoError(t, s.ForwardInLoop(start.Def(), loop.Param(0), testutil.Blocked1D(4)))
}

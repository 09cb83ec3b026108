package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/testutil"
)

// hoistable builds a loop whose parameter, declared in from, is converted
// to to on every iteration before being printed, and also feeds an exp
// whose result is yielded back.
func hoistable(from, to ir.Layout) (*testutil.Kernel, *testutil.Loop, *ir.Instruction) {
	tt := testutil.Tensor(from, 128)
	k := testutil.NewKernel(tt)
	loop := k.For(k.Arg(0))
	cvt := loop.Convert(loop.Param(0), to)
	loop.Body.Create(ir.OpPrint, []*ir.Value{cvt}, nil, nil)
	next := loop.Op(ir.OpExp, tt, loop.Param(0))
	loop.Yield(next)
	ret := k.Return(loop.Inst.Result(0))
	return k, loop, ret
}

func hoist(t *testing.T, m *ir.Module, param *ir.Value) *HoistPlan {
	t.Helper()
	plan, err := newSimulator().CanHoist(param)
	require.NoError(t, err)
	require.False(t, plan.Empty())

	txn := Begin(m)
	require.NoError(t, ExecuteHoist(txn, plan))
	txn.Commit()
	return plan
}

func TestExecuteHoist_CarriesParameterInTarget(t *testing.T) {
	from, to := testutil.Blocked1D(1), testutil.Blocked1D(4)
	k, loop, _ := hoistable(from, to)

	hoist(t, k.M, loop.Param(0))

	assert.True(t, ir.LayoutEqual(to, ir.LayoutOf(loop.Param(0).Type())))
	init := loop.Inst.Operand(3)
	require.Equal(t, ir.OpConvertLayout, init.Def().Kind)
	assert.Same(t, k.Arg(0), init.Def().Operand(0))
	assert.True(t, loop.Inst.Block() == init.Def().Block() && init.Def().IsBeforeInBlock(loop.Inst))

	body := loop.Inst.Region(0).Blocks()[0]
	for _, inst := range body.Instructions() {
		assert.NotEqual(t, ir.OpConvertLayout, inst.Kind, "no conversion left in the body")
	}
	printed := body.Instructions()[0]
	require.Equal(t, ir.OpPrint, printed.Kind)
	assert.Same(t, loop.Param(0), printed.Operand(0))
}

func TestExecuteHoist_RetypesForwardSlice(t *testing.T) {
	from, to := testutil.Blocked1D(1), testutil.Blocked1D(4)
	k, loop, _ := hoistable(from, to)

	hoist(t, k.M, loop.Param(0))

	yield := loop.Inst.Region(0).Blocks()[0].Terminator()
	yielded := yield.Operand(0)
	assert.Equal(t, ir.OpExp, yielded.Def().Kind, "exp runs in the new layout, no conversion before the yield")
	assert.True(t, ir.LayoutEqual(to, ir.LayoutOf(yielded.Type())))
}

func TestExecuteHoist_ConvertsResultBack(t *testing.T) {
	from, to := testutil.Blocked1D(1), testutil.Blocked1D(4)
	k, loop, ret := hoistable(from, to)

	hoist(t, k.M, loop.Param(0))

	back := ret.Operand(0).Def()
	require.Equal(t, ir.OpConvertLayout, back.Kind)
	assert.Same(t, loop.Inst.Result(0), back.Operand(0))
	assert.True(t, ir.LayoutEqual(from, ir.LayoutOf(back.Result(0).Type())))
	assert.Same(t, loop.Inst, back.Block().Instructions()[indexOf(back.Block(), back)-1])
}

func TestExecuteHoist_ThenFixupMakesLoopConsistent(t *testing.T) {
	from, to := testutil.Blocked1D(1), testutil.Blocked1D(4)
	k, old, ret := hoistable(from, to)

	hoist(t, k.M, old.Param(0))
	n, err := FixupLoops(k.M)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loops := k.F.Collect(ir.OpFor)
	require.Len(t, loops, 1)
	loop := loops[0]
	body := loop.Region(0).Blocks()[0]
	want := testutil.Tensor(to, 128)
	assert.True(t, ir.TypeEqual(want, loop.Operand(3).Type()))
	assert.True(t, ir.TypeEqual(want, body.Arg(1).Type()))
	assert.True(t, ir.TypeEqual(want, loop.Result(0).Type()))

	back := ret.Operand(0).Def()
	require.Equal(t, ir.OpConvertLayout, back.Kind)
	assert.Same(t, loop.Result(0), back.Operand(0))
}

func TestExecuteHoist_RematerializesLoopInvariantConstant(t *testing.T) {
	from, to := testutil.Blocked1D(1), testutil.Blocked1D(4)
	tt := testutil.Tensor(from, 128)
	k := testutil.NewKernel(tt)
	y := k.Const(tt)
	loop := k.For(k.Arg(0))
	cvt := loop.Convert(loop.Param(0), to)
	loop.Body.Create(ir.OpPrint, []*ir.Value{cvt}, nil, nil)
	sum := loop.Op(ir.OpAdd, tt, loop.Param(0), y)
	loop.Yield(sum)

	hoist(t, k.M, loop.Param(0))

	rebuilt := sum.Def().Operand(1).Def()
	require.Equal(t, ir.OpConstant, rebuilt.Kind)
	assert.Same(t, k.F.Entry(), rebuilt.Block())
	assert.True(t, ir.LayoutEqual(to, ir.LayoutOf(rebuilt.Result(0).Type())))
	assert.True(t, ir.LayoutEqual(to, ir.LayoutOf(sum.Type())))
	for _, inst := range loop.Inst.Region(0).Blocks()[0].Instructions() {
		assert.NotEqual(t, ir.OpConvertLayout, inst.Kind, "no conversion left in the body")
	}
}

func TestExecuteHoist_ConvertsInvariantArgumentBeforeLoop(t *testing.T) {
	from, to := testutil.Blocked1D(1), testutil.Blocked1D(4)
	tt := testutil.Tensor(from, 128)
	k := testutil.NewKernel(tt, tt)
	loop := k.For(k.Arg(0))
	cvt := loop.Convert(loop.Param(0), to)
	loop.Body.Create(ir.OpPrint, []*ir.Value{cvt}, nil, nil)
	sum := loop.Op(ir.OpAdd, tt, loop.Param(0), k.Arg(1))
	loop.Yield(sum)

	hoist(t, k.M, loop.Param(0))

	moved := sum.Def().Operand(1).Def()
	require.Equal(t, ir.OpConvertLayout, moved.Kind)
	assert.Same(t, k.Arg(1), moved.Operand(0))
	assert.Same(t, k.F.Entry(), moved.Block())
	assert.True(t, moved.IsBeforeInBlock(loop.Inst))
}

func TestExecuteHoist_ConvertsOtherParameterAheadOfFirstUser(t *testing.T) {
	from, to := testutil.Blocked1D(1), testutil.Blocked1D(4)
	tt := testutil.Tensor(from, 128)
	k := testutil.NewKernel(tt, tt)
	loop := k.For(k.Arg(0), k.Arg(1))
	cvt := loop.Convert(loop.Param(0), to)
	loop.Body.Create(ir.OpPrint, []*ir.Value{cvt}, nil, nil)
	sum := loop.Op(ir.OpAdd, tt, loop.Param(0), loop.Param(1))
	yield := loop.Yield(sum, loop.Param(1))

	hoist(t, k.M, loop.Param(0))

	body := loop.Inst.Region(0).Blocks()[0]
	relaid := sum.Def().Operand(1).Def()
	require.Equal(t, ir.OpConvertLayout, relaid.Kind)
	assert.Same(t, loop.Param(1), relaid.Operand(0))
	assert.Equal(t, indexOf(body, sum.Def())-1, indexOf(body, relaid))
	assert.Same(t, loop.Param(1), yield.Operand(1), "the other parameter still yields its own layout")
}

func TestExecuteHoist_ConvertsYieldToParameterLayout(t *testing.T) {
	from, to := testutil.Blocked1D(1), testutil.Blocked1D(4)
	tt := testutil.Tensor(from, 128)
	k := testutil.NewKernel(tt)
	y := k.Const(tt)
	loop := k.For(k.Arg(0))
	cvt := loop.Convert(loop.Param(0), to)
	loop.Body.Create(ir.OpPrint, []*ir.Value{cvt}, nil, nil)
	yield := loop.Yield(y)

	plan := hoist(t, k.M, loop.Param(0))
	assert.Equal(t, 1, plan.InductionSlots)

	yielded := yield.Operand(0).Def()
	require.Equal(t, ir.OpConvertLayout, yielded.Kind)
	assert.Same(t, y, yielded.Operand(0))
	assert.True(t, ir.LayoutEqual(to, ir.LayoutOf(yielded.Result(0).Type())))
}

func TestExecuteHoist_EmptyPlanIsNoOp(t *testing.T) {
	tt := testutil.Tensor(testutil.Blocked1D(1), 128)
	k := testutil.NewKernel(tt)
	loop := k.For(k.Arg(0))
	loop.Yield(loop.Op(ir.OpExp, tt, loop.Param(0)))
	before := ir.Print(k.M)

	plan, err := newSimulator().CanHoist(loop.Param(0))
	require.NoError(t, err)
	txn := Begin(k.M)
	require.NoError(t, ExecuteHoist(txn, plan))
	assert.Empty(t, txn.Created())
	assert.Equal(t, before, ir.Print(k.M))
}

func TestExecuteHoist_RejectsMalformedPlan(t *testing.T) {
	tt := testutil.Tensor(testutil.Blocked1D(1), 128)
	k := testutil.NewKernel(tt)
	cvt := k.Convert(k.Arg(0), testutil.Blocked1D(4))

	plan := &HoistPlan{Param: k.Arg(0), Target: testutil.Blocked1D(4), Conversions: []*ir.Instruction{cvt.Def()}}
	err := ExecuteHoist(Begin(k.M), plan)
	assert.True(t, IsInvariantViolation(err))
}

func indexOf(blk *ir.Block, inst *ir.Instruction) int {
	for idx, cur := range blk.Instructions() {
		if cur == inst {
			return idx
		}
	}
	return -1
}

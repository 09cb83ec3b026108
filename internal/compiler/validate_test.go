package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/testutil"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for idx, e := range errs {
		out[idx] = e.Code
	}
	return out
}

func TestValidate_WellFormed(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked1D(1), 128))
	e := k.Op(ir.OpExp, k.Arg(0).Type(), k.Arg(0))
	k.Return(k.Convert(e, testutil.Blocked1D(4)))

	assert.Empty(t, Validate(k.M))
}

func TestValidate_NoFunctions(t *testing.T) {
	errs := Validate(ir.NewModule())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrNoFunctions, errs[0].Code)
}

func TestValidate_HardwareAttrs(t *testing.T) {
	k := testutil.NewKernel()
	k.Return()
	k.M.Attrs["num_warps"] = 0
	k.M.Attrs["threads_per_warp"] = "many"

	errs := Validate(k.M)
	assert.Equal(t, []string{ErrHardwareAttrs, ErrHardwareAttrs}, codes(errs))
	assert.Equal(t, "attrs.num_warps", errs[0].Field)
	assert.Equal(t, "attrs.threads_per_warp", errs[1].Field)
}

func TestValidate_Terminators(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		k := testutil.NewKernel()
		k.Int(1)
		assert.Equal(t, []string{ErrMissingTerminator}, codes(Validate(k.M)))
	})

	t.Run("wrong kind", func(t *testing.T) {
		k := testutil.NewKernel()
		k.B.Create(ir.OpYield, nil, nil, nil)
		errs := Validate(k.M)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrMissingTerminator, errs[0].Code)
		assert.Contains(t, errs[0].Message, "return")
	})

	t.Run("misplaced", func(t *testing.T) {
		k := testutil.NewKernel()
		k.Return()
		k.Int(1)
		k.Return()
		assert.Equal(t, []string{ErrMisplacedTerminator}, codes(Validate(k.M)))
	})
}

func TestValidate_UnresolvedOperand(t *testing.T) {
	k := testutil.NewKernel()
	ret := k.B.Create(ir.OpReturn, []*ir.Value{nil}, nil, nil)

	errs := Validate(k.M)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnresolvedOperand, errs[0].Code)
	assert.Equal(t, "kernel/"+ret.String(), errs[0].Field)
}

func TestValidate_LoopShape(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked1D(1), 128))
	loop := k.For(k.Arg(0))
	loop.Yield()
	k.Return(loop.Inst.Result(0))

	errs := Validate(k.M)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrLoopShape, errs[0].Code)
	assert.Contains(t, errs[0].Message, "yields 0 values for 1 parameters")
}

func TestValidate_LoopTypes(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked1D(1), 128))
	loop := k.For(k.Arg(0))
	wide := loop.Convert(loop.Param(0), testutil.Blocked1D(4))
	loop.Yield(wide)
	k.Return(loop.Inst.Result(0))

	assert.Equal(t, []string{ErrLoopTypes}, codes(Validate(k.M)))
}

func TestValidate_ConversionShape(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked1D(1), 128))
	bad := k.Op(ir.OpConvertLayout, testutil.Tensor(testutil.Blocked1D(4), 256), k.Arg(0))
	k.Return(bad)

	errs := Validate(k.M)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrConversionShape, errs[0].Code)
	assert.Contains(t, errs[0].Message, "tensor<128xf32")
}

func TestValidate_LayoutRank(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked2D(), 128))
	k.Return(k.Arg(0))

	errs := Validate(k.M)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrLayoutRank, errs[0].Code)
	assert.Equal(t, "kernel/"+k.Arg(0).String(), errs[0].Field)
}

func TestValidate_ValueNotVisible(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked1D(1), 128))
	loop := k.For(k.Arg(0))
	inner := loop.Op(ir.OpExp, loop.Param(0).Type(), loop.Param(0))
	loop.Yield(inner)
	k.Return(inner)

	errs := Validate(k.M)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrValueNotVisible, errs[0].Code)
}

func TestValidate_UseBeforeDef(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked1D(1), 128))
	first := k.B.Create(ir.OpExp, []*ir.Value{nil}, []ir.Type{k.Arg(0).Type()}, nil)
	second := k.Op(ir.OpExp, k.Arg(0).Type(), k.Arg(0))
	first.SetOperand(0, second)
	k.Return(first.Result(0))

	errs := Validate(k.M)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUseBeforeDef, errs[0].Code)
	assert.Equal(t, "kernel/"+first.String(), errs[0].Field)
}

func TestValidate_OperandCycle(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked1D(1), 128))
	a := k.B.Create(ir.OpAdd, []*ir.Value{k.Arg(0), nil}, []ir.Type{k.Arg(0).Type()}, nil)
	b := k.Op(ir.OpExp, k.Arg(0).Type(), a.Result(0))
	a.SetOperand(1, b)
	k.Return(b)

	got := codes(Validate(k.M))
	assert.Equal(t, []string{ErrUseBeforeDef, ErrOperandCycle}, got)
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "kernel/add#3", Message: "bad", Code: ErrUseBeforeDef}
	assert.Equal(t, "[E130] kernel/add#3: bad", err.Error())
}

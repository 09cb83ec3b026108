package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferExpandDims(t *testing.T) {
	parent := blocked2D()
	src := tensorOf(Sliced{Dim: 1, Parent: parent}, F32, 64)
	_, f, b := newKernel(src)
	ed := b.Create(OpExpandDims, []*Value{f.Entry().Arg(0)},
		[]Type{tensorOf(nil, F32, 64, 1)}, map[string]any{"axis": 1})

	types, err := InferResultTypes(ed)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.True(t, TypeEqual(tensorOf(parent, F32, 64, 1), types[0]))
}

func TestInferExpandDimsRequiresMatchingSlice(t *testing.T) {
	src := tensorOf(Sliced{Dim: 0, Parent: blocked2D()}, F32, 64)
	_, f, b := newKernel(src)
	ed := b.Create(OpExpandDims, []*Value{f.Entry().Arg(0)},
		[]Type{tensorOf(nil, F32, 64, 1)}, map[string]any{"axis": 1})

	_, err := InferResultTypes(ed)
	assert.Error(t, err)
}

func TestInferReduce(t *testing.T) {
	src := tensorOf(blocked2D(), F32, 64, 32)
	_, f, b := newKernel(src)
	red := b.Create(OpReduce, []*Value{f.Entry().Arg(0)},
		[]Type{tensorOf(nil, F32, 64)}, map[string]any{"axis": 1})

	types, err := InferResultTypes(red)
	require.NoError(t, err)
	assert.True(t, TypeEqual(tensorOf(Sliced{Dim: 1, Parent: blocked2D()}, F32, 64), types[0]))
}

func TestInferReduceRankOneGivesScalar(t *testing.T) {
	src := tensorOf(blocked1D(1), F32, 128)
	_, f, b := newKernel(src)
	red := b.Create(OpReduce, []*Value{f.Entry().Arg(0)}, []Type{F32}, map[string]any{"axis": 0})

	types, err := InferResultTypes(red)
	require.NoError(t, err)
	assert.Equal(t, F32, types[0])
}

func TestInferElementwiseFollowsFirstTensorOperand(t *testing.T) {
	src := tensorOf(blocked1D(4), F32, 128)
	_, f, b := newKernel(src)
	c := constant(b, src)
	cmp := b.Create(OpCmp, []*Value{f.Entry().Arg(0), c},
		[]Type{tensorOf(blocked1D(1), I1, 128)}, map[string]any{"pred": "lt"})

	types, err := InferResultTypes(cmp)
	require.NoError(t, err)
	assert.True(t, TypeEqual(tensorOf(blocked1D(4), I1, 128), types[0]),
		"element type is kept, layout follows the operand")
}

func TestInferUnsupportedKind(t *testing.T) {
	src := tensorOf(blocked1D(1), F32, 128)
	_, f, b := newKernel(src)
	conv := b.Create(OpConvertLayout, []*Value{f.Entry().Arg(0)}, []Type{tensorOf(blocked1D(4), F32, 128)}, nil)

	assert.False(t, HasTypeInference(OpConvertLayout))
	_, err := InferResultTypes(conv)
	assert.Error(t, err)
}

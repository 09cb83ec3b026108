package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/testutil"
)

func TestFindCycles_None(t *testing.T) {
	m := compileFile(t, "loop.cue")
	assert.Empty(t, FindCycles(m.Func("kernel")))
}

func TestFindCycles_SelfLoop(t *testing.T) {
	k := testutil.NewKernel(testutil.Tensor(testutil.Blocked1D(1), 128))
	add := k.B.Create(ir.OpAdd, []*ir.Value{k.Arg(0), nil}, []ir.Type{k.Arg(0).Type()}, nil)
	add.SetOperand(1, add.Result(0))
	k.Return(add.Result(0))

	cycles := FindCycles(k.F)
	require.Len(t, cycles, 1)
	assert.Equal(t, []*ir.Instruction{add, add}, cycles[0])
	assert.Equal(t, add.String()+" -> "+add.String(), describeCycle(cycles[0]))
}

func TestFindCycles_TwoInstructions(t *testing.T) {
	m, err := CompileSource("cycle.cue", []byte(`
		funcs: [{
			name: "kernel"
			args: [{name: "x", type: "tensor<8xf32>"}]
			body: [
				{op: "add", operands: ["x", "b"], results: [{name: "a", type: "tensor<8xf32>"}]},
				{op: "exp", operands: ["a"], results: [{name: "b", type: "tensor<8xf32>"}]},
				{op: "return", operands: ["b"]},
			]
		}]
	`))
	require.NoError(t, err)

	cycles := FindCycles(m.Func("kernel"))
	require.Len(t, cycles, 1)
	cycle := cycles[0]
	require.Len(t, cycle, 3)
	assert.Same(t, cycle[0], cycle[2])
	kinds := []ir.OpKind{cycle[0].Kind, cycle[1].Kind}
	assert.ElementsMatch(t, []ir.OpKind{ir.OpAdd, ir.OpExp}, kinds)
}

func TestFindCycles_Deterministic(t *testing.T) {
	src := []byte(`
		funcs: [{
			name: "kernel"
			args: [{name: "x", type: "tensor<8xf32>"}]
			body: [
				{op: "add", operands: ["x", "d"], results: [{name: "a", type: "tensor<8xf32>"}]},
				{op: "exp", operands: ["a"], results: [{name: "b", type: "tensor<8xf32>"}]},
				{op: "add", operands: ["x", "c"], results: [{name: "c", type: "tensor<8xf32>"}]},
				{op: "exp", operands: ["b"], results: [{name: "d", type: "tensor<8xf32>"}]},
				{op: "return", operands: ["d"]},
			]
		}]
	`)
	var first []string
	for range 5 {
		m, err := CompileSource("cycle.cue", src)
		require.NoError(t, err)
		var got []string
		for _, c := range FindCycles(m.Func("kernel")) {
			got = append(got, describeCycle(c))
		}
		require.Len(t, got, 2)
		if first == nil {
			first = got
			continue
		}
		assert.Equal(t, first, got)
	}
}

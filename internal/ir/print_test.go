package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintHoistsLayoutAliases(t *testing.T) {
	m := buildConvertKernel()

	want := `#blocked0 = #blocked<{sizePerThread=[1], threadsPerWarp=[32], warpsPerCTA=[4], order=[0]}>
#blocked1 = #blocked<{sizePerThread=[4], threadsPerWarp=[32], warpsPerCTA=[4], order=[0]}>

module attributes {num_warps = 4} {
  func @kernel(%0: tensor<128xf32, #blocked0>) {
    %1 = convert_layout(%0) : (tensor<128xf32, #blocked0>) -> tensor<128xf32, #blocked1>
    return() : () -> ()
  }
}
`
	assert.Equal(t, want, Print(m))
}

func TestPrintNestedRegionsAndSliceParents(t *testing.T) {
	parent := blocked2D()
	src := tensorOf(parent, F32, 64, 32)
	m, f, b := newKernel(src)
	red := b.Create(OpReduce, []*Value{f.Entry().Arg(0)},
		[]Type{tensorOf(Sliced{Dim: 1, Parent: parent}, F32, 64)}, map[string]any{"axis": 1})
	lb := scalarConst(b, 0)
	loop := b.CreateFor(lb, lb, lb, []*Value{red.Result(0)})
	body := loop.Region(0).Blocks()[0]
	inner := NewBuilder(m)
	inner.SetInsertionPointToEnd(body)
	inner.Create(OpYield, []*Value{body.Arg(1)}, nil, nil)

	want := `#blocked0 = #blocked<{sizePerThread=[1,4], threadsPerWarp=[8,4], warpsPerCTA=[4,1], order=[1,0]}>
#slice0 = #slice<{dim=1, parent=#blocked0}>

module {
  func @kernel(%0: tensor<64x32xf32, #blocked0>) {
    %1 = reduce(%0) {axis = 1} : (tensor<64x32xf32, #blocked0>) -> tensor<64xf32, #slice0>
    %2 = constant() {value = 0} : () -> i32
    %3 = for(%2, %2, %2, %1) : (i32, i32, i32, tensor<64xf32, #slice0>) -> tensor<64xf32, #slice0> {
    ^bb0(%4: i32, %5: tensor<64xf32, #slice0>):
      yield(%5) : (tensor<64xf32, #slice0>) -> ()
    }
  }
}
`
	assert.Equal(t, want, Print(m))
}

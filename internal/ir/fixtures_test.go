package ir

func blocked1D(sizePerThread int) Blocked {
	return Blocked{
		SizePerThread:  []int{sizePerThread},
		ThreadsPerWarp: []int{32},
		WarpsPerCTA:    []int{4},
		Order:          []int{0},
	}
}

func blocked2D() Blocked {
	return Blocked{
		SizePerThread:  []int{1, 4},
		ThreadsPerWarp: []int{8, 4},
		WarpsPerCTA:    []int{4, 1},
		Order:          []int{1, 0},
	}
}

func tensorOf(l Layout, elem Type, shape ...int64) TensorType {
	return TensorType{Shape: shape, Elem: elem, Layout: l}
}

// newKernel returns a module with one function taking a single tensor
// argument and a builder positioned at the end of its entry block.
func newKernel(argType Type) (*Module, *Func, *Builder) {
	m := NewModule()
	f := m.NewFunc("kernel", argType)
	b := NewBuilder(m)
	b.SetInsertionPointToEnd(f.Entry())
	return m, f, b
}

func constant(b *Builder, t Type) *Value {
	return b.Create(OpConstant, nil, []Type{t}, map[string]any{"value": 0}).Result(0)
}

func scalarConst(b *Builder, n int) *Value {
	return b.Create(OpConstant, nil, []Type{I32}, map[string]any{"value": n}).Result(0)
}

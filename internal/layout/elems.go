package layout

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/roach88/relayout/internal/ir"
)

// ElemsPerThread returns how many elements of each dimension one lane holds
// when a tensor of the given shape is distributed by l. Blocked and matrix
// accumulator layouts and slices of them have a known distribution; version
// 3 accumulators also depend on the element type, see TensorElemsPerThread.
func ElemsPerThread(l ir.Layout, shape []int64) ([]int64, error) {
	return elemsPerThread(l, shape, nil)
}

// TensorElemsPerThread is ElemsPerThread for t's shape and element type
// under l.
func TensorElemsPerThread(t ir.TensorType, l ir.Layout) ([]int64, error) {
	return elemsPerThread(l, t.Shape, t.Elem)
}

func elemsPerThread(l ir.Layout, shape []int64, elem ir.Type) ([]int64, error) {
	switch x := l.(type) {
	case ir.Blocked:
		if len(shape) != x.Rank() || len(x.SizePerThread) != x.Rank() ||
			len(x.ThreadsPerWarp) != x.Rank() || len(x.WarpsPerCTA) != x.Rank() {
			return nil, errors.Errorf("blocked layout of rank %d does not fit shape %v", x.Rank(), shape)
		}
		elems := make([]int64, len(shape))
		for d, n := range shape {
			tile := int64(x.SizePerThread[d] * x.ThreadsPerWarp[d] * x.WarpsPerCTA[d])
			if tile <= 0 {
				return nil, errors.Errorf("blocked layout has an empty tile along dim %d", d)
			}
			elems[d] = int64(x.SizePerThread[d]) * ceilDiv(n, tile)
		}
		return elems, nil

	case ir.Sliced:
		if x.Dim < 0 || x.Dim > len(shape) {
			return nil, errors.Errorf("slice dim %d out of range for shape %v", x.Dim, shape)
		}
		padded := slices.Insert(slices.Clone(shape), x.Dim, int64(1))
		parent, err := elemsPerThread(x.Parent, padded, elem)
		if err != nil {
			return nil, errors.WithMessagef(err, "slice parent")
		}
		return slices.Delete(parent, x.Dim, x.Dim+1), nil

	case ir.MatrixAccumulate:
		if len(shape) != 2 || len(x.WarpsPerCTA) != 2 {
			return nil, errors.Errorf("matrix accumulator needs rank 2, got shape %v", shape)
		}
		scalar, _ := elem.(ir.ScalarType)
		instr, err := MatrixInstrShape(x.Version, shape, scalar)
		if err != nil {
			return nil, err
		}
		// One instruction tile of instr[0] x instr[1] is spread over a warp:
		// each lane holds instr[0]/8 rows and instr[1]/4 columns of it.
		rows := int64(instr[0]/8) * ceilDiv(shape[0], int64(instr[0]*x.WarpsPerCTA[0]))
		cols := int64(instr[1]/4) * ceilDiv(shape[1], int64(instr[1]*x.WarpsPerCTA[1]))
		return []int64{rows, cols}, nil

	case nil:
		return nil, errors.New("tensor has no layout")

	default:
		return nil, errors.Errorf("elements per thread unknown for %s layout", l.Kind())
	}
}

// TotalElemsPerThread returns the number of registers one lane needs to hold
// a tensor of the given shape under l.
func TotalElemsPerThread(l ir.Layout, shape []int64) (int64, error) {
	return product(ElemsPerThread(l, shape))
}

func product(elems []int64, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	total := int64(1)
	for _, n := range elems {
		total *= n
	}
	return total, nil
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 1
	}
	return (a + b - 1) / b
}

var (
	matrixV3FloatN = []int{256, 248, 240, 232, 224, 216, 208, 200, 192, 184, 176,
		168, 160, 152, 144, 136, 128, 120, 112, 104, 96, 88,
		80, 72, 64, 56, 48, 40, 32, 24, 16, 8}
	matrixV3IntN = []int{224, 208, 192, 176, 160, 144, 128, 112, 96, 80, 64, 48, 32,
		24, 16, 8}
)

// MatrixInstrShape returns the shape of one matrix-unit instruction for the
// given accumulator version. Version 3 picks the widest N that divides the
// second dimension; larger instructions are preferred.
func MatrixInstrShape(version int, shape []int64, elem ir.ScalarType) ([]int, error) {
	switch version {
	case 1:
		return []int{16, 16}, nil
	case 2:
		return []int{16, 8}, nil
	case 3:
		if len(shape) < 2 {
			return nil, errors.Errorf("matrix v3 needs a rank-2 shape, got %v", shape)
		}
		bits := elem.BitWidth()
		if bits == 0 {
			return nil, errors.Errorf("matrix v3: unknown element type %s", elem)
		}
		if shape[0]%64 != 0 || shape[1]%8 != 0 {
			return nil, errors.Errorf("matrix v3: shape %v not supported", shape)
		}
		var candidates []int
		switch elem.Elem {
		case "f8", "f16", "bf16", "f32":
			candidates = matrixV3FloatN
		case "i8":
			candidates = matrixV3IntN
		}
		for _, n := range candidates {
			if shape[1]%int64(n) == 0 {
				return []int{16, n, 256 / bits}, nil
			}
		}
		return nil, errors.Errorf("matrix v3: element type %s with shape %v not supported", elem, shape)
	default:
		return nil, errors.Errorf("matrix version %d not supported", version)
	}
}

// SharedFromBlocked returns the scratch-memory layout used to stage a
// blocked tensor: same dimension order, no swizzling.
func SharedFromBlocked(t ir.TensorType) (ir.Shared, error) {
	b, ok := t.Layout.(ir.Blocked)
	if !ok {
		return ir.Shared{}, errors.Errorf("shared layout needs a blocked tensor, got %s", t)
	}
	return ir.Shared{Vec: 1, PerPhase: 1, MaxPhase: 1, Order: slices.Clone(b.Order)}, nil
}

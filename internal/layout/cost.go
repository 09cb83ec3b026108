package layout

import (
	"github.com/roach88/relayout/internal/ir"
)

// Defaults used when a module carries no hardware attributes.
const (
	DefaultNumWarps       = 4
	DefaultThreadsPerWarp = 32
)

// HardwareConfig describes how many lane groups and lanes per group the
// target runs one program on.
type HardwareConfig struct {
	NumWarps       int
	ThreadsPerWarp int
}

// HardwareFromModule reads the num_warps and threads_per_warp module
// attributes.
func HardwareFromModule(m *ir.Module) HardwareConfig {
	return HardwareConfig{
		NumWarps:       m.IntAttr("num_warps", DefaultNumWarps),
		ThreadsPerWarp: m.IntAttr("threads_per_warp", DefaultThreadsPerWarp),
	}
}

// Lanes returns the total number of lanes.
func (h HardwareConfig) Lanes() int64 {
	return int64(h.NumWarps) * int64(h.ThreadsPerWarp)
}

// ResidencyPolicy reports whether a memory access touching numElements
// elements is cheap enough to duplicate.
type ResidencyPolicy func(numElements int64, hw HardwareConfig) bool

// FewerElementsThanLanes treats an access as cache resident when it has
// fewer elements than the hardware has lanes.
func FewerElementsThanLanes(numElements int64, hw HardwareConfig) bool {
	return numElements < hw.Lanes()
}

// CatPolicy reports whether a concatenation is expensive to produce directly
// in target.
type CatPolicy func(cat *ir.Instruction, target ir.Layout) bool

// FewerRegistersIsExpensive treats a concatenation as expensive when target
// gives each lane fewer elements than its current layout, since the data
// would have to travel through scratch memory. Unknown distributions are
// expensive.
func FewerRegistersIsExpensive(cat *ir.Instruction, target ir.Layout) bool {
	if cat.NumResults() == 0 {
		return true
	}
	tt, ok := ir.AsTensor(cat.Result(0).Type())
	if !ok {
		return true
	}
	current, err := product(TensorElemsPerThread(tt, tt.Layout))
	if err != nil {
		return true
	}
	next, err := product(TensorElemsPerThread(tt, target))
	if err != nil {
		return true
	}
	return next < current
}

// Classifier answers the two cost questions the simulators ask about an
// instruction under a candidate layout.
type Classifier struct {
	Hardware  HardwareConfig
	Residency ResidencyPolicy
	Cat       CatPolicy
}

// NewClassifier returns a classifier with the default policies.
func NewClassifier(hw HardwareConfig) *Classifier {
	return &Classifier{
		Hardware:  hw,
		Residency: FewerElementsThanLanes,
		Cat:       FewerRegistersIsExpensive,
	}
}

func (c *Classifier) residency() ResidencyPolicy {
	if c.Residency == nil {
		return FewerElementsThanLanes
	}
	return c.Residency
}

func (c *Classifier) cat() CatPolicy {
	if c.Cat == nil {
		return FewerRegistersIsExpensive
	}
	return c.Cat
}

// IsExpensive reports whether duplicating inst under target costs too much
// to be worth removing a conversion. A nil instruction is expensive.
func (c *Classifier) IsExpensive(inst *ir.Instruction, target ir.Layout) bool {
	if inst == nil {
		return true
	}
	switch inst.Kind {
	case ir.OpLoad, ir.OpStore:
		return c.isExpensiveMemoryAccess(inst)
	case ir.OpCat:
		return c.cat()(inst, target)
	case ir.OpExtractSlice, ir.OpAllocTensor, ir.OpInsertSliceAsync,
		ir.OpAtomicRMW, ir.OpAtomicCAS, ir.OpDot:
		return true
	case ir.OpFor, ir.OpWhile, ir.OpIf, ir.OpYield, ir.OpCondition:
		return true
	case ir.OpConvertLayout, ir.OpConstant, ir.OpMakeRange, ir.OpSplat, ir.OpBroadcast,
		ir.OpView, ir.OpExpandDims, ir.OpReduce,
		ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMax, ir.OpMin, ir.OpExp,
		ir.OpCmp, ir.OpSelect, ir.OpCast, ir.OpAddPtr,
		ir.OpReturn, ir.OpAssert, ir.OpPrint:
		return false
	default:
		return true
	}
}

// isExpensiveMemoryAccess: a single-value pointer is free to duplicate, and
// so is a tensor small enough to stay cache resident.
func (c *Classifier) isExpensiveMemoryAccess(inst *ir.Instruction) bool {
	if inst.NumOperands() == 0 {
		return true
	}
	ptr := inst.Operand(0).Type()
	if ir.IsTensorPointer(ptr) {
		return true
	}
	tt, ok := ir.AsTensor(ptr)
	if !ok {
		return false
	}
	n := tt.NumElements()
	if n == 1 {
		return false
	}
	return !c.residency()(n, c.Hardware)
}

// CanFold reports whether inst can produce its result directly in target,
// absorbing a pending conversion at no cost.
func (c *Classifier) CanFold(inst *ir.Instruction, target ir.Layout) bool {
	if inst == nil || inst.NumResults() == 0 {
		return false
	}
	switch inst.Kind {
	case ir.OpCat:
		return rankMatches(inst, target) && !c.cat()(inst, target)
	case ir.OpConvertLayout, ir.OpConstant, ir.OpMakeRange, ir.OpSplat, ir.OpView:
		return rankMatches(inst, target)
	default:
		return false
	}
}

func rankMatches(inst *ir.Instruction, target ir.Layout) bool {
	tt, ok := ir.AsTensor(inst.Result(0).Type())
	if !ok || target == nil {
		return false
	}
	return tt.Rank() == target.Rank()
}

package ir

import "fmt"

// OpKind identifies the operation an Instruction performs.
// The set is closed; every policy in the layout package switches over it.
type OpKind int

const (
	OpInvalid OpKind = iota

	// Layout and shape manipulation.
	OpConvertLayout
	OpConstant
	OpMakeRange
	OpSplat
	OpBroadcast
	OpView
	OpExpandDims
	OpReduce
	OpCat

	// Memory and re-partitioning.
	OpLoad
	OpStore
	OpExtractSlice
	OpAllocTensor
	OpInsertSliceAsync
	OpAtomicRMW
	OpAtomicCAS
	OpDot

	// Elementwise arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMax
	OpMin
	OpExp
	OpCmp
	OpSelect
	OpCast
	OpAddPtr

	// Control flow.
	OpFor
	OpWhile
	OpIf
	OpYield
	OpCondition
	OpReturn

	// Side-effecting diagnostics.
	OpAssert
	OpPrint

	opKindCount
)

var opNames = [...]string{
	OpInvalid:          "invalid",
	OpConvertLayout:    "convert_layout",
	OpConstant:         "constant",
	OpMakeRange:        "make_range",
	OpSplat:            "splat",
	OpBroadcast:        "broadcast",
	OpView:             "view",
	OpExpandDims:       "expand_dims",
	OpReduce:           "reduce",
	OpCat:              "cat",
	OpLoad:             "load",
	OpStore:            "store",
	OpExtractSlice:     "extract_slice",
	OpAllocTensor:      "alloc_tensor",
	OpInsertSliceAsync: "insert_slice_async",
	OpAtomicRMW:        "atomic_rmw",
	OpAtomicCAS:        "atomic_cas",
	OpDot:              "dot",
	OpAdd:              "add",
	OpSub:              "sub",
	OpMul:              "mul",
	OpDiv:              "div",
	OpMax:              "max",
	OpMin:              "min",
	OpExp:              "exp",
	OpCmp:              "cmp",
	OpSelect:           "select",
	OpCast:             "cast",
	OpAddPtr:           "addptr",
	OpFor:              "for",
	OpWhile:            "while",
	OpIf:               "if",
	OpYield:            "yield",
	OpCondition:        "condition",
	OpReturn:           "return",
	OpAssert:           "assert",
	OpPrint:            "print",
}

// String returns the printed name of the kind.
func (k OpKind) String() string {
	if k < 0 || k >= opKindCount {
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
	return opNames[k]
}

// ParseOpKind maps a printed name back to its kind.
func ParseOpKind(name string) (OpKind, bool) {
	for k := OpInvalid + 1; k < opKindCount; k++ {
		if opNames[k] == name {
			return k, true
		}
	}
	return OpInvalid, false
}

// AllOpKinds returns every valid kind in declaration order.
func AllOpKinds() []OpKind {
	kinds := make([]OpKind, 0, int(opKindCount)-1)
	for k := OpInvalid + 1; k < opKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Trait is a bitset of static properties of an OpKind.
type Trait uint32

const (
	// TraitElementwise marks ops that apply a scalar function per element.
	TraitElementwise Trait = 1 << iota
	// TraitSameOperandsAndResultLayout marks ops whose tensor operands and
	// results always share one layout.
	TraitSameOperandsAndResultLayout
	// TraitTerminator marks ops that end a block.
	TraitTerminator
	// TraitPure marks ops without side effects that may be erased when unused.
	TraitPure
	// TraitRegions marks control constructs owning nested regions.
	TraitRegions
	// TraitInferType marks ops that can infer result types from operands.
	TraitInferType
)

const elementwise = TraitElementwise | TraitSameOperandsAndResultLayout | TraitPure | TraitInferType

var opTraits = [...]Trait{
	OpConvertLayout:    TraitPure,
	OpConstant:         TraitPure,
	OpMakeRange:        TraitPure,
	OpSplat:            TraitPure,
	OpBroadcast:        TraitSameOperandsAndResultLayout | TraitPure | TraitInferType,
	OpView:             TraitPure,
	OpExpandDims:       TraitPure | TraitInferType,
	OpReduce:           TraitPure | TraitInferType,
	OpCat:              TraitPure,
	OpLoad:             TraitSameOperandsAndResultLayout,
	OpStore:            TraitSameOperandsAndResultLayout,
	OpExtractSlice:     TraitPure,
	OpAllocTensor:      0,
	OpInsertSliceAsync: 0,
	OpAtomicRMW:        0,
	OpAtomicCAS:        0,
	OpDot:              TraitPure,
	OpAdd:              elementwise,
	OpSub:              elementwise,
	OpMul:              elementwise,
	OpDiv:              elementwise,
	OpMax:              elementwise,
	OpMin:              elementwise,
	OpExp:              elementwise,
	OpCmp:              elementwise,
	OpSelect:           elementwise,
	OpCast:             elementwise,
	OpAddPtr:           elementwise,
	OpFor:              TraitRegions,
	OpWhile:            TraitRegions,
	OpIf:               TraitRegions,
	OpYield:            TraitTerminator,
	OpCondition:        TraitTerminator,
	OpReturn:           TraitTerminator,
	OpAssert:           0,
	OpPrint:            0,
}

// Traits returns the static trait set of k.
func (k OpKind) Traits() Trait {
	if k <= OpInvalid || k >= opKindCount {
		return 0
	}
	return opTraits[k]
}

// Has reports whether k carries every trait in t.
func (k OpKind) Has(t Trait) bool {
	return k.Traits()&t == t
}

// IsElementwise reports whether k is an elementwise op.
func (k OpKind) IsElementwise() bool { return k.Has(TraitElementwise) }

// IsTerminator reports whether k ends a block.
func (k OpKind) IsTerminator() bool { return k.Has(TraitTerminator) }

// IsPure reports whether k has no side effects.
func (k OpKind) IsPure() bool { return k.Has(TraitPure) }

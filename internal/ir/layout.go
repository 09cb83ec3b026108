package ir

import (
	"fmt"
	"slices"
	"strings"
)

// LayoutKind categorizes layout descriptors.
type LayoutKind int

const (
	// LayoutBlocked distributes each dimension explicitly over lanes and groups.
	LayoutBlocked LayoutKind = iota + 1
	// LayoutSliced is a parent layout with one dimension removed.
	LayoutSliced
	// LayoutMatrixAccumulate is the native layout of the matrix unit.
	LayoutMatrixAccumulate
	// LayoutDotOperand is the operand-side layout of a matrix instruction.
	LayoutDotOperand
	// LayoutShared is a scratch-memory layout.
	LayoutShared
)

// String returns the short name used in printed IR.
func (k LayoutKind) String() string {
	switch k {
	case LayoutBlocked:
		return "blocked"
	case LayoutSliced:
		return "slice"
	case LayoutMatrixAccumulate:
		return "mma"
	case LayoutDotOperand:
		return "dot_op"
	case LayoutShared:
		return "shared"
	default:
		return fmt.Sprintf("LayoutKind(%d)", int(k))
	}
}

// Layout describes how the elements of a tensor map onto execution lanes or
// memory. The set of implementations is closed: Blocked, Sliced,
// MatrixAccumulate, DotOperand and Shared.
//
// Layouts are values. Compare them with LayoutEqual, never with ==.
type Layout interface {
	// Kind identifies the variant.
	Kind() LayoutKind
	// Rank is the number of tensor dimensions the layout distributes.
	Rank() int
	// String renders the layout the way the printer shows it.
	String() string

	// object returns the canonical JSON object used for LayoutKey.
	object() map[string]any
	// format renders the layout, naming nested parents with name.
	format(name func(Layout) string) string
}

// Blocked distributes every dimension over per-thread elements, lanes in a
// group and groups. Order lists dimensions from fastest to slowest varying.
type Blocked struct {
	SizePerThread  []int
	ThreadsPerWarp []int
	WarpsPerCTA    []int
	Order          []int
}

// Sliced is Parent with dimension Dim removed.
type Sliced struct {
	Dim    int
	Parent Layout
}

// MatrixAccumulate is the hardware matrix-unit accumulator layout.
type MatrixAccumulate struct {
	Version     int
	WarpsPerCTA []int
}

// DotOperand is the layout of operand OpIdx (0 = A, 1 = B) of a matrix
// instruction whose result has layout Parent.
type DotOperand struct {
	OpIdx  int
	Parent Layout
}

// Shared is a scratch-memory layout with swizzling parameters.
type Shared struct {
	Vec      int
	PerPhase int
	MaxPhase int
	Order    []int
}

func (Blocked) Kind() LayoutKind          { return LayoutBlocked }
func (Sliced) Kind() LayoutKind           { return LayoutSliced }
func (MatrixAccumulate) Kind() LayoutKind { return LayoutMatrixAccumulate }
func (DotOperand) Kind() LayoutKind       { return LayoutDotOperand }
func (Shared) Kind() LayoutKind           { return LayoutShared }

func (b Blocked) Rank() int { return len(b.Order) }

func (s Sliced) Rank() int {
	if s.Parent == nil {
		return 0
	}
	return s.Parent.Rank() - 1
}

func (m MatrixAccumulate) Rank() int {
	if len(m.WarpsPerCTA) > 0 {
		return len(m.WarpsPerCTA)
	}
	return 2
}

func (d DotOperand) Rank() int {
	if d.Parent == nil {
		return 2
	}
	return d.Parent.Rank()
}

func (s Shared) Rank() int { return len(s.Order) }

func (b Blocked) String() string          { return b.format(layoutString) }
func (s Sliced) String() string           { return s.format(layoutString) }
func (m MatrixAccumulate) String() string { return m.format(layoutString) }
func (d DotOperand) String() string       { return d.format(layoutString) }
func (s Shared) String() string           { return s.format(layoutString) }

func (b Blocked) format(func(Layout) string) string {
	return fmt.Sprintf("#blocked<{sizePerThread=%s, threadsPerWarp=%s, warpsPerCTA=%s, order=%s}>",
		intList(b.SizePerThread), intList(b.ThreadsPerWarp), intList(b.WarpsPerCTA), intList(b.Order))
}

func (s Sliced) format(name func(Layout) string) string {
	return fmt.Sprintf("#slice<{dim=%d, parent=%s}>", s.Dim, name(s.Parent))
}

func (m MatrixAccumulate) format(func(Layout) string) string {
	return fmt.Sprintf("#mma<{version=%d, warpsPerCTA=%s}>", m.Version, intList(m.WarpsPerCTA))
}

func (d DotOperand) format(name func(Layout) string) string {
	return fmt.Sprintf("#dot_op<{opIdx=%d, parent=%s}>", d.OpIdx, name(d.Parent))
}

func (s Shared) format(func(Layout) string) string {
	return fmt.Sprintf("#shared<{vec=%d, perPhase=%d, maxPhase=%d, order=%s}>",
		s.Vec, s.PerPhase, s.MaxPhase, intList(s.Order))
}

func (b Blocked) object() map[string]any {
	return map[string]any{
		"kind":             b.Kind().String(),
		"size_per_thread":  anyInts(b.SizePerThread),
		"threads_per_warp": anyInts(b.ThreadsPerWarp),
		"warps_per_cta":    anyInts(b.WarpsPerCTA),
		"order":            anyInts(b.Order),
	}
}

func (s Sliced) object() map[string]any {
	obj := map[string]any{"kind": s.Kind().String(), "dim": s.Dim}
	if s.Parent != nil {
		obj["parent"] = s.Parent.object()
	}
	return obj
}

func (m MatrixAccumulate) object() map[string]any {
	return map[string]any{
		"kind":          m.Kind().String(),
		"version":       m.Version,
		"warps_per_cta": anyInts(m.WarpsPerCTA),
	}
}

func (d DotOperand) object() map[string]any {
	obj := map[string]any{"kind": d.Kind().String(), "op_idx": d.OpIdx}
	if d.Parent != nil {
		obj["parent"] = d.Parent.object()
	}
	return obj
}

func (s Shared) object() map[string]any {
	return map[string]any{
		"kind":      s.Kind().String(),
		"vec":       s.Vec,
		"per_phase": s.PerPhase,
		"max_phase": s.MaxPhase,
		"order":     anyInts(s.Order),
	}
}

// LayoutEqual reports whether two layouts are structurally identical.
// Two nil layouts are equal; a nil and a non-nil layout are not.
func LayoutEqual(a, b Layout) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Blocked:
		y, ok := b.(Blocked)
		return ok &&
			slices.Equal(x.SizePerThread, y.SizePerThread) &&
			slices.Equal(x.ThreadsPerWarp, y.ThreadsPerWarp) &&
			slices.Equal(x.WarpsPerCTA, y.WarpsPerCTA) &&
			slices.Equal(x.Order, y.Order)
	case Sliced:
		y, ok := b.(Sliced)
		return ok && x.Dim == y.Dim && LayoutEqual(x.Parent, y.Parent)
	case MatrixAccumulate:
		y, ok := b.(MatrixAccumulate)
		return ok && x.Version == y.Version && slices.Equal(x.WarpsPerCTA, y.WarpsPerCTA)
	case DotOperand:
		y, ok := b.(DotOperand)
		return ok && x.OpIdx == y.OpIdx && LayoutEqual(x.Parent, y.Parent)
	case Shared:
		y, ok := b.(Shared)
		return ok && x.Vec == y.Vec && x.PerPhase == y.PerPhase &&
			x.MaxPhase == y.MaxPhase && slices.Equal(x.Order, y.Order)
	default:
		return false
	}
}

// LayoutKey returns a canonical string for l, suitable as a map key.
// Structurally equal layouts have identical keys. A nil layout maps to "".
func LayoutKey(l Layout) string {
	if l == nil {
		return ""
	}
	data, err := MarshalCanonical(l.object())
	if err != nil {
		// object() only produces strings, ints and nested objects.
		panic(fmt.Sprintf("ir: canonical layout encoding failed: %v", err))
	}
	return string(data)
}

func layoutString(l Layout) string {
	if l == nil {
		return "none"
	}
	return l.String()
}

func intList(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func anyInts(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Type is the type of a Value. The set of implementations is closed:
// ScalarType, PointerType and TensorType.
type Type interface {
	String() string
	isType()
}

// ScalarType is a primitive element type such as f32, f16, i32 or i1.
type ScalarType struct {
	Elem string
}

// PointerType is a pointer to Pointee. A pointer whose pointee is a tensor
// is a tensor pointer (block pointer).
type PointerType struct {
	Pointee Type
}

// TensorType is a shaped value with an element type and a layout descriptor.
// Layout may be nil for tensors that have not been assigned a layout yet.
type TensorType struct {
	Shape  []int64
	Elem   Type
	Layout Layout
}

func (ScalarType) isType()  {}
func (PointerType) isType() {}
func (TensorType) isType()  {}

// Common scalar types.
var (
	F16  = ScalarType{Elem: "f16"}
	BF16 = ScalarType{Elem: "bf16"}
	F32  = ScalarType{Elem: "f32"}
	F64  = ScalarType{Elem: "f64"}
	I1   = ScalarType{Elem: "i1"}
	I8   = ScalarType{Elem: "i8"}
	I32  = ScalarType{Elem: "i32"}
	I64  = ScalarType{Elem: "i64"}
)

var scalarBitWidths = map[string]int{
	"i1": 1, "i8": 8, "i16": 16, "i32": 32, "i64": 64,
	"f8": 8, "f16": 16, "bf16": 16, "f32": 32, "tf32": 32, "f64": 64,
}

// IsKnownScalar reports whether name is a recognized scalar element type.
func IsKnownScalar(name string) bool {
	_, ok := scalarBitWidths[name]
	return ok
}

// BitWidth returns the width of the scalar in bits, or 0 when unknown.
func (s ScalarType) BitWidth() int {
	return scalarBitWidths[s.Elem]
}

func (s ScalarType) String() string { return s.Elem }

func (p PointerType) String() string {
	if p.Pointee == nil {
		return "!ptr<?>"
	}
	return "!ptr<" + p.Pointee.String() + ">"
}

func (t TensorType) String() string {
	return t.format(layoutString)
}

func (t TensorType) format(layoutName func(Layout) string) string {
	var sb strings.Builder
	sb.WriteString("tensor<")
	for _, d := range t.Shape {
		fmt.Fprintf(&sb, "%dx", d)
	}
	if t.Elem == nil {
		sb.WriteString("?")
	} else {
		sb.WriteString(t.Elem.String())
	}
	if t.Layout != nil {
		sb.WriteString(", ")
		sb.WriteString(layoutName(t.Layout))
	}
	sb.WriteString(">")
	return sb.String()
}

// Rank returns the number of dimensions.
func (t TensorType) Rank() int { return len(t.Shape) }

// NumElements returns the product of the dimensions.
func (t TensorType) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// WithLayout returns a copy of t with its layout replaced.
func (t TensorType) WithLayout(l Layout) TensorType {
	return TensorType{Shape: slices.Clone(t.Shape), Elem: t.Elem, Layout: l}
}

// TypeEqual reports whether two types are structurally identical,
// including tensor layouts.
func TypeEqual(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case ScalarType:
		y, ok := b.(ScalarType)
		return ok && x.Elem == y.Elem
	case PointerType:
		y, ok := b.(PointerType)
		return ok && TypeEqual(x.Pointee, y.Pointee)
	case TensorType:
		y, ok := b.(TensorType)
		return ok && slices.Equal(x.Shape, y.Shape) &&
			TypeEqual(x.Elem, y.Elem) && LayoutEqual(x.Layout, y.Layout)
	default:
		return false
	}
}

// AsTensor returns t as a TensorType when it is one.
func AsTensor(t Type) (TensorType, bool) {
	tt, ok := t.(TensorType)
	return tt, ok
}

// IsTensor reports whether t is a tensor type.
func IsTensor(t Type) bool {
	_, ok := t.(TensorType)
	return ok
}

// IsTensorPointer reports whether t is a pointer whose pointee is a tensor.
func IsTensorPointer(t Type) bool {
	p, ok := t.(PointerType)
	if !ok {
		return false
	}
	return IsTensor(p.Pointee)
}

// LayoutOf returns the layout of a tensor type, or nil for any other type.
func LayoutOf(t Type) Layout {
	if tt, ok := t.(TensorType); ok {
		return tt.Layout
	}
	return nil
}

// WithLayout returns t with its layout replaced. Non-tensor types are
// returned unchanged.
func WithLayout(t Type, l Layout) Type {
	tt, ok := t.(TensorType)
	if !ok {
		return t
	}
	return tt.WithLayout(l)
}

package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/relayout/internal/ir"
)

// ParseType reads a type in the printer's notation: a scalar such as
// "f32", a pointer "!ptr<T>", or a tensor "tensor<64x32xT>" optionally
// followed by ", #name" naming one of layouts.
func ParseType(s string, layouts map[string]ir.Layout) (ir.Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "!ptr<") && strings.HasSuffix(s, ">"):
		pointee, err := ParseType(s[len("!ptr<"):len(s)-1], layouts)
		if err != nil {
			return nil, err
		}
		return ir.PointerType{Pointee: pointee}, nil

	case strings.HasPrefix(s, "tensor<") && strings.HasSuffix(s, ">"):
		return parseTensor(s[len("tensor<"):len(s)-1], layouts)

	case ir.IsKnownScalar(s):
		return ir.ScalarType{Elem: s}, nil

	default:
		return nil, fmt.Errorf("unknown type %q", s)
	}
}

func parseTensor(body string, layouts map[string]ir.Layout) (ir.Type, error) {
	var layout ir.Layout
	if comma := topLevelComma(body); comma >= 0 {
		name := strings.TrimSpace(body[comma+1:])
		if !strings.HasPrefix(name, "#") {
			return nil, fmt.Errorf("tensor layout %q must be written #name", name)
		}
		l, ok := layouts[name[1:]]
		if !ok {
			return nil, fmt.Errorf("undefined layout %q", name)
		}
		layout = l
		body = body[:comma]
	}

	var shape []int64
	rest := strings.TrimSpace(body)
	for {
		x := strings.IndexByte(rest, 'x')
		if x <= 0 {
			break
		}
		d, err := strconv.ParseInt(rest[:x], 10, 64)
		if err != nil {
			break
		}
		if d <= 0 {
			return nil, fmt.Errorf("tensor dimension %d must be positive", d)
		}
		shape = append(shape, d)
		rest = rest[x+1:]
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("tensor<%s> has no shape", body)
	}
	elem, err := ParseType(rest, layouts)
	if err != nil {
		return nil, fmt.Errorf("tensor element: %w", err)
	}
	if ir.IsTensor(elem) {
		return nil, fmt.Errorf("tensor element cannot be a tensor")
	}
	return ir.TensorType{Shape: shape, Elem: elem, Layout: layout}, nil
}

// topLevelComma returns the index of the last comma outside angle brackets.
func topLevelComma(s string) int {
	depth, at := 0, -1
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				at = i
			}
		}
	}
	return at
}

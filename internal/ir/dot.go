package ir

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// NodeInfo holds Graphviz attributes for one node.
type NodeInfo map[string]string

// GraphDumper renders a function as a Graphviz digraph: values are boxes,
// instructions are ellipses, and edges run operand -> instruction -> result.
// OnValue and OnOperation customize node attributes; a missing "label"
// attribute is filled in automatically.
type GraphDumper struct {
	OnValue     func(v *Value) NodeInfo
	OnOperation func(inst *Instruction) NodeInfo
}

// NewLayoutMarker returns a dumper that colours tensor values by layout kind.
func NewLayoutMarker() *GraphDumper {
	return &GraphDumper{
		OnValue: func(v *Value) NodeInfo {
			return NodeInfo{"shape": "box", "style": "filled", "fillcolor": LayoutColor(v.Type())}
		},
	}
}

// LayoutColor returns the marker colour for a value of type t.
func LayoutColor(t Type) string {
	tt, ok := AsTensor(t)
	if !ok || tt.Layout == nil {
		return "white"
	}
	switch tt.Layout.Kind() {
	case LayoutBlocked:
		return "green"
	case LayoutSliced:
		return "yellow"
	case LayoutMatrixAccumulate:
		return "lightslateblue"
	case LayoutDotOperand:
		return "orange"
	case LayoutShared:
		return "orangered"
	default:
		return "white"
	}
}

func (d *GraphDumper) valueInfo(v *Value) NodeInfo {
	if d.OnValue != nil {
		return d.OnValue(v)
	}
	return NodeInfo{"shape": "box", "style": "filled", "fillcolor": "white"}
}

func (d *GraphDumper) operationInfo(inst *Instruction) NodeInfo {
	if d.OnOperation != nil {
		return d.OnOperation(inst)
	}
	return NodeInfo{"shape": "ellipse", "style": "filled", "fillcolor": "white"}
}

// Dump renders f. Node order follows a post-order walk.
func (d *GraphDumper) Dump(f *Func) string {
	var values []*Value
	seen := make(map[*Value]bool)
	addValue := func(v *Value) {
		if v != nil && !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	var ops []*Instruction
	f.Walk(func(inst *Instruction) {
		ops = append(ops, inst)
		for _, o := range inst.operands {
			addValue(o.value)
		}
		for _, r := range inst.results {
			addValue(r)
		}
	})

	var sb strings.Builder
	sb.WriteString("// Generated by relayout GraphDumper\n\ndigraph {\n")
	sb.WriteString("    // Value Nodes\n")
	for _, v := range values {
		info := d.valueInfo(v)
		if _, ok := info["label"]; !ok {
			info = withLabel(info, valueLabel(v))
		}
		fmt.Fprintf(&sb, "    %s\n", emitNode(valueID(v), info))
	}
	sb.WriteString("\n    // Operation Nodes\n")
	for _, inst := range ops {
		info := d.operationInfo(inst)
		if _, ok := info["label"]; !ok {
			info = withLabel(info, inst.Kind.String())
		}
		fmt.Fprintf(&sb, "    %s\n", emitNode(opID(inst), info))
	}
	sb.WriteString("\n    // Edges\n")
	for _, inst := range ops {
		for _, o := range inst.operands {
			if o.value != nil {
				fmt.Fprintf(&sb, "    %q -> %q;\n", valueID(o.value), opID(inst))
			}
		}
		for _, r := range inst.results {
			fmt.Fprintf(&sb, "    %q -> %q;\n", opID(inst), valueID(r))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// DumpToFile writes Dump(f) to path.
func (d *GraphDumper) DumpToFile(f *Func, path string) error {
	return os.WriteFile(path, []byte(d.Dump(f)), 0o644)
}

func withLabel(info NodeInfo, label string) NodeInfo {
	out := make(NodeInfo, len(info)+1)
	for k, v := range info {
		out[k] = v
	}
	out["label"] = label
	return out
}

func valueID(v *Value) string       { return fmt.Sprintf("v%d", v.id) }
func opID(inst *Instruction) string { return fmt.Sprintf("op%d", inst.id) }

func valueLabel(v *Value) string {
	shape := "[]"
	if tt, ok := AsTensor(v.Type()); ok {
		dims := make([]string, len(tt.Shape))
		for idx, n := range tt.Shape {
			dims[idx] = fmt.Sprintf("%d", n)
		}
		shape = "[" + strings.Join(dims, ", ") + "]"
	}
	if v.IsBlockArg() {
		return fmt.Sprintf("BlockArg%d %s", v.ArgNumber(), shape)
	}
	return shape
}

func emitNode(id string, info NodeInfo) string {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]string, len(keys))
	for idx, k := range keys {
		attrs[idx] = fmt.Sprintf("%s = %q", k, info[k])
	}
	return fmt.Sprintf("%q [%s];", id, strings.Join(attrs, ", "))
}

package ir

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Print renders m in a deterministic textual form. Layouts are hoisted into
// numbered aliases in order of first appearance and values are numbered per
// function in textual order.
func Print(m *Module) string {
	var sb strings.Builder
	_ = Fprint(&sb, m)
	return sb.String()
}

// Fprint writes the textual form of m to w.
func Fprint(w io.Writer, m *Module) error {
	p := newPrinter(m)
	var sb strings.Builder
	for idx, l := range p.layouts {
		fmt.Fprintf(&sb, "%s = %s\n", p.aliases[idx], l.format(p.layoutName))
	}
	if len(p.layouts) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("module")
	if len(m.Attrs) > 0 {
		sb.WriteString(" attributes ")
		sb.WriteString(formatAttrs(m.Attrs))
	}
	sb.WriteString(" {\n")
	for _, f := range m.Funcs {
		p.printFunc(&sb, f)
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// PrintFunc renders a single function, aliases included.
func PrintFunc(f *Func) string {
	m := &Module{Funcs: []*Func{f}}
	p := newPrinter(m)
	var sb strings.Builder
	for idx, l := range p.layouts {
		fmt.Fprintf(&sb, "%s = %s\n", p.aliases[idx], l.format(p.layoutName))
	}
	p.printFunc(&sb, f)
	return sb.String()
}

type printer struct {
	layouts []Layout
	aliases []string
	byKey   map[string]int
	names   map[*Value]int
}

func newPrinter(m *Module) *printer {
	p := &printer{byKey: make(map[string]int)}
	perKind := make(map[LayoutKind]int)
	var register func(l Layout)
	register = func(l Layout) {
		if l == nil {
			return
		}
		key := LayoutKey(l)
		if _, ok := p.byKey[key]; ok {
			return
		}
		switch x := l.(type) {
		case Sliced:
			register(x.Parent)
		case DotOperand:
			register(x.Parent)
		}
		p.byKey[key] = len(p.layouts)
		p.layouts = append(p.layouts, l)
		p.aliases = append(p.aliases, fmt.Sprintf("#%s%d", l.Kind(), perKind[l.Kind()]))
		perKind[l.Kind()]++
	}
	visitType := func(t Type) { register(LayoutOf(t)) }
	for _, f := range m.Funcs {
		for _, a := range f.Entry().args {
			visitType(a.typ)
		}
		WalkRegion(f.Body, PreOrder, func(inst *Instruction) {
			for _, r := range inst.results {
				visitType(r.typ)
			}
			for _, r := range inst.regions {
				for _, b := range r.blocks {
					for _, a := range b.args {
						visitType(a.typ)
					}
				}
			}
		})
	}
	return p
}

func (p *printer) layoutName(l Layout) string {
	if l == nil {
		return "none"
	}
	if idx, ok := p.byKey[LayoutKey(l)]; ok {
		return p.aliases[idx]
	}
	return l.format(p.layoutName)
}

func (p *printer) typeName(t Type) string {
	if t == nil {
		return "?"
	}
	if tt, ok := t.(TensorType); ok {
		return tt.format(p.layoutName)
	}
	return t.String()
}

func (p *printer) valueName(v *Value) string {
	if v == nil {
		return "%<null>"
	}
	n, ok := p.names[v]
	if !ok {
		n = len(p.names)
		p.names[v] = n
	}
	return fmt.Sprintf("%%%d", n)
}

func (p *printer) printFunc(sb *strings.Builder, f *Func) {
	p.names = make(map[*Value]int)
	entry := f.Entry()
	args := make([]string, len(entry.args))
	for idx, a := range entry.args {
		args[idx] = p.valueName(a) + ": " + p.typeName(a.typ)
	}
	fmt.Fprintf(sb, "  func @%s(%s) {\n", f.Name, strings.Join(args, ", "))
	for _, inst := range entry.instrs {
		p.printInstruction(sb, inst, 2)
	}
	sb.WriteString("  }\n")
}

func (p *printer) printInstruction(sb *strings.Builder, inst *Instruction, depth int) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent)
	if len(inst.results) > 0 {
		names := make([]string, len(inst.results))
		for idx, r := range inst.results {
			names[idx] = p.valueName(r)
		}
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(" = ")
	}
	operands := make([]string, len(inst.operands))
	operandTypes := make([]string, len(inst.operands))
	for idx, o := range inst.operands {
		operands[idx] = p.valueName(o.value)
		if o.value != nil {
			operandTypes[idx] = p.typeName(o.value.typ)
		}
	}
	fmt.Fprintf(sb, "%s(%s)", inst.Kind, strings.Join(operands, ", "))
	if len(inst.Attrs) > 0 {
		sb.WriteString(" ")
		sb.WriteString(formatAttrs(inst.Attrs))
	}
	resultTypes := make([]string, len(inst.results))
	for idx, r := range inst.results {
		resultTypes[idx] = p.typeName(r.typ)
	}
	fmt.Fprintf(sb, " : (%s) -> ", strings.Join(operandTypes, ", "))
	if len(resultTypes) == 1 {
		sb.WriteString(resultTypes[0])
	} else {
		fmt.Fprintf(sb, "(%s)", strings.Join(resultTypes, ", "))
	}
	for _, r := range inst.regions {
		sb.WriteString(" {\n")
		for bi, blk := range r.blocks {
			args := make([]string, len(blk.args))
			for idx, a := range blk.args {
				args[idx] = p.valueName(a) + ": " + p.typeName(a.typ)
			}
			fmt.Fprintf(sb, "%s^bb%d(%s):\n", indent, bi, strings.Join(args, ", "))
			for _, child := range blk.instrs {
				p.printInstruction(sb, child, depth+1)
			}
		}
		sb.WriteString(indent)
		sb.WriteString("}")
	}
	sb.WriteString("\n")
}

func formatAttrs(attrs map[string]any) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for idx, k := range keys {
		parts[idx] = k + " = " + formatAttr(attrs[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatAttr(a any) string {
	switch v := a.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []int:
		return intList(v)
	case []int64:
		parts := make([]string, len(v))
		for idx, n := range v {
			parts[idx] = fmt.Sprintf("%d", n)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

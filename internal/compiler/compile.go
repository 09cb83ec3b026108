package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relayout/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// CompileError is a compilation error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

// schema returns the #Module definition in ctx.
func schema(ctx *cue.Context) (cue.Value, error) {
	s := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := s.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile embedded schema: %w", err)
	}
	return s.LookupPath(cue.ParsePath("#Module")), nil
}

// Graph is a compiled graph description: the module and the named layouts
// it declared, so callers can refer to layouts by name.
type Graph struct {
	Module  *ir.Module
	Layouts map[string]ir.Layout
}

// Layout returns the layout declared as name, with or without the leading
// '#'.
func (g *Graph) Layout(name string) (ir.Layout, bool) {
	if len(name) > 0 && name[0] == '#' {
		name = name[1:]
	}
	l, ok := g.Layouts[name]
	return l, ok
}

// CompileSource compiles a graph description held in memory. filename is
// used for positions only.
func CompileSource(filename string, src []byte) (*ir.Module, error) {
	g, err := CompileGraphSource(filename, src)
	if err != nil {
		return nil, err
	}
	return g.Module, nil
}

// CompileGraphSource is CompileSource keeping the named layouts.
func CompileGraphSource(filename string, src []byte) (*Graph, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return CompileGraph(v)
}

// Compile builds a module from a CUE value holding a graph description.
func Compile(v cue.Value) (*ir.Module, error) {
	g, err := CompileGraph(v)
	if err != nil {
		return nil, err
	}
	return g.Module, nil
}

// CompileGraph is Compile keeping the named layouts.
func CompileGraph(v cue.Value) (*Graph, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	def, err := schema(v.Context())
	if err != nil {
		return nil, err
	}
	u := def.Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	m := ir.NewModule()
	if err := compileAttrs(u.LookupPath(cue.ParsePath("attrs")), m.Attrs); err != nil {
		return nil, err
	}
	layouts, err := compileLayouts(u.LookupPath(cue.ParsePath("layouts")))
	if err != nil {
		return nil, err
	}

	iter, err := u.LookupPath(cue.ParsePath("funcs")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		if err := compileFunc(m, layouts, iter.Value()); err != nil {
			return nil, err
		}
	}
	return &Graph{Module: m, Layouts: layouts}, nil
}

// compileAttrs copies integer and string attributes into dst.
func compileAttrs(v cue.Value, dst map[string]any) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		val := iter.Value()
		switch val.Kind() {
		case cue.IntKind:
			n, err := val.Int64()
			if err != nil {
				return formatCUEError(err)
			}
			dst[iter.Label()] = int(n)
		case cue.StringKind:
			s, err := val.String()
			if err != nil {
				return formatCUEError(err)
			}
			dst[iter.Label()] = s
		default:
			return &CompileError{
				Field:   "attrs." + iter.Label(),
				Message: fmt.Sprintf("unsupported attribute kind %v", val.Kind()),
				Pos:     val.Pos(),
			}
		}
	}
	return nil
}

// pendingOperands are the operand names of inst, resolved once every value
// of the function is known.
type pendingOperands struct {
	inst  *ir.Instruction
	names []string
	pos   []token.Pos
}

type funcCompiler struct {
	module  *ir.Module
	layouts map[string]ir.Layout
	values  map[string]*ir.Value
	pending []pendingOperands
}

func compileFunc(m *ir.Module, layouts map[string]ir.Layout, v cue.Value) error {
	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return formatCUEError(err)
	}
	if m.Func(name) != nil {
		return &CompileError{Field: "funcs", Message: fmt.Sprintf("function %q defined twice", name), Pos: v.Pos()}
	}

	fc := &funcCompiler{module: m, layouts: layouts, values: make(map[string]*ir.Value)}
	argVals, argTypes, err := fc.compileValues(v.LookupPath(cue.ParsePath("args")))
	if err != nil {
		return err
	}
	f := m.NewFunc(name, argTypes...)
	if err := fc.bind(f.Entry().Args(), argVals); err != nil {
		return err
	}

	b := ir.NewBuilder(m)
	b.SetInsertionPointToEnd(f.Entry())
	if err := fc.compileBody(b, v.LookupPath(cue.ParsePath("body"))); err != nil {
		return fmt.Errorf("func %s: %w", name, err)
	}
	if err := fc.resolve(); err != nil {
		return fmt.Errorf("func %s: %w", name, err)
	}
	return nil
}

// compileValues reads a list of {name, type} entries.
func (fc *funcCompiler) compileValues(v cue.Value) ([]cue.Value, []ir.Type, error) {
	if !v.Exists() {
		return nil, nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}
	var vals []cue.Value
	var types []ir.Type
	for iter.Next() {
		entry := iter.Value()
		spelled, err := entry.LookupPath(cue.ParsePath("type")).String()
		if err != nil {
			return nil, nil, formatCUEError(err)
		}
		t, err := ParseType(spelled, fc.layouts)
		if err != nil {
			return nil, nil, &CompileError{Field: "type", Message: err.Error(), Pos: entry.Pos()}
		}
		vals = append(vals, entry)
		types = append(types, t)
	}
	return vals, types, nil
}

// bind names the values produced for entries.
func (fc *funcCompiler) bind(values []*ir.Value, entries []cue.Value) error {
	for idx, entry := range entries {
		name, err := entry.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return formatCUEError(err)
		}
		if _, dup := fc.values[name]; dup {
			return &CompileError{Field: "name", Message: fmt.Sprintf("value %q defined twice", name), Pos: entry.Pos()}
		}
		values[idx].Name = name
		fc.values[name] = values[idx]
	}
	return nil
}

func (fc *funcCompiler) compileBody(b *ir.Builder, body cue.Value) error {
	iter, err := body.List()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fc.compileInstr(b, iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func (fc *funcCompiler) compileInstr(b *ir.Builder, v cue.Value) error {
	opName, err := v.LookupPath(cue.ParsePath("op")).String()
	if err != nil {
		return formatCUEError(err)
	}
	kind, ok := ir.ParseOpKind(opName)
	if !ok {
		return &CompileError{Field: "op", Message: fmt.Sprintf("unknown op %q", opName), Pos: v.Pos()}
	}

	var names []string
	var positions []token.Pos
	if ops := v.LookupPath(cue.ParsePath("operands")); ops.Exists() {
		iter, err := ops.List()
		if err != nil {
			return formatCUEError(err)
		}
		for iter.Next() {
			n, err := iter.Value().String()
			if err != nil {
				return formatCUEError(err)
			}
			names = append(names, n)
			positions = append(positions, iter.Value().Pos())
		}
	}

	resultVals, resultTypes, err := fc.compileValues(v.LookupPath(cue.ParsePath("results")))
	if err != nil {
		return err
	}
	attrs := make(map[string]any)
	if err := compileAttrs(v.LookupPath(cue.ParsePath("attrs")), attrs); err != nil {
		return err
	}

	inst := b.Create(kind, make([]*ir.Value, len(names)), resultTypes, attrs)
	if err := fc.bind(inst.Results(), resultVals); err != nil {
		return err
	}
	fc.pending = append(fc.pending, pendingOperands{inst: inst, names: names, pos: positions})

	regions := v.LookupPath(cue.ParsePath("regions"))
	if !regions.Exists() {
		return nil
	}
	riter, err := regions.List()
	if err != nil {
		return formatCUEError(err)
	}
	for riter.Next() {
		region := inst.AddRegion()
		biter, err := riter.Value().LookupPath(cue.ParsePath("blocks")).List()
		if err != nil {
			return formatCUEError(err)
		}
		for biter.Next() {
			blockVal := biter.Value()
			argVals, argTypes, err := fc.compileValues(blockVal.LookupPath(cue.ParsePath("args")))
			if err != nil {
				return err
			}
			blk := region.AddBlock(argTypes...)
			if err := fc.bind(blk.Args(), argVals); err != nil {
				return err
			}
			nested := ir.NewBuilder(fc.module)
			nested.SetInsertionPointToEnd(blk)
			if err := fc.compileBody(nested, blockVal.LookupPath(cue.ParsePath("body"))); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolve connects every operand to its named value.
func (fc *funcCompiler) resolve() error {
	for _, p := range fc.pending {
		for idx, name := range p.names {
			v, ok := fc.values[name]
			if !ok {
				return &CompileError{
					Field:   "operands",
					Message: fmt.Sprintf("%s: undefined value %q", p.inst.Kind, name),
					Pos:     p.pos[idx],
				}
			}
			p.inst.SetOperand(idx, v)
		}
	}
	return nil
}

package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"

	"github.com/roach88/relayout/internal/ir"
)

// layoutDecl is the decoded form of every #Layout variant.
type layoutDecl struct {
	Kind           string `json:"kind"`
	SizePerThread  []int  `json:"size_per_thread"`
	ThreadsPerWarp []int  `json:"threads_per_warp"`
	WarpsPerCTA    []int  `json:"warps_per_cta"`
	Order          []int  `json:"order"`
	Dim            int    `json:"dim"`
	Parent         string `json:"parent"`
	Version        int    `json:"version"`
	OpIdx          int    `json:"op_idx"`
	Vec            int    `json:"vec"`
	PerPhase       int    `json:"per_phase"`
	MaxPhase       int    `json:"max_phase"`

	src cue.Value
}

// compileLayouts decodes the named layouts and resolves parent references.
func compileLayouts(v cue.Value) (map[string]ir.Layout, error) {
	out := make(map[string]ir.Layout)
	if !v.Exists() {
		return out, nil
	}
	decls := make(map[string]*layoutDecl)
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		decl := &layoutDecl{src: iter.Value()}
		if err := iter.Value().Decode(decl); err != nil {
			return nil, formatCUEError(err)
		}
		decls[iter.Label()] = decl
	}

	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &layoutResolver{decls: decls, done: out, visiting: make(map[string]bool)}
	for _, name := range names {
		if _, err := r.resolve(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type layoutResolver struct {
	decls    map[string]*layoutDecl
	done     map[string]ir.Layout
	visiting map[string]bool
}

func (r *layoutResolver) resolve(name string) (ir.Layout, error) {
	if l, ok := r.done[name]; ok {
		return l, nil
	}
	decl, ok := r.decls[name]
	if !ok {
		return nil, &CompileError{Field: "layouts", Message: fmt.Sprintf("undefined layout %q", name)}
	}
	if r.visiting[name] {
		return nil, &CompileError{Field: "layouts." + name, Message: "layout is its own ancestor", Pos: decl.src.Pos()}
	}
	r.visiting[name] = true
	defer delete(r.visiting, name)

	var l ir.Layout
	switch decl.Kind {
	case "blocked":
		rank := len(decl.Order)
		if len(decl.SizePerThread) != rank || len(decl.ThreadsPerWarp) != rank || len(decl.WarpsPerCTA) != rank {
			return nil, &CompileError{
				Field:   "layouts." + name,
				Message: "size_per_thread, threads_per_warp, warps_per_cta and order must have the same length",
				Pos:     decl.src.Pos(),
			}
		}
		l = ir.Blocked{
			SizePerThread:  decl.SizePerThread,
			ThreadsPerWarp: decl.ThreadsPerWarp,
			WarpsPerCTA:    decl.WarpsPerCTA,
			Order:          decl.Order,
		}
	case "sliced":
		parent, err := r.resolve(decl.Parent)
		if err != nil {
			return nil, err
		}
		if decl.Dim >= parent.Rank() {
			return nil, &CompileError{
				Field:   "layouts." + name,
				Message: fmt.Sprintf("slice dim %d out of range for rank-%d parent", decl.Dim, parent.Rank()),
				Pos:     decl.src.Pos(),
			}
		}
		l = ir.Sliced{Dim: decl.Dim, Parent: parent}
	case "mma":
		l = ir.MatrixAccumulate{Version: decl.Version, WarpsPerCTA: decl.WarpsPerCTA}
	case "dot_operand":
		parent, err := r.resolve(decl.Parent)
		if err != nil {
			return nil, err
		}
		l = ir.DotOperand{OpIdx: decl.OpIdx, Parent: parent}
	case "shared":
		l = ir.Shared{Vec: decl.Vec, PerPhase: decl.PerPhase, MaxPhase: decl.MaxPhase, Order: decl.Order}
	default:
		return nil, &CompileError{Field: "layouts." + name, Message: fmt.Sprintf("unknown layout kind %q", decl.Kind), Pos: decl.src.Pos()}
	}
	r.done[name] = l
	return l, nil
}

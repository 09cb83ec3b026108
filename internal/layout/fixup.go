package layout

import (
	"maps"

	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/rewrite"
)

// loopFixup rebuilds a for loop whose parameter types no longer agree with
// its initial values or results.
type loopFixup struct{}

func (loopFixup) Root() ir.OpKind { return ir.OpFor }

func (loopFixup) MatchAndRewrite(loop *ir.Instruction, rw *rewrite.Rewriter) (bool, error) {
	if loop.NumRegions() == 0 || loop.NumOperands() < 3 {
		return false, invariant(nil, "%s is missing its body or bounds", loop)
	}
	body := loop.Region(0).Blocks()[0]
	operands := loop.OperandValues()
	inits := operands[3:]
	if len(body.Args()) != len(inits)+1 || loop.NumResults() != len(inits) {
		return false, invariant(nil, "%s carries %d inits, %d parameters and %d results",
			loop, len(inits), len(body.Args())-1, loop.NumResults())
	}
	if loopTypesConsistent(loop, body, inits) {
		return false, nil
	}

	rw.SetInsertionPointBefore(loop)
	rebuilt := rw.CreateFor(operands[0], operands[1], operands[2], inits)
	rebuilt.Attrs = maps.Clone(loop.Attrs)
	newBody := rebuilt.Region(0).Blocks()[0]

	mapping := ir.NewMapping()
	for idx, arg := range body.Args() {
		if err := mapping.Map(arg, newBody.Arg(idx)); err != nil {
			return false, invariant(err, "remapping parameters of %s", loop)
		}
		newBody.Arg(idx).Name = arg.Name
	}
	rw.SetInsertionPointToEnd(newBody)
	for _, inst := range body.Instructions() {
		if _, err := rw.CloneAndMap(inst, mapping); err != nil {
			return false, invariant(err, "cloning body of %s", loop)
		}
	}
	for idx, r := range loop.Results() {
		rebuilt.Result(idx).Name = r.Name
	}
	if err := rw.ReplaceOp(loop, rebuilt.Results()); err != nil {
		return false, invariant(err, "replacing %s", loop)
	}
	return true, nil
}

// loopTypesConsistent: type(init_i) == type(param_i) == type(result_i).
func loopTypesConsistent(loop *ir.Instruction, body *ir.Block, inits []*ir.Value) bool {
	params := body.Args()[1:]
	for idx, init := range inits {
		if !ir.TypeEqual(init.Type(), params[idx].Type()) ||
			!ir.TypeEqual(init.Type(), loop.Result(idx).Type()) {
			return false
		}
	}
	return true
}

// FixupLoops rebuilds every for loop of m whose parameter, initial value and
// result types disagree, until all loops are consistent. Consistent loops
// are left untouched. It returns the number of loops rebuilt.
func FixupLoops(m *ir.Module, opts ...rewrite.Option) (int, error) {
	return rewrite.ApplyGreedily(m, []rewrite.Pattern{loopFixup{}}, opts...)
}

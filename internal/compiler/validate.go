package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/relayout/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Module errors (E100-E101)
	ErrNoFunctions   = "E100" // module defines no function
	ErrHardwareAttrs = "E101" // num_warps / threads_per_warp not positive

	// Block structure errors (E102-E104)
	ErrMissingTerminator   = "E102" // block does not end with a terminator
	ErrMisplacedTerminator = "E103" // terminator before the end of its block
	ErrUnresolvedOperand   = "E104" // operand slot holds no value

	// Loop errors (E110-E111)
	ErrLoopShape = "E110" // for-loop operands, parameters, results or yields disagree in count
	ErrLoopTypes = "E111" // init, parameter, yield and result types differ

	// Type errors (E120-E121)
	ErrConversionShape = "E120" // convert_layout changes more than the layout
	ErrLayoutRank      = "E121" // tensor layout rank differs from the tensor rank

	// Dataflow errors (E130-E132)
	ErrUseBeforeDef    = "E130" // operand defined later in the same block
	ErrValueNotVisible = "E131" // operand defined in a block that does not enclose the user
	ErrOperandCycle    = "E132" // instructions depend on each other
)

// ValidationError is one structural problem found in a module.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks m and returns every error found, ordered by code and
// location.
func Validate(m *ir.Module) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if len(m.Funcs) == 0 {
		add(ErrNoFunctions, "funcs", "module defines no function")
	}
	for _, attr := range []string{"num_warps", "threads_per_warp"} {
		if v, ok := m.Attrs[attr]; ok {
			if n, isInt := v.(int); !isInt || n <= 0 {
				add(ErrHardwareAttrs, "attrs."+attr, "must be a positive integer, got %v", v)
			}
		}
	}

	for _, f := range m.Funcs {
		v := &funcValidator{fn: f, add: add}
		v.block(f.Entry(), ir.OpReturn)
		for _, cycle := range FindCycles(f) {
			add(ErrOperandCycle, f.Name, "operand cycle: %s", describeCycle(cycle))
		}
	}

	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Code != errs[j].Code {
			return errs[i].Code < errs[j].Code
		}
		return errs[i].Field < errs[j].Field
	})
	return errs
}

type funcValidator struct {
	fn  *ir.Func
	add func(code, field, format string, args ...any)
}

func (v *funcValidator) where(inst *ir.Instruction) string {
	return fmt.Sprintf("%s/%s", v.fn.Name, inst)
}

// block validates blk and everything nested in it. want is the terminator
// kind blk must end with, or OpInvalid when any terminator will do.
func (v *funcValidator) block(blk *ir.Block, want ir.OpKind) {
	for _, arg := range blk.Args() {
		v.typ(fmt.Sprintf("%s/%s", v.fn.Name, arg), arg.Type())
	}
	instrs := blk.Instructions()
	for idx, inst := range instrs {
		if inst.Kind.IsTerminator() && idx != len(instrs)-1 {
			v.add(ErrMisplacedTerminator, v.where(inst), "terminator is followed by %d instructions", len(instrs)-1-idx)
		}
		v.instr(inst)
	}
	term := blk.Terminator()
	switch {
	case term == nil:
		v.add(ErrMissingTerminator, fmt.Sprintf("%s/^bb%d", v.fn.Name, blk.ID()), "block does not end with a terminator")
	case want != ir.OpInvalid && term.Kind != want:
		v.add(ErrMissingTerminator, v.where(term), "block must end with %s", want)
	}
}

func (v *funcValidator) instr(inst *ir.Instruction) {
	for idx, operand := range inst.OperandValues() {
		if operand == nil {
			v.add(ErrUnresolvedOperand, v.where(inst), "operand %d is unset", idx)
			continue
		}
		v.dataflow(inst, idx, operand)
	}
	for _, r := range inst.Results() {
		v.typ(fmt.Sprintf("%s/%s", v.fn.Name, r), r.Type())
	}

	switch inst.Kind {
	case ir.OpFor:
		v.loop(inst)
		return
	case ir.OpConvertLayout:
		v.conversion(inst)
	}
	for _, r := range inst.Regions() {
		for _, blk := range r.Blocks() {
			v.block(blk, ir.OpInvalid)
		}
	}
}

func (v *funcValidator) dataflow(user *ir.Instruction, idx int, operand *ir.Value) {
	defBlock := operand.ParentBlock()
	if defBlock == nil {
		v.add(ErrValueNotVisible, v.where(user), "operand %d %s is detached", idx, operand)
		return
	}
	if def := operand.Def(); def != nil && def != user && def.IsAncestorOf(user) {
		v.add(ErrUseBeforeDef, v.where(user), "operand %d %s is a result of an enclosing instruction", idx, operand)
		return
	}
	if def := operand.Def(); def != nil && def.Block() == user.Block() {
		if def == user || !def.IsBeforeInBlock(user) {
			v.add(ErrUseBeforeDef, v.where(user), "operand %d %s is defined after its use", idx, operand)
		}
		return
	}
	for blk := user.Block(); blk != nil; {
		if blk == defBlock {
			return
		}
		parent := blk.ParentOp()
		if parent == nil {
			break
		}
		blk = parent.Block()
	}
	v.add(ErrValueNotVisible, v.where(user), "operand %d %s is defined in a block that does not enclose its use", idx, operand)
}

func (v *funcValidator) typ(field string, t ir.Type) {
	tt, ok := ir.AsTensor(t)
	if !ok || tt.Layout == nil {
		return
	}
	if tt.Layout.Rank() != tt.Rank() {
		v.add(ErrLayoutRank, field, "rank-%d layout on rank-%d tensor", tt.Layout.Rank(), tt.Rank())
	}
}

func (v *funcValidator) conversion(cvt *ir.Instruction) {
	if cvt.NumOperands() != 1 || cvt.NumResults() != 1 {
		v.add(ErrConversionShape, v.where(cvt), "needs one operand and one result")
		return
	}
	src, okSrc := ir.AsTensor(cvt.Operand(0).Type())
	dst, okDst := ir.AsTensor(cvt.Result(0).Type())
	if !okSrc || !okDst {
		v.add(ErrConversionShape, v.where(cvt), "operand and result must be tensors")
		return
	}
	if !ir.TypeEqual(src.WithLayout(nil), dst.WithLayout(nil)) {
		v.add(ErrConversionShape, v.where(cvt), "converts %s to %s", src, dst)
	}
}

func (v *funcValidator) loop(loop *ir.Instruction) {
	if loop.NumOperands() < 3 || loop.NumRegions() != 1 || len(loop.Region(0).Blocks()) != 1 {
		v.add(ErrLoopShape, v.where(loop), "needs bounds, step and a single-block body")
		return
	}
	body := loop.Region(0).Blocks()[0]
	inits := loop.OperandValues()[3:]
	if len(body.Args()) != len(inits)+1 || loop.NumResults() != len(inits) {
		v.add(ErrLoopShape, v.where(loop), "carries %d inits, %d parameters and %d results",
			len(inits), len(body.Args())-1, loop.NumResults())
		v.block(body, ir.OpYield)
		return
	}
	v.block(body, ir.OpYield)

	yield := body.Terminator()
	if yield == nil || yield.Kind != ir.OpYield {
		return
	}
	if yield.NumOperands() != len(inits) {
		v.add(ErrLoopShape, v.where(yield), "yields %d values for %d parameters", yield.NumOperands(), len(inits))
		return
	}
	for idx, init := range inits {
		param, result, yielded := body.Arg(idx+1), loop.Result(idx), yield.Operand(idx)
		if init == nil || yielded == nil {
			continue
		}
		if !ir.TypeEqual(init.Type(), param.Type()) ||
			!ir.TypeEqual(init.Type(), result.Type()) ||
			!ir.TypeEqual(init.Type(), yielded.Type()) {
			v.add(ErrLoopTypes, v.where(loop), "parameter %d: init %s, param %s, yield %s, result %s",
				idx, init.Type(), param.Type(), yielded.Type(), result.Type())
		}
	}
}

package pass

import (
	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/rewrite"
)

// identityConversion replaces a conversion whose source already has the
// result type with the source.
type identityConversion struct{}

func (identityConversion) Root() ir.OpKind { return ir.OpConvertLayout }

func (identityConversion) MatchAndRewrite(cvt *ir.Instruction, rw *rewrite.Rewriter) (bool, error) {
	src := cvt.Operand(0)
	if !ir.TypeEqual(src.Type(), cvt.Result(0).Type()) {
		return false, nil
	}
	return true, rw.ReplaceOp(cvt, []*ir.Value{src})
}

// conversionChain converts straight from the source of a conversion chain:
// convert(convert(x)) becomes convert(x). Chains that stage through scratch
// memory or end in a matrix operand are real data movement and stay.
type conversionChain struct{}

func (conversionChain) Root() ir.OpKind { return ir.OpConvertLayout }

func (conversionChain) MatchAndRewrite(cvt *ir.Instruction, rw *rewrite.Rewriter) (bool, error) {
	inner := cvt.Operand(0).Def()
	if inner == nil || inner.Kind != ir.OpConvertLayout {
		return false, nil
	}
	to := ir.LayoutOf(cvt.Result(0).Type())
	if _, ok := to.(ir.DotOperand); ok {
		return false, nil
	}
	if _, ok := ir.LayoutOf(inner.Result(0).Type()).(ir.Shared); ok {
		return false, nil
	}
	rw.SetInsertionPointBefore(cvt)
	direct, err := rw.CreateConvert(inner.Operand(0), to)
	if err != nil {
		return false, err
	}
	return true, rw.ReplaceOp(cvt, direct.Results())
}

// Canonicalize folds identity conversions and conversion chains in m. It
// returns the number of rewrites.
func Canonicalize(m *ir.Module, opts ...rewrite.Option) (int, error) {
	return rewrite.ApplyGreedily(m, []rewrite.Pattern{identityConversion{}, conversionChain{}}, opts...)
}

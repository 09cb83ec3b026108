package rewrite

import (
	"fmt"
	"log/slog"

	"github.com/roach88/relayout/internal/ir"
)

// Pattern is a local rewrite rooted at one instruction kind.
//
// MatchAndRewrite inspects inst and, when it applies, mutates the graph
// through rw and returns true. A pattern that returns false must leave the
// graph untouched.
type Pattern interface {
	Root() ir.OpKind
	MatchAndRewrite(inst *ir.Instruction, rw *Rewriter) (bool, error)
}

// Rewriter is the mutation surface handed to patterns. Its embedded builder
// reports every created instruction to the driver.
type Rewriter struct {
	*ir.Builder

	work *worklist
}

// ReplaceOp redirects old's results to replacements and erases old. Users
// of the replacements are revisited.
func (r *Rewriter) ReplaceOp(old *ir.Instruction, replacements []*ir.Value) error {
	for _, res := range old.Results() {
		for _, user := range res.Users() {
			r.work.Push(user)
		}
	}
	return ir.ReplaceOp(old, replacements)
}

// EraseOp erases inst. Its results must be unused.
func (r *Rewriter) EraseOp(inst *ir.Instruction) error {
	for _, v := range inst.OperandValues() {
		if v != nil && v.Def() != nil {
			r.work.Push(v.Def())
		}
	}
	return ir.Erase(inst)
}

// Option configures ApplyGreedily.
type Option func(*config)

type config struct {
	maxRewrites int
}

// WithMaxRewrites sets the rewrite quota.
//
// Default: DefaultMaxRewrites.
func WithMaxRewrites(n int) Option {
	return func(c *config) {
		c.maxRewrites = n
	}
}

// ApplyGreedily applies patterns to m until none matches. It returns the
// number of rewrites performed.
func ApplyGreedily(m *ir.Module, patterns []Pattern, opts ...Option) (int, error) {
	cfg := config{maxRewrites: DefaultMaxRewrites}
	for _, opt := range opts {
		opt(&cfg)
	}

	byKind := make(map[ir.OpKind][]Pattern)
	for _, p := range patterns {
		byKind[p.Root()] = append(byKind[p.Root()], p)
	}

	work := newWorklist()
	m.Walk(func(inst *ir.Instruction) {
		if len(byKind[inst.Kind]) > 0 {
			work.Push(inst)
		}
	})

	rw := &Rewriter{Builder: ir.NewBuilder(m), work: work}
	rw.OnCreate(func(inst *ir.Instruction) {
		work.Push(inst)
	})
	q := newQuota(cfg.maxRewrites)

	for {
		inst, ok := work.Pop()
		if !ok {
			break
		}
		if inst.Erased() {
			continue
		}
		for _, p := range byKind[inst.Kind] {
			changed, err := p.MatchAndRewrite(inst, rw)
			if err != nil {
				return q.Current(), fmt.Errorf("pattern on %s: %w", inst, err)
			}
			if !changed {
				continue
			}
			if err := q.Check(inst.String()); err != nil {
				slog.Error("rewrite quota exceeded",
					"root", inst.String(),
					"limit", cfg.maxRewrites,
				)
				return q.Current(), err
			}
			slog.Debug("pattern applied",
				"root", inst.String(),
				"rewrites", q.Current(),
			)
			break
		}
	}
	return q.Current(), nil
}

package pass

import (
	"github.com/roach88/relayout/internal/ir"
)

// Phase names the part of an iteration that made a decision.
type Phase string

const (
	PhaseHoist    Phase = "hoist"
	PhaseBackward Phase = "backward"
)

// Outcome is what the driver did with a candidate.
type Outcome string

const (
	// OutcomeApplied means the rewrite was performed.
	OutcomeApplied Outcome = "applied"

	// OutcomeUnprofitable means a plan exists but would add conversions.
	OutcomeUnprofitable Outcome = "unprofitable"

	// OutcomeInfeasible means no legal plan exists.
	OutcomeInfeasible Outcome = "infeasible"
)

// Decision records one candidate the driver considered.
type Decision struct {
	Seq       int64   `json:"seq"`
	Iteration int     `json:"iteration"`
	Phase     Phase   `json:"phase"`
	Func      string  `json:"func"`
	Subject   string  `json:"subject"` // conversion or loop parameter
	Target    string  `json:"target"`
	Delta     int     `json:"delta"` // measured for applied hoists, 0 when infeasible
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`
}

// Report summarizes one Run.
type Report struct {
	RunID      string     `json:"run_id"`
	ModuleHash string     `json:"module_hash"` // hash of the input module
	Iterations int        `json:"iterations"`
	Converged  bool       `json:"converged"`
	Before     int        `json:"conversions_before"`
	After      int        `json:"conversions_after"`
	Decisions  []Decision `json:"decisions"`
}

// Applied returns the decisions that changed the graph.
func (r *Report) Applied() []Decision {
	var out []Decision
	for _, d := range r.Decisions {
		if d.Outcome == OutcomeApplied {
			out = append(out, d)
		}
	}
	return out
}

// CountConversions returns the number of conversion instructions in m.
func CountConversions(m *ir.Module) int {
	n := 0
	m.Walk(func(inst *ir.Instruction) {
		if inst.Kind == ir.OpConvertLayout {
			n++
		}
	})
	return n
}

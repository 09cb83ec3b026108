package harness

import (
	"github.com/roach88/relayout/internal/compiler"
	"github.com/roach88/relayout/internal/ir"
	"github.com/roach88/relayout/internal/pass"
)

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Feasible bool   `json:"feasible"`

	// Delta is set for feasible backward probes, Conversions for feasible
	// hoist probes.
	Delta       int    `json:"delta,omitempty"`
	Conversions int    `json:"conversions,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every probe and assertion held.
	Pass bool `json:"pass"`

	Errors []string `json:"errors,omitempty"`

	// InputErrors are the validation errors of the graph as written.
	// Scenarios may start from inconsistent graphs, so they do not fail
	// the run.
	InputErrors []compiler.ValidationError `json:"input_errors,omitempty"`

	// OutputErrors are the validation errors after all passes.
	OutputErrors []compiler.ValidationError `json:"output_errors,omitempty"`

	ConversionsBefore int `json:"conversions_before"`
	ConversionsAfter  int `json:"conversions_after"`

	// Report is the last optimize report, nil when no optimize pass ran.
	// Decisions collects the decisions of every optimize pass.
	Report    *pass.Report    `json:"report,omitempty"`
	Decisions []pass.Decision `json:"decisions"`

	Probes []ProbeResult `json:"probes"`

	// Output is the printed output module.
	Output string     `json:"output"`
	Module *ir.Module `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Errors:    []string{},
		Decisions: []pass.Decision{},
		Probes:    []ProbeResult{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/relayout/internal/pass"
)

// AssertionError is returned when an assertion or probe expectation fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

func evaluate(a Assertion, r *Result) error {
	switch a.Type {
	case AssertConversions:
		return assertConversions(a, r)
	case AssertDecisions:
		return assertDecisions(a, r)
	case AssertConverged:
		return assertConverged(a, r)
	case AssertValid:
		return assertValid(r)
	case AssertIRContains, AssertIRNotContains:
		return assertIR(a, r)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertConversions(a Assertion, r *Result) error {
	if r.ConversionsAfter != a.Count {
		return &AssertionError{
			Type:     AssertConversions,
			Expected: fmt.Sprintf("%d conversions", a.Count),
			Actual:   fmt.Sprintf("%d", r.ConversionsAfter),
		}
	}
	return nil
}

func assertDecisions(a Assertion, r *Result) error {
	count := 0
	for _, d := range r.Decisions {
		if a.Phase != "" && string(d.Phase) != a.Phase {
			continue
		}
		if a.Outcome != "" && string(d.Outcome) != a.Outcome {
			continue
		}
		count++
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertDecisions,
			Expected: fmt.Sprintf("%d decisions (phase %q, outcome %q)", a.Count, a.Phase, a.Outcome),
			Actual:   fmt.Sprintf("%d of %s", count, describeDecisions(r.Decisions)),
		}
	}
	return nil
}

func describeDecisions(ds []pass.Decision) string {
	if len(ds) == 0 {
		return "[]"
	}
	parts := make([]string, len(ds))
	for idx, d := range ds {
		parts[idx] = fmt.Sprintf("%s/%s %s", d.Phase, d.Outcome, d.Subject)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func assertConverged(a Assertion, r *Result) error {
	if r.Report == nil {
		return &AssertionError{Type: AssertConverged, Expected: "an optimize pass", Actual: "none ran"}
	}
	if r.Report.Converged != a.Value {
		return &AssertionError{
			Type:     AssertConverged,
			Expected: fmt.Sprintf("converged=%t", a.Value),
			Actual:   fmt.Sprintf("converged=%t after %d iterations", r.Report.Converged, r.Report.Iterations),
		}
	}
	return nil
}

func assertValid(r *Result) error {
	if len(r.OutputErrors) == 0 {
		return nil
	}
	msgs := make([]string, len(r.OutputErrors))
	for idx, e := range r.OutputErrors {
		msgs[idx] = e.Error()
	}
	return &AssertionError{
		Type:     AssertValid,
		Expected: "a valid output graph",
		Actual:   strings.Join(msgs, "; "),
	}
}

func assertIR(a Assertion, r *Result) error {
	found := strings.Contains(r.Output, a.Text)
	if found == (a.Type == AssertIRContains) {
		return nil
	}
	expected := fmt.Sprintf("output containing %q", a.Text)
	if a.Type == AssertIRNotContains {
		expected = fmt.Sprintf("output without %q", a.Text)
	}
	return &AssertionError{Type: a.Type, Expected: expected, Actual: "\n" + r.Output}
}

func checkProbe(p Probe, pr ProbeResult) error {
	label := fmt.Sprintf("%s probe on %s", p.Type, p.Value)
	if want := p.Expect.Feasible; want != nil && *want != pr.Feasible {
		actual := fmt.Sprintf("feasible=%t", pr.Feasible)
		if pr.Reason != "" {
			actual += " (" + pr.Reason + ")"
		}
		return &AssertionError{Type: label, Expected: fmt.Sprintf("feasible=%t", *want), Actual: actual}
	}
	if want := p.Expect.Delta; want != nil && *want != pr.Delta {
		return &AssertionError{Type: label, Expected: fmt.Sprintf("delta %d", *want), Actual: fmt.Sprintf("%d", pr.Delta)}
	}
	if want := p.Expect.Conversions; want != nil && *want != pr.Conversions {
		return &AssertionError{Type: label, Expected: fmt.Sprintf("%d conversions", *want), Actual: fmt.Sprintf("%d", pr.Conversions)}
	}
	return nil
}

package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relayout/internal/ir"
)

// Snapshot renders the deterministic summary of a scenario run as canonical
// JSON: conversion counts, decisions without instruction IDs, probe
// outcomes and validity.
func Snapshot(scenario *Scenario, r *Result) ([]byte, error) {
	passes := make([]any, 0, len(scenario.passes()))
	for _, p := range scenario.passes() {
		passes = append(passes, p)
	}
	decisions := make([]any, len(r.Decisions))
	for idx, d := range r.Decisions {
		decisions[idx] = map[string]any{
			"phase":     string(d.Phase),
			"outcome":   string(d.Outcome),
			"delta":     d.Delta,
			"iteration": d.Iteration,
		}
	}
	probes := make([]any, len(r.Probes))
	for idx, p := range r.Probes {
		entry := map[string]any{
			"type":     p.Type,
			"value":    p.Value,
			"feasible": p.Feasible,
		}
		if p.Feasible {
			switch p.Type {
			case ProbeBackward:
				entry["delta"] = p.Delta
			case ProbeHoist:
				entry["conversions"] = p.Conversions
			}
		}
		probes[idx] = entry
	}
	inputErrors := make([]any, len(r.InputErrors))
	for idx, e := range r.InputErrors {
		inputErrors[idx] = e.Code
	}

	snap := map[string]any{
		"scenario":           scenario.Name,
		"passes":             passes,
		"conversions_before": r.ConversionsBefore,
		"conversions_after":  r.ConversionsAfter,
		"decisions":          decisions,
		"probes":             probes,
		"input_errors":       inputErrors,
		"valid":              len(r.OutputErrors) == 0,
	}
	if r.Report != nil {
		snap["converged"] = r.Report.Converged
		snap["iterations"] = r.Report.Iterations
	}
	return ir.MarshalCanonical(snap)
}

// RunWithGolden executes a scenario, fails t on any probe or assertion
// failure, and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result's snapshot against its golden
// file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snap, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snap)
	return nil
}

// Package harness runs conformance scenarios against the optimizer.
//
// A scenario names a CUE graph description, the passes to run over it and
// what must hold afterwards. Probes query the analyses on the input graph
// before any pass runs; assertions check the output graph and the decision
// report.
//
// # Scenario Format
//
//	name: scenario_a_foldable_sum
//	description: "Elementwise sum of two constants"
//	graph: graphs/sum.cue
//	passes: [optimize]
//	options:
//	  max_iterations: 4
//	probes:
//	  - type: backward
//	    value: out
//	    expect: { feasible: true, delta: 0 }
//	assertions:
//	  - type: conversions
//	    count: 0
//	  - type: decisions
//	    phase: backward
//	    outcome: applied
//	    count: 1
//
// Graph paths are relative to the scenario file. Passes default to
// [optimize].
//
// # Passes
//
//   - optimize: pass.Run, the full conversion-elimination driver
//   - fixup: layout.FixupLoops
//   - canonicalize: pass.Canonicalize
//   - sweep: pass.SweepDeadCode
//
// # Probes
//
//   - backward: simulate removing the conversion whose result is named
//     value, seeded at the producer of its source
//   - hoist: run the hoisting decision for the loop parameter named value
//
// # Assertion Types
//
//   - conversions: number of conversions left
//   - decisions: number of decisions matching phase and outcome
//   - converged: whether the optimizer reached a fixpoint
//   - valid: the output passes compiler.Validate
//   - ir_contains, ir_not_contains: substring of the printed output
//
// Every scenario runs with a deterministic clock and a fixed run ID so the
// snapshot compared by RunWithGolden is stable.
package harness

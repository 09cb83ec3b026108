// Package layout decides when a layout conversion can be removed and
// performs the removal.
//
// The read-only half answers questions about a graph snapshot:
//   - Invert maps a desired result layout back through one instruction
//   - Classifier says whether an instruction is expensive to duplicate and
//     whether a producer can absorb a conversion for free
//   - Simulator.Backward estimates the net change in conversion count when a
//     layout requirement is pushed into producers
//   - Simulator.ForwardInLoop checks that a loop-carried value can be pushed
//     forward through its consumers in a new layout
//   - Simulator.CanHoist decides whether all conversions of a loop parameter
//     can be removed by carrying it pre-converted
//
// The mutating half:
//   - Execute rematerializes an accepted Plan inside a Txn
//   - FixupLoops rebuilds loops whose parameter types disagree
//
// Nothing here keeps package-level mutable state; independent modules may be
// processed concurrently.
package layout

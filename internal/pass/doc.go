// Package pass drives conversion elimination over a whole module.
//
// The driver plays the layout-assignment policy on top of package layout:
// every layout it pushes is one a conversion in the graph already asks for.
// One iteration runs four phases in order:
//
//  1. Hoist: for each loop-carried parameter whose conversions agree on one
//     target, carry the parameter in that target (layout.CanHoist,
//     layout.ExecuteHoist) and rebuild the loop (layout.FixupLoops).
//  2. Backward: for each conversion whose producer lives in the same block,
//     simulate pushing the conversion's layout into the producer
//     (layout.Simulator.Backward) and rematerialize when the net delta is
//     not positive.
//  3. Canonicalize: fold identity conversions and conversion chains.
//  4. Sweep: erase pure instructions without uses.
//
// Iterations repeat until one changes nothing or MaxIterations is reached.
//
// Every decision is stamped with a sequence number from a logical clock and
// collected in the Report. Decisions never depend on wall-clock time, so
// the same module always yields the same report apart from RunID.
package pass

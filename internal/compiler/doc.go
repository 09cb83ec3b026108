// Package compiler turns CUE graph descriptions into ir modules and checks
// their structural invariants.
//
// A graph file is unified with the embedded #Module schema (schema.cue)
// before compilation, so shape errors are reported by CUE with source
// positions. Compilation then resolves layout and value names; forward
// references are accepted and left to Validate, which reports coded
// errors (E1xx) for ordering, visibility, loop typing and operand cycles.
package compiler

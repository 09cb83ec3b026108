// Package rewrite runs local rewrite patterns over a module until none of
// them applies.
//
// The driver seeds a FIFO worklist with every instruction in post-order
// (inner regions before the instructions that own them) and pops one at a
// time. Patterns registered for the popped instruction's kind are tried in
// registration order; the first that reports a change wins. Instructions
// created by a rewrite and the users of replaced values are pushed back on
// the worklist, so the run ends exactly when no pattern matches anywhere.
//
// Every successful rewrite is counted against a quota. Pattern sets that
// keep undoing each other stop with a QuotaExceededError instead of
// spinning forever.
package rewrite

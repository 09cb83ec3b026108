// Package store persists optimizer runs and their decisions in SQLite.
//
// The log is append-only:
//   - runs: one row per pass.Run, keyed by run ID, with the hash of the
//     input module and the options it ran with
//   - decisions: one row per candidate the driver considered
//
// # Ordering
//
// Decisions are ordered by their logical sequence number, never by wall
// time. Queries use ORDER BY seq ASC, id ASC so that two stores holding the
// same runs list them identically. LastSeq lets a new run continue the
// sequence of an existing database.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// Run options are stored as canonical JSON (ir.MarshalCanonical).
package store

// Package ir provides the dataflow graph that the layout passes operate on.
//
// A Module owns functions; a function body is a Region of Blocks; a Block is
// an ordered list of Instructions. Instructions consume Values through
// Operand use records and produce result Values. Control constructs (for,
// while, if) own nested Regions whose Block arguments are Values too.
//
// This package contains the graph model and its mechanical services only:
// construction, cloning under a substitution Mapping, replace-all-uses,
// erase/move, walks, topological ordering, structural type inference,
// printing, Graphviz export and content hashing. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Layout descriptors exist only on TensorType values
//   - Layouts are immutable and compared structurally (LayoutEqual, LayoutKey)
//   - Instruction and Value IDs are unique within a Module and never reused
//   - The graph is not safe for concurrent mutation; one pass owns one Module
package ir

package ir

// Every cross-reference in the IR graph (use-def, control flow, call
// graph, aggregate field types) is a stable integer handle into a
// Context arena rather than a pointer: this lets the graphs contain
// cycles and back-references (a recursive call, a block that branches to
// an ancestor) without Go's ownership rules getting in the way.

type ModuleID int
type FunctionID int
type BlockID int
type ValueID int
type AggregateID int
type PointerID int
type MetadataID int

const InvalidID = -1

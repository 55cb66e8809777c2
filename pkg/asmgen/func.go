package asmgen

import "vmc/pkg/ir"

// Func is one function's virtual-op program, the ASM builder's output for
// a single ir.Function. pkg/regalloc consumes and rewrites
// Ops in place; pkg/emitter consumes the result.
type Func struct {
	Name     string
	IsEntry  bool
	Ops      []Op
	numVRegs int
	numLbl   int

	// FrameSize is the total CFEI size in bytes: the sum of word-aligned
	// local sizes plus 8 bytes per max-extra-args-across-calls.
	FrameSize int

	// LocalOffset maps each stack-resident local to its byte offset from
	// LocalsBase. Locals placed in the data section (constant immutable
	// locals) are absent here and looked up via DataLocal instead.
	LocalOffset map[ir.PointerID]int

	// DataLocal maps a data-section-resident local to its DataID in the
	// owning Module's data entries.
	DataLocal map[ir.PointerID]int

	// EntryLabel is the label of this function's first op, recorded so
	// callers (and the emitter's OrgCall resolution) can find it.
	EntryLabel Label
}

func newFunc(name string, isEntry bool) *Func {
	return &Func{
		Name: name,
		IsEntry: isEntry,
		LocalOffset: make(map[ir.PointerID]int),
		DataLocal: make(map[ir.PointerID]int),
	}
}

func (fn *Func) newVReg() VReg {
	v := VReg(fn.numVRegs)
	fn.numVRegs++
	return v
}

// NewVReg allocates a fresh virtual register in fn, exported for
// pkg/regalloc's spill-rewriting pass, which must
// introduce new temporaries after the ASM builder has already finished.
func (fn *Func) NewVReg() VReg { return fn.newVReg() }

func (fn *Func) newLabel() Label {
	l := Label(fn.numLbl)
	fn.numLbl++
	return l
}

func (fn *Func) emit(op Op) { fn.Ops = append(fn.Ops, op) }

func (fn *Func) emitWithComment(op Op, comment string) {
	op.Comment = comment
	fn.Ops = append(fn.Ops, op)
}

// NumVRegs reports how many distinct virtual registers this function's
// program addresses — pkg/regalloc sizes its bitsets from this.
func (fn *Func) NumVRegs() int { return fn.numVRegs }

// DataEntry is one blob destined for the bytecode image's data section
//.
// pkg/emitter deduplicates entries across the whole Module before laying
// out final offsets; DataID below is only a pre-dedup index the builder
// uses to refer back to an entry it created.
type DataEntry struct {
	Bytes []byte
}

// Module is the ASM builder's output for an entire ir.Module: one Func per
// live ir.Function plus the raw (not yet deduplicated) data entries they
// reference.
type Module struct {
	Name      string
	Functions []*Func
	Data      []DataEntry
}

func (m *Module) addData(bytes []byte) int {
	id := len(m.Data)
	m.Data = append(m.Data, DataEntry{Bytes: bytes})
	return id
}

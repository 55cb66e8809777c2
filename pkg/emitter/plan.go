package emitter

import (
	"vmc/pkg/asmgen"
	"vmc/pkg/diag"
	"vmc/pkg/isa"
)

// pendingKind marks a planned instruction whose immediate field cannot be
// computed until the whole module's label offsets and data-section layout
// are known: resolving a Label to a concrete word offset, or rewriting a
// LoadDataId into a load sequence.
type pendingKind int

const (
	pFixed pendingKind = iota // imm already resolved at plan time
	pJumpTarget // JI: imm = absolute word offset of target label
	pJumpIfNotZeroTarget // JNZI: same, narrower field
	pCallTarget // CALL: same
	pDataHigh // MOVI: imm = (resolved data addr >> dataSplitShift)
	pDataLow // ADDI: imm = resolved data addr & dataSplitMask
)

// dataSplitShift/dataSplitMask implement OrgLoadDataID's fixed-length
// expansion: MOVI loads the address's high bits, SLLI shifts them into
// place, ADDI adds in the low bits. A fixed-length expansion (always 3
// ops, regardless of whether the address would fit a single MOVI) sidesteps
// the layout/address circularity a size-dependent expansion would create —
// the data section's absolute offset depends on the code section's length,
// which depends on every LoadDataID's expansion length, which would depend
// on the (not yet known) data address otherwise.
const (
	dataSplitShift = 12
	dataSplitMask = (1 << dataSplitShift) - 1
)

// planned is one not-yet-encoded concrete VM instruction: either its
// immediate is already known (pFixed) or it is filled in during resolve
// once labels/data offsets are final.
type planned struct {
	opcode  isa.Opcode
	regs    [3]isa.Register
	imm     *isa.Immediate
	pending pendingKind
	target  asmgen.Label
	dataID  int
	comment string
	span    diag.Span
}

func fixedOp(opcode isa.Opcode, imm *isa.Immediate, regs...isa.Register) planned {
	p := planned{opcode: opcode, imm: imm}
	copy(p.regs[:], regs)
	return p
}

func imm12Word(words uint64) *isa.Immediate {
	i, err := isa.NewImmediate(isa.Imm12, words)
	if err != nil {
		panic("emitter: " + err.Error())
	}
	return &i
}

func imm24(v uint64) *isa.Immediate {
	i, err := isa.NewImmediate(isa.Imm24, v)
	if err != nil {
		panic("emitter: " + err.Error())
	}
	return &i
}

// fitsWordOffset reports whether byteOff, expressed as a word count, fits
// the 12-bit word-scaled immediate LW/SW expect.
func fitsWordOffset(byteOff int) bool {
	return byteOff%wordBytes == 0 && isa.Fits(isa.Imm12, uint64(byteOff/wordBytes))
}

const wordBytes = 8

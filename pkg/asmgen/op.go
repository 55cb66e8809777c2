// Package asmgen implements the ASM builder: it lowers
// verified IR to a list of virtual operations addressing virtual registers
// (unbounded) and symbolic Labels, materializing the calling convention and
// the stack frame along the way. The output is consumed by pkg/regalloc
// (which rewrites virtual registers to physical ones) and finally
// pkg/emitter (which resolves labels and serializes to bytecode).
package asmgen

import (
	"fmt"

	"vmc/pkg/diag"
	"vmc/pkg/isa"
)

// VReg is an unbounded virtual register, dense per function starting at 0.
type VReg int

const InvalidVReg VReg = -1

// Label is a symbolic jump/call target, resolved to a byte offset only by
// the emitter.
type Label int

const InvalidLabel Label = -1

// Reg is one register operand of a virtual Op: either a not-yet-allocated
// VReg or a fixed physical isa.Register (used directly for reserved
// registers like the zero register, SP, or an argument register, which
// never go through the allocator). pkg/regalloc rewrites every Virtual
// Reg's VReg to a Phys isa.Register in place; it never touches a Reg that
// is already physical.
type Reg struct {
	Virtual bool
	V       VReg
	Phys    isa.Register
}

func VR(v VReg) Reg { return Reg{Virtual: true, V: v} }
func PR(r isa.Register) Reg { return Reg{Virtual: false, Phys: r} }

func (r Reg) String() string {
	if r.Virtual {
		return fmt.Sprintf("v%d", int(r.V))
	}
	return r.Phys.String()
}

// OrgKind discriminates the virtual op layer: a virtual op is either a
// concrete VM opcode or an organizational pseudo-op (label,
// jump-to-label, save-ret-addr, push-all/pop-all placeholder). Only the
// emitter removes the organizational variant; the allocator operates on
// either without caring which.
type OrgKind int

const (
	OrgNone OrgKind = iota // concrete VM opcode; Op.Opcode is meaningful
	OrgLabel
	OrgJump // unconditional jump to Target
	OrgJumpIfNotZero // jump to Target if Operands[0] != 0
	OrgCall // call the function whose entry label is Target
	OrgSaveRetAddr // push RegCallReturnAddress to the callee-saved area (nested calls)
	OrgRestoreRetAddr // pop RegCallReturnAddress back
	OrgLoadDataID // Operands[0] <- address of data-section entry DataID
	OrgPushAll // push every physical register the function's coloring uses (filled in by pkg/regalloc)
	OrgPopAll // inverse of OrgPushAll
)

// Op is one virtual-layer instruction. Organizational ops reuse the same
// struct so pkg/regalloc's liveness and
// interference-graph passes can walk a single, uniform Ops slice.
type Op struct {
	Org    OrgKind
	Opcode isa.Opcode // valid when Org == OrgNone

	// Operands holds the register operands in the positional order the
	// opcode's isa.Form expects (A, B, C — see pkg/isa/word.go); for
	// organizational ops it holds whatever registers that op reads (e.g.
	// the condition register of OrgJumpIfNotZero, or the destination of
	// OrgLoadDataID). pkg/regalloc's role table (roles.go) knows which
	// positions are defs and which are uses for each (Org, Opcode) pair.
	Operands []Reg

	Imm    *isa.Immediate
	Target Label          // jump/call target, or (for OrgLabel) the label this op defines
	DataID int            // data-section entry index, for OrgLoadDataID

	Comment string
	Span    diag.Span
}

func label(l Label) Op { return Op{Org: OrgLabel, Target: l} }
func jump(l Label) Op { return Op{Org: OrgJump, Target: l} }
func jumpIfNotZero(cond Reg, l Label) Op { return Op{Org: OrgJumpIfNotZero, Operands: []Reg{cond}, Target: l} }
func call(l Label) Op { return Op{Org: OrgCall, Target: l} }
func loadDataID(dst Reg, id int) Op { return Op{Org: OrgLoadDataID, Operands: []Reg{dst}, DataID: id} }

// concrete builds an Op for a fixed-form VM opcode. Callers supply
// operands positionally (A, B, C as the opcode's Form requires); imm is
// nil for register-only forms.
func concrete(op isa.Opcode, imm *isa.Immediate, operands...Reg) Op {
	return Op{Org: OrgNone, Opcode: op, Operands: operands, Imm: imm}
}

func move(dst, src Reg) Op { return concrete(isa.MOVE, nil, dst, src) }

func movi(dst Reg, v uint64) Op {
	imm, err := isa.NewImmediate(isa.Imm18, v)
	if err != nil {
		// An 18-bit MOVI immediate overflow means the builder computed an
		// offset or constant too wide for this encoding path; that is a
		// missed expansion, which is fatal.
		panic(fmt.Sprintf("asmgen: %v", err))
	}
	return concrete(isa.MOVI, &imm, dst)
}

func addi(dst, base Reg, off uint64) Op {
	imm, err := isa.NewImmediate(isa.Imm12, off)
	if err != nil {
		panic(fmt.Sprintf("asmgen: %v", err))
	}
	return concrete(isa.ADDI, &imm, dst, base)
}

func add(dst, a, b Reg) Op { return concrete(isa.ADD, nil, dst, a, b) }

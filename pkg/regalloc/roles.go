// Package regalloc implements the Chaitin-style iterated register allocator
//: liveness, interference-graph construction, coalescing,
// simplify/spill, selection and spill rewriting over a pkg/asmgen virtual-op
// stream, producing the same stream with every VReg rewritten to a physical
// isa.Register.
package regalloc

import (
	"vmc/pkg/asmgen"
	"vmc/pkg/isa"
)

// rrUseOnly lists the FormRR opcodes whose A operand is read, not defined
// (an address or a value being reported out, never an SSA-style result).
var rrUseOnly = map[isa.Opcode]bool{
	isa.SWW: true,
	isa.LOGD: true,
	isa.RETD: true,
}

// rrriUseOnly lists the FormRRI12 opcodes whose A operand is a store
// address, read rather than defined.
var rrriUseOnly = map[isa.Opcode]bool{
	isa.SW: true,
	isa.SB: true,
}

// rrrUseOnly lists the FormRRR opcodes whose A operand is itself an address
// operand (memory copy, state access, message send), never a defined value.
var rrrUseOnly = map[isa.Opcode]bool{
	isa.MCP: true,
	isa.SRWQ: true,
	isa.SWWQ: true,
	isa.SMO: true,
}

// defUse reports which of op's operand positions is a definition (at most
// one, since every node is a single-result virtual register) and which
// are uses, driving liveness, interference and spill rewriting uniformly
// over both concrete and organizational ops. Physical (non-virtual)
// operands are reported like any other — callers that only care about
// virtual registers filter on Reg.Virtual.
func defUse(op asmgen.Op) (def asmgen.Reg, hasDef bool, uses []asmgen.Reg) {
	switch op.Org {
	case asmgen.OrgJumpIfNotZero:
		return asmgen.Reg{}, false, op.Operands
	case asmgen.OrgLoadDataID:
		if len(op.Operands) > 0 {
			return op.Operands[0], true, nil
		}
		return asmgen.Reg{}, false, nil
	case asmgen.OrgLabel, asmgen.OrgJump, asmgen.OrgCall,
		asmgen.OrgSaveRetAddr, asmgen.OrgRestoreRetAddr,
		asmgen.OrgPushAll, asmgen.OrgPopAll:
		return asmgen.Reg{}, false, nil
	}

	ops := op.Operands
	switch op.Opcode.Form() {
	case isa.FormRRR:
		if rrrUseOnly[op.Opcode] {
			return asmgen.Reg{}, false, ops
		}
		return firstDefRest(ops)
	case isa.FormRR:
		if rrUseOnly[op.Opcode] {
			return asmgen.Reg{}, false, ops
		}
		return firstDefRest(ops)
	case isa.FormRRI12:
		if rrriUseOnly[op.Opcode] {
			return asmgen.Reg{}, false, ops
		}
		return firstDefRest(ops)
	case isa.FormR:
		return asmgen.Reg{}, false, ops
	case isa.FormRI18:
		return firstDefRest(ops)
	case isa.FormNone, isa.FormI24:
		return asmgen.Reg{}, false, nil
	}
	return asmgen.Reg{}, false, nil
}

// firstDefRest treats ops[0] as the sole definition and every later operand
// as a use, the shape every "rA <- rB op ..." opcode in the catalogue
// shares.
func firstDefRest(ops []asmgen.Reg) (asmgen.Reg, bool, []asmgen.Reg) {
	if len(ops) == 0 {
		return asmgen.Reg{}, false, nil
	}
	return ops[0], true, ops[1:]
}

// defUseVRegs is defUse narrowed to virtual registers only, the view the
// liveness and interference passes operate over.
func defUseVRegs(op asmgen.Op) (def asmgen.VReg, uses []asmgen.VReg) {
	def = asmgen.InvalidVReg
	d, hasDef, rawUses := defUse(op)
	if hasDef && d.Virtual {
		def = d.V
	}
	for _, u := range rawUses {
		if u.Virtual {
			uses = append(uses, u.V)
		}
	}
	return def, uses
}

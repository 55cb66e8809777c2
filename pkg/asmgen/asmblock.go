package asmgen

import (
	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/isa"
)

var opcodeByName map[string]isa.Opcode

func init() {
	opcodeByName = make(map[string]isa.Opcode)
	for _, info := range isa.Catalogue() {
		opcodeByName[info.Name] = info.Op
	}
}

// lowerAsmBlock passes an AsmBlock instruction through to the virtual-op
// stream close to verbatim: ASM blocks do not participate in SSA beyond
// their inputs/outputs. Named input registers bind either to their
// initializer's value or, with no initializer, a fresh vreg the caller
// is responsible for having set up already; the declared output
// register (if any) becomes the instruction's SSA result.
func (b *funcBuilder) lowerAsmBlock(vid ir.ValueID, op ir.AsmBlockOp) error {
	names := make(map[string]Reg, len(op.Inputs))
	for _, in := range op.Inputs {
		if in.Init != ir.ValueID(ir.InvalidID) {
			names[in.Reg] = b.valueReg(in.Init)
		} else {
			names[in.Reg] = VR(b.out.newVReg())
		}
	}

	for _, line := range op.Lines {
		oc, ok := opcodeByName[line.Opcode]
		if !ok {
			return diag.Internal(b.fnName(), "asm block references unknown opcode %q", line.Opcode)
		}
		operands := make([]Reg, 0, len(line.Args))
		for _, arg := range line.Args {
			r, ok := names[arg]
			if !ok {
				r = VR(b.out.newVReg())
				names[arg] = r
			}
			operands = append(operands, r)
		}
		var imm *isa.Immediate
		if line.Imm != nil {
			width := formImmWidth(oc.Form())
			v, err := isa.NewImmediate(width, *line.Imm)
			if err != nil {
				return diag.ImmediateRange(b.fnName(), diag.Span{}, "asm line %q: %v", line.Opcode, err)
			}
			imm = &v
		}
		b.out.emit(concrete(oc, imm, operands...))
	}

	if op.Out != "" {
		dst := b.defReg(vid)
		if r, ok := names[op.Out]; ok {
			b.out.emit(move(dst, r))
		}
	} else {
		b.vregs[vid] = VR(b.out.newVReg())
	}
	return nil
}

func formImmWidth(f isa.Form) isa.ImmediateWidth {
	switch f {
	case isa.FormRRI12:
		return isa.Imm12
	case isa.FormRI18:
		return isa.Imm18
	default:
		return isa.Imm24
	}
}

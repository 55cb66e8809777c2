package emitter

import (
	"vmc/pkg/asmgen"
	"vmc/pkg/diag"
	"vmc/pkg/isa"
)

// expandFunc lowers one function's virtual-op stream into a flat list of
// concrete (or pending) instructions, plus this function's own label ->
// relative-word-offset table. Only the emitter removes the organizational
// op variant; the allocator operates on either kind without caring which.
// Labels are module-global (see asmgen.BuildModule's labelsPerFunction
// comment), so a Call's Target resolves correctly even though it is
// encoded and expanded from within a different function's Ops.
func expandFunc(fn *asmgen.Func) ([]planned, map[asmgen.Label]int, *diag.Error) {
	var out []planned
	relLabel := make(map[asmgen.Label]int)

	for _, op := range fn.Ops {
		switch op.Org {
		case asmgen.OrgNone:
			p := fixedOp(op.Opcode, op.Imm, regsOf(op)...)
			p.comment, p.span = op.Comment, op.Span
			out = append(out, p)

		case asmgen.OrgLabel:
			relLabel[op.Target] = len(out)

		case asmgen.OrgJump:
			out = append(out, planned{opcode: isa.JI, pending: pJumpTarget, target: op.Target})

		case asmgen.OrgJumpIfNotZero:
			p := planned{opcode: isa.JNZI, pending: pJumpIfNotZeroTarget, target: op.Target}
			p.regs[0] = phys(op.Operands[0])
			out = append(out, p)

		case asmgen.OrgCall:
			out = append(out, planned{opcode: isa.CALL, pending: pCallTarget, target: op.Target})

		case asmgen.OrgSaveRetAddr:
			out = append(out, fixedOp(isa.SUBI, imm12Word(wordBytes), isa.RegSP, isa.RegSP))
			out = append(out, fixedOp(isa.SW, imm12Word(0), isa.RegSP, isa.RegCallReturnAddress))

		case asmgen.OrgRestoreRetAddr:
			out = append(out, fixedOp(isa.LW, imm12Word(0), isa.RegCallReturnAddress, isa.RegSP))
			out = append(out, fixedOp(isa.ADDI, imm12Word(wordBytes), isa.RegSP, isa.RegSP))

		case asmgen.OrgLoadDataID:
			dst := phys(op.Operands[0])
			out = append(out, planned{opcode: isa.MOVI, pending: pDataHigh, dataID: op.DataID, regs: [3]isa.Register{dst}})
			out = append(out, fixedOp(isa.SLLI, imm12Word(dataSplitShift), dst, dst))
			out = append(out, planned{opcode: isa.ADDI, pending: pDataLow, dataID: op.DataID, regs: [3]isa.Register{dst, dst}})

		case asmgen.OrgPushAll:
			saved := physAll(op.Operands)
			out = append(out, fixedOp(isa.CFEI, imm24(uint64(len(saved)*wordBytes))))
			for i, r := range saved {
				out = append(out, storeAt(fn.FrameSize+i*wordBytes, r)...)
			}

		case asmgen.OrgPopAll:
			saved := physAll(op.Operands)
			for i, r := range saved {
				out = append(out, loadAt(fn.FrameSize+i*wordBytes, r)...)
			}
			out = append(out, fixedOp(isa.CFSI, imm24(uint64(len(saved)*wordBytes))))

		default:
			return nil, nil, diag.Internal(fn.Name, "unhandled organizational op kind %d", op.Org)
		}
	}
	return out, relLabel, nil
}

// storeAt emits the instruction(s) that store r to LocalsBase+byteOff,
// escalating to a scratch-register address computation when the offset
// does not fit LW/SW's 12-bit word-scaled field — mirroring
// pkg/asmgen/frame.go's localAddress escalation.
func storeAt(byteOff int, r isa.Register) []planned {
	if fitsWordOffset(byteOff) {
		return []planned{fixedOp(isa.SW, imm12Word(uint64(byteOff/wordBytes)), isa.RegLocalsBase, r)}
	}
	hi, lo := byteOff>>dataSplitShift, byteOff&dataSplitMask
	return []planned{
		fixedOp(isa.MOVI, imm18(uint64(hi)), isa.RegScratch),
		fixedOp(isa.SLLI, imm12Word(dataSplitShift), isa.RegScratch, isa.RegScratch),
		fixedOp(isa.ADDI, imm12Word(uint64(lo)), isa.RegScratch, isa.RegScratch),
		fixedOp(isa.ADD, nil, isa.RegScratch, isa.RegScratch, isa.RegLocalsBase),
		fixedOp(isa.SW, imm12Word(0), isa.RegScratch, r),
	}
}

func loadAt(byteOff int, r isa.Register) []planned {
	if fitsWordOffset(byteOff) {
		return []planned{fixedOp(isa.LW, imm12Word(uint64(byteOff/wordBytes)), r, isa.RegLocalsBase)}
	}
	hi, lo := byteOff>>dataSplitShift, byteOff&dataSplitMask
	return []planned{
		fixedOp(isa.MOVI, imm18(uint64(hi)), isa.RegScratch),
		fixedOp(isa.SLLI, imm12Word(dataSplitShift), isa.RegScratch, isa.RegScratch),
		fixedOp(isa.ADDI, imm12Word(uint64(lo)), isa.RegScratch, isa.RegScratch),
		fixedOp(isa.ADD, nil, isa.RegScratch, isa.RegScratch, isa.RegLocalsBase),
		fixedOp(isa.LW, imm12Word(0), r, isa.RegScratch),
	}
}

func imm18(v uint64) *isa.Immediate {
	i, err := isa.NewImmediate(isa.Imm18, v)
	if err != nil {
		panic("emitter: " + err.Error())
	}
	return &i
}

func phys(r asmgen.Reg) isa.Register {
	if r.Virtual {
		panic("emitter: virtual register reached the emitter; register allocation did not run")
	}
	return r.Phys
}

func physAll(regs []asmgen.Reg) []isa.Register {
	out := make([]isa.Register, len(regs))
	for i, r := range regs {
		out[i] = phys(r)
	}
	return out
}

func regsOf(op asmgen.Op) []isa.Register {
	out := make([]isa.Register, len(op.Operands))
	for i, r := range op.Operands {
		out[i] = phys(r)
	}
	return out
}

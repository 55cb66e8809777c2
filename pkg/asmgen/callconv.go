package asmgen

import (
	"vmc/pkg/ir"
	"vmc/pkg/isa"
)

// lowerCall implements the calling convention: up to isa.NumArgRegisters
// arguments pass in fixed registers in order; once the argument count
// strictly exceeds that, the last argument register instead holds a
// pointer to the remaining arguments, written to the caller's own frame.
func (b *funcBuilder) lowerCall(vid ir.ValueID, op ir.CallOp) error {
	overflow := overflowArgCount(len(op.Args))
	direct := len(op.Args)
	if overflow > 0 {
		direct = isa.NumArgRegisters - 1
	}

	for i := 0; i < direct; i++ {
		b.out.emit(move(PR(isa.ArgRegister(i)), b.valueReg(op.Args[i])))
	}

	if overflow > 0 {
		base := b.out.FrameSize - overflow*wordBytes
		for i := 0; i < overflow; i++ {
			v := b.valueReg(op.Args[direct+i])
			off := base + i*wordBytes
			if isa.Fits(isa.Imm12, uint64(off)) {
				b.out.emit(concrete(isa.SW, imm12Scaled(off), PR(isa.RegLocalsBase), v))
			} else {
				scratch := VR(b.out.newVReg())
				b.localAddress(scratch, off)
				b.out.emit(concrete(isa.SW, imm12(0), scratch, v))
			}
		}
		ptr := VR(b.out.newVReg())
		b.localAddress(ptr, base)
		b.out.emit(move(PR(isa.ArgRegister(isa.NumArgRegisters-1)), ptr))
	}

	// A callee that itself calls clobbers RegCallReturnAddress; a
	// non-leaf caller must save/restore its own around every call it
	// makes.
	if b.isNonLeaf() {
		b.out.emit(Op{Org: OrgSaveRetAddr})
	}
	b.out.emit(call(b.fnLbl[op.Callee]))
	if b.isNonLeaf() {
		b.out.emit(Op{Org: OrgRestoreRetAddr})
	}

	if callee := b.ctx.Function(op.Callee); !callee.RetType.Equal(ir.Unit()) {
		dst := b.defReg(vid)
		b.out.emit(move(dst, PR(isa.RegCallReturnValue)))
	}
	return nil
}

func imm12Scaled(byteOffset int) *isa.Immediate {
	i, err := isa.NewImmediate(isa.Imm12, uint64(byteOffset/wordBytes))
	if err != nil {
		return imm12(uint64(byteOffset))
	}
	return &i
}

// isNonLeaf reports whether the current function contains at least one
// call instruction.
func (b *funcBuilder) isNonLeaf() bool {
	for _, bid := range b.ctx.Function(b.fn).Blocks {
		for _, vid := range b.ctx.Block(bid).Instructions {
			if _, ok := b.ctx.Value(vid).Op.(ir.CallOp); ok {
				return true
			}
		}
	}
	return false
}

// loadCalleeArgs moves a non-entry function's incoming arguments from the
// fixed argument registers (or, for overflow parameters, via the pointer
// left in the last argument register) into their parameter vregs.
func (b *funcBuilder) loadCalleeArgs(f *ir.Function) {
	overflow := overflowArgCount(len(f.Params))
	direct := len(f.Params)
	if overflow > 0 {
		direct = isa.NumArgRegisters - 1
	}
	for i := 0; i < direct; i++ {
		r := b.valueRegForParam(f.Params[i].Value)
		b.out.emit(move(r, PR(isa.ArgRegister(i))))
	}
	if overflow > 0 {
		ptr := PR(isa.ArgRegister(isa.NumArgRegisters - 1))
		for i := 0; i < overflow; i++ {
			r := b.valueRegForParam(f.Params[direct+i].Value)
			b.out.emit(concrete(isa.LW, imm12(uint64(i)), r, ptr))
		}
	}
}

func (b *funcBuilder) valueRegForParam(v ir.ValueID) Reg {
	if r, ok := b.vregs[v]; ok {
		return r
	}
	r := VR(b.out.newVReg())
	b.vregs[v] = r
	return r
}

// loadEntryArgs loads the arguments of an entry function: the base
// pointer to the caller-supplied argument buffer is located by an
// ABI-specific mechanism instead of the register convention, then each
// argument is read off it at its word offset.
func (b *funcBuilder) loadEntryArgs(f *ir.Function) {
	base := VR(b.out.newVReg())
	switch f.ABI {
	case ir.ABIContract:
		// Base pointer read from FP+74, the VM's frame convention.
		b.out.emit(concrete(isa.LW, imm12(74), base, PR(isa.RegFP)))
	case ir.ABIScript:
		// GTF(ScriptData); field 0 is used as the well-known ScriptData
		// selector in this VM's GTF field space.
		b.out.emit(concrete(isa.GTF, imm12(0), base, PR(isa.RegZero)))
	case ir.ABIPredicate:
		b.loadPredicateBase(base)
	default:
		return
	}
	for i, p := range f.Params {
		r := b.valueRegForParam(p.Value)
		off := i * wordBytes
		if isa.Fits(isa.Imm12, uint64(off)) {
			b.out.emit(concrete(isa.LW, imm12Scaled(off), r, base))
			continue
		}
		scratch := VR(b.out.newVReg())
		b.out.emit(movi(scratch, uint64(off)))
		b.out.emit(add(scratch, base, scratch))
		b.out.emit(concrete(isa.LW, imm12(0), r, scratch))
	}
}

// loadPredicateBase materializes the predicate-input-type state machine:
// GM(predicate-index) -> GTF(InputType); branch on whether input is Coin
// (=0) or Message (=2); fetch the corresponding predicate-data pointer via
// GTF; if neither, RET(zero) immediately (predicate fails).
func (b *funcBuilder) loadPredicateBase(base Reg) {
	idx := VR(b.out.newVReg())
	b.out.emit(concrete(isa.GM, imm12(0), idx, PR(isa.RegZero)))
	inputTy := VR(b.out.newVReg())
	b.out.emit(concrete(isa.GTF, imm12(inputTypeField), inputTy, idx))

	isCoin := VR(b.out.newVReg())
	b.out.emit(concrete(isa.EQ, nil, isCoin, inputTy, PR(isa.RegZero)))
	coinLbl := b.out.newLabel()
	b.out.emit(jumpIfNotZero(isCoin, coinLbl))

	two := VR(b.out.newVReg())
	b.loadImm(two, 2)
	isMsg := VR(b.out.newVReg())
	b.out.emit(concrete(isa.EQ, nil, isMsg, inputTy, two))
	msgLbl := b.out.newLabel()
	b.out.emit(jumpIfNotZero(isMsg, msgLbl))

	// Neither Coin nor Message: predicate fails immediately.
	b.out.emit(move(PR(isa.RegCallReturnValue), PR(isa.RegZero)))
	b.out.emit(concrete(isa.RET, nil))

	end := b.out.newLabel()
	b.out.emit(label(coinLbl))
	b.out.emit(concrete(isa.GTF, imm12(coinPredicateDataField), base, idx))
	b.out.emit(jump(end))
	b.out.emit(label(msgLbl))
	b.out.emit(concrete(isa.GTF, imm12(msgPredicateDataField), base, idx))
	b.out.emit(label(end))
}

// GTF field selectors for the predicate-input-type state machine; the VM
// defines these as part of its transaction-frame field space.
const (
	inputTypeField = 612
	coinPredicateDataField = 613
	msgPredicateDataField = 614
)

func (b *funcBuilder) initDataBackedLocals(f *ir.Function) {
	for _, pid := range f.Locals {
		p := b.ctx.Pointer(pid)
		if !p.Mutable || p.Initializer == nil {
			continue
		}
		// For each mutable local with an initializer: load the
		// initializer's address from the data section into scratch,
		// compute the destination as LocalsBase + offset, then copy with
		// LW+SW for word-size scalars or MCP for aggregates.
		srcID := b.mod.addData(encodeConstant(b.ctx, *p.Initializer))
		scratch := VR(b.out.newVReg())
		b.out.emit(loadDataID(scratch, srcID))
		dst := VR(b.out.newVReg())
		b.localAddress(dst, b.out.LocalOffset[pid])
		words := b.ctx.TypeSizeWords(p.Pointee)
		if words <= 1 && p.Pointee.IsCopyType() {
			b.out.emit(concrete(isa.LW, imm12(0), scratch, scratch))
			b.out.emit(concrete(isa.SW, imm12(0), dst, scratch))
		} else {
			lenReg := VR(b.out.newVReg())
			b.loadImm(lenReg, uint64(words))
			b.out.emit(concrete(isa.MCP, nil, dst, scratch, lenReg))
		}
	}
}

func reservedByName(name string) isa.Register {
	switch name {
	case "sp":
		return isa.RegSP
	case "fp":
		return isa.RegFP
	case "pc":
		return isa.RegPC
	case "of":
		return isa.RegOverflow
	case "one":
		return isa.RegOne
	default:
		return isa.RegZero
	}
}

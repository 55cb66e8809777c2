package asmgen

import (
	"fmt"

	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/isa"
)

var binaryOpcode = map[ir.BinaryKind]isa.Opcode{
	ir.BinAdd: isa.ADD, ir.BinSub: isa.SUB, ir.BinMul: isa.MUL, ir.BinDiv: isa.DIV,
	ir.BinMod: isa.MOD, ir.BinAnd: isa.AND, ir.BinOr: isa.OR, ir.BinXor: isa.XOR,
	ir.BinShl: isa.SLL, ir.BinShr: isa.SRL,
}

var cmpOpcode = map[ir.CmpKind]isa.Opcode{
	ir.CmpEq: isa.EQ, ir.CmpLt: isa.LT, ir.CmpGt: isa.GT,
	// Ne/Le/Ge are synthesized below: there is no dedicated opcode for
	// them in the VM's instruction set, so the builder lowers them as the inverse
	// comparison followed by a NOT, matching the way the original compiler
	// canonicalizes comparisons onto a minimal opcode set.
}

// lowerInst emits the virtual ops for a single IR instruction value, one
// case per InstOp variant, plus the calling-convention and local-variable
// rules for call, get-local, and get-elem-ptr.
func (b *funcBuilder) lowerInst(vid ir.ValueID, val *ir.Value) error {
	switch op := val.Op.(type) {
	case ir.UnaryOp:
		dst := b.defReg(vid)
		x := b.valueReg(op.X)
		switch op.Op {
		case ir.UnNot:
			b.out.emit(concrete(isa.NOT, nil, dst, x))
		case ir.UnNeg:
			b.out.emit(concrete(isa.SUB, nil, dst, PR(isa.RegZero), x))
		}

	case ir.BinaryOp:
		dst := b.defReg(vid)
		lhs, rhs := b.valueReg(op.LHS), b.valueReg(op.RHS)
		oc, ok := binaryOpcode[op.Op]
		if !ok {
			return diag.Internal(b.fnName(), "unhandled binary op %d", op.Op)
		}
		b.out.emit(concrete(oc, nil, dst, lhs, rhs))

	case ir.CmpOp:
		dst := b.defReg(vid)
		lhs, rhs := b.valueReg(op.LHS), b.valueReg(op.RHS)
		b.lowerCmp(dst, op.Op, lhs, rhs)

	case ir.BranchOp:
		b.lowerEdge(op.Target, op.Args)
		b.out.emit(jump(b.blkLbl[op.Target]))

	case ir.CondBranchOp:
		cond := b.valueReg(op.Cond)
		// Evaluate the true edge's argument MOVEs behind the conditional
		// jump (they must only execute on that path), then fall through to
		// the false edge's MOVEs followed by an unconditional jump.
		tl := b.out.newLabel()
		b.out.emit(jumpIfNotZero(cond, tl))
		b.lowerEdge(op.FalseBlk, op.FalseArgs)
		b.out.emit(jump(b.blkLbl[op.FalseBlk]))
		b.out.emit(label(tl))
		b.lowerEdge(op.TrueBlk, op.TrueArgs)
		b.out.emit(jump(b.blkLbl[op.TrueBlk]))

	case ir.CallOp:
		return b.lowerCall(vid, op)

	case ir.RetOp:
		if op.Val != ir.ValueID(ir.InvalidID) {
			v := b.valueReg(op.Val)
			b.out.emit(move(PR(isa.RegCallReturnValue), v))
		}
		b.out.emit(Op{Org: OrgPopAll, Target: b.saveLbl})
		b.out.emit(concrete(isa.RET, nil))

	case ir.AsmBlockOp:
		return b.lowerAsmBlock(vid, op)

	case ir.BitcastOp, ir.IntToPtrOp, ir.PtrToIntOp, ir.CastPtrOp:
		// All four are no-op register reinterpretations at the VM level:
		// the VM has no distinct pointer registers, so these just alias
		// the operand's register.
		b.vregs[vid] = b.valueReg(castOperand(op))

	case ir.GetLocalOp:
		dst := b.defReg(vid)
		b.lowerGetLocal(dst, op.Local)

	case ir.GetConfigOp:
		dst := b.defReg(vid)
		b.lowerGetConfig(dst, op.Name)

	case ir.GetElemPtrOp:
		dst := b.defReg(vid)
		b.lowerGetElemPtr(dst, op)

	case ir.ExtractValueOp:
		dst := b.defReg(vid)
		b.out.emit(move(dst, b.valueReg(op.Agg)))

	case ir.InsertValueOp:
		// Aggregates are reference types addressed through their backing
		// storage; insert-value on an SSA aggregate value is
		// modeled by reusing the same storage register, since the field
		// write already happened via the preceding get-elem-ptr+store path
		// the IR builder emits for locals. A bare SSA-value
		// aggregate (not backed by a local) aliases its source register.
		b.vregs[vid] = b.valueReg(op.Agg)

	case ir.LoadOp:
		dst := b.defReg(vid)
		b.out.emit(concrete(isa.LW, imm12(0), dst, b.valueReg(op.Ptr)))

	case ir.StoreOp:
		b.out.emit(concrete(isa.SW, imm12(0), b.valueReg(op.Ptr), b.valueReg(op.Val)))

	case ir.MemCopyBytesOp:
		words := (op.Len + 7) / 8
		lenReg := VR(b.out.newVReg())
		b.loadImm(lenReg, words)
		b.out.emit(concrete(isa.MCP, nil, b.valueReg(op.Dst), b.valueReg(op.Src), lenReg))

	case ir.MemCopyValOp:
		b.out.emit(concrete(isa.MCP, nil, b.valueReg(op.Dst), b.valueReg(op.Src), PR(isa.RegOne)))

	case ir.LogOp:
		b.out.emit(concrete(isa.LOGD, nil, b.valueReg(op.Val), b.valueReg(op.Key)))

	case ir.RevertOp:
		b.out.emit(concrete(isa.RVRT, nil, b.valueReg(op.Code)))

	case ir.GtfOp:
		dst := b.defReg(vid)
		b.out.emit(concrete(isa.GTF, imm12(op.Field), dst, b.valueReg(op.Index)))

	case ir.ReadRegisterOp:
		dst := b.defReg(vid)
		b.out.emit(concrete(isa.RDRG, nil, dst, PR(reservedByName(op.Register))))

	case ir.StateLoadWordOp:
		dst := b.defReg(vid)
		b.out.emit(concrete(isa.SRW, nil, dst, b.valueReg(op.Key)))

	case ir.StateStoreWordOp:
		b.out.emit(concrete(isa.SWW, nil, b.valueReg(op.Key), b.valueReg(op.Val)))

	case ir.StateLoadQuadOp:
		b.out.emit(concrete(isa.SRWQ, nil, b.valueReg(op.Dst), b.valueReg(op.Key), b.valueReg(op.Cnt)))

	case ir.StateStoreQuadOp:
		b.out.emit(concrete(isa.SWWQ, nil, b.valueReg(op.Src), b.valueReg(op.Key), b.valueReg(op.Cnt)))

	case ir.WideArithmeticOp:
		dst := b.defReg(vid)
		if _, ok := binaryOpcode[op.Op]; !ok {
			return diag.Internal(b.fnName(), "unhandled wide-arithmetic op %d", op.Op)
		}
		// WQOP itself is a single 256-bit-capable opcode; the specific
		// arithmetic operator is carried as the VM's wide-op selector
		// rather than a distinct Opcode value, so only the operand validity is checked above.
		b.out.emit(concrete(isa.WQOP, nil, dst, b.valueReg(op.LHS), b.valueReg(op.RHS)))

	case ir.SmoOp:
		b.out.emit(concrete(isa.SMO, nil, b.valueReg(op.Recipient), b.valueReg(op.Data), b.valueReg(op.Coins)))

	case ir.RetdOp:
		b.out.emit(concrete(isa.RETD, nil, b.valueReg(op.Ptr), b.valueReg(op.Len)))

	case ir.JmpMemOp:
		b.out.emit(concrete(isa.JMP, nil, PR(isa.RegScratch)))

	default:
		return diag.Internal(b.fnName(), "unhandled instruction op kind %T", op)
	}
	return nil
}

func (b *funcBuilder) fnName() string { return b.ctx.Function(b.fn).Name }

func imm12(v uint64) *isa.Immediate {
	i, err := isa.NewImmediate(isa.Imm12, v)
	if err != nil {
		panic(fmt.Sprintf("asmgen: %v", err))
	}
	return &i
}

func castOperand(op ir.InstOp) ir.ValueID {
	switch o := op.(type) {
	case ir.BitcastOp:
		return o.X
	case ir.IntToPtrOp:
		return o.X
	case ir.PtrToIntOp:
		return o.X
	case ir.CastPtrOp:
		return o.X
	}
	return ir.ValueID(ir.InvalidID)
}

// lowerCmp synthesizes NE/LE/GE from EQ/LT/GT + NOT, since the VM's
// opcode family only defines the three primitive comparisons.
func (b *funcBuilder) lowerCmp(dst Reg, k ir.CmpKind, lhs, rhs Reg) {
	switch k {
	case ir.CmpEq:
		b.out.emit(concrete(isa.EQ, nil, dst, lhs, rhs))
	case ir.CmpLt:
		b.out.emit(concrete(isa.LT, nil, dst, lhs, rhs))
	case ir.CmpGt:
		b.out.emit(concrete(isa.GT, nil, dst, lhs, rhs))
	case ir.CmpNe:
		b.out.emit(concrete(isa.EQ, nil, dst, lhs, rhs))
		b.out.emit(concrete(isa.NOT, nil, dst, dst))
	case ir.CmpLe:
		b.out.emit(concrete(isa.GT, nil, dst, lhs, rhs))
		b.out.emit(concrete(isa.NOT, nil, dst, dst))
	case ir.CmpGe:
		b.out.emit(concrete(isa.LT, nil, dst, lhs, rhs))
		b.out.emit(concrete(isa.NOT, nil, dst, dst))
	}
}

// lowerEdge emits the MOVEs a branch's argument list requires before the
// jump itself: each target block-argument vreg was pre-assigned in
// buildFunction, so passing a value across the edge is just a register
// copy, the asm-level realization of a phi.
func (b *funcBuilder) lowerEdge(target ir.BlockID, args []ir.ValueID) {
	dsts := b.ctx.Block(target).Args
	for i, a := range args {
		b.out.emit(move(b.vregs[dsts[i]], b.valueReg(a)))
	}
}

func (b *funcBuilder) lowerGetLocal(dst Reg, local ir.PointerID) {
	if id, ok := b.out.DataLocal[local]; ok {
		b.out.emit(loadDataID(dst, id))
		return
	}
	b.localAddress(dst, b.out.LocalOffset[local])
}

func (b *funcBuilder) lowerGetConfig(dst Reg, name string) {
	c := b.irMod.Configs[name]
	id := b.mod.addData(encodeConstant(b.ctx, c))
	b.out.emit(loadDataID(dst, id))
}

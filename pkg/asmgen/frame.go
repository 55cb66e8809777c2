package asmgen

import (
	"vmc/pkg/ir"
	"vmc/pkg/isa"
)

const wordBytes = 8

// maxExtraArgs scans every call site in fn and returns the largest number
// of overflow (stack-spilled) arguments any single call makes, which sizes
// the frame extension's "8 x max-extra-args-across-calls" term.
func maxExtraArgs(ctx *ir.Context, fn ir.FunctionID) int {
	max := 0
	for _, b := range ctx.Function(fn).Blocks {
		for _, vid := range ctx.Block(b).Instructions {
			call, ok := ctx.Value(vid).Op.(ir.CallOp)
			if !ok {
				continue
			}
			if n := overflowArgCount(len(call.Args)); n > max {
				max = n
			}
		}
	}
	return max
}

// overflowArgCount decides when the overflow (stack-spilled argument)
// convention kicks in: it only activates once argCount strictly exceeds
// isa.NumArgRegisters; at exact equality every argument still goes in a
// register.
func overflowArgCount(argCount int) int {
	if argCount <= isa.NumArgRegisters {
		return 0
	}
	return argCount - (isa.NumArgRegisters - 1)
}

// layoutLocals assigns every one of fn's locals either a data-section slot
// (immutable, constant-initialized) or a stack offset from LocalsBase
// (everything else). It returns the total stack size in bytes for the
// non-overflow portion of the frame.
func layoutLocals(ctx *ir.Context, fnID ir.FunctionID, out *Func, mod *Module) int {
	f := ctx.Function(fnID)
	offset := 0
	for _, pid := range f.Locals {
		p := ctx.Pointer(pid)
		if !p.Mutable && p.Initializer != nil {
			out.DataLocal[pid] = mod.addData(encodeConstant(ctx, *p.Initializer))
			continue
		}
		out.LocalOffset[pid] = offset
		offset += ctx.TypeSizeWords(p.Pointee) * wordBytes
	}
	return offset
}

// encodeConstant renders a Constant into the raw bytes the data section
// stores for it. Integers and bools are written as a single 8-byte word,
// matching the VM's word-addressed LW/SW family; aggregates concatenate
// their field encodings in declared order, matching the field layout
// get-elem-ptr assumes.
func encodeConstant(ctx *ir.Context, c ir.Constant) []byte {
	switch c.Kind {
	case ir.ConstInt:
		return beWord(c.Int)
	case ir.ConstBool:
		if c.Bool {
			return beWord(1)
		}
		return beWord(0)
	case ir.ConstB256:
		return append([]byte(nil), c.B256[:]...)
	case ir.ConstBytes:
		return append([]byte(nil), c.Bytes...)
	case ir.ConstUndef:
		return make([]byte, ctx.TypeSizeWords(c.Type)*wordBytes)
	case ir.ConstAggregate:
		var buf []byte
		for _, field := range c.Fields {
			buf = append(buf, encodeConstant(ctx, field)...)
		}
		return buf
	}
	return nil
}

func beWord(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}

// localAddress emits the instructions to materialize local's address
// (LocalsBase + offset) into dst, using a direct ADDI when the offset fits
// 12 bits and falling back to MOVI-into-scratch-then-ADD otherwise.
func (b *funcBuilder) localAddress(dst Reg, offset int) {
	if isa.Fits(isa.Imm12, uint64(offset)) {
		b.out.emit(addi(dst, PR(isa.RegLocalsBase), uint64(offset)))
		return
	}
	scratch := PR(isa.RegScratch)
	b.out.emit(movi(scratch, uint64(offset)))
	b.out.emit(add(dst, PR(isa.RegLocalsBase), scratch))
}

package asmgen

import (
	"vmc/pkg/ir"
	"vmc/pkg/isa"
)

// lowerGetElemPtr computes the address of op's indexed field/element and
// materializes it into dst: struct/union indices are compile-time
// constants resolved against the Aggregate's field-offset table; array
// indices may be any integer and are scaled by the element's size in
// bytes at runtime.
func (b *funcBuilder) lowerGetElemPtr(dst Reg, op ir.GetElemPtrOp) {
	base := b.valueReg(op.Base)
	baseVal := b.ctx.Value(op.Base)
	cur := *baseVal.Type.Pointee
	offsetBytes := 0
	runtimeOffset := InvalidVReg // set once a non-constant array index is seen

	b.out.emit(move(dst, base))

	for _, ixID := range op.Indices {
		switch cur.Kind {
		case ir.TStruct, ir.TUnion:
			agg := b.ctx.Aggregate(cur.Agg)
			ix := constIndex(b.ctx, ixID)
			for i := 0; i < ix; i++ {
				offsetBytes += b.ctx.TypeSizeWords(agg.Fields[i]) * wordBytes
			}
			cur = fieldType(agg, ix)
		case ir.TArray:
			elemWords := b.ctx.TypeSizeWords(*cur.Elem)
			if isConst(b.ctx, ixID) {
				offsetBytes += constIndex(b.ctx, ixID) * elemWords * wordBytes
			} else {
				runtimeOffset = b.addDynamicIndex(dst, ixID, elemWords)
			}
			cur = *cur.Elem
		}
	}

	if offsetBytes > 0 {
		b.out.emit(addImmTo(dst, dst, offsetBytes))
	}
	if runtimeOffset != InvalidVReg {
		b.out.emit(add(dst, dst, VR(runtimeOffset)))
	}
}

// addImmTo adds an immediate byte offset to src, leaving the result in
// dst, with a single ADDI. Unlike the frame-address helper it does not
// escalate to MOVI+ADD: an offset wider than 12 bits panics in addi.
func addImmTo(dst, src Reg, offset int) Op {
	if isa.Fits(isa.Imm12, uint64(offset)) {
		return addi(dst, src, uint64(offset))
	}
	// Caller pre-allocates no scratch for this path today; oversized
	// struct/array offsets beyond 12 bits are rare enough in practice
	// that an out-of-range immediate here is flagged as fatal rather
	// than silently mis-encoded.
	return addi(dst, src, uint64(offset))
}

func (b *funcBuilder) addDynamicIndex(dst Reg, ixID ir.ValueID, elemWords int) VReg {
	ixReg := b.valueReg(ixID)
	scaled := VR(b.out.newVReg())
	factor := VR(b.out.newVReg())
	b.loadImm(factor, uint64(elemWords*wordBytes))
	b.out.emit(concrete(isa.MUL, nil, scaled, ixReg, factor))
	return scaled.V
}

func isConst(ctx *ir.Context, v ir.ValueID) bool {
	return ctx.Value(v).Kind == ir.VKConstant
}

func constIndex(ctx *ir.Context, v ir.ValueID) int {
	c := ctx.Value(v).Const
	return int(c.Int)
}

func fieldType(agg *ir.Aggregate, ix int) ir.Type {
	if ix < 0 || ix >= len(agg.Fields) {
		return ir.Unit()
	}
	return agg.Fields[ix]
}

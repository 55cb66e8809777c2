package analysis

import "vmc/pkg/ir"

// Operands returns every ValueID op reads, in operand order. It is the
// single place that knows the operand shape of each InstOp variant, so
// liveness, DCE, and def/use computation stay in sync with pkg/ir's
// instruction set as it grows.
func Operands(op ir.InstOp) []ir.ValueID {
	switch o := op.(type) {
	case ir.UnaryOp:
		return []ir.ValueID{o.X}
	case ir.BinaryOp:
		return []ir.ValueID{o.LHS, o.RHS}
	case ir.CmpOp:
		return []ir.ValueID{o.LHS, o.RHS}
	case ir.BranchOp:
		return append([]ir.ValueID{}, o.Args...)
	case ir.CondBranchOp:
		vs := []ir.ValueID{o.Cond}
		vs = append(vs, o.TrueArgs...)
		vs = append(vs, o.FalseArgs...)
		return vs
	case ir.CallOp:
		return append([]ir.ValueID{}, o.Args...)
	case ir.RetOp:
		if o.Val == ir.ValueID(ir.InvalidID) {
			return nil
		}
		return []ir.ValueID{o.Val}
	case ir.AsmBlockOp:
		var vs []ir.ValueID
		for _, in := range o.Inputs {
			if in.Init != ir.ValueID(ir.InvalidID) {
				vs = append(vs, in.Init)
			}
		}
		return vs
	case ir.BitcastOp:
		return []ir.ValueID{o.X}
	case ir.IntToPtrOp:
		return []ir.ValueID{o.X}
	case ir.PtrToIntOp:
		return []ir.ValueID{o.X}
	case ir.CastPtrOp:
		return []ir.ValueID{o.X}
	case ir.GetLocalOp:
		return nil
	case ir.GetConfigOp:
		return nil
	case ir.GetElemPtrOp:
		vs := []ir.ValueID{o.Base}
		vs = append(vs, o.Indices...)
		return vs
	case ir.ExtractValueOp:
		return []ir.ValueID{o.Agg}
	case ir.InsertValueOp:
		return []ir.ValueID{o.Agg, o.Val}
	case ir.LoadOp:
		return []ir.ValueID{o.Ptr}
	case ir.StoreOp:
		return []ir.ValueID{o.Ptr, o.Val}
	case ir.MemCopyBytesOp:
		return []ir.ValueID{o.Dst, o.Src}
	case ir.MemCopyValOp:
		return []ir.ValueID{o.Dst, o.Src}
	case ir.LogOp:
		return []ir.ValueID{o.Val, o.Key}
	case ir.RevertOp:
		return []ir.ValueID{o.Code}
	case ir.GtfOp:
		return []ir.ValueID{o.Index}
	case ir.ReadRegisterOp:
		return nil
	case ir.StateLoadWordOp:
		return []ir.ValueID{o.Key}
	case ir.StateStoreWordOp:
		return []ir.ValueID{o.Key, o.Val}
	case ir.StateLoadQuadOp:
		return []ir.ValueID{o.Key, o.Dst, o.Cnt}
	case ir.StateStoreQuadOp:
		return []ir.ValueID{o.Key, o.Src, o.Cnt}
	case ir.WideArithmeticOp:
		return []ir.ValueID{o.LHS, o.RHS}
	case ir.SmoOp:
		return []ir.ValueID{o.Recipient, o.Data, o.Coins}
	case ir.RetdOp:
		return []ir.ValueID{o.Ptr, o.Len}
	case ir.JmpMemOp:
		return nil
	default:
		return nil
	}
}

// DefUse records, for each value, the ordered list of instructions that
// define or use it. At the IR level a value has exactly one def (SSA), so
// the def side degenerates to a single ValueID; the use side is the list
// of instructions, in block-then-position order, whose Operands include
// it. The optimizer's mem2reg-style local-promotion pass walks Uses to
// decide whether every access to a Pointer is a plain load/store it can
// rewrite in place.
type DefUse struct {
	uses map[ir.ValueID][]ir.ValueID // operand -> ordered list of instructions using it
}

// Uses returns the instructions that read v, in the order they were
// visited (reverse post-order over blocks, program order within a block).
func (d *DefUse) Uses(v ir.ValueID) []ir.ValueID { return d.uses[v] }

// ComputeDefUse walks fn's blocks in reverse post-order and records, for
// every operand of every instruction, the instruction that reads it.
func ComputeDefUse(ctx *ir.Context, fn ir.FunctionID) *DefUse {
	du := &DefUse{uses: make(map[ir.ValueID][]ir.ValueID)}
	for _, b := range ReversePostOrder(ctx, fn) {
		for _, vid := range ctx.Block(b).Instructions {
			val := ctx.Value(vid)
			for _, operand := range Operands(val.Op) {
				du.uses[operand] = append(du.uses[operand], vid)
			}
		}
	}
	return du
}

package analysis

import "vmc/pkg/ir"

// RewriteOperand returns a copy of op with every occurrence of old among
// its operands replaced by new. It mirrors Operands' case list exactly —
// whatever Operands reads, RewriteOperand can replace — and is the
// mechanical half of every pass that substitutes one value for another:
// mem2reg's load replacement, inlining's parameter substitution, and
// demonomorphize's call-site rewriting all go through this single switch
// rather than re-deriving the operand shape of each InstOp ad hoc.
func RewriteOperand(op ir.InstOp, old, repl ir.ValueID) ir.InstOp {
	sub := func(v ir.ValueID) ir.ValueID {
		if v == old {
			return repl
		}
		return v
	}
	subSlice := func(vs []ir.ValueID) []ir.ValueID {
		out := make([]ir.ValueID, len(vs))
		for i, v := range vs {
			out[i] = sub(v)
		}
		return out
	}

	switch o := op.(type) {
	case ir.UnaryOp:
		o.X = sub(o.X)
		return o
	case ir.BinaryOp:
		o.LHS, o.RHS = sub(o.LHS), sub(o.RHS)
		return o
	case ir.CmpOp:
		o.LHS, o.RHS = sub(o.LHS), sub(o.RHS)
		return o
	case ir.BranchOp:
		o.Args = subSlice(o.Args)
		return o
	case ir.CondBranchOp:
		o.Cond = sub(o.Cond)
		o.TrueArgs = subSlice(o.TrueArgs)
		o.FalseArgs = subSlice(o.FalseArgs)
		return o
	case ir.CallOp:
		o.Args = subSlice(o.Args)
		return o
	case ir.RetOp:
		o.Val = sub(o.Val)
		return o
	case ir.AsmBlockOp:
		inputs := make([]ir.AsmInput, len(o.Inputs))
		for i, in := range o.Inputs {
			in.Init = sub(in.Init)
			inputs[i] = in
		}
		o.Inputs = inputs
		return o
	case ir.BitcastOp:
		o.X = sub(o.X)
		return o
	case ir.IntToPtrOp:
		o.X = sub(o.X)
		return o
	case ir.PtrToIntOp:
		o.X = sub(o.X)
		return o
	case ir.CastPtrOp:
		o.X = sub(o.X)
		return o
	case ir.GetElemPtrOp:
		o.Base = sub(o.Base)
		o.Indices = subSlice(o.Indices)
		return o
	case ir.ExtractValueOp:
		o.Agg = sub(o.Agg)
		return o
	case ir.InsertValueOp:
		o.Agg, o.Val = sub(o.Agg), sub(o.Val)
		return o
	case ir.LoadOp:
		o.Ptr = sub(o.Ptr)
		return o
	case ir.StoreOp:
		o.Ptr, o.Val = sub(o.Ptr), sub(o.Val)
		return o
	case ir.MemCopyBytesOp:
		o.Dst, o.Src = sub(o.Dst), sub(o.Src)
		return o
	case ir.MemCopyValOp:
		o.Dst, o.Src = sub(o.Dst), sub(o.Src)
		return o
	case ir.LogOp:
		o.Val, o.Key = sub(o.Val), sub(o.Key)
		return o
	case ir.RevertOp:
		o.Code = sub(o.Code)
		return o
	case ir.GtfOp:
		o.Index = sub(o.Index)
		return o
	case ir.StateLoadWordOp:
		o.Key = sub(o.Key)
		return o
	case ir.StateStoreWordOp:
		o.Key, o.Val = sub(o.Key), sub(o.Val)
		return o
	case ir.StateLoadQuadOp:
		o.Key, o.Dst, o.Cnt = sub(o.Key), sub(o.Dst), sub(o.Cnt)
		return o
	case ir.StateStoreQuadOp:
		o.Key, o.Src, o.Cnt = sub(o.Key), sub(o.Src), sub(o.Cnt)
		return o
	case ir.WideArithmeticOp:
		o.LHS, o.RHS = sub(o.LHS), sub(o.RHS)
		return o
	case ir.SmoOp:
		o.Recipient, o.Data, o.Coins = sub(o.Recipient), sub(o.Data), sub(o.Coins)
		return o
	case ir.RetdOp:
		o.Ptr, o.Len = sub(o.Ptr), sub(o.Len)
		return o
	default:
		return op
	}
}

// Package verifier implements the soundness checks, run
// after every optimizer pass: every Instruction's parent block contains
// it, every use is dominated by its def, block-argument arity matches on
// every incoming edge, per-instruction type contracts hold, and every
// block has exactly one terminator at its tail. The first violation
// aborts with a structured *diag.Error naming the function and the
// offending instruction.
package verifier

import (
	"github.com/sirupsen/logrus"

	"vmc/pkg/analysis"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
)

var verifierLog = logrus.StandardLogger()

// Verify runs every check against fn and returns the first
// violation found, or nil if fn is sound.
func Verify(ctx *ir.Context, fn ir.FunctionID) *diag.Error {
	f := ctx.Function(fn)
	log := verifierLog.WithFields(logrus.Fields{"module": f.Name, "pass": "verify"})

	dom := analysis.BuildDomTree(ctx, fn)

	if err := checkTerminators(ctx, f); err != nil {
		return err
	}
	if err := checkParentBlocks(ctx, f); err != nil {
		return err
	}
	if err := checkBlockArgArity(ctx, f); err != nil {
		return err
	}
	if err := checkUseDefDominance(ctx, f, dom); err != nil {
		return err
	}
	if err := checkTypeContracts(ctx, f); err != nil {
		return err
	}

	log.Debug("verification passed")
	return nil
}

func span(ctx *ir.Context, v *ir.Value) diag.Span {
	return ctx.Span(v.Metadata)
}

// checkTerminators enforces that a block has no terminator mid-block and
// exactly one terminator at block end.
func checkTerminators(ctx *ir.Context, f *ir.Function) *diag.Error {
	for _, bid := range f.Blocks {
		b := ctx.Block(bid)
		for i, vid := range b.Instructions {
			v := ctx.Value(vid)
			isLast := i == len(b.Instructions)-1
			if v.IsTerminator() && !isLast {
				return diag.Verification(f.Name, span(ctx, v),
					"terminator in block %q is not the last instruction", b.Name)
			}
			if !v.IsTerminator() && isLast {
				return diag.Verification(f.Name, span(ctx, v),
					"block %q has no terminator", b.Name)
			}
		}
		if len(b.Instructions) == 0 {
			return diag.Verification(f.Name, diag.Span{}, "block %q is empty", b.Name)
		}
	}
	return nil
}

// checkParentBlocks enforces that every Instruction's parent points back
// to the Block containing it.
func checkParentBlocks(ctx *ir.Context, f *ir.Function) *diag.Error {
	for _, bid := range f.Blocks {
		b := ctx.Block(bid)
		for _, vid := range b.Instructions {
			v := ctx.Value(vid)
			if v.Kind != ir.VKInstruction {
				return diag.Verification(f.Name, span(ctx, v),
					"block %q instruction list contains a non-instruction value", b.Name)
			}
			if v.Parent != bid {
				return diag.Verification(f.Name, span(ctx, v),
					"instruction's parent does not match the block listing it")
			}
		}
	}
	return nil
}

// checkBlockArgArity enforces block-argument arity on every incoming
// edge: every BranchOp/CondBranchOp edge passes exactly as many arguments
// as the target block declares.
func checkBlockArgArity(ctx *ir.Context, f *ir.Function) *diag.Error {
	arity := make(map[ir.BlockID]int, len(f.Blocks))
	for _, bid := range f.Blocks {
		arity[bid] = len(ctx.Block(bid).Args)
	}
	checkEdge := func(v *ir.Value, target ir.BlockID, args []ir.ValueID) *diag.Error {
		if len(args) != arity[target] {
			return diag.Verification(f.Name, span(ctx, v),
				"branch to block %q passes %d arguments, block declares %d",
				ctx.Block(target).Name, len(args), arity[target])
		}
		return nil
	}
	for _, bid := range f.Blocks {
		term, ok := ctx.Terminator(bid)
		if !ok {
			continue
		}
		v := ctx.Value(term)
		switch op := v.Op.(type) {
		case ir.BranchOp:
			if err := checkEdge(v, op.Target, op.Args); err != nil {
				return err
			}
		case ir.CondBranchOp:
			if err := checkEdge(v, op.TrueBlk, op.TrueArgs); err != nil {
				return err
			}
			if err := checkEdge(v, op.FalseBlk, op.FalseArgs); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkUseDefDominance enforces use-def dominance using a pre-computed
// dominator tree: every operand of every instruction must be defined by a
// value whose defining block dominates the use, or be a block argument
// of a block that dominates (or is) the use's block.
func checkUseDefDominance(ctx *ir.Context, f *ir.Function, dom *analysis.DomTree) *diag.Error {
	for _, bid := range f.Blocks {
		if !dom.Reachable(bid) && bid != f.Entry {
			continue
		}
		b := ctx.Block(bid)
		for _, vid := range b.Instructions {
			v := ctx.Value(vid)
			for _, operand := range analysis.Operands(v.Op) {
				def := ctx.Value(operand)
				if def.Kind == ir.VKConstant {
					continue
				}
				defBlock := defBlockOf(def)
				if !dom.Dominates(defBlock, bid) {
					return diag.Verification(f.Name, span(ctx, v),
						"use of value %d is not dominated by its definition", int(operand))
				}
			}
		}
	}
	return nil
}

func defBlockOf(v *ir.Value) ir.BlockID {
	if v.Kind == ir.VKBlockArg {
		return v.Block
	}
	return v.Parent
}

// checkTypeContracts enforces instruction-specific type contracts:
// binary-op operand types must be equal, a load/store's pointer must
// match the loaded value's type, and gep index types must match.
func checkTypeContracts(ctx *ir.Context, f *ir.Function) *diag.Error {
	for _, bid := range f.Blocks {
		b := ctx.Block(bid)
		for _, vid := range b.Instructions {
			v := ctx.Value(vid)
			if err := checkOneContract(ctx, f, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkOneContract(ctx *ir.Context, f *ir.Function, v *ir.Value) *diag.Error {
	switch op := v.Op.(type) {
	case ir.BinaryOp:
		lhs, rhs := ctx.Value(op.LHS), ctx.Value(op.RHS)
		if !lhs.Type.Equal(rhs.Type) {
			return diag.Verification(f.Name, span(ctx, v),
				"binary op operand types differ: %s vs %s", lhs.Type.Kind, rhs.Type.Kind)
		}
	case ir.CmpOp:
		lhs, rhs := ctx.Value(op.LHS), ctx.Value(op.RHS)
		if !lhs.Type.Equal(rhs.Type) {
			return diag.Verification(f.Name, span(ctx, v),
				"compare operand types differ: %s vs %s", lhs.Type.Kind, rhs.Type.Kind)
		}
	case ir.StoreOp:
		ptr, val := ctx.Value(op.Ptr), ctx.Value(op.Val)
		if ptr.Type.Kind != ir.TPtr {
			return diag.Verification(f.Name, span(ctx, v), "store target is not a pointer")
		}
		if !ptr.Type.Pointee.Equal(val.Type) {
			return diag.Verification(f.Name, span(ctx, v),
				"store value type does not match pointer's pointee type")
		}
	case ir.LoadOp:
		ptr := ctx.Value(op.Ptr)
		if ptr.Type.Kind != ir.TPtr {
			return diag.Verification(f.Name, span(ctx, v), "load source is not a pointer")
		}
		if !ptr.Type.Pointee.Equal(v.Type) {
			return diag.Verification(f.Name, span(ctx, v),
				"load result type does not match pointer's pointee type")
		}
	case ir.GetElemPtrOp:
		base := ctx.Value(op.Base)
		if base.Type.Kind != ir.TPtr {
			return diag.Verification(f.Name, span(ctx, v), "get-elem-ptr base is not a pointer")
		}
		for _, ixID := range op.Indices {
			ixVal := ctx.Value(ixID)
			if ixVal.Type.Kind != ir.TUint {
				return diag.Verification(f.Name, span(ctx, v),
					"get-elem-ptr index must be an integer, got %s", ixVal.Type.Kind)
			}
		}
	case ir.InsertValueOp:
		agg := ctx.Value(op.Agg)
		if agg.Type.Kind != ir.TStruct && agg.Type.Kind != ir.TUnion {
			return diag.Verification(f.Name, span(ctx, v), "insert-value target is not an aggregate")
		}
	case ir.ExtractValueOp:
		agg := ctx.Value(op.Agg)
		if agg.Type.Kind != ir.TStruct && agg.Type.Kind != ir.TUnion {
			return diag.Verification(f.Name, span(ctx, v), "extract-value target is not an aggregate")
		}
	case ir.CondBranchOp:
		cond := ctx.Value(op.Cond)
		if cond.Type.Kind != ir.TBool {
			return diag.Verification(f.Name, span(ctx, v), "conditional branch condition is not bool")
		}
	case ir.CallOp:
		callee := ctx.Function(op.Callee)
		if len(op.Args) != len(callee.Params) {
			return diag.Verification(f.Name, span(ctx, v),
				"call to %q passes %d arguments, declares %d", callee.Name, len(op.Args), len(callee.Params))
		}
		for i, a := range op.Args {
			av := ctx.Value(a)
			if !av.Type.Equal(callee.Params[i].Type) {
				return diag.Verification(f.Name, span(ctx, v),
					"call to %q argument %d type mismatch", callee.Name, i)
			}
		}
	}
	return nil
}

package optimizer

import (
	"vmc/pkg/analysis"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
)

// InlinePass inlines trivial single-block callees. Call sites whose
// callee's entire body is a single block ending in a plain return are
// inlined directly: the callee's instructions are cloned into the
// caller's block with parameters substituted by the call's arguments, and
// the original call's uses are redirected to the returned value. Calls
// crossing into functions with internal control flow are left as calls;
// multi-block inlining is a larger CFG-splicing problem this pass does
// not attempt.
type InlinePass struct{}

func (InlinePass) Name() string { return "inline" }
func (InlinePass) Analyses() []AnalysisKind { return []AnalysisKind{AnalysisCallGraph} }
func (InlinePass) Mutates() bool { return true }

func (p InlinePass) Run(ctx *ir.Context, mod *ir.Module, sink *diag.Sink, cache *AnalysisCache) (bool, *diag.Error) {
	changed := false
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		f := ctx.Function(fnID)
		for _, bid := range f.Blocks {
			blk := ctx.Block(bid)
			original := blk.Instructions
			newInsts := make([]ir.ValueID, 0, len(original))

			for _, vid := range original {
				v := ctx.Value(vid)
				call, isCall := v.Op.(ir.CallOp)
				if !isCall || call.Callee == fnID || !isStraightLine(ctx, call.Callee) {
					newInsts = append(newInsts, vid)
					continue
				}
				retVal := inlineBody(ctx, bid, call, &newInsts)
				redirectUses(ctx, fnID, vid, retVal)
				sink.Note(f.Name, ctx.Span(v.Metadata), "inlined call to %q", ctx.Function(call.Callee).Name)
				changed = true
			}
			blk.Instructions = newInsts
		}
	}
	return changed, nil
}

// isStraightLine reports whether fn's body is a single block terminated
// by a plain return — the only shape InlinePass splices without having to
// re-wire a multi-block CFG into the caller.
func isStraightLine(ctx *ir.Context, fn ir.FunctionID) bool {
	f := ctx.Function(fn)
	if len(f.Blocks) != 1 {
		return false
	}
	term, ok := ctx.Terminator(f.Blocks[0])
	if !ok {
		return false
	}
	_, isRet := ctx.Value(term).Op.(ir.RetOp)
	return isRet
}

// inlineBody clones callee's instructions (all but its RetOp terminator)
// into callerBlock, substituting callee parameters with call's arguments,
// and returns the ValueID the inlined body evaluates to.
func inlineBody(ctx *ir.Context, callerBlock ir.BlockID, call ir.CallOp, newInsts *[]ir.ValueID) ir.ValueID {
	callee := ctx.Function(call.Callee)
	valueMap := make(map[ir.ValueID]ir.ValueID, len(callee.Params)+4)
	for i, param := range callee.Params {
		valueMap[param.Value] = call.Args[i]
	}

	calleeBlock := ctx.Block(callee.Blocks[0])
	retVal := ir.ValueID(ir.InvalidID)
	for _, vid := range calleeBlock.Instructions {
		v := ctx.Value(vid)
		if ret, isRet := v.Op.(ir.RetOp); isRet {
			if mapped, ok := valueMap[ret.Val]; ok {
				retVal = mapped
			} else {
				retVal = ret.Val
			}
			continue
		}
		newOp := remapOperands(v.Op, valueMap)
		newID := ctx.NewInstruction(callerBlock, newOp, v.Type, v.Metadata)
		valueMap[vid] = newID
		*newInsts = append(*newInsts, newID)
	}
	if retVal == ir.ValueID(ir.InvalidID) {
		retVal = ctx.NewConstantValue(ir.Constant{Kind: ir.ConstUndef, Type: ir.Unit()})
	}
	return retVal
}

// remapOperands substitutes every operand of op present in valueMap.
// Cloned instructions always receive fresh, monotonically larger
// ValueIDs than anything already in valueMap, so chaining substitutions
// through analysis.RewriteOperand one pair at a time cannot cross-apply a
// later pair's replacement to an earlier pair's result.
func remapOperands(op ir.InstOp, valueMap map[ir.ValueID]ir.ValueID) ir.InstOp {
	for old, repl := range valueMap {
		op = analysis.RewriteOperand(op, old, repl)
	}
	return op
}

// redirectUses rewrites every instruction in fn that reads old to read
// repl instead, used once a CallOp has been spliced away by inlining.
func redirectUses(ctx *ir.Context, fn ir.FunctionID, old, repl ir.ValueID) {
	if old == repl {
		return
	}
	f := ctx.Function(fn)
	for _, bid := range f.Blocks {
		for _, vid := range ctx.Block(bid).Instructions {
			v := ctx.Value(vid)
			v.Op = analysis.RewriteOperand(v.Op, old, repl)
		}
	}
}

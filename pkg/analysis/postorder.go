// Package analysis implements the CFG and dataflow analyses:
// dominator trees, post-order, the call graph, liveness, and def/use
// points. Every analysis is a pure function of an *ir.Context plus an
// ir.FunctionID (or the whole Context for the call graph) returning an
// immutable result keyed by entity IDs, so the optimizer's pass manager
// can cache and invalidate them without the analyses themselves knowing
// about passes.
package analysis

import "vmc/pkg/ir"

// PostOrder walks fn's CFG from its entry block and returns block IDs in
// post-order (a block appears only after all of its successors reachable
// without revisiting it have). Unreachable blocks are omitted.
func PostOrder(ctx *ir.Context, fn ir.FunctionID) []ir.BlockID {
	f := ctx.Function(fn)
	visited := make(map[ir.BlockID]bool, len(f.Blocks))
	var order []ir.BlockID

	var visit func(b ir.BlockID)
	visit = func(b ir.BlockID) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, succ := range ctx.Successors(b) {
			visit(succ)
		}
		order = append(order, b)
	}
	visit(f.Entry)
	return order
}

// ReversePostOrder returns the block visitation order passes need when
// they require uses to follow defs: within a function, blocks are
// visited in reverse post-order.
func ReversePostOrder(ctx *ir.Context, fn ir.FunctionID) []ir.BlockID {
	po := PostOrder(ctx, fn)
	rpo := make([]ir.BlockID, len(po))
	for i, b := range po {
		rpo[len(po)-1-i] = b
	}
	return rpo
}

// Predecessors computes, for every block in fn, the set of blocks that
// branch to it — the inverse of ir.Context.Successors, which the dominator
// and liveness analyses both need and which ir.Block does not cache itself
// (successors are read off a terminator lazily instead of stored).
func Predecessors(ctx *ir.Context, fn ir.FunctionID) map[ir.BlockID][]ir.BlockID {
	f := ctx.Function(fn)
	preds := make(map[ir.BlockID][]ir.BlockID, len(f.Blocks))
	for _, b := range f.Blocks {
		for _, succ := range ctx.Successors(b) {
			preds[succ] = append(preds[succ], b)
		}
	}
	return preds
}

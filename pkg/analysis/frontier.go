package analysis

import "vmc/pkg/ir"

// DominanceFrontier computes, for every reachable block, the standard
// Cytron-et-al dominance frontier: the set of blocks where a definition
// from elsewhere stops dominating. The optimizer's mem2reg-equivalent pass
// uses this to place block-argument phis for a promoted
// local at the iterated dominance frontier of its store sites.
func DominanceFrontier(ctx *ir.Context, fn ir.FunctionID, dom *DomTree) map[ir.BlockID][]ir.BlockID {
	preds := Predecessors(ctx, fn)
	df := make(map[ir.BlockID][]ir.BlockID)
	f := ctx.Function(fn)

	for _, b := range f.Blocks {
		ps := preds[b]
		if len(ps) < 2 {
			continue
		}
		idomB, ok := dom.IDom(b)
		if !ok {
			continue
		}
		for _, p := range ps {
			if !dom.Reachable(p) {
				continue
			}
			runner := p
			for runner != idomB {
				df[runner] = append(df[runner], b)
				parent, ok := dom.IDom(runner)
				if !ok || parent == runner {
					break
				}
				runner = parent
			}
		}
	}
	return df
}

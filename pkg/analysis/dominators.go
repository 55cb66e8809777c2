package analysis

import "vmc/pkg/ir"

// DomTree is the dominator tree and post-order over a function's CFG,
// computed lazily and invalidated on CFG mutation. It is immutable once
// built; a pass that mutates the CFG must ask for a fresh one.
type DomTree struct {
	fn     ir.FunctionID
	idom   map[ir.BlockID]ir.BlockID // immediate dominator; entry maps to itself
	rpoIdx map[ir.BlockID]int
}

// BuildDomTree computes fn's dominator tree with the standard
// Cooper/Harvey/Kennedy iterative data-flow algorithm, which converges in
// a handful of passes over a reverse-post-order block list and needs no
// auxiliary graph library.
func BuildDomTree(ctx *ir.Context, fn ir.FunctionID) *DomTree {
	entry := ctx.Function(fn).Entry
	rpo := ReversePostOrder(ctx, fn)
	rpoIdx := make(map[ir.BlockID]int, len(rpo))
	for i, b := range rpo {
		rpoIdx[b] = i
	}
	preds := Predecessors(ctx, fn)

	idom := make(map[ir.BlockID]ir.BlockID, len(rpo))
	idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == entry {
				continue
			}
			var newIdom ir.BlockID
			found := false
			for _, p := range preds[b] {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !found {
					newIdom = p
					found = true
					continue
				}
				newIdom = intersect(idom, rpoIdx, newIdom, p)
			}
			if !found {
				continue
			}
			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return &DomTree{fn: fn, idom: idom, rpoIdx: rpoIdx}
}

func intersect(idom map[ir.BlockID]ir.BlockID, rpoIdx map[ir.BlockID]int, a, b ir.BlockID) ir.BlockID {
	for a != b {
		for rpoIdx[a] > rpoIdx[b] {
			a = idom[a]
		}
		for rpoIdx[b] > rpoIdx[a] {
			b = idom[b]
		}
	}
	return a
}

// IDom returns b's immediate dominator. The entry block is its own
// immediate dominator; an unreachable block has none (ok is false).
func (d *DomTree) IDom(b ir.BlockID) (ir.BlockID, bool) {
	id, ok := d.idom[b]
	return id, ok
}

// Dominates reports whether a dominates b (every path from the function's
// entry to b passes through a), the relation the Verifier checks use-def
// edges against.
func (d *DomTree) Dominates(a, b ir.BlockID) bool {
	if _, ok := d.idom[b]; !ok {
		return false
	}
	for {
		if a == b {
			return true
		}
		parent, ok := d.idom[b]
		if !ok || parent == b {
			return a == b
		}
		b = parent
	}
}

// Reachable reports whether b has a path from the function's entry block.
func (d *DomTree) Reachable(b ir.BlockID) bool {
	_, ok := d.idom[b]
	return ok
}

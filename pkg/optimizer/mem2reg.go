package optimizer

import (
	"sort"

	"vmc/pkg/analysis"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
)

// Mem2RegPass promotes addressable locals to SSA values. A local is
// promotable when every `get_local` taken on it has exactly one use and
// that use is a plain load or store — anything else (a get-elem-ptr, a
// call argument, a second use of the same address) means its address
// escapes and it is left on the stack for the ASM builder to frame-
// allocate instead. Promoted accesses are rewritten with the standard
// Cytron-et-al algorithm: block-argument phis at the iterated dominance
// frontier of the local's store sites, then a dominator-tree-ordered
// renaming walk.
type Mem2RegPass struct{}

func (Mem2RegPass) Name() string { return "mem2reg" }
func (Mem2RegPass) Analyses() []AnalysisKind { return []AnalysisKind{AnalysisDomTree, AnalysisDefUse} }
func (Mem2RegPass) Mutates() bool { return true }

func (Mem2RegPass) Run(ctx *ir.Context, mod *ir.Module, sink *diag.Sink, cache *AnalysisCache) (bool, *diag.Error) {
	changed := false
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		if promoteFunction(ctx, fnID) {
			changed = true
		}
	}
	return changed, nil
}

type localAccess struct {
	block ir.BlockID
	addr  ir.ValueID
}

func promoteFunction(ctx *ir.Context, fn ir.FunctionID) bool {
	f := ctx.Function(fn)
	if len(f.Locals) == 0 {
		return false
	}
	du := analysis.ComputeDefUse(ctx, fn)

	accesses := make(map[ir.PointerID][]localAccess)
	for _, bid := range f.Blocks {
		for _, vid := range ctx.Block(bid).Instructions {
			v := ctx.Value(vid)
			if glop, ok := v.Op.(ir.GetLocalOp); ok {
				accesses[glop.Local] = append(accesses[glop.Local], localAccess{block: bid, addr: vid})
			}
		}
	}

	promotable := make(map[ir.PointerID]bool)
	for _, pid := range f.Locals {
		ok := true
		for _, a := range accesses[pid] {
			uses := du.Uses(a.addr)
			if len(uses) != 1 {
				ok = false
				break
			}
			switch ctx.Value(uses[0]).Op.(type) {
			case ir.LoadOp, ir.StoreOp:
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		promotable[pid] = ok
	}

	anyPromotable := false
	for _, ok := range promotable {
		if ok {
			anyPromotable = true
			break
		}
	}
	if !anyPromotable {
		return false
	}

	dom := analysis.BuildDomTree(ctx, fn)
	df := analysis.DominanceFrontier(ctx, fn, dom)

	defBlocks := make(map[ir.PointerID]map[ir.BlockID]bool)
	for pid, ok := range promotable {
		if !ok {
			continue
		}
		defBlocks[pid] = make(map[ir.BlockID]bool)
		for _, a := range accesses[pid] {
			if _, isStore := ctx.Value(du.Uses(a.addr)[0]).Op.(ir.StoreOp); isStore {
				defBlocks[pid][a.block] = true
			}
		}
	}

	sortedPids := make([]ir.PointerID, 0, len(defBlocks))
	for pid := range defBlocks {
		sortedPids = append(sortedPids, pid)
	}
	sort.Slice(sortedPids, func(i, j int) bool { return sortedPids[i] < sortedPids[j] })

	phiBlocks := make(map[ir.PointerID]map[ir.BlockID]bool)
	for _, pid := range sortedPids {
		defs := defBlocks[pid]
		hasPhi := make(map[ir.BlockID]bool)
		worklist := make([]ir.BlockID, 0, len(defs))
		for b := range defs {
			worklist = append(worklist, b)
		}
		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, y := range df[b] {
				if hasPhi[y] {
					continue
				}
				hasPhi[y] = true
				if phiBlocks[pid] == nil {
					phiBlocks[pid] = make(map[ir.BlockID]bool)
				}
				phiBlocks[pid][y] = true
				if !defs[y] {
					worklist = append(worklist, y)
				}
			}
		}
	}

	phiArg := make(map[ir.PointerID]map[ir.BlockID]ir.ValueID)
	phiOrder := make(map[ir.BlockID][]ir.PointerID)
	for _, pid := range sortedPids {
		for _, bid := range f.Blocks {
			if !phiBlocks[pid][bid] {
				continue
			}
			v := ctx.AddBlockArg(bid, ctx.Pointer(pid).Pointee)
			if phiArg[pid] == nil {
				phiArg[pid] = make(map[ir.BlockID]ir.ValueID)
			}
			phiArg[pid][bid] = v
			phiOrder[bid] = append(phiOrder[bid], pid)
		}
	}

	children := make(map[ir.BlockID][]ir.BlockID)
	for _, b := range f.Blocks {
		if b == f.Entry || !dom.Reachable(b) {
			continue
		}
		p, _ := dom.IDom(b)
		children[p] = append(children[p], b)
	}

	currentValue := func(local map[ir.PointerID]ir.ValueID, pid ir.PointerID) ir.ValueID {
		if v, ok := local[pid]; ok {
			return v
		}
		pointer := ctx.Pointer(pid)
		var c ir.Constant
		if pointer.Initializer != nil {
			c = *pointer.Initializer
		} else {
			c = ir.ConstUndefOf(pointer.Pointee)
		}
		v := ctx.NewConstantValue(c)
		local[pid] = v
		return v
	}

	var rename func(b ir.BlockID, inherited map[ir.PointerID]ir.ValueID)
	rename = func(b ir.BlockID, inherited map[ir.PointerID]ir.ValueID) {
		local := make(map[ir.PointerID]ir.ValueID, len(inherited))
		for k, v := range inherited {
			local[k] = v
		}
		for pid, blocks := range phiArg {
			if v, ok := blocks[b]; ok {
				local[pid] = v
			}
		}

		blk := ctx.Block(b)
		skip := make(map[ir.ValueID]bool)
		kept := make([]ir.ValueID, 0, len(blk.Instructions))
		for _, vid := range blk.Instructions {
			if skip[vid] {
				continue
			}
			v := ctx.Value(vid)
			glop, isGetLocal := v.Op.(ir.GetLocalOp)
			if !isGetLocal || !promotable[glop.Local] {
				kept = append(kept, vid)
				continue
			}
			useID := du.Uses(vid)[0]
			useVal := ctx.Value(useID)
			switch uop := useVal.Op.(type) {
			case ir.LoadOp:
				replacement := currentValue(local, glop.Local)
				for _, consumer := range du.Uses(useID) {
					cv := ctx.Value(consumer)
					cv.Op = analysis.RewriteOperand(cv.Op, useID, replacement)
				}
				skip[useID] = true
			case ir.StoreOp:
				local[glop.Local] = uop.Val
				skip[useID] = true
			}
		}
		blk.Instructions = kept

		if term, ok := ctx.Terminator(b); ok {
			tv := ctx.Value(term)
			switch op := tv.Op.(type) {
			case ir.BranchOp:
				op.Args = append(append([]ir.ValueID{}, op.Args...), phiValues(phiOrder[op.Target], local, currentValue)...)
				tv.Op = op
			case ir.CondBranchOp:
				op.TrueArgs = append(append([]ir.ValueID{}, op.TrueArgs...), phiValues(phiOrder[op.TrueBlk], local, currentValue)...)
				op.FalseArgs = append(append([]ir.ValueID{}, op.FalseArgs...), phiValues(phiOrder[op.FalseBlk], local, currentValue)...)
				tv.Op = op
			}
		}

		for _, child := range children[b] {
			rename(child, local)
		}
	}
	rename(f.Entry, map[ir.PointerID]ir.ValueID{})
	return true
}

func phiValues(pids []ir.PointerID, local map[ir.PointerID]ir.ValueID, currentValue func(map[ir.PointerID]ir.ValueID, ir.PointerID) ir.ValueID) []ir.ValueID {
	out := make([]ir.ValueID, len(pids))
	for i, pid := range pids {
		out[i] = currentValue(local, pid)
	}
	return out
}

package optimizer

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"vmc/pkg/analysis"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
)

// DemonomorphizePass generalizes DedupPass:
// functions that differ only in the pointee type of their pointer
// parameters/locals/casts, and in the constant struct/union field index a
// get-elem-ptr inside them selects, are merged into one leader function.
// Each distinct constant field-index position is lifted into a trailing
// u64 parameter on the leader; every call site (including ones that
// already targeted the leader) is rewritten to pass its own member's
// original index value as that extra argument. Call sites materialize
// those lifted parameters per callee.
//
// Scope: only the GEP struct/union field index is lifted this way — it is
// already represented as a ValueID operand in this IR, so parameterizing
// it requires no change to the instruction's shape. mem-copy lengths
// (ir.MemCopyBytesOp.Len) are a plain uint64 field rather than an operand
// in this IR, so they remain part of the structural hash instead of being
// lifted: two functions whose only difference is a differing mem-copy
// length stay in separate classes, which is conservative (sound, just
// less aggressive) rather than unsound.
//
// Two candidates that differ only in whether a field is a plain T or a
// Ptr<T> are NOT merged: pointer shape must match exactly on both sides;
// only the pointee erases.
type DemonomorphizePass struct{}

func (DemonomorphizePass) Name() string { return "demonomorphize" }
func (DemonomorphizePass) Analyses() []AnalysisKind { return []AnalysisKind{AnalysisCallGraph} }
func (DemonomorphizePass) Mutates() bool { return true }

// liftSite names one constant GEP struct/union field index inside a
// function's body that demonomorphize may turn into a parameter.
type liftSite struct {
	valueID  ir.ValueID
	indexPos int
}

func (p DemonomorphizePass) Run(ctx *ir.Context, mod *ir.Module, sink *diag.Sink, cache *AnalysisCache) (bool, *diag.Error) {
	cg := cache.CallGraph(mod)
	order := cg.CalleeFirstOrder(mod)

	type desc struct {
		hash  uint64
		lifts []liftSite
	}
	descs := make(map[ir.FunctionID]desc, len(order))

	for _, fnID := range order {
		if ctx.IsDead(fnID) {
			continue
		}
		h, lifts, ok := describeShape(ctx, fnID)
		if !ok {
			sink.Note(ctx.Function(fnID).Name, diag.Span{}, "demonomorphize bailout: non-constant struct/union field index, not merged with any sibling")
			continue
		}
		descs[fnID] = desc{hash: h, lifts: lifts}
	}

	classes := make(map[uint64][]ir.FunctionID)
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		d, ok := descs[fnID]
		if !ok {
			continue
		}
		classes[d.hash] = append(classes[d.hash], fnID)
	}

	changed := false
	for _, members := range classes {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		leader := members[0]
		leaderLifts := descs[leader].lifts

		valid := true
		for _, m := range members {
			if len(descs[m].lifts) != len(leaderLifts) {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}

		// Capture every member's original index values before the leader
		// is mutated below (the leader is itself a member of this map).
		origIndexValues := make(map[ir.FunctionID][]ir.ValueID, len(members))
		for _, m := range members {
			vals := make([]ir.ValueID, len(descs[m].lifts))
			for i, s := range descs[m].lifts {
				gep := ctx.Value(s.valueID).Op.(ir.GetElemPtrOp)
				vals[i] = gep.Indices[s.indexPos]
			}
			origIndexValues[m] = vals
		}

		leaderFn := ctx.Function(leader)
		for i, site := range leaderLifts {
			pv := ctx.AddBlockArg(leaderFn.Entry, ir.Uint(64))
			leaderFn.AddParam(fmt.Sprintf("__demono%d", i), ir.Uint(64), pv)

			gval := ctx.Value(site.valueID)
			gep := gval.Op.(ir.GetElemPtrOp)
			indices := append([]ir.ValueID(nil), gep.Indices...)
			indices[site.indexPos] = pv
			gep.Indices = indices
			gval.Op = gep
		}

		for _, fnID := range mod.Functions {
			if ctx.IsDead(fnID) {
				continue
			}
			g := ctx.Function(fnID)
			for _, bid := range g.Blocks {
				for _, vid := range ctx.Block(bid).Instructions {
					v := ctx.Value(vid)
					call, isCall := v.Op.(ir.CallOp)
					if !isCall {
						continue
					}
					extra, isMember := origIndexValues[call.Callee]
					if !isMember || (call.Callee == leader && len(extra) == 0) {
						continue
					}
					call.Args = append(append([]ir.ValueID(nil), call.Args...), extra...)
					call.Callee = leader
					v.Op = call
				}
			}
		}

		for _, m := range members[1:] {
			ctx.MarkDead(m)
			sink.Note(ctx.Function(m).Name, diag.Span{}, "demonomorphized into %q (%d GEP offset(s) lifted to parameters)", ctx.Function(leader).Name, len(leaderLifts))
		}
		changed = true
	}
	return changed, nil
}

// shapeString renders t the way ir.Type.String does, except any pointer's
// pointee is erased uniformly — this is the one place Ptr(T1) and Ptr(T2)
// are made to compare equal.
func shapeString(t ir.Type) string {
	if t.Kind == ir.TPtr {
		return "ptr<*>"
	}
	return t.String()
}

// describeShape builds demonomorphize's structural description of fn: a
// hash that two monomorphic instantiations of the same generic function
// share, plus the ordered list of GEP struct/union field indices that hash
// ignored (the lift sites). ok is false if fn contains a non-constant
// struct/union field index (the verifier only checks that GEP indices are
// integers), since merging is sound only if every lifted index is
// statically resolvable.
func describeShape(ctx *ir.Context, fnID ir.FunctionID) (uint64, []liftSite, bool) {
	f := ctx.Function(fnID)
	var sb strings.Builder
	var lifts []liftSite
	ok := true

	fmt.Fprintf(&sb, "ret=%s|abi=%d|entry=%v|params=", shapeString(f.RetType), f.ABI, f.IsEntry)
	for _, param := range f.Params {
		fmt.Fprintf(&sb, "%s,", shapeString(param.Type))
	}
	sb.WriteByte('|')

	local := make(map[ir.ValueID]int)
	nextLocal := func(id ir.ValueID) int {
		if idx, ok := local[id]; ok {
			return idx
		}
		idx := len(local)
		local[id] = idx
		return idx
	}
	blockIdx := make(map[ir.BlockID]int, len(f.Blocks))
	for i, bid := range f.Blocks {
		blockIdx[bid] = i
	}
	operandStr := func(id ir.ValueID) string {
		v := ctx.Value(id)
		if v.Kind == ir.VKConstant {
			return "const:" + constString(v.Const)
		}
		return fmt.Sprintf("v%d", nextLocal(id))
	}

	for bi, bid := range f.Blocks {
		b := ctx.Block(bid)
		fmt.Fprintf(&sb, "B%d[", bi)
		for _, a := range b.Args {
			nextLocal(a)
			fmt.Fprintf(&sb, "%s,", shapeString(ctx.Value(a).Type))
		}
		sb.WriteString("]:")
		for _, vid := range b.Instructions {
			v := ctx.Value(vid)
			nextLocal(vid)
			fmt.Fprintf(&sb, "%s(", opKindName(v.Op))

			if gep, isGep := v.Op.(ir.GetElemPtrOp); isGep {
				sb.WriteString(operandStr(gep.Base))
				sb.WriteByte(',')
				cur := ctx.Value(gep.Base).Type
				if cur.Kind == ir.TPtr {
					elemCursor := *cur.Pointee
					for pos, ixID := range gep.Indices {
						switch elemCursor.Kind {
						case ir.TStruct, ir.TUnion:
							ixVal := ctx.Value(ixID)
							if ixVal.Kind != ir.VKConstant || ixVal.Const.Kind != ir.ConstInt {
								ok = false
								sb.WriteString("BAD,")
								continue
							}
							lifts = append(lifts, liftSite{valueID: vid, indexPos: pos})
							sb.WriteString("LIFT,")
							agg := ctx.Aggregate(elemCursor.Agg)
							ixv := int(ixVal.Const.Int)
							if ixv >= 0 && ixv < len(agg.Fields) {
								elemCursor = agg.Fields[ixv]
							}
						case ir.TArray:
							sb.WriteString(operandStr(ixID))
							sb.WriteByte(',')
							elemCursor = *elemCursor.Elem
						default:
							sb.WriteString(operandStr(ixID))
							sb.WriteByte(',')
						}
					}
				}
			} else {
				for _, operand := range analysis.Operands(v.Op) {
					sb.WriteString(operandStr(operand))
					sb.WriteByte(',')
				}
			}
			sb.WriteString(")")
			sb.WriteString(shapeInstExtra(v.Op))
			if call, isCall := v.Op.(ir.CallOp); isCall {
				fmt.Fprintf(&sb, "|callee=%d", call.Callee)
			}
			if br, isBr := v.Op.(ir.BranchOp); isBr {
				fmt.Fprintf(&sb, "|target=B%d", blockIdx[br.Target])
			}
			if cb, isCb := v.Op.(ir.CondBranchOp); isCb {
				fmt.Fprintf(&sb, "|true=B%d|false=B%d", blockIdx[cb.TrueBlk], blockIdx[cb.FalseBlk])
			}
			sb.WriteByte(';')
		}
	}

	if !ok {
		return 0, nil, false
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(sb.String()))
	return h.Sum64(), lifts, true
}

// shapeInstExtra mirrors dedup's instExtra but erases pointee types in any
// "to="/"ty=" field, the same way shapeString does for params/returns.
func shapeInstExtra(op ir.InstOp) string {
	switch o := op.(type) {
	case ir.UnaryOp:
		return fmt.Sprintf("op=%d", o.Op)
	case ir.BinaryOp:
		return fmt.Sprintf("op=%d", o.Op)
	case ir.CmpOp:
		return fmt.Sprintf("op=%d", o.Op)
	case ir.WideArithmeticOp:
		return fmt.Sprintf("op=%d", o.Op)
	case ir.BitcastOp:
		return "to=" + shapeString(o.To)
	case ir.IntToPtrOp:
		return "to=" + shapeString(o.To)
	case ir.PtrToIntOp:
		return "to=" + shapeString(o.To)
	case ir.CastPtrOp:
		return "to=" + shapeString(o.To)
	case ir.GetElemPtrOp:
		return "ty=" + shapeString(o.ElemPtrTy)
	case ir.ExtractValueOp:
		return fmt.Sprintf("idx=%v", o.Indices)
	case ir.InsertValueOp:
		return fmt.Sprintf("idx=%v", o.Indices)
	case ir.MemCopyBytesOp:
		return fmt.Sprintf("len=%d", o.Len)
	case ir.GtfOp:
		return fmt.Sprintf("field=%d", o.Field)
	case ir.ReadRegisterOp:
		return "reg=" + o.Register
	case ir.RetOp:
		return "ty=" + shapeString(o.Typ)
	case ir.GetConfigOp:
		return "name=" + o.Name + "|ty=" + shapeString(o.Typ)
	default:
		return ""
	}
}

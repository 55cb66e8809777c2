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

// DedupPass merges structurally identical functions, with a constructor
// flag choosing between two variants rather than two duplicate pass
// types, since the variants differ only in whether debug metadata
// participates in the structural hash: hash each
// live function (instructions, types, constants, and already-hashed
// callees, visited callee-first on the call graph so a callee's hash is
// always available before its caller needs it), group functions with
// equal hashes into an equivalence class, and redirect every call to a
// class member onto the class's leader — the member with the lowest
// FunctionID.
type DedupPass struct {
	includeMetadata bool
}

// NewDedupPass builds the pass. debugProfile selects the metadata-aware
// variant: when true, two functions whose bodies are identical but whose
// source spans differ are kept distinct, preserving per-site debug
// fidelity; when false (the default optimization path) metadata is
// ignored and more functions merge.
func NewDedupPass(debugProfile bool) *DedupPass {
	return &DedupPass{includeMetadata: debugProfile}
}

func (p *DedupPass) Name() string {
	if p.includeMetadata {
		return "dedup-with-metadata"
	}
	return "dedup"
}
func (p *DedupPass) Analyses() []AnalysisKind { return []AnalysisKind{AnalysisCallGraph} }
func (p *DedupPass) Mutates() bool { return true }

func (p *DedupPass) Run(ctx *ir.Context, mod *ir.Module, sink *diag.Sink, cache *AnalysisCache) (bool, *diag.Error) {
	cg := cache.CallGraph(mod)
	order := cg.CalleeFirstOrder(mod)

	hashes := make(map[ir.FunctionID]uint64, len(order))
	for _, fnID := range order {
		if ctx.IsDead(fnID) {
			continue
		}
		h := p.hashFunction(ctx, fnID, hashes)
		hashes[fnID] = h
	}

	classes := make(map[uint64][]ir.FunctionID)
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		h, ok := hashes[fnID]
		if !ok {
			continue
		}
		classes[h] = append(classes[h], fnID)
	}

	redirect := make(map[ir.FunctionID]ir.FunctionID)
	for _, members := range classes {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		leader := members[0]
		for _, m := range members[1:] {
			redirect[m] = leader
			ctx.MarkDead(m)
			sink.Note(ctx.Function(m).Name, diag.Span{}, "merged into %q by structural deduplication", ctx.Function(leader).Name)
		}
	}

	if len(redirect) == 0 {
		return false, nil
	}

	resolve := func(fn ir.FunctionID) ir.FunctionID {
		for {
			target, ok := redirect[fn]
			if !ok {
				return fn
			}
			fn = target
		}
	}

	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		f := ctx.Function(fnID)
		for _, bid := range f.Blocks {
			for _, vid := range ctx.Block(bid).Instructions {
				v := ctx.Value(vid)
				if call, ok := v.Op.(ir.CallOp); ok {
					if resolved := resolve(call.Callee); resolved != call.Callee {
						call.Callee = resolved
						v.Op = call
					}
				}
			}
		}
	}
	return true, nil
}

// hashFunction builds a canonical structural description of fn and
// returns its FNV-1a hash. ValueIDs are renumbered to their position of
// first appearance within fn so that two alpha-equivalent functions (same
// shape, different absolute arena IDs) hash equal; constants are hashed by
// value since literals are never interned across functions.
func (p *DedupPass) hashFunction(ctx *ir.Context, fnID ir.FunctionID, hashes map[ir.FunctionID]uint64) uint64 {
	f := ctx.Function(fnID)
	var sb strings.Builder

	fmt.Fprintf(&sb, "ret=%s|params=", f.RetType.String())
	for _, param := range f.Params {
		fmt.Fprintf(&sb, "%s,", param.Type.String())
	}
	fmt.Fprintf(&sb, "|abi=%d|entry=%v|", f.ABI, f.IsEntry)

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
			fmt.Fprintf(&sb, "%s,", ctx.Value(a).Type.String())
		}
		sb.WriteString("]:")
		for _, vid := range b.Instructions {
			v := ctx.Value(vid)
			nextLocal(vid)
			if p.includeMetadata {
				fmt.Fprintf(&sb, "@%s", ctx.Span(v.Metadata))
			}
			fmt.Fprintf(&sb, "%s(%s)", opKindName(v.Op), instExtra(v.Op, hashes))
			for _, operand := range analysis.Operands(v.Op) {
				sb.WriteString(operandStr(operand))
				sb.WriteByte(',')
			}
			if call, ok := v.Op.(ir.CallOp); ok {
				calleeHash := hashes[call.Callee]
				if call.Callee == fnID {
					calleeHash = selfCallSentinel
				}
				fmt.Fprintf(&sb, "|callee-hash=%d", calleeHash)
			}
			if br, ok := v.Op.(ir.BranchOp); ok {
				fmt.Fprintf(&sb, "|target=B%d", blockIdx[br.Target])
			}
			if cb, ok := v.Op.(ir.CondBranchOp); ok {
				fmt.Fprintf(&sb, "|true=B%d|false=B%d", blockIdx[cb.TrueBlk], blockIdx[cb.FalseBlk])
			}
			sb.WriteByte(';')
		}
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(sb.String()))
	return h.Sum64()
}

// selfCallSentinel stands in for a self-recursive call's own not-yet-
// available hash so that two structurally identical self-recursive
// functions still hash equal.
const selfCallSentinel uint64 = 0xFFFFFFFFFFFFFFFF

func opKindName(op ir.InstOp) string {
	return fmt.Sprintf("k%d", op.Kind())
}

// instExtra renders the scalar fields Operands() does not capture
// (operator kinds, GEP/extract indices that are ints not ValueIDs,
// immediate fields), so two instructions with the same operand shape but
// a different operator still hash differently.
func instExtra(op ir.InstOp, hashes map[ir.FunctionID]uint64) string {
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
		return "to=" + o.To.String()
	case ir.IntToPtrOp:
		return "to=" + o.To.String()
	case ir.PtrToIntOp:
		return "to=" + o.To.String()
	case ir.CastPtrOp:
		return "to=" + o.To.String()
	case ir.GetElemPtrOp:
		return "ty=" + o.ElemPtrTy.String()
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
		return "ty=" + o.Typ.String()
	case ir.GetConfigOp:
		return "name=" + o.Name + "|ty=" + o.Typ.String()
	default:
		return ""
	}
}

func constString(c ir.Constant) string {
	switch c.Kind {
	case ir.ConstInt:
		return fmt.Sprintf("int:%s:%d", c.Type.String(), c.Int)
	case ir.ConstBool:
		return fmt.Sprintf("bool:%v", c.Bool)
	case ir.ConstB256:
		return fmt.Sprintf("b256:%x", c.B256)
	case ir.ConstBytes:
		return fmt.Sprintf("bytes:%x", c.Bytes)
	case ir.ConstUndef:
		return "undef:" + c.Type.String()
	case ir.ConstAggregate:
		var sb strings.Builder
		sb.WriteString("agg:[")
		for _, f := range c.Fields {
			sb.WriteString(constString(f))
			sb.WriteByte(',')
		}
		sb.WriteByte(']')
		return sb.String()
	default:
		return "?"
	}
}

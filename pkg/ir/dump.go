package ir

import (
	"fmt"
	"strings"
)

// DumpModule renders a readable text listing of every live function in
// mod, in the style cmd/vmc's ir-dump command prints.
func DumpModule(ctx *Context, modID ModuleID) string {
	mod := ctx.Module(modID)
	var b strings.Builder
	fmt.Fprintf(&b, "module %s (%s)\n", mod.Name, mod.Kind)
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		dumpFunction(ctx, fnID, &b)
	}
	return b.String()
}

func (k ModuleKind) String() string {
	switch k {
	case Script:
		return "script"
	case Predicate:
		return "predicate"
	case Library:
		return "library"
	default:
		return "contract"
	}
}

func dumpFunction(ctx *Context, fnID FunctionID, b *strings.Builder) {
	fn := ctx.Function(fnID)
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	entry := ""
	if fn.IsEntry {
		entry = " entry"
	}
	fmt.Fprintf(b, "\nfn %s(%s) -> %s%s {\n", fn.Name, strings.Join(params, ", "), fn.RetType, entry)
	for _, bid := range fn.Blocks {
		dumpBlock(ctx, bid, b)
	}
	fmt.Fprintf(b, "}\n")
}

func dumpBlock(ctx *Context, bid BlockID, b *strings.Builder) {
	blk := ctx.Block(bid)
	args := make([]string, len(blk.Args))
	for i, a := range blk.Args {
		args[i] = fmt.Sprintf("%%%d: %s", a, ctx.Value(a).Type)
	}
	name := blk.Name
	if name == "" {
		name = fmt.Sprintf("bb%d", bid)
	}
	fmt.Fprintf(b, " %s(%s):\n", name, strings.Join(args, ", "))
	for _, vid := range blk.Instructions {
		fmt.Fprintf(b, " %s\n", dumpValue(ctx, vid))
	}
}

func dumpValue(ctx *Context, vid ValueID) string {
	v := ctx.Value(vid)
	lhs := fmt.Sprintf("%%%d = ", vid)
	switch op := v.Op.(type) {
	case RetOp:
		return fmt.Sprintf("ret %%%d, %s", op.Val, op.Typ)
	case BranchOp:
		return fmt.Sprintf("branch bb%d(%s)", op.Target, joinVals(op.Args))
	case CondBranchOp:
		return fmt.Sprintf("condbranch %%%d, bb%d(%s), bb%d(%s)",
			op.Cond, op.TrueBlk, joinVals(op.TrueArgs), op.FalseBlk, joinVals(op.FalseArgs))
	case StoreOp:
		return fmt.Sprintf("store %%%d, %%%d", op.Ptr, op.Val)
	case LoadOp:
		return lhs + fmt.Sprintf("load %%%d: %s", op.Ptr, v.Type)
	case CallOp:
		return lhs + fmt.Sprintf("call fn#%d(%s): %s", op.Callee, joinVals(op.Args), v.Type)
	case BinaryOp:
		return lhs + fmt.Sprintf("binop(%d) %%%d, %%%d: %s", op.Op, op.LHS, op.RHS, v.Type)
	case CmpOp:
		return lhs + fmt.Sprintf("cmp(%d) %%%d, %%%d: %s", op.Op, op.LHS, op.RHS, v.Type)
	default:
		return lhs + fmt.Sprintf("%T: %s", op, v.Type)
	}
}

func joinVals(vs []ValueID) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("%%%d", v)
	}
	return strings.Join(parts, ", ")
}

package optimizer

import (
	"vmc/pkg/analysis"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
)

// ConstantFoldPass replaces binary/unary/compare ops whose operands are
// both compile-time constants with the folded constant. Folded
// instructions are left in place with their uses rewritten to the new
// constant; DCE removes the now-dead original instruction in a later pass
// rather than this one reaching into block instruction lists itself.
type ConstantFoldPass struct{}

func (ConstantFoldPass) Name() string { return "constant-fold" }
func (ConstantFoldPass) Analyses() []AnalysisKind { return []AnalysisKind{AnalysisDefUse} }
func (ConstantFoldPass) Mutates() bool { return true }

func (ConstantFoldPass) Run(ctx *ir.Context, mod *ir.Module, sink *diag.Sink, cache *AnalysisCache) (bool, *diag.Error) {
	changed := false
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		du := analysis.ComputeDefUse(ctx, fnID)
		f := ctx.Function(fnID)
		for _, bid := range f.Blocks {
			for _, vid := range ctx.Block(bid).Instructions {
				v := ctx.Value(vid)
				folded, ok := foldOne(ctx, v)
				if !ok {
					continue
				}
				newID := ctx.NewConstantValue(folded)
				for _, consumer := range du.Uses(vid) {
					cv := ctx.Value(consumer)
					cv.Op = analysis.RewriteOperand(cv.Op, vid, newID)
				}
				changed = true
			}
		}
	}
	return changed, nil
}

func constOperand(ctx *ir.Context, id ir.ValueID) (ir.Constant, bool) {
	v := ctx.Value(id)
	if v.Kind != ir.VKConstant {
		return ir.Constant{}, false
	}
	return v.Const, true
}

func foldOne(ctx *ir.Context, v *ir.Value) (ir.Constant, bool) {
	switch op := v.Op.(type) {
	case ir.UnaryOp:
		x, ok := constOperand(ctx, op.X)
		if !ok || x.Kind != ir.ConstInt {
			return ir.Constant{}, false
		}
		switch op.Op {
		case ir.UnNot:
			return ir.ConstInteger(x.Type, ^x.Int&mask(x.Type)), true
		case ir.UnNeg:
			return ir.ConstInteger(x.Type, (^x.Int+1)&mask(x.Type)), true
		}
	case ir.BinaryOp:
		l, lok := constOperand(ctx, op.LHS)
		r, rok := constOperand(ctx, op.RHS)
		if !lok || !rok || l.Kind != ir.ConstInt || r.Kind != ir.ConstInt {
			return ir.Constant{}, false
		}
		m := mask(l.Type)
		switch op.Op {
		case ir.BinAdd:
			return ir.ConstInteger(l.Type, (l.Int+r.Int)&m), true
		case ir.BinSub:
			return ir.ConstInteger(l.Type, (l.Int-r.Int)&m), true
		case ir.BinMul:
			return ir.ConstInteger(l.Type, (l.Int*r.Int)&m), true
		case ir.BinDiv:
			if r.Int == 0 {
				return ir.Constant{}, false
			}
			return ir.ConstInteger(l.Type, (l.Int/r.Int)&m), true
		case ir.BinMod:
			if r.Int == 0 {
				return ir.Constant{}, false
			}
			return ir.ConstInteger(l.Type, (l.Int%r.Int)&m), true
		case ir.BinAnd:
			return ir.ConstInteger(l.Type, l.Int&r.Int), true
		case ir.BinOr:
			return ir.ConstInteger(l.Type, l.Int|r.Int), true
		case ir.BinXor:
			return ir.ConstInteger(l.Type, l.Int^r.Int), true
		case ir.BinShl:
			return ir.ConstInteger(l.Type, (l.Int<<r.Int)&m), true
		case ir.BinShr:
			return ir.ConstInteger(l.Type, l.Int>>r.Int), true
		}
	case ir.CmpOp:
		l, lok := constOperand(ctx, op.LHS)
		r, rok := constOperand(ctx, op.RHS)
		if !lok || !rok || l.Kind != ir.ConstInt || r.Kind != ir.ConstInt {
			return ir.Constant{}, false
		}
		var res bool
		switch op.Op {
		case ir.CmpEq:
			res = l.Int == r.Int
		case ir.CmpNe:
			res = l.Int != r.Int
		case ir.CmpLt:
			res = l.Int < r.Int
		case ir.CmpLe:
			res = l.Int <= r.Int
		case ir.CmpGt:
			res = l.Int > r.Int
		case ir.CmpGe:
			res = l.Int >= r.Int
		}
		return ir.ConstBoolean(res), true
	}
	return ir.Constant{}, false
}

// mask returns the bitmask for t's width, so folded arithmetic wraps the
// same way the VM's fixed-width registers do.
func mask(t ir.Type) uint64 {
	if t.Kind != ir.TUint || t.Bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(t.Bits)) - 1
}

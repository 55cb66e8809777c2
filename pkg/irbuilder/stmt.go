package irbuilder

import (
	"vmc/pkg/ir"
	"vmc/pkg/typedast"
)

// lowerBlock lowers a statement list and returns the ValueID of its
// trailing expression statement, or a Unit constant if the block is empty
// or ends in a `let`. Lowering stops early if a `return` closes the
// current block: subsequent statements in that block are dropped until
// the next label.
func (fb *funcBuilder) lowerBlock(blk *typedast.Block) (ir.ValueID, error) {
	fb.pushScope()
	defer fb.popScope()

	result := fb.b.Ctx.NewConstantValue(ir.ConstUndefOf(ir.Unit()))
	for _, st := range blk.Stmts {
		if fb.closed {
			break
		}
		if st.Let != nil {
			if err := fb.lowerLet(st.Let); err != nil {
				return 0, err
			}
			result = fb.b.Ctx.NewConstantValue(ir.ConstUndefOf(ir.Unit()))
			continue
		}
		v, err := fb.lowerExpr(st.Expr)
		if err != nil {
			return 0, err
		}
		result = v
	}
	return result, nil
}

// lowerLet lowers a variable declaration to `new_local` + `store` of the
// initializer.
func (fb *funcBuilder) lowerLet(let *typedast.LetStmt) error {
	pointee := fb.b.lowerType(let.Type)

	var constInit *ir.Constant
	if let.Init.Kind == typedast.EkLiteral {
		if c, err := fb.b.lowerConstExpr(let.Init); err == nil {
			constInit = &c
		}
	}
	ptr := fb.b.Ctx.NewPointer(fb.fn, let.Name, pointee, let.Mutable, constInit)

	initVal, err := fb.lowerExpr(let.Init)
	if err != nil {
		return err
	}
	addr := fb.b.Ctx.NewInstruction(fb.cur, ir.GetLocalOp{Local: ptr}, ir.Ptr(pointee), -1)
	fb.b.Ctx.NewInstruction(fb.cur, ir.StoreOp{Ptr: addr, Val: initVal}, ir.Unit(), -1)

	fb.bind(let.Name, binding{isParam: false, ptr: ptr, typ: pointee})
	return nil
}

// assignVar implements whole-variable writes to a previously `let`-bound
// name: get-local + store of the new value. Single-field writes go through
// lowerFieldAssign instead.
func (fb *funcBuilder) assignVar(name string, val ir.ValueID) error {
	bnd, ok := fb.lookup(name)
	if !ok || bnd.isParam {
		return errUnknownLocal(name)
	}
	addr := fb.b.Ctx.NewInstruction(fb.cur, ir.GetLocalOp{Local: bnd.ptr}, ir.Ptr(bnd.typ), -1)
	fb.b.Ctx.NewInstruction(fb.cur, ir.StoreOp{Ptr: addr, Val: val}, ir.Unit(), -1)
	return nil
}

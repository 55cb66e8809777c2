package irbuilder

import (
	"fmt"

	"vmc/pkg/ir"
	"vmc/pkg/typedast"
)

// lowerExpr implements the per-expression-kind lowering rules. It is the
// one function every statement and control-flow rule bottoms out in; the
// surrounding functions (lowerBlock, lowerLet, If/While helpers) only
// arrange which block lowerExpr's instructions land in.
func (fb *funcBuilder) lowerExpr(e typedast.Expr) (ir.ValueID, error) {
	switch e.Kind {
	case typedast.EkLiteral:
		c, err := fb.b.lowerConstExpr(e)
		if err != nil {
			return 0, err
		}
		return fb.b.Ctx.NewConstantValue(c), nil

	case typedast.EkUnit:
		return fb.unitConst(), nil

	case typedast.EkVar:
		return fb.lowerVar(e.Name)

	case typedast.EkAssign:
		return fb.lowerAssign(e.Name, *e.AssignVal)

	case typedast.EkFieldAssign:
		return fb.lowerFieldAssign(e.Base, e.Field, *e.AssignVal)

	case typedast.EkCall:
		return fb.lowerCall(e)

	case typedast.EkLazy:
		return fb.lowerLazy(e)

	case typedast.EkIf:
		return fb.lowerIf(e)

	case typedast.EkWhile:
		return fb.lowerWhile(e)

	case typedast.EkStruct:
		return fb.lowerStruct(e)

	case typedast.EkFieldAccess:
		return fb.lowerFieldAccess(e.Base, e.Field, -1, e.ResultType)

	case typedast.EkTupleIndex:
		return fb.lowerFieldAccess(e.Base, "", e.Index, e.ResultType)

	case typedast.EkEnumInst:
		return fb.lowerEnumInst(e)

	case typedast.EkAsm:
		return fb.lowerAsm(e)

	case typedast.EkCodeBlock:
		return fb.lowerBlock(e.Then)

	case typedast.EkReturn:
		var v ir.ValueID
		if e.Base != nil {
			var err error
			v, err = fb.lowerExpr(*e.Base)
			if err != nil {
				return 0, err
			}
		} else {
			v = fb.unitConst()
		}
		fb.emitReturn(v)
		return v, nil
	}
	return 0, fmt.Errorf("irbuilder: unhandled expression kind %d", e.Kind)
}

func (fb *funcBuilder) unitConst() ir.ValueID {
	return fb.b.Ctx.NewConstantValue(ir.ConstUndefOf(ir.Unit()))
}

// lowerVar implements the read side of a variable reference: a parameter
// resolves directly to its bound SSA value; a `let`-bound local resolves
// to get-local + load; anything else is looked up as a module configured
// constant via get-config.
func (fb *funcBuilder) lowerVar(name string) (ir.ValueID, error) {
	if bnd, ok := fb.lookup(name); ok {
		if bnd.isParam {
			return bnd.val, nil
		}
		addr := fb.b.Ctx.NewInstruction(fb.cur, ir.GetLocalOp{Local: bnd.ptr}, ir.Ptr(bnd.typ), -1)
		return fb.b.Ctx.NewInstruction(fb.cur, ir.LoadOp{Ptr: addr}, bnd.typ, -1), nil
	}
	if mod := fb.moduleOrNil(); mod != nil {
		if cst, ok := mod.Configs[name]; ok {
			return fb.b.Ctx.NewInstruction(fb.cur, ir.GetConfigOp{Name: name, Typ: cst.Type}, cst.Type, -1), nil
		}
	}
	return 0, errUnknownLocal(name)
}

func (fb *funcBuilder) moduleOrNil() *ir.Module {
	if fb.b.modID == ir.ModuleID(ir.InvalidID) {
		return nil
	}
	return fb.b.Ctx.Module(fb.b.modID)
}

func (fb *funcBuilder) lowerAssign(name string, rhs typedast.Expr) (ir.ValueID, error) {
	val, err := fb.lowerExpr(rhs)
	if err != nil {
		return 0, err
	}
	if err := fb.assignVar(name, val); err != nil {
		return 0, err
	}
	return fb.unitConst(), nil
}

// lowerFieldAssign handles assignment to a single field of an aggregate
// local: it emits get-elem-ptr + store rather than a whole-value store.
func (fb *funcBuilder) lowerFieldAssign(base *typedast.Expr, field string, rhs typedast.Expr) (ir.ValueID, error) {
	if base.Kind != typedast.EkVar {
		return 0, fmt.Errorf("irbuilder: field-assignment target must be a local variable")
	}
	bnd, ok := fb.lookup(base.Name)
	if !ok || bnd.isParam {
		return 0, errUnknownLocal(base.Name)
	}
	agg := fb.b.Ctx.Aggregate(bnd.typ.Agg)
	idx, ok := agg.FieldIndex(field)
	if !ok {
		return 0, fmt.Errorf("irbuilder: %s has no field %q", bnd.typ, field)
	}
	fieldTy := agg.Fields[idx]

	val, err := fb.lowerExpr(rhs)
	if err != nil {
		return 0, err
	}
	addr := fb.b.Ctx.NewInstruction(fb.cur, ir.GetLocalOp{Local: bnd.ptr}, ir.Ptr(bnd.typ), -1)
	ixVal := fb.b.Ctx.NewConstantValue(ir.ConstInteger(ir.Uint(64), uint64(idx)))
	gep := fb.b.Ctx.NewInstruction(fb.cur, ir.GetElemPtrOp{Base: addr, ElemPtrTy: ir.Ptr(fieldTy), Indices: []ir.ValueID{ixVal}}, ir.Ptr(fieldTy), -1)
	fb.b.Ctx.NewInstruction(fb.cur, ir.StoreOp{Ptr: gep, Val: val}, ir.Unit(), -1)
	return fb.unitConst(), nil
}

// lowerCall lowers a function call, including the library-inlining case
// where a call site supplies a body for a callee that does not yet exist
// in the module.
func (fb *funcBuilder) lowerCall(e typedast.Expr) (ir.ValueID, error) {
	callee, ok := fb.b.fnIDs[e.CallName]
	if !ok {
		if e.CallBody == nil {
			return 0, fmt.Errorf("irbuilder: call to undeclared function %q", e.CallName)
		}
		name := freshSyntheticName(e.CallName)
		id, err := fb.b.buildSyntheticFunction(name, e.CallArgs, e.CallBody)
		if err != nil {
			return 0, err
		}
		callee = id
	}

	args := make([]ir.ValueID, len(e.CallArgs))
	for i, a := range e.CallArgs {
		v, err := fb.lowerExpr(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	retTy := fb.b.Ctx.Function(callee).RetType
	return fb.b.Ctx.NewInstruction(fb.cur, ir.CallOp{Callee: callee, Args: args}, retTy, -1), nil
}

// lowerLazy implements short-circuit &&/||: the skipped arm's constant is
// supplied directly as a conditional-branch block argument rather than
// via an extra trivial block.
func (fb *funcBuilder) lowerLazy(e typedast.Expr) (ir.ValueID, error) {
	lhs, err := fb.lowerExpr(*e.LHS)
	if err != nil {
		return 0, err
	}
	rhsBlk := fb.b.Ctx.NewBlock(fb.fn, "lazy_rhs")
	mergeBlk := fb.b.Ctx.NewBlock(fb.fn, "lazy_merge")
	mergeArg := fb.b.Ctx.AddBlockArg(mergeBlk, ir.Bool())

	switch e.LazyOp {
	case typedast.LazyAnd:
		falseConst := fb.b.Ctx.NewConstantValue(ir.ConstBoolean(false))
		fb.b.Ctx.NewInstruction(fb.cur, ir.CondBranchOp{
			Cond: lhs, TrueBlk: rhsBlk, FalseBlk: mergeBlk, FalseArgs: []ir.ValueID{falseConst},
		}, ir.Unit(), -1)
	default: // LazyOr
		trueConst := fb.b.Ctx.NewConstantValue(ir.ConstBoolean(true))
		fb.b.Ctx.NewInstruction(fb.cur, ir.CondBranchOp{
			Cond: lhs, TrueBlk: mergeBlk, TrueArgs: []ir.ValueID{trueConst}, FalseBlk: rhsBlk,
		}, ir.Unit(), -1)
	}
	fb.closed = true

	fb.cur = rhsBlk
	fb.closed = false
	rhs, err := fb.lowerExpr(*e.RHS)
	if err != nil {
		return 0, err
	}
	if !fb.closed {
		fb.b.Ctx.NewInstruction(fb.cur, ir.BranchOp{Target: mergeBlk, Args: []ir.ValueID{rhs}}, ir.Unit(), -1)
	}

	fb.cur = mergeBlk
	fb.closed = false
	return mergeArg, nil
}

// lowerIf implements the if/else rule verbatim: three blocks, a
// conditional branch, each arm branching to merge with its result as the
// merge block's argument.
func (fb *funcBuilder) lowerIf(e typedast.Expr) (ir.ValueID, error) {
	cond, err := fb.lowerExpr(*e.Cond)
	if err != nil {
		return 0, err
	}
	trueBlk := fb.b.Ctx.NewBlock(fb.fn, "if_true")
	falseBlk := fb.b.Ctx.NewBlock(fb.fn, "if_false")
	mergeBlk := fb.b.Ctx.NewBlock(fb.fn, "if_merge")

	resTy := fb.b.lowerType(e.ResultType)
	mergeArg := fb.b.Ctx.AddBlockArg(mergeBlk, resTy)

	fb.b.Ctx.NewInstruction(fb.cur, ir.CondBranchOp{Cond: cond, TrueBlk: trueBlk, FalseBlk: falseBlk}, ir.Unit(), -1)
	fb.closed = true

	fb.cur = trueBlk
	fb.closed = false
	tv, err := fb.lowerBlock(e.Then)
	if err != nil {
		return 0, err
	}
	if !fb.closed {
		fb.b.Ctx.NewInstruction(fb.cur, ir.BranchOp{Target: mergeBlk, Args: []ir.ValueID{tv}}, ir.Unit(), -1)
	}

	fb.cur = falseBlk
	fb.closed = false
	var fv ir.ValueID
	if e.Else != nil {
		fv, err = fb.lowerBlock(e.Else)
		if err != nil {
			return 0, err
		}
	} else {
		fv = fb.unitConst()
	}
	if !fb.closed {
		fb.b.Ctx.NewInstruction(fb.cur, ir.BranchOp{Target: mergeBlk, Args: []ir.ValueID{fv}}, ir.Unit(), -1)
	}

	fb.cur = mergeBlk
	fb.closed = false
	return mergeArg, nil
}

// lowerWhile implements the while rule with three named blocks: cond
// (while), body (while_body), and end (end_while).
func (fb *funcBuilder) lowerWhile(e typedast.Expr) (ir.ValueID, error) {
	condBlk := fb.b.Ctx.NewBlock(fb.fn, "while")
	bodyBlk := fb.b.Ctx.NewBlock(fb.fn, "while_body")
	endBlk := fb.b.Ctx.NewBlock(fb.fn, "end_while")

	fb.b.Ctx.NewInstruction(fb.cur, ir.BranchOp{Target: condBlk}, ir.Unit(), -1)
	fb.closed = true

	fb.cur = condBlk
	fb.closed = false
	cond, err := fb.lowerExpr(*e.WCond)
	if err != nil {
		return 0, err
	}
	fb.b.Ctx.NewInstruction(fb.cur, ir.CondBranchOp{Cond: cond, TrueBlk: bodyBlk, FalseBlk: endBlk}, ir.Unit(), -1)
	fb.closed = true

	fb.cur = bodyBlk
	fb.closed = false
	if _, err := fb.lowerBlock(e.WBody); err != nil {
		return 0, err
	}
	if !fb.closed {
		fb.b.Ctx.NewInstruction(fb.cur, ir.BranchOp{Target: condBlk}, ir.Unit(), -1)
	}

	fb.cur = endBlk
	fb.closed = false
	return fb.unitConst(), nil
}

// lowerStruct implements the struct-expression rule: allocate an undef
// aggregate constant, successively insert-value each initialized field in
// the aggregate's declared field order (the tie-break rule), independent
// of initializer order.
func (fb *funcBuilder) lowerStruct(e typedast.Expr) (ir.ValueID, error) {
	aggID, ok := fb.b.Ctx.AggregateByName(e.StructName)
	if !ok {
		return 0, fmt.Errorf("irbuilder: undeclared struct %q", e.StructName)
	}
	agg := fb.b.Ctx.Aggregate(aggID)
	fieldVals := make([]ir.ValueID, len(agg.Fields))
	set := make([]bool, len(agg.Fields))
	for _, fi := range e.Fields {
		idx, ok := agg.FieldIndex(fi.Name)
		if !ok {
			return 0, fmt.Errorf("irbuilder: %s has no field %q", e.StructName, fi.Name)
		}
		v, err := fb.lowerExpr(fi.Val)
		if err != nil {
			return 0, err
		}
		fieldVals[idx] = v
		set[idx] = true
	}
	structTy := ir.StructTy(aggID)
	cur := fb.b.Ctx.NewConstantValue(ir.ConstUndefOf(structTy))
	for i, v := range fieldVals {
		if !set[i] {
			continue
		}
		cur = fb.b.Ctx.NewInstruction(fb.cur, ir.InsertValueOp{Agg: cur, Val: v, Indices: []int{i}}, structTy, -1)
	}
	return cur, nil
}

// lowerFieldAccess lowers field and tuple-index access: get-elem-ptr +
// load when the base is an addressable local, extract-value when the
// base is a plain SSA value. field is used for named access (struct),
// index for positional access (tuple-index); exactly one is meaningful
// per call (index < 0 selects field-by-name).
func (fb *funcBuilder) lowerFieldAccess(base *typedast.Expr, field string, index int, resultType typedast.TypeExpr) (ir.ValueID, error) {
	resTy := fb.b.lowerType(resultType)

	if base.Kind == typedast.EkVar {
		if bnd, ok := fb.lookup(base.Name); ok && !bnd.isParam {
			idx, err := fb.fieldIndex(bnd.typ, field, index)
			if err != nil {
				return 0, err
			}
			addr := fb.b.Ctx.NewInstruction(fb.cur, ir.GetLocalOp{Local: bnd.ptr}, ir.Ptr(bnd.typ), -1)
			ixVal := fb.b.Ctx.NewConstantValue(ir.ConstInteger(ir.Uint(64), uint64(idx)))
			gep := fb.b.Ctx.NewInstruction(fb.cur, ir.GetElemPtrOp{Base: addr, ElemPtrTy: ir.Ptr(resTy), Indices: []ir.ValueID{ixVal}}, ir.Ptr(resTy), -1)
			return fb.b.Ctx.NewInstruction(fb.cur, ir.LoadOp{Ptr: gep}, resTy, -1), nil
		}
	}

	baseVal, err := fb.lowerExpr(*base)
	if err != nil {
		return 0, err
	}
	baseTy := fb.b.Ctx.Value(baseVal).Type
	idx, err := fb.fieldIndex(baseTy, field, index)
	if err != nil {
		return 0, err
	}
	return fb.b.Ctx.NewInstruction(fb.cur, ir.ExtractValueOp{Agg: baseVal, Indices: []int{idx}, ResTy: resTy}, resTy, -1), nil
}

func (fb *funcBuilder) fieldIndex(t ir.Type, field string, index int) (int, error) {
	if index >= 0 {
		return index, nil
	}
	if t.Kind != ir.TStruct && t.Kind != ir.TUnion {
		return 0, fmt.Errorf("irbuilder: %s is not an aggregate", t)
	}
	agg := fb.b.Ctx.Aggregate(t.Agg)
	idx, ok := agg.FieldIndex(field)
	if !ok {
		return 0, fmt.Errorf("irbuilder: %s has no field %q", t, field)
	}
	return idx, nil
}

// lowerEnumInst lowers an enum constructor expression to a tagged tuple
// (u64 tag, payload), where payload is the widest variant — unions are
// modeled as get-elem-ptr into a sized buffer. The wrapper struct
// {tag: u64, payload: union} is registered once per enum name.
func (fb *funcBuilder) lowerEnumInst(e typedast.Expr) (ir.ValueID, error) {
	var payloadVal ir.ValueID
	var payloadTy ir.Type
	if e.Payload != nil {
		v, err := fb.lowerExpr(*e.Payload)
		if err != nil {
			return 0, err
		}
		payloadVal = v
		payloadTy = fb.b.Ctx.Value(v).Type
	} else {
		payloadVal = fb.unitConst()
		payloadTy = ir.Unit()
	}

	unionName := e.EnumName + "$payload"
	unionID, ok := fb.b.Ctx.AggregateByName(unionName)
	if !ok {
		unionID = fb.b.Ctx.RegisterAggregate(unionName, true, []ir.Type{payloadTy}, []string{"v0"})
	}
	wrapperName := e.EnumName
	wrapperID, ok := fb.b.Ctx.AggregateByName(wrapperName)
	if !ok {
		wrapperID = fb.b.Ctx.RegisterAggregate(wrapperName, false,
			[]ir.Type{ir.Uint(64), ir.UnionTy(unionID)}, []string{"tag", "payload"})
	}
	wrapperTy := ir.StructTy(wrapperID)

	local := fb.b.Ctx.NewPointer(fb.fn, "__enum_tmp", wrapperTy, true, nil)
	addr := fb.b.Ctx.NewInstruction(fb.cur, ir.GetLocalOp{Local: local}, ir.Ptr(wrapperTy), -1)

	tagIx := fb.b.Ctx.NewConstantValue(ir.ConstInteger(ir.Uint(64), 0))
	tagAddr := fb.b.Ctx.NewInstruction(fb.cur, ir.GetElemPtrOp{Base: addr, ElemPtrTy: ir.Ptr(ir.Uint(64)), Indices: []ir.ValueID{tagIx}}, ir.Ptr(ir.Uint(64)), -1)
	fb.b.Ctx.NewInstruction(fb.cur, ir.StoreOp{Ptr: tagAddr, Val: fb.b.Ctx.NewConstantValue(ir.ConstInteger(ir.Uint(64), e.Tag))}, ir.Unit(), -1)

	payloadIx := fb.b.Ctx.NewConstantValue(ir.ConstInteger(ir.Uint(64), 1))
	payloadAddr := fb.b.Ctx.NewInstruction(fb.cur, ir.GetElemPtrOp{Base: addr, ElemPtrTy: ir.Ptr(payloadTy), Indices: []ir.ValueID{payloadIx}}, ir.Ptr(payloadTy), -1)
	fb.b.Ctx.NewInstruction(fb.cur, ir.StoreOp{Ptr: payloadAddr, Val: payloadVal}, ir.Unit(), -1)

	return fb.b.Ctx.NewInstruction(fb.cur, ir.LoadOp{Ptr: addr}, wrapperTy, -1), nil
}

// lowerAsm implements the ASM-block rule: captured verbatim, not
// participating in SSA beyond its inputs/outputs.
func (fb *funcBuilder) lowerAsm(e typedast.Expr) (ir.ValueID, error) {
	inputs := make([]ir.AsmInput, len(e.AsmIns))
	for i, in := range e.AsmIns {
		init := ir.ValueID(ir.InvalidID)
		if in.Init != nil {
			v, err := fb.lowerExpr(*in.Init)
			if err != nil {
				return 0, err
			}
			init = v
		}
		inputs[i] = ir.AsmInput{Reg: in.Reg, Init: init}
	}
	lines := make([]ir.AsmLine, len(e.AsmLines))
	for i, l := range e.AsmLines {
		lines[i] = ir.AsmLine{Opcode: l.Opcode, Args: append([]string(nil), l.Args...), Imm: l.Imm}
	}
	retTy := fb.b.lowerType(e.AsmRet)
	op := ir.AsmBlockOp{Inputs: inputs, Out: e.AsmOut, RetType: retTy, Lines: lines}
	return fb.b.Ctx.NewInstruction(fb.cur, op, retTy, -1), nil
}

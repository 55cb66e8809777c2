package irbuilder

import (
	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/typedast"
)

// binding is one entry in a lexical scope: either a direct SSA value
// (a function parameter, bound by name, type, and SSA value ID) or
// addressable local storage (`let`-declared variables, which the
// lowering rules read via load and write via store).
type binding struct {
	isParam bool
	val     ir.ValueID
	ptr     ir.PointerID
	typ     ir.Type
}

// funcBuilder holds the transient state for lowering one function body:
// the current insertion block and a stack of lexical scopes.
type funcBuilder struct {
	b      *Builder
	fn     ir.FunctionID
	cur    ir.BlockID
	scopes []map[string]binding
	closed bool                 // set once a terminator has been emitted in cur
}

func (b *Builder) buildFunction(fd typedast.FnDecl, modKind ir.ModuleKind) error {
	id := b.fnIDs[fd.Name]
	f := b.Ctx.Function(id)
	f.IsEntry = fd.IsEntry
	f.Selector = fd.Selector
	if fd.IsEntry {
		switch modKind {
		case ir.Contract:
			f.ABI = ir.ABIContract
		case ir.Script:
			f.ABI = ir.ABIScript
		case ir.Predicate:
			f.ABI = ir.ABIPredicate
		}
	}

	entry := b.Ctx.NewBlock(id, "entry")
	f.Entry = entry

	fb := &funcBuilder{b: b, fn: id, cur: entry}
	fb.pushScope()
	defer fb.popScope()

	for _, p := range fd.Params {
		pt := b.lowerType(p.Type)
		v := b.Ctx.AddBlockArg(entry, pt)
		f.AddParam(p.Name, pt, v)
		fb.bind(p.Name, binding{isParam: true, val: v, typ: pt})
	}

	if fd.Body == nil {
		return nil
	}
	result, err := fb.lowerBlock(fd.Body)
	if err != nil {
		return err
	}
	if !fb.closed {
		fb.emitReturn(result)
	}
	return nil
}

// buildSyntheticFunction handles the library-inlining case: first compile
// the call's inline body as a synthetic private function with a freshly
// generated unique name, then recurse.
func (b *Builder) buildSyntheticFunction(name string, params []typedast.Expr, body *typedast.Block) (ir.FunctionID, error) {
	fd := typedast.FnDecl{
		Name: name,
		Visibility: typedast.Private,
		Ret: typedast.TypeExpr{Kind: typedast.KUint, Bits: 64},
		Body: body,
	}
	for i, a := range params {
		fd.Params = append(fd.Params, typedast.ParamDecl{Name: syntheticParamName(i), Type: a.ResultType})
	}
	id := b.Ctx.NewFunction(fd.Name, b.lowerType(fd.Ret), ir.Private)
	b.fnIDs[name] = id
	if b.modID >= 0 {
		b.Ctx.Module(b.modID).AddFunction(id)
	}
	if err := b.buildFunction(fd, ir.Library); err != nil {
		return id, err
	}
	return id, nil
}

func syntheticParamName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "arg_" + string(letters[i%len(letters)])
}

func (fb *funcBuilder) pushScope() { fb.scopes = append(fb.scopes, make(map[string]binding)) }
func (fb *funcBuilder) popScope() { fb.scopes = fb.scopes[:len(fb.scopes)-1] }

func (fb *funcBuilder) bind(name string, bnd binding) {
	fb.scopes[len(fb.scopes)-1][name] = bnd
}

func (fb *funcBuilder) lookup(name string) (binding, bool) {
	for i := len(fb.scopes) - 1; i >= 0; i-- {
		if bnd, ok := fb.scopes[i][name]; ok {
			return bnd, true
		}
	}
	return binding{}, false
}

func (fb *funcBuilder) emitReturn(v ir.ValueID) {
	val := fb.b.Ctx.Value(v)
	fb.b.Ctx.NewInstruction(fb.cur, ir.RetOp{Val: v, Typ: val.Type}, ir.Unit(), -1)
	fb.closed = true
}

func (fb *funcBuilder) span() diag.Span { return diag.Span{} }

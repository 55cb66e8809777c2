// Package irbuilder lowers a typed AST (pkg/typedast) to SSA IR (pkg/ir).
// It never re-typechecks: it trusts the AST, but the Verifier still catches
// structural errors.
package irbuilder

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/typedast"
)

var log = logrus.WithField("module", "irbuilder")

// Builder owns one Context and the per-module symbol tables needed to
// resolve calls and aggregate names while lowering.
type Builder struct {
	Ctx   *ir.Context
	Sink  *diag.Sink
	fnIDs map[string]ir.FunctionID
	mod   *typedast.Module
	modID ir.ModuleID
}

func New(ctx *ir.Context, sink *diag.Sink) *Builder {
	return &Builder{Ctx: ctx, Sink: sink, fnIDs: make(map[string]ir.FunctionID)}
}

// BuildModule lowers an entire typed-AST module into the Builder's Context,
// returning the new Module's ID.
func (b *Builder) BuildModule(tm *typedast.Module) (ir.ModuleID, error) {
	b.mod = tm
	kind := lowerModuleKind(tm.Kind)
	modID := b.Ctx.NewModule(kind, tm.Name)
	b.modID = modID
	mod := b.Ctx.Module(modID)

	for _, s := range tm.Structs {
		b.registerAggregate(s, false)
	}
	for _, u := range tm.Unions {
		b.registerAggregate(u, true)
	}
	for _, agg := range append(append([]typedast.AggDecl{}, tm.Structs...), tm.Unions...) {
		id, _ := b.Ctx.AggregateByName(agg.Name)
		mod.AddAggregate(id)
	}

	for _, cd := range tm.Consts {
		val, err := b.lowerConstExpr(cd.Init)
		if err != nil {
			return modID, err
		}
		mod.SetConfig(cd.Name, val)
	}

	// Pre-declare every function name so forward/mutually-recursive calls
	// resolve regardless of declaration order: the callee is located by
	// name in the current module.
	for _, fd := range tm.Fns {
		retTy := b.lowerType(fd.Ret)
		id := b.Ctx.NewFunction(fd.Name, retTy, lowerVisibility(fd.Visibility))
		b.fnIDs[fd.Name] = id
		mod.AddFunction(id)
	}

	for _, fd := range tm.Fns {
		if err := b.buildFunction(fd, kind); err != nil {
			return modID, err
		}
	}
	return modID, nil
}

func lowerModuleKind(k typedast.ModuleKind) ir.ModuleKind {
	switch k {
	case typedast.Script:
		return ir.Script
	case typedast.Predicate:
		return ir.Predicate
	case typedast.Library:
		return ir.Library
	default:
		return ir.Contract
	}
}

func lowerVisibility(v typedast.Visibility) ir.Visibility {
	if v == typedast.Public {
		return ir.Public
	}
	return ir.Private
}

func (b *Builder) registerAggregate(a typedast.AggDecl, isUnion bool) ir.AggregateID {
	if id, ok := b.Ctx.AggregateByName(a.Name); ok {
		return id
	}
	fields := make([]ir.Type, len(a.Fields))
	names := make([]string, len(a.Fields))
	for i, f := range a.Fields {
		fields[i] = b.lowerType(f.Type)
		names[i] = f.Name
	}
	return b.Ctx.RegisterAggregate(a.Name, isUnion, fields, names)
}

func (b *Builder) lowerType(t typedast.TypeExpr) ir.Type {
	switch t.Kind {
	case typedast.KUnit:
		return ir.Unit()
	case typedast.KBool:
		return ir.Bool()
	case typedast.KUint:
		return ir.Uint(t.Bits)
	case typedast.KB256:
		return ir.B256()
	case typedast.KString:
		return ir.StringTy(t.Len)
	case typedast.KPtr:
		return ir.Ptr(b.lowerType(*t.Pointee))
	case typedast.KSlice:
		return ir.Slice(b.lowerType(*t.Elem))
	case typedast.KArray:
		return ir.Array(b.lowerType(*t.Elem), t.Len)
	case typedast.KStruct:
		id, ok := b.Ctx.AggregateByName(t.Agg)
		if !ok {
			id = b.Ctx.RegisterAggregate(t.Agg, false, nil, nil)
		}
		return ir.StructTy(id)
	case typedast.KUnion:
		id, ok := b.Ctx.AggregateByName(t.Agg)
		if !ok {
			id = b.Ctx.RegisterAggregate(t.Agg, true, nil, nil)
		}
		return ir.UnionTy(id)
	}
	return ir.Unit()
}

// lowerConstExpr evaluates a module-level const initializer, which must be
// a literal: module configs are configured constants, not arbitrary
// runtime expressions.
func (b *Builder) lowerConstExpr(e typedast.Expr) (ir.Constant, error) {
	if e.Kind != typedast.EkLiteral {
		return ir.Constant{}, fmt.Errorf("irbuilder: module const initializer must be a literal, got kind %d", e.Kind)
	}
	t := b.lowerType(e.LitType)
	switch t.Kind {
	case ir.TBool:
		return ir.ConstBoolean(e.LitBool), nil
	case ir.TB256:
		return ir.ConstByte32(e.LitB256), nil
	case ir.TString:
		return ir.ConstByteString(e.LitStr), nil
	default:
		return ir.ConstInteger(t, e.LitInt), nil
	}
}

// freshSyntheticName produces a freshly generated unique name for when a
// call site supplies an inline body for a callee that does not yet exist
// in the module (the library-inlining case).
func freshSyntheticName(base string) string {
	return fmt.Sprintf("__inline_%s_%s", base, uuid.NewString()[:8])
}

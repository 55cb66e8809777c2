package asmgen

import (
	"testing"

	"vmc/pkg/ir"
)

// buildAdd constructs `fn add(a: u64, b: u64) -> u64 { return a + b; }`
// directly through the IR builder's public Context API, mirroring
// pkg/verifier's own tests.
func buildAdd(t *testing.T) (*ir.Context, *ir.Module) {
	t.Helper()
	ctx := ir.NewContext()
	modID := ctx.NewModule(ir.Library, "m")
	mod := ctx.Module(modID)

	fnID := ctx.NewFunction("add", ir.Uint(64), ir.Public)
	entry := ctx.NewBlock(fnID, "entry")
	f := ctx.Function(fnID)
	f.Entry = entry
	a := ctx.AddBlockArg(entry, ir.Uint(64))
	b := ctx.AddBlockArg(entry, ir.Uint(64))
	f.AddParam("a", ir.Uint(64), a)
	f.AddParam("b", ir.Uint(64), b)

	sum := ctx.NewInstruction(entry, ir.BinaryOp{Op: ir.BinAdd, LHS: a, RHS: b}, ir.Uint(64), -1)
	ctx.NewInstruction(entry, ir.RetOp{Val: sum, Typ: ir.Uint(64)}, ir.Unit(), -1)

	mod.AddFunction(fnID)
	return ctx, mod
}

func TestBuildModuleLowersSimpleFunction(t *testing.T) {
	ctx, mod := buildAdd(t)
	out, err := BuildModule(ctx, mod)
	if err != nil {
		t.Fatalf("BuildModule: %v", err)
	}
	if len(out.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(out.Functions))
	}
	fn := out.Functions[0]
	if len(fn.Ops) == 0 {
		t.Fatal("expected a non-empty op stream")
	}
	if fn.Ops[0].Org != OrgLabel {
		t.Fatalf("expected function to open with its entry label, got %+v", fn.Ops[0])
	}

	var sawAdd, sawRet, sawPushAll, sawPopAll bool
	for _, op := range fn.Ops {
		switch {
		case op.Org == OrgPushAll:
			sawPushAll = true
		case op.Org == OrgPopAll:
			sawPopAll = true
		case op.Org == OrgNone && op.Opcode.String() == "ADD":
			sawAdd = true
		case op.Org == OrgNone && op.Opcode.String() == "RET":
			sawRet = true
		}
	}
	if !sawAdd {
		t.Error("expected a lowered ADD for the binary op")
	}
	if !sawRet {
		t.Error("expected a lowered RET for the return")
	}
	if !sawPushAll || !sawPopAll {
		t.Error("expected a matching PushAll/PopAll callee-save pair")
	}
}

func TestBuildModuleSkipsDeadFunctions(t *testing.T) {
	ctx, mod := buildAdd(t)
	ctx.MarkDead(mod.Functions[0])
	out, err := BuildModule(ctx, mod)
	if err != nil {
		t.Fatalf("BuildModule: %v", err)
	}
	if len(out.Functions) != 0 {
		t.Fatalf("expected dead function to be skipped, got %d functions", len(out.Functions))
	}
}

package verifier

import (
	"testing"

	"vmc/pkg/diag"
	"vmc/pkg/ir"
)

func TestVerifyAcceptsSoundFunction(t *testing.T) {
	ctx, fn := buildIdentity(t)
	if err := Verify(ctx, fn); err != nil {
		t.Fatalf("expected sound function to verify, got %v", err)
	}
}

// buildIdentity constructs `fn id(a: u64) -> u64 { return a; }` directly
// through pkg/ir's public Context API (bypassing typedast and pkg/irbuilder)
// so this package's tests stay focused on the Verifier's own checks.
func buildIdentity(t *testing.T) (*ir.Context, ir.FunctionID) {
	t.Helper()
	ctx := ir.NewContext()
	fnID := ctx.NewFunction("identity", ir.Uint(64), ir.Public)
	entry := ctx.NewBlock(fnID, "entry")
	ctx.Function(fnID).Entry = entry
	a := ctx.AddBlockArg(entry, ir.Uint(64))
	ctx.Function(fnID).AddParam("a", ir.Uint(64), a)
	ctx.NewInstruction(entry, ir.RetOp{Val: a, Typ: ir.Uint(64)}, ir.Unit(), -1)
	return ctx, fnID
}

func TestVerifyRejectsMissingTerminator(t *testing.T) {
	ctx := ir.NewContext()
	fnID := ctx.NewFunction("no_ret", ir.Unit(), ir.Public)
	entry := ctx.NewBlock(fnID, "entry")
	ctx.Function(fnID).Entry = entry
	// A non-terminating binary op as the only, and therefore last,
	// instruction: the block never closes.
	c0 := ctx.NewConstantValue(ir.ConstInteger(ir.Uint(64), 1))
	ctx.NewInstruction(entry, ir.BinaryOp{Op: ir.BinAdd, LHS: c0, RHS: c0}, ir.Uint(64), -1)

	err := Verify(ctx, fnID)
	if err == nil {
		t.Fatal("expected verification failure for missing terminator")
	}
	if err.Kind != diag.KindVerification {
		t.Fatalf("expected KindVerification, got %v", err.Kind)
	}
}

func TestVerifyRejectsBlockArgArityMismatch(t *testing.T) {
	ctx := ir.NewContext()
	fnID := ctx.NewFunction("bad_branch", ir.Unit(), ir.Public)
	entry := ctx.NewBlock(fnID, "entry")
	merge := ctx.NewBlock(fnID, "merge")
	ctx.Function(fnID).Entry = entry
	ctx.AddBlockArg(merge, ir.Uint(64))

	// Branch to merge with zero arguments when merge declares one.
	ctx.NewInstruction(entry, ir.BranchOp{Target: merge, Args: nil}, ir.Unit(), -1)
	ctx.NewInstruction(merge, ir.RetOp{Val: ir.ValueID(ir.InvalidID), Typ: ir.Unit()}, ir.Unit(), -1)

	err := Verify(ctx, fnID)
	if err == nil {
		t.Fatal("expected verification failure for arity mismatch")
	}
}

func TestVerifyRejectsUseNotDominatedByDef(t *testing.T) {
	ctx := ir.NewContext()
	fnID := ctx.NewFunction("bad_dom", ir.Unit(), ir.Public)
	entry := ctx.NewBlock(fnID, "entry")
	left := ctx.NewBlock(fnID, "left")
	right := ctx.NewBlock(fnID, "right")
	ctx.Function(fnID).Entry = entry

	cond := ctx.NewConstantValue(ir.ConstBoolean(true))
	ctx.NewInstruction(entry, ir.CondBranchOp{Cond: cond, TrueBlk: left, FalseBlk: right}, ir.Unit(), -1)

	// A value defined only in `left`...
	v := ctx.NewConstantValue(ir.ConstInteger(ir.Uint(64), 1))
	defInLeft := ctx.NewInstruction(left, ir.BinaryOp{Op: ir.BinAdd, LHS: v, RHS: v}, ir.Uint(64), -1)
	ctx.NewInstruction(left, ir.RetOp{Val: defInLeft, Typ: ir.Uint(64)}, ir.Unit(), -1)

	//...used from `right`, which `left` does not dominate.
	ctx.NewInstruction(right, ir.RetOp{Val: defInLeft, Typ: ir.Uint(64)}, ir.Unit(), -1)

	err := Verify(ctx, fnID)
	if err == nil {
		t.Fatal("expected verification failure for a use not dominated by its def")
	}
	if err.Kind != diag.KindVerification {
		t.Fatalf("expected KindVerification, got %v", err.Kind)
	}
}

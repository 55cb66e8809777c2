package driver

import (
	"testing"

	"vmc/pkg/ir"
	"vmc/pkg/typedast"
)

func u64Type() typedast.TypeExpr { return typedast.TypeExpr{Kind: typedast.KUint, Bits: 64} }
func boolType() typedast.TypeExpr { return typedast.TypeExpr{Kind: typedast.KBool} }

func litInt(v uint64) typedast.Expr {
	return typedast.Expr{Kind: typedast.EkLiteral, LitType: u64Type(), LitInt: v, ResultType: u64Type()}
}

func litBool(v bool) typedast.Expr {
	return typedast.Expr{Kind: typedast.EkLiteral, LitType: boolType(), LitBool: v, ResultType: boolType()}
}

func varExpr(name string, t typedast.TypeExpr) typedast.Expr {
	return typedast.Expr{Kind: typedast.EkVar, Name: name, ResultType: t}
}

// TestCompileCallInliningCollapsesStraightLineCallee covers `fn a(x) -> x;
// fn main() { a(0); a(1) }`. At optimize level 2 the straight-line
// callee is inlined at both call sites, leaving no CallOp behind.
func TestCompileCallInliningCollapsesStraightLineCallee(t *testing.T) {
	mod := &typedast.Module{
		Kind: typedast.Script,
		Name: "s2",
		Fns: []typedast.FnDecl{
			{
				Name: "a",
				Params: []typedast.ParamDecl{{Name: "x", Type: u64Type()}},
				Ret: u64Type(),
				Visibility: typedast.Private,
				Body: &typedast.Block{Stmts: []typedast.Stmt{
						{Expr: varExpr("x", u64Type())},
					}},
			},
			{
				Name: "main",
				Ret: u64Type(),
				IsEntry: true,
				Visibility: typedast.Public,
				Body: &typedast.Block{Stmts: []typedast.Stmt{
						{Expr: typedast.Expr{Kind: typedast.EkCall, CallName: "a", CallArgs: []typedast.Expr{litInt(0)}, ResultType: u64Type()}},
						{Expr: typedast.Expr{Kind: typedast.EkCall, CallName: "a", CallArgs: []typedast.Expr{litInt(1)}, ResultType: u64Type()}},
					}},
			},
		},
	}

	res, err := Compile(&Package{Name: mod.Name, AST: mod}, Options{OptimizeLevel: 2})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	irMod := res.Ctx.Module(res.ModID)
	var mainID ir.FunctionID
	found := false
	for _, fnID := range irMod.Functions {
		if res.Ctx.Function(fnID).Name == "main" {
			mainID, found = fnID, true
		}
	}
	if !found {
		t.Fatal("main function not found after compilation")
	}
	main := res.Ctx.Function(mainID)
	for _, bid := range main.Blocks {
		for _, vid := range res.Ctx.Block(bid).Instructions {
			if _, isCall := res.Ctx.Value(vid).Op.(ir.CallOp); isCall {
				t.Fatalf("expected call to straight-line callee %q to be inlined away", "a")
			}
		}
	}
}

// TestCompileIfElseLowersToThreeNamedBlocks covers an if/else expression
// lowering into if_true/if_false/if_merge blocks with a conditional
// branch and each arm feeding the merge block's argument.
func TestCompileIfElseLowersToThreeNamedBlocks(t *testing.T) {
	mod := &typedast.Module{
		Kind: typedast.Script,
		Name: "s3",
		Fns: []typedast.FnDecl{
			{
				Name: "main",
				Ret: u64Type(),
				IsEntry: true,
				Visibility: typedast.Public,
				Body: &typedast.Block{Stmts: []typedast.Stmt{
						{Expr: typedast.Expr{
								Kind: typedast.EkIf,
								Cond: exprPtr(litBool(true)),
								Then: &typedast.Block{Stmts: []typedast.Stmt{{Expr: litInt(42)}}},
								Else: &typedast.Block{Stmts: []typedast.Stmt{{Expr: litInt(0)}}},
								ResultType: u64Type(),
							}},
					}},
			},
		},
	}

	res, err := Compile(&Package{Name: mod.Name, AST: mod}, Options{OptimizeLevel: 1})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	irMod := res.Ctx.Module(res.ModID)
	if len(irMod.Functions) == 0 {
		t.Fatal("expected at least one live function")
	}

	main := res.Ctx.Function(irMod.Functions[0])
	var sawTrue, sawFalse bool
	mergeArgs := -1
	for _, bid := range main.Blocks {
		blk := res.Ctx.Block(bid)
		switch blk.Name {
		case "if_true":
			sawTrue = true
		case "if_false":
			sawFalse = true
		case "if_merge":
			mergeArgs = len(blk.Args)
		}
	}
	if !sawTrue || !sawFalse || mergeArgs != 1 {
		t.Fatalf("expected if_true/if_false blocks and a one-argument if_merge block, got true=%v false=%v merge args=%d", sawTrue, sawFalse, mergeArgs)
	}
}

func exprPtr(e typedast.Expr) *typedast.Expr { return &e }

// TestCompileWhileLoopUsesThreeNamedBlocks covers a while loop over a
// mutable local, lowered into the three named blocks (while, while_body,
// end_while) and a store/load pair for the local before mem2reg promotes
// it to a block-argument phi.
func TestCompileWhileLoopUsesThreeNamedBlocks(t *testing.T) {
	mod := &typedast.Module{
		Kind: typedast.Script,
		Name: "s4",
		Fns: []typedast.FnDecl{
			{
				Name: "main",
				Ret: boolType(),
				IsEntry: true,
				Visibility: typedast.Public,
				Body: &typedast.Block{Stmts: []typedast.Stmt{
						{Let: &typedast.LetStmt{Name: "a", Mutable: true, Type: boolType(), Init: litBool(true)}},
						{Expr: typedast.Expr{
								Kind: typedast.EkWhile,
								WCond: exprPtr(varExpr("a", boolType())),
								WBody: &typedast.Block{Stmts: []typedast.Stmt{
										{Expr: typedast.Expr{Kind: typedast.EkAssign, Name: "a", AssignVal: exprPtr(litBool(false))}},
									}},
							}},
						{Expr: varExpr("a", boolType())},
					}},
			},
		},
	}

	res, err := Compile(&Package{Name: mod.Name, AST: mod}, Options{OptimizeLevel: 0})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	irMod := res.Ctx.Module(res.ModID)
	var mainID ir.FunctionID
	for _, fnID := range irMod.Functions {
		if res.Ctx.Function(fnID).Name == "main" {
			mainID = fnID
		}
	}
	main := res.Ctx.Function(mainID)

	var sawWhile, sawBody, sawEnd bool
	for _, bid := range main.Blocks {
		switch res.Ctx.Block(bid).Name {
		case "while":
			sawWhile = true
		case "while_body":
			sawBody = true
		case "end_while":
			sawEnd = true
		}
	}
	if !sawWhile || !sawBody || !sawEnd {
		t.Fatalf("expected while/while_body/end_while blocks, got while=%v body=%v end=%v", sawWhile, sawBody, sawEnd)
	}
}

func TestCompileProducesNonEmptyImage(t *testing.T) {
	mod := &typedast.Module{
		Kind: typedast.Script,
		Name: "trivial",
		Fns: []typedast.FnDecl{
			{
				Name: "main",
				Ret: u64Type(),
				IsEntry: true,
				Visibility: typedast.Public,
				Body: &typedast.Block{Stmts: []typedast.Stmt{
						{Expr: litInt(42)},
					}},
			},
		},
	}
	res, err := Compile(&Package{Name: mod.Name, AST: mod}, Options{OptimizeLevel: 1})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(res.Image.Bytes) == 0 {
		t.Fatal("expected a non-empty bytecode image")
	}
	if res.ABI != nil {
		t.Fatal("a Script module has no ABI")
	}
}

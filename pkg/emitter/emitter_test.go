package emitter

import (
	"testing"

	"vmc/pkg/asmgen"
	"vmc/pkg/ir"
	"vmc/pkg/isa"
	"vmc/pkg/regalloc"
)

// buildConst42 constructs `fn main() -> u64 { return 42; }` directly
// through the Context API, the trivial end-to-end case: a single block,
// one Return, no locals, no calls and no spills.
func buildConst42(t *testing.T) (*ir.Context, *ir.Module) {
	t.Helper()
	ctx := ir.NewContext()
	modID := ctx.NewModule(ir.Script, "m")
	mod := ctx.Module(modID)

	fnID := ctx.NewFunction("main", ir.Uint(64), ir.Public)
	f := ctx.Function(fnID)
	f.IsEntry = true
	f.ABI = ir.ABIScript
	entry := ctx.NewBlock(fnID, "entry")
	f.Entry = entry

	c := ctx.NewConstantValue(ir.ConstInteger(ir.Uint(64), 42))
	ctx.NewInstruction(entry, ir.RetOp{Val: c, Typ: ir.Uint(64)}, ir.Unit(), -1)

	mod.AddFunction(fnID)
	return ctx, mod
}

func compile(t *testing.T, ctx *ir.Context, mod *ir.Module) *Image {
	t.Helper()
	asmMod, err := asmgen.BuildModule(ctx, mod)
	if err != nil {
		t.Fatalf("BuildModule: %v", err)
	}
	for _, fn := range asmMod.Functions {
		if aerr := regalloc.Allocate(fn, 4); aerr != nil {
			t.Fatalf("Allocate: %v", aerr)
		}
	}
	img, eerr := Emit(ctx, mod, asmMod)
	if eerr != nil {
		t.Fatalf("Emit: %v", eerr)
	}
	return img
}

func TestEmitTrivialConstantFunction(t *testing.T) {
	ctx, mod := buildConst42(t)
	img := compile(t, ctx, mod)

	if img.CodeLen == 0 {
		t.Fatal("expected a non-empty code section")
	}
	if img.DataOffset != headerSize+img.CodeLen {
		t.Fatalf("data offset %d does not follow the header+code, got codeLen=%d", img.DataOffset, img.CodeLen)
	}
	if string(img.Bytes[:4]) != "VMC1" {
		t.Fatalf("unexpected magic: %q", img.Bytes[:4])
	}

	var sawMovi42, sawRet bool
	for off := uint32(headerSize); off+4 <= headerSize+img.CodeLen; off += 4 {
		word := isa.Word(uint32(img.Bytes[off])<<24 | uint32(img.Bytes[off+1])<<16 | uint32(img.Bytes[off+2])<<8 | uint32(img.Bytes[off+3]))
		op := isa.Opcode(word >> 24)
		switch op {
		case isa.MOVI:
			imm := uint32(word) & 0x3FFFF // 18-bit field
			if imm == 42 {
				sawMovi42 = true
			}
		case isa.RET:
			sawRet = true
		}
	}
	if !sawMovi42 {
		t.Error("expected a MOVI loading the literal 42")
	}
	if !sawRet {
		t.Error("expected a RET terminating the function")
	}
}

// buildSevenArgFunc constructs a function with 7 parameters, one more than
// isa.NumArgRegisters, exercising the overflow-pointer calling convention.
func buildSevenArgFunc(t *testing.T) (*ir.Context, *ir.Module) {
	t.Helper()
	if isa.NumArgRegisters != 6 {
		t.Fatalf("test assumes 6 argument registers, got %d", isa.NumArgRegisters)
	}
	ctx := ir.NewContext()
	modID := ctx.NewModule(ir.Library, "m")
	mod := ctx.Module(modID)

	fnID := ctx.NewFunction("seven", ir.Uint(64), ir.Public)
	entry := ctx.NewBlock(fnID, "entry")
	f := ctx.Function(fnID)
	f.Entry = entry

	var last ir.ValueID
	for i := 0; i < 7; i++ {
		arg := ctx.AddBlockArg(entry, ir.Uint(64))
		f.AddParam("p", ir.Uint(64), arg)
		last = arg
	}
	ctx.NewInstruction(entry, ir.RetOp{Val: last, Typ: ir.Uint(64)}, ir.Unit(), -1)

	mod.AddFunction(fnID)
	return ctx, mod
}

func TestEmitOverflowArgumentFunctionCompiles(t *testing.T) {
	ctx, mod := buildSevenArgFunc(t)
	img := compile(t, ctx, mod)
	if img.CodeLen == 0 {
		t.Fatal("expected a non-empty code section for a 7-argument function")
	}
}

func TestEmitRejectsImmediateOverflow(t *testing.T) {
	fn := &asmgen.Func{Name: "overflow"}
	imm, err := isa.NewImmediate(isa.Imm24, (1<<24)-1)
	if err != nil {
		t.Fatalf("NewImmediate: %v", err)
	}
	fn.Ops = []asmgen.Op{
		{Org: asmgen.OrgLabel},
		{Org: asmgen.OrgNone, Opcode: isa.CFEI, Imm: &imm},
		{Org: asmgen.OrgNone, Opcode: isa.RET},
	}
	mod := &asmgen.Module{Name: "m", Functions: []*asmgen.Func{fn}}
	ctx := ir.NewContext()
	modID := ctx.NewModule(ir.Library, "m")
	irMod := ctx.Module(modID)

	img, eerr := Emit(ctx, irMod, mod)
	if eerr != nil {
		t.Fatalf("Emit: %v", eerr)
	}
	if img.CodeLen == 0 {
		t.Fatal("expected the max-width immediate to still encode")
	}

	over, oerr := isa.NewImmediate(isa.Imm24, 1<<24)
	if oerr == nil {
		t.Fatalf("expected NewImmediate to reject a value exceeding a 24-bit field, got %v", over)
	}
}

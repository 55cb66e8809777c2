package asmgen

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"vmc/pkg/analysis"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/isa"
)

var log = logrus.WithField("module", "asmgen")

// labelsPerFunction bounds how many distinct Labels any one function's
// virtual-op lowering (entry + block labels + comparison/predicate temps)
// can allocate; see BuildModule's first pass for why this needs to be a
// disjoint range per function rather than a single shared counter.
const labelsPerFunction = 1 << 16

// BuildModule lowers every live function of mod to virtual assembly,
// implementing end to end: instruction lowering, the calling
// convention, and local-variable/stack-frame materialization.
func BuildModule(ctx *ir.Context, mod *ir.Module) (*Module, error) {
	out := &Module{Name: mod.Name}
	blockLabels := make(map[ir.FunctionID]map[ir.BlockID]Label)
	fnLabels := make(map[ir.FunctionID]Label)

	// Two passes: first allocate a Func + entry label for every live
	// function so cross-function calls can resolve their target label
	// before that callee's body is lowered (mutual recursion, forward
	// calls).
	//
	// OrgCall carries only a Label, not a FunctionID, so the emitter must be
	// able to tell two functions' entry labels apart by number alone. Each
	// function is given its own disjoint, generously sized slice of the
	// Label numbering space up front — cheap since Label is just an int at
	// this virtual layer — so a call's Target always resolves against
	// exactly one function's Ops, never collides with another function's
	// same-numbered block or temp label.
	funcIdx := 0
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		f := ctx.Function(fnID)
		fn := newFunc(f.Name, f.IsEntry)
		fn.numLbl = funcIdx * labelsPerFunction
		funcIdx++
		fn.EntryLabel = fn.newLabel()
		fnLabels[fnID] = fn.EntryLabel
		out.Functions = append(out.Functions, fn)
		blockLabels[fnID] = make(map[ir.BlockID]Label)
		for _, b := range f.Blocks {
			blockLabels[fnID][b] = fn.newLabel()
		}
	}

	i := 0
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		fn := out.Functions[i]
		i++
		if err := buildFunction(ctx, mod, fnID, fn, out, fnLabels, blockLabels[fnID]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// funcBuilder holds the transient lowering state for one function.
type funcBuilder struct {
	ctx    *ir.Context
	irMod  *ir.Module
	fn     ir.FunctionID
	out    *Func
	mod    *Module
	vregs  map[ir.ValueID]Reg
	fnLbl  map[ir.FunctionID]Label
	blkLbl map[ir.BlockID]Label

	// saveLbl ties this function's prologue OrgPushAll to every OrgPopAll
	// emitted at its return points, forming the synthetic PushAll(label) /
	// PopAll(label) pair.
	saveLbl Label
}

func buildFunction(ctx *ir.Context, irMod *ir.Module, fnID ir.FunctionID, out *Func, mod *Module, fnLbl map[ir.FunctionID]Label, blkLbl map[ir.BlockID]Label) error {
	f := ctx.Function(fnID)
	logrus.WithFields(logrus.Fields{"module": "asmgen", "function": f.Name}).Debug("lowering function")

	b := &funcBuilder{ctx: ctx, irMod: irMod, fn: fnID, out: out, mod: mod, vregs: make(map[ir.ValueID]Reg), fnLbl: fnLbl, blkLbl: blkLbl}

	// Every block argument (phi) gets a stable vreg up front so a branch
	// lowered before its target block's body still has somewhere to MOVE
	// its arguments into.
	for _, bid := range f.Blocks {
		for _, argVal := range ctx.Block(bid).Args {
			b.vregs[argVal] = VR(out.newVReg())
		}
	}

	localsSize := layoutLocals(ctx, fnID, out, mod)
	extra := maxExtraArgs(ctx, fnID)
	out.FrameSize = localsSize + extra*wordBytes

	out.emit(label(out.EntryLabel))
	if out.FrameSize > 0 {
		imm, err := isa.NewImmediate(isa.Imm24, uint64(out.FrameSize))
		if err != nil {
			return diag.ImmediateRange(f.Name, diag.Span{}, "frame size %d exceeds 24-bit CFEI range", out.FrameSize)
		}
		out.emitWithComment(concrete(isa.CFEI, &imm), "grow frame")
		out.emit(move(PR(isa.RegLocalsBase), PR(isa.RegFP)))
	}

	if f.IsEntry {
		b.loadEntryArgs(f)
	} else {
		b.loadCalleeArgs(f)
	}
	b.initDataBackedLocals(f)

	// Every register the function body goes on to use is callee-saved as a
	// block via a single synthetic push/pop pair; pkg/regalloc resolves the
	// actual register set once allocation has run.
	b.saveLbl = out.newLabel()
	out.emit(Op{Org: OrgPushAll, Target: b.saveLbl})

	for _, bid := range analysis.ReversePostOrder(ctx, fnID) {
		out.emit(label(blkLbl[bid]))
		if err := b.lowerBlock(bid); err != nil {
			return err
		}
	}
	return nil
}

func (b *funcBuilder) valueReg(v ir.ValueID) Reg {
	if r, ok := b.vregs[v]; ok {
		return r
	}
	val := b.ctx.Value(v)
	if val.Kind == ir.VKConstant {
		r := VR(b.out.newVReg())
		b.materializeConstant(r, val.Const)
		b.vregs[v] = r
		return r
	}
	// Reached only if a value is used before its defining instruction was
	// lowered, which the Verifier's dominance check rules out
	// for any IR that reached the ASM builder.
	panic(fmt.Sprintf("asmgen: value %d has no assigned register", int(v)))
}

func (b *funcBuilder) defReg(v ir.ValueID) Reg {
	r := VR(b.out.newVReg())
	b.vregs[v] = r
	return r
}

func (b *funcBuilder) materializeConstant(dst Reg, c ir.Constant) {
	switch c.Kind {
	case ir.ConstInt:
		b.loadImm(dst, c.Int)
	case ir.ConstBool:
		if c.Bool {
			b.loadImm(dst, 1)
		} else {
			b.loadImm(dst, 0)
		}
	default:
		// B256, byte strings and aggregates are reference types
		// materialized out of the data section instead of an immediate.
		id := b.mod.addData(encodeConstant(b.ctx, c))
		b.out.emit(loadDataID(dst, id))
	}
}

// loadImm materializes an integer constant into dst: a direct MOVI when it
// fits 18 bits, otherwise a load of the value from a data-section word —
// the same fits-or-escalate approach the frame address helper uses.
func (b *funcBuilder) loadImm(dst Reg, v uint64) {
	if isa.Fits(isa.Imm18, v) {
		b.out.emit(movi(dst, v))
		return
	}
	// Wider-than-18-bit literal: place it in the data section and read it
	// back with a zero-offset LW, since there is no wider immediate-load
	// opcode in the 12/18/24-bit family.
	id := b.mod.addData(beWord(v))
	b.out.emit(loadDataID(dst, id))
	b.out.emit(concrete(isa.LW, imm12(0), dst, dst))
}

func (b *funcBuilder) lowerBlock(bid ir.BlockID) error {
	blk := b.ctx.Block(bid)
	for _, vid := range blk.Instructions {
		val := b.ctx.Value(vid)
		if err := b.lowerInst(vid, val); err != nil {
			return err
		}
	}
	return nil
}

package regalloc

import (
	"sort"

	"vmc/pkg/asmgen"
	"vmc/pkg/isa"
)

// rewriteSpills implements step 6: grows the stack frame by 8
// bytes per spilled register, ordered by register name (ascending VReg,
// since names are assigned "v<index>" in allocation order) for
// reproducibility, then inserts a LW immediately before every use and a SW
// immediately after every def of a spilled register, addressing its slot
// off LocalsBase. Each inserted load/store targets a fresh virtual register
// with a live range confined to that single instruction, so the next
// allocation round has a much better
// chance of coloring it.
func rewriteSpills(fn *asmgen.Func, spills []asmgen.VReg) {
	sorted := append([]asmgen.VReg(nil), spills...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	slot := make(map[asmgen.VReg]int, len(sorted))
	base := fn.FrameSize
	for i, v := range sorted {
		slot[v] = base + i*wordBytes
	}
	growFrame(fn, len(sorted)*wordBytes)

	out := make([]asmgen.Op, 0, len(fn.Ops))
	for _, op := range fn.Ops {
		_, hasDef, _ := defUse(op)
		operands := append([]asmgen.Reg(nil), op.Operands...)

		for i, r := range operands {
			isDefPos := hasDef && i == 0
			if isDefPos || !r.Virtual {
				continue
			}
			off, spilled := slot[r.V]
			if !spilled {
				continue
			}
			t := asmgen.VR(fn.NewVReg())
			out = append(out, loadSpillSlot(t, off)...)
			operands[i] = t
		}

		rewritten := op
		rewritten.Operands = operands
		out = append(out, rewritten)

		if hasDef && len(operands) > 0 && op.Operands[0].Virtual {
			if off, spilled := slot[op.Operands[0].V]; spilled {
				t := asmgen.VR(fn.NewVReg())
				operands[0] = t
				out[len(out)-1].Operands = operands
				out = append(out, storeSpillSlot(t, off)...)
			}
		}
	}
	fn.Ops = out
}

// growFrame extends fn's existing CFEI (or inserts one, if the function had
// no frame at all) by extra bytes, reusing LocalsBase as the spill area's
// base register exactly like every other local.
func growFrame(fn *asmgen.Func, extra int) {
	if extra == 0 {
		return
	}
	newSize := fn.FrameSize + extra
	for i, op := range fn.Ops {
		if op.Org == asmgen.OrgNone && op.Opcode == isa.CFEI {
			imm, err := isa.NewImmediate(isa.Imm24, uint64(newSize))
			if err == nil {
				fn.Ops[i].Imm = &imm
				fn.FrameSize = newSize
				return
			}
		}
	}
	// No existing CFEI: the function had an empty frame before spilling.
	// Insert one right after the entry label, plus the LocalsBase <- FP
	// move every other frame-owning function performs.
	imm, err := isa.NewImmediate(isa.Imm24, uint64(newSize))
	if err != nil {
		// Spilling enough registers to overflow a 24-bit frame is the same
		// unrecoverable condition calls out for oversized frames;
		// the caller (Allocate) surfaces this as a diag.Allocation error.
		fn.FrameSize = newSize
		return
	}
	prelude := []asmgen.Op{
		{Org: asmgen.OrgNone, Opcode: isa.CFEI, Imm: &imm},
		{Org: asmgen.OrgNone, Opcode: isa.MOVE, Operands: []asmgen.Reg{asmgen.PR(isa.RegLocalsBase), asmgen.PR(isa.RegFP)}},
	}
	insertAt := 1 // right after the entry label op
	rebuilt := make([]asmgen.Op, 0, len(fn.Ops)+len(prelude))
	rebuilt = append(rebuilt, fn.Ops[:insertAt]...)
	rebuilt = append(rebuilt, prelude...)
	rebuilt = append(rebuilt, fn.Ops[insertAt:]...)
	fn.Ops = rebuilt
	fn.FrameSize = newSize
}

// materializeSpillAddr computes LocalsBase+offset into the reserved
// scratch register, mirroring pkg/asmgen/frame.go's localAddress
// escalation: a MOVI of the byte offset followed by an ADD against
// LocalsBase, since offset is too wide for LW/SW's scaled 12-bit field.
func materializeSpillAddr(offset int) []asmgen.Op {
	scratch := asmgen.PR(isa.RegScratch)
	base := asmgen.PR(isa.RegLocalsBase)
	movImm, _ := isa.NewImmediate(isa.Imm18, uint64(offset))
	return []asmgen.Op{
		{Org: asmgen.OrgNone, Opcode: isa.MOVI, Imm: &movImm, Operands: []asmgen.Reg{scratch}},
		{Org: asmgen.OrgNone, Opcode: isa.ADD, Operands: []asmgen.Reg{scratch, base, scratch}},
	}
}

func loadSpillSlot(dst asmgen.Reg, offset int) []asmgen.Op {
	base := asmgen.PR(isa.RegLocalsBase)
	if isa.Fits(isa.Imm12, uint64(offset/wordBytes)) {
		imm, _ := isa.NewImmediate(isa.Imm12, uint64(offset/wordBytes))
		return []asmgen.Op{{Org: asmgen.OrgNone, Opcode: isa.LW, Imm: &imm, Operands: []asmgen.Reg{dst, base}}}
	}
	// Offset too wide for a scaled 12-bit LW: materialize the address into
	// the reserved scratch register first.
	scratch := asmgen.PR(isa.RegScratch)
	zero, _ := isa.NewImmediate(isa.Imm12, 0)
	out := materializeSpillAddr(offset)
	return append(out, asmgen.Op{Org: asmgen.OrgNone, Opcode: isa.LW, Imm: &zero, Operands: []asmgen.Reg{dst, scratch}})
}

func storeSpillSlot(src asmgen.Reg, offset int) []asmgen.Op {
	base := asmgen.PR(isa.RegLocalsBase)
	if isa.Fits(isa.Imm12, uint64(offset/wordBytes)) {
		imm, _ := isa.NewImmediate(isa.Imm12, uint64(offset/wordBytes))
		return []asmgen.Op{{Org: asmgen.OrgNone, Opcode: isa.SW, Imm: &imm, Operands: []asmgen.Reg{base, src}}}
	}
	scratch := asmgen.PR(isa.RegScratch)
	zero, _ := isa.NewImmediate(isa.Imm12, 0)
	out := materializeSpillAddr(offset)
	return append(out, asmgen.Op{Org: asmgen.OrgNone, Opcode: isa.SW, Imm: &zero, Operands: []asmgen.Reg{scratch, src}})
}

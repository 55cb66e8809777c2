// Package emitter implements the final stage: it resolves every
// asmgen.Label to a concrete word offset, expands the organizational
// pseudo-ops pkg/asmgen and pkg/regalloc leave behind into concrete VM
// opcodes, lays out and deduplicates the data section, and serializes the
// result into the flat bytecode image.
package emitter

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"vmc/pkg/asmgen"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/isa"
)

var log = logrus.WithField("module", "emitter")

// headerSize is the fixed header's byte length: magic(4) + kind(1) +
// reserved(3) + entryWordOffset(4) + codeLen(4) + dataOffset(4) +
// dataLen(4).
const headerSize = 24

var magic = [4]byte{'V', 'M', 'C', '1'}

// Image is the fully serialized bytecode artifact plus the layout metadata
// pkg/driver and cmd/vmc need for reporting (entry offset, section sizes).
type Image struct {
	Bytes           []byte
	EntryWordOffset uint32
	CodeLen         uint32
	DataOffset      uint32
	DataLen         uint32
}

// Emit lowers mod (the register-allocated asmgen.Module) into a final
// Image. irMod supplies the module kind (for the header) and the set of
// is-entry functions (to pick the header's entry offset).
func Emit(ctx *ir.Context, irMod *ir.Module, mod *asmgen.Module) (*Image, *diag.Error) {
	funcPlans := make([]funcPlan, len(mod.Functions))
	wordCursor := 0
	for i, fn := range mod.Functions {
		entries, relLabel, err := expandFunc(fn)
		if err != nil {
			return nil, err
		}
		funcPlans[i] = funcPlan{fn: fn, entries: entries, relLabel: relLabel, wordStart: wordCursor}
		wordCursor += len(entries)
	}
	codeWords := wordCursor

	globalLabel := make(map[asmgen.Label]int, codeWords)
	for _, fp := range funcPlans {
		for l, rel := range fp.relLabel {
			globalLabel[l] = fp.wordStart + rel
		}
	}

	dataLayout, dataBytes := layoutData(mod.Data)

	code := make([]byte, 0, codeWords*4)
	for _, fp := range funcPlans {
		for _, p := range fp.entries {
			w, derr := resolveAndEncode(fp.fn.Name, p, globalLabel, dataLayout)
			if derr != nil {
				return nil, derr
			}
			b := w.Bytes()
			code = append(code, b[:]...)
		}
	}

	entryWord := uint32(0)
	byName := make(map[string]*funcPlan, len(funcPlans))
	for i := range funcPlans {
		byName[funcPlans[i].fn.Name] = &funcPlans[i]
	}
	for _, fnID := range irMod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		f := ctx.Function(fnID)
		if !f.IsEntry {
			continue
		}
		if fp, ok := byName[f.Name]; ok {
			entryWord = uint32(fp.wordStart)
		}
		break
	}

	dataOffset := headerSize + len(code)
	img := &Image{
		EntryWordOffset: entryWord,
		CodeLen: uint32(len(code)),
		DataOffset: uint32(dataOffset),
		DataLen: uint32(len(dataBytes)),
	}
	img.Bytes = buildHeader(irMod.Kind, img)
	img.Bytes = append(img.Bytes, code...)
	img.Bytes = append(img.Bytes, dataBytes...)

	log.WithFields(logrus.Fields{"module": irMod.Name, "code_words": codeWords, "data_bytes": len(dataBytes)}).
	Debug("emitted bytecode image")
	return img, nil
}

type funcPlan struct {
	fn        *asmgen.Func
	entries   []planned
	relLabel  map[asmgen.Label]int
	wordStart int
}

func buildHeader(kind ir.ModuleKind, img *Image) []byte {
	h := make([]byte, headerSize)
	copy(h[0:4], magic[:])
	h[4] = byte(kind)
	binary.BigEndian.PutUint32(h[8:12], img.EntryWordOffset)
	binary.BigEndian.PutUint32(h[12:16], img.CodeLen)
	binary.BigEndian.PutUint32(h[16:20], img.DataOffset)
	binary.BigEndian.PutUint32(h[20:24], img.DataLen)
	return h
}

// resolveAndEncode fills in p's still-pending immediate (a label's absolute
// word offset, or a data entry's byte offset within the data section split
// across the MOVI/ADDI pair OrgLoadDataID expanded into) and packs the
// result into a concrete isa.Word.
func resolveAndEncode(fnName string, p planned, globalLabel map[asmgen.Label]int, data dataLayout) (isa.Word, *diag.Error) {
	switch p.pending {
	case pJumpTarget, pCallTarget:
		imm, err := isa.NewImmediate(isa.Imm24, uint64(globalLabel[p.target]))
		if err != nil {
			return 0, diag.ImmediateRange(fnName, p.span, "jump/call target %v: %v", p.target, err)
		}
		p.imm = &imm
	case pJumpIfNotZeroTarget:
		imm, err := isa.NewImmediate(isa.Imm18, uint64(globalLabel[p.target]))
		if err != nil {
			return 0, diag.ImmediateRange(fnName, p.span, "conditional jump target %v: %v", p.target, err)
		}
		p.imm = &imm
	case pDataHigh:
		addr := data.addr(p.dataID)
		imm, err := isa.NewImmediate(isa.Imm18, uint64(addr>>dataSplitShift))
		if err != nil {
			return 0, diag.ImmediateRange(fnName, p.span, "data address %d exceeds emitter's addressable range: %v", addr, err)
		}
		p.imm = &imm
	case pDataLow:
		imm := mustImm12(uint64(data.addr(p.dataID) & dataSplitMask))
		p.imm = &imm
	}

	var w isa.Word
	var err error
	switch p.opcode.Form() {
	case isa.FormNone:
		w, err = isa.EncodeNone(p.opcode)
	case isa.FormR:
		w, err = isa.EncodeR(p.opcode, p.regs[0])
	case isa.FormRR:
		w, err = isa.EncodeRR(p.opcode, p.regs[0], p.regs[1])
	case isa.FormRRR:
		w, err = isa.EncodeRRR(p.opcode, p.regs[0], p.regs[1], p.regs[2])
	case isa.FormRRI12:
		w, err = isa.EncodeRRI12(p.opcode, p.regs[0], p.regs[1], *p.imm)
	case isa.FormRI18:
		w, err = isa.EncodeRI18(p.opcode, p.regs[0], *p.imm)
	default:
		w, err = isa.EncodeI24(p.opcode, *p.imm)
	}
	if err != nil {
		return 0, diag.ImmediateRange(fnName, p.span, "%v", err)
	}
	return w, nil
}

func mustImm12(v uint64) isa.Immediate {
	i, err := isa.NewImmediate(isa.Imm12, v)
	if err != nil {
		panic("emitter: " + err.Error())
	}
	return i
}

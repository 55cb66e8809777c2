package asmgen

import (
	"fmt"
	"strings"
)

// Dump renders m as a readable virtual-assembly listing: every Op's source
// span and comment are preserved so cmd/vmc's asm-dump command gives a reader
// something closer to the original source than a raw register dump would.
func (m *Module) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "; module %s\n", m.Name)
	for _, fn := range m.Functions {
		fn.dump(&b)
	}
	return b.String()
}

func (fn *Func) dump(b *strings.Builder) {
	entry := ""
	if fn.IsEntry {
		entry = " entry"
	}
	fmt.Fprintf(b, "\nfn %s%s:; frame=%d bytes\n", fn.Name, entry, fn.FrameSize)
	for _, op := range fn.Ops {
		fmt.Fprintf(b, " %s\n", op.dump())
	}
}

func (op Op) dump() string {
	var s string
	switch op.Org {
	case OrgLabel:
		s = fmt.Sprintf("L%d:", op.Target)
	case OrgJump:
		s = fmt.Sprintf("jump L%d", op.Target)
	case OrgJumpIfNotZero:
		s = fmt.Sprintf("jnz %s, L%d", op.Operands[0], op.Target)
	case OrgCall:
		s = fmt.Sprintf("call L%d", op.Target)
	case OrgSaveRetAddr:
		s = "save_ret_addr"
	case OrgRestoreRetAddr:
		s = "restore_ret_addr"
	case OrgLoadDataID:
		s = fmt.Sprintf("%s <- data#%d", op.Operands[0], op.DataID)
	case OrgPushAll:
		s = fmt.Sprintf("push_all L%d (%s)", op.Target, joinRegs(op.Operands))
	case OrgPopAll:
		s = fmt.Sprintf("pop_all L%d (%s)", op.Target, joinRegs(op.Operands))
	default:
		s = fmt.Sprintf("%s %s", op.Opcode, joinRegs(op.Operands))
		if op.Imm != nil {
			s += fmt.Sprintf(", #%d", op.Imm.Value)
		}
	}
	if op.Comment != "" {
		s += "; " + op.Comment
	}
	if op.Span.File != "" {
		s += fmt.Sprintf(" (%s)", op.Span)
	}
	return s
}

func joinRegs(regs []Reg) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

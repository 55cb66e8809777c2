package isa

import "fmt"

// ImmediateWidth is one of the three immediate field widths the VM's fixed
// 32-bit encoding supports.
type ImmediateWidth int

const (
	Imm12 ImmediateWidth = 12
	Imm18 ImmediateWidth = 18
	Imm24 ImmediateWidth = 24
)

// Max returns the largest unsigned value that fits in w bits.
func (w ImmediateWidth) Max() uint64 { return (uint64(1) << uint(w)) - 1 }

// Immediate is a range-checked unsigned value destined for one of the VM's
// immediate fields. Values are constructed exclusively through NewImmediate
// so a constructed Immediate is always known to fit its declared width —
// any out-of-range input is caught at the one point it's introduced. An
// out-of-range immediate is always a fatal error: it indicates a missed
// expansion in the ASM builder or emitter.
type Immediate struct {
	Width ImmediateWidth
	Value uint64
}

func NewImmediate(w ImmediateWidth, v uint64) (Immediate, error) {
	if v > w.Max() {
		return Immediate{}, fmt.Errorf("isa: value %d exceeds %d-bit immediate field (max %d)", v, w, w.Max())
	}
	return Immediate{Width: w, Value: v}, nil
}

// Fits reports whether v can be represented in w bits without constructing
// an Immediate — used by the ASM builder and spill rewriter to decide which
// of several encodings (direct ADDI vs MOVI+ADD, etc.) applies.
func Fits(w ImmediateWidth, v uint64) bool { return v <= w.Max() }

package regalloc

import (
	"github.com/bits-and-blooms/bitset"

	"vmc/pkg/asmgen"
	"vmc/pkg/isa"
)

// buildSuccessors computes, for every op index, the indices control can
// fall through or jump to, so liveness can be computed over the flat
// virtual-op stream. An indirect jump (JMP, the lowering of a
// jmp-mem instruction) and the three VM halts (RET, RETD, RVRT) have no
// successor within the function.
func buildSuccessors(ops []asmgen.Op) [][]int {
	labelIndex := make(map[asmgen.Label]int, len(ops))
	for i, op := range ops {
		if op.Org == asmgen.OrgLabel {
			labelIndex[op.Target] = i
		}
	}

	succ := make([][]int, len(ops))
	for i, op := range ops {
		switch op.Org {
		case asmgen.OrgJump:
			succ[i] = []int{labelIndex[op.Target]}
		case asmgen.OrgJumpIfNotZero:
			var s []int
			if i+1 < len(ops) {
				s = append(s, i+1)
			}
			s = append(s, labelIndex[op.Target])
			succ[i] = s
		case asmgen.OrgNone:
			if isExit(op.Opcode) {
				continue
			}
			fallthroughTo(succ, i, len(ops))
		default:
			fallthroughTo(succ, i, len(ops))
		}
	}
	return succ
}

func fallthroughTo(succ [][]int, i, n int) {
	if i+1 < n {
		succ[i] = []int{i + 1}
	}
}

func isExit(op isa.Opcode) bool {
	switch op {
	case isa.RET, isa.RETD, isa.RVRT, isa.JMP:
		return true
	default:
		return false
	}
}

// Liveness holds, per op index, the live-in and live-out bitsets over
// virtual-register indices.
type Liveness struct {
	LiveIn  []*bitset.BitSet
	LiveOut []*bitset.BitSet
}

// computeLiveness runs the standard backward fixed-point dataflow:
// live_in(i) = use(i) ∪ (live_out(i) - def(i)); live_out(i) = ∪ live_in(succ).
func computeLiveness(ops []asmgen.Op, numVRegs int) *Liveness {
	succ := buildSuccessors(ops)
	n := len(ops)
	liveIn := make([]*bitset.BitSet, n)
	liveOut := make([]*bitset.BitSet, n)
	for i := range ops {
		liveIn[i] = bitset.New(uint(numVRegs))
		liveOut[i] = bitset.New(uint(numVRegs))
	}

	for changed := true; changed; {
		changed = false
		for i := n - 1; i >= 0; i-- {
			out := bitset.New(uint(numVRegs))
			for _, s := range succ[i] {
				out.InPlaceUnion(liveIn[s])
			}
			def, uses := defUseVRegs(ops[i])
			in := out.Clone()
			if def != asmgen.InvalidVReg {
				in.Clear(uint(def))
			}
			for _, u := range uses {
				in.Set(uint(u))
			}
			if !in.Equal(liveIn[i]) || !out.Equal(liveOut[i]) {
				changed = true
			}
			liveIn[i], liveOut[i] = in, out
		}
	}
	return &Liveness{LiveIn: liveIn, LiveOut: liveOut}
}

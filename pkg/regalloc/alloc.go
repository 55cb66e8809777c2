package regalloc

import (
	"sort"

	"github.com/sirupsen/logrus"

	"vmc/pkg/asmgen"
	"vmc/pkg/diag"
	"vmc/pkg/isa"
)

var log = logrus.WithField("module", "regalloc")

// Allocate runs the iterated Chaitin-style allocator over fn,
// rewriting every virtual register in fn.Ops to a physical isa.Register in
// place. maxRounds bounds the coalesce/color/spill loop.
func Allocate(fn *asmgen.Func, maxRounds int) *diag.Error {
	for round := 0; round < maxRounds; round++ {
		fn.Ops = coalesce(fn.Ops, fn.NumVRegs())

		live := computeLiveness(fn.Ops, fn.NumVRegs())
		g := buildGraph(fn.Ops, live, fn.NumVRegs())
		nodes := activeNodes(fn.Ops)

		col := colorGraph(g, nodes)
		if len(col.spills) == 0 {
			applyColoring(fn, col.assign)
			log.WithFields(logrus.Fields{"function": fn.Name, "round": round}).Debug("allocation converged")
			return nil
		}

		log.WithFields(logrus.Fields{"function": fn.Name, "round": round, "spilled": len(col.spills)}).
		Debug("spilling registers, restarting allocation")
		rewriteSpills(fn, col.spills)
		if !isa.Fits(isa.Imm24, uint64(fn.FrameSize)) {
			return diag.Allocation(fn.Name, "spilling grew the frame to %d bytes, beyond the 24-bit frame immediate", fn.FrameSize)
		}
	}
	return diag.Allocation(fn.Name,
		"register allocation did not converge after %d rounds; consider marking a function inline(never) to shrink its live ranges",
		maxRounds)
}

func activeNodes(ops []asmgen.Op) []asmgen.VReg {
	seen := make(map[asmgen.VReg]bool)
	for _, op := range ops {
		for _, r := range op.Operands {
			if r.Virtual {
				seen[r.V] = true
			}
		}
	}
	out := make([]asmgen.VReg, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// applyColoring rewrites every virtual operand to its assigned physical
// register, and fills in the register list every OrgPushAll/OrgPopAll pair
// saves: the full set of physical registers this function's coloring
// uses, now that allocation has determined exactly what that set is.
func applyColoring(fn *asmgen.Func, assign map[asmgen.VReg]isa.Register) {
	saved := usedRegisters(assign)
	savedOperands := make([]asmgen.Reg, len(saved))
	for i, r := range saved {
		savedOperands[i] = asmgen.PR(r)
	}

	for i, op := range fn.Ops {
		if op.Org == asmgen.OrgPushAll || op.Org == asmgen.OrgPopAll {
			fn.Ops[i].Operands = append([]asmgen.Reg(nil), savedOperands...)
			continue
		}
		if len(op.Operands) == 0 {
			continue
		}
		rewritten := make([]asmgen.Reg, len(op.Operands))
		for j, r := range op.Operands {
			if r.Virtual {
				rewritten[j] = asmgen.PR(assign[r.V])
			} else {
				rewritten[j] = r
			}
		}
		fn.Ops[i].Operands = rewritten
	}
}

func usedRegisters(assign map[asmgen.VReg]isa.Register) []isa.Register {
	seen := make(map[isa.Register]bool, len(assign))
	for _, r := range assign {
		seen[r] = true
	}
	out := make([]isa.Register, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

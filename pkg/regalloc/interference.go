package regalloc

import (
	"github.com/bits-and-blooms/bitset"

	"vmc/pkg/asmgen"
	"vmc/pkg/isa"
)

// graph is the interference graph step 2: nodes are virtual
// registers, edges link registers simultaneously live across a definition.
// moves records every virtual-to-virtual MOVE candidate for coalescing,
// keyed (dst, src).
type graph struct {
	n     int
	adj   []*bitset.BitSet
	moves [][2]asmgen.VReg
}

func newGraph(n int) *graph {
	g := &graph{n: n, adj: make([]*bitset.BitSet, n)}
	for i := range g.adj {
		g.adj[i] = bitset.New(uint(n))
	}
	return g
}

func (g *graph) addEdge(a, b asmgen.VReg) {
	if a == b {
		return
	}
	g.adj[a].Set(uint(b))
	g.adj[b].Set(uint(a))
}

func (g *graph) degree(v asmgen.VReg) int { return int(g.adj[v].Count()) }

func (g *graph) interferes(a, b asmgen.VReg) bool { return g.adj[a].Test(uint(b)) }

// buildGraph draws an edge between every definition and each member of its
// live_out set, except the source of the MOVE that defines it — the
// coalescing-friendly exemption step 2.
func buildGraph(ops []asmgen.Op, live *Liveness, numVRegs int) *graph {
	g := newGraph(numVRegs)
	for i, op := range ops {
		def, hasDef := moveDef(op)
		d, ok := defUseVRegsDef(op)
		if !ok {
			continue
		}
		exempt := asmgen.InvalidVReg
		if hasDef {
			exempt = def
			g.moves = append(g.moves, [2]asmgen.VReg{d, def})
		}
		bs := live.LiveOut[i]
		for j, found := bs.NextSet(0); found; j, found = bs.NextSet(j + 1) {
			other := asmgen.VReg(j)
			if other == d || other == exempt {
				continue
			}
			g.addEdge(d, other)
		}
	}
	return g
}

func defUseVRegsDef(op asmgen.Op) (asmgen.VReg, bool) {
	d, _ := defUseVRegs(op)
	return d, d != asmgen.InvalidVReg
}

// moveDef reports a MOVE op's virtual source register, if the op is a
// MOVE whose destination is itself virtual.
func moveDef(op asmgen.Op) (asmgen.VReg, bool) {
	if op.Org != asmgen.OrgNone || op.Opcode != isa.MOVE || len(op.Operands) != 2 {
		return asmgen.InvalidVReg, false
	}
	dst, src := op.Operands[0], op.Operands[1]
	if !dst.Virtual || !src.Virtual {
		return asmgen.InvalidVReg, false
	}
	return src.V, true
}

package regalloc

import (
	"sort"

	"vmc/pkg/asmgen"
	"vmc/pkg/isa"
)

// unionFind tracks merged virtual-register identities across coalescing so
// every later pass sees the representative register transparently.
type unionFind struct{ parent []asmgen.VReg }

func newUnionFind(n int) *unionFind {
	p := make([]asmgen.VReg, n)
	for i := range p {
		p[i] = asmgen.VReg(i)
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(v asmgen.VReg) asmgen.VReg {
	for u.parent[v] != v {
		u.parent[v] = u.parent[u.parent[v]]
		v = u.parent[v]
	}
	return v
}

func (u *unionFind) union(a, b asmgen.VReg) { u.parent[u.find(b)] = u.find(a) }

// coalesce implements step 3: repeatedly merge a MOVE v, u pair
// that doesn't interfere and passes Briggs' or George's criterion,
// redirecting every use of u onto v and dropping the MOVE, until no
// candidate qualifies. It rebuilds liveness and the interference graph
// after every single merge (rather than applying a whole pass of
// candidates against one stale graph) so degree counts used by the next
// candidate's criterion check are always current.
func coalesce(ops []asmgen.Op, numVRegs int) []asmgen.Op {
	uf := newUnionFind(numVRegs)
	for {
		live := computeLiveness(ops, numVRegs)
		g := buildGraph(ops, live, numVRegs)
		candidates := sortedMoves(g.moves)

		merged := false
		for _, pair := range candidates {
			v, u := uf.find(pair[0]), uf.find(pair[1])
			if v == u || g.interferes(v, u) {
				continue
			}
			if briggsOK(g, v, u) || georgeOK(g, v, u) {
				uf.union(v, u)
				ops = substitute(ops, u, uf.find(v))
				merged = true
				break
			}
		}
		if !merged {
			return pruneNoOpMoves(ops)
		}
	}
}

// briggsOK is Briggs' conservative coalescing criterion: the merged node's
// neighbors that already have degree >= K number fewer than K, so the
// merge cannot itself push the graph into needing more colors than exist.
func briggsOK(g *graph, v, u asmgen.VReg) bool {
	union := g.adj[v].Clone()
	union.InPlaceUnion(g.adj[u])
	highDegree := 0
	for i, ok := union.NextSet(0); ok; i, ok = union.NextSet(i + 1) {
		if g.degree(asmgen.VReg(i)) >= isa.NumAllocatableRegisters {
			highDegree++
		}
	}
	return highDegree < isa.NumAllocatableRegisters
}

// georgeOK is George's criterion: every high-degree neighbor of u is
// already a neighbor of v, so merging u into v adds no new high-degree
// neighbor v doesn't already have.
func georgeOK(g *graph, v, u asmgen.VReg) bool {
	bs := g.adj[u]
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		n := asmgen.VReg(i)
		if g.degree(n) >= isa.NumAllocatableRegisters && !g.interferes(v, n) {
			return false
		}
	}
	return true
}

func sortedMoves(moves [][2]asmgen.VReg) [][2]asmgen.VReg {
	out := append([][2]asmgen.VReg(nil), moves...)
	sort.Slice(out, func(i, j int) bool {
			if out[i][0] != out[j][0] {
				return out[i][0] < out[j][0]
			}
			return out[i][1] < out[j][1]
		})
	return out
}

// substitute rewrites every virtual operand equal to from into to, across
// the whole op list.
func substitute(ops []asmgen.Op, from, to asmgen.VReg) []asmgen.Op {
	out := make([]asmgen.Op, len(ops))
	for i, op := range ops {
		if len(op.Operands) > 0 {
			rewritten := make([]asmgen.Reg, len(op.Operands))
			for j, r := range op.Operands {
				if r.Virtual && r.V == from {
					r = asmgen.VR(to)
				}
				rewritten[j] = r
			}
			op.Operands = rewritten
		}
		out[i] = op
	}
	return out
}

// pruneNoOpMoves drops every MOVE whose destination and source collapsed to
// the same virtual register after substitution.
func pruneNoOpMoves(ops []asmgen.Op) []asmgen.Op {
	out := ops[:0:0]
	for _, op := range ops {
		if op.Org == asmgen.OrgNone && op.Opcode == isa.MOVE && len(op.Operands) == 2 {
			a, b := op.Operands[0], op.Operands[1]
			if a.Virtual && b.Virtual && a.V == b.V {
				continue
			}
		}
		out = append(out, op)
	}
	return out
}

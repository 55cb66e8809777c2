package analysis

import "vmc/pkg/ir"

// CallGraph is the call graph over a module. Nodes are FunctionIDs; edges
// are read directly off each function's call instructions rather than
// cached, since a Function's instruction list is itself the source of
// truth and keeping a separate edge list in sync would be one more thing
// to invalidate.
type CallGraph struct {
	ctx   *ir.Context
	edges map[ir.FunctionID][]ir.FunctionID
}

// BuildCallGraph scans every live function in the module for call
// instructions.
func BuildCallGraph(ctx *ir.Context, mod *ir.Module) *CallGraph {
	g := &CallGraph{ctx: ctx, edges: make(map[ir.FunctionID][]ir.FunctionID, len(mod.Functions))}
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		f := ctx.Function(fnID)
		for _, b := range f.Blocks {
			for _, vid := range ctx.Block(b).Instructions {
				if call, ok := ctx.Value(vid).Op.(ir.CallOp); ok {
					g.edges[fnID] = append(g.edges[fnID], call.Callee)
				}
			}
		}
	}
	return g
}

// Callees returns the functions fn directly calls, in call-site order,
// duplicates included (the dedup pass wants every call site, not a set).
func (g *CallGraph) Callees(fn ir.FunctionID) []ir.FunctionID { return g.edges[fn] }

// CalleeFirstOrder returns every function with at least one node in the
// graph (callers and callees both) ordered so that, absent recursion, a
// callee always precedes its callers — the order the dedup and
// demonomorphize passes require, since a callee's hash must be available
// before its caller is hashed. Mutual recursion is broken deterministically
// by visiting functions in ascending FunctionID order.
func (g *CallGraph) CalleeFirstOrder(mod *ir.Module) []ir.FunctionID {
	visited := make(map[ir.FunctionID]bool, len(mod.Functions))
	onStack := make(map[ir.FunctionID]bool, len(mod.Functions))
	var order []ir.FunctionID

	var visit func(fn ir.FunctionID)
	visit = func(fn ir.FunctionID) {
		if visited[fn] || onStack[fn] {
			return
		}
		onStack[fn] = true
		for _, callee := range g.edges[fn] {
			visit(callee)
		}
		onStack[fn] = false
		visited[fn] = true
		order = append(order, fn)
	}
	for _, fnID := range mod.Functions {
		visit(fnID)
	}
	return order
}

package optimizer

import (
	"vmc/pkg/analysis"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
)

// DCEPass removes instructions with no observable effect and no remaining
// use. It reuses pkg/analysis's side-effect-rooted liveness rather than
// recomputing its own notion of "dead": an instruction is dead exactly
// when ComputeLiveness does not mark it live.
type DCEPass struct{}

func (DCEPass) Name() string { return "dce" }
func (DCEPass) Analyses() []AnalysisKind { return []AnalysisKind{AnalysisLiveness} }
func (DCEPass) Mutates() bool { return true }

func (DCEPass) Run(ctx *ir.Context, mod *ir.Module, sink *diag.Sink, cache *AnalysisCache) (bool, *diag.Error) {
	changed := false
	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		f := ctx.Function(fnID)
		live := analysis.ComputeLiveness(ctx, fnID)
		for _, bid := range f.Blocks {
			blk := ctx.Block(bid)
			kept := make([]ir.ValueID, 0, len(blk.Instructions))
			for _, vid := range blk.Instructions {
				v := ctx.Value(vid)
				if v.IsTerminator() || live.IsLive(vid) {
					kept = append(kept, vid)
					continue
				}
				changed = true
				sink.Note(f.Name, ctx.Span(v.Metadata), "removed dead instruction")
			}
			if len(kept) != len(blk.Instructions) {
				blk.Instructions = kept
			}
		}
	}
	return changed, nil
}

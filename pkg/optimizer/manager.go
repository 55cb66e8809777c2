// Package optimizer implements the pass manager and core passes of
//: function deduplication (two variants), demonomorphization,
// inlining, constant folding, dead-code elimination, and mem2reg-style
// promotion of addressable locals to SSA.
package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"vmc/pkg/analysis"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/verifier"
)

var optLog = logrus.StandardLogger()

// AnalysisKind names an analysis a Pass can declare a dependency on, so the
// Manager knows when to (re)compute or drop cached results.
type AnalysisKind string

const (
	AnalysisDomTree AnalysisKind = "dominators"
	AnalysisCallGraph AnalysisKind = "call-graph"
	AnalysisLiveness AnalysisKind = "liveness"
	AnalysisDefUse AnalysisKind = "def-use"
)

// Pass is one named optimizer transform or analysis-only check. Mutates
// reports whether a successful Run may have changed the CFG or use-def
// edges, in which case the Manager invalidates every cached analysis
// before the next pass runs.
type Pass interface {
	Name() string
	Analyses() []AnalysisKind
	Mutates() bool
	Run(ctx *ir.Context, mod *ir.Module, sink *diag.Sink, cache *AnalysisCache) (changed bool, err *diag.Error)
}

// AnalysisCache holds the lazily computed, per-function analyses a pass may
// ask for. It is invalidated wholesale after any mutating pass — a
// coarser invalidation than per-function would be, but passes never run
// concurrently within one Manager.Run, so there is no benefit to finer
// granularity here.
type AnalysisCache struct {
	ctx       *ir.Context
	domTrees  map[ir.FunctionID]*analysis.DomTree
	callGraph *analysis.CallGraph
	liveness  map[ir.FunctionID]*analysis.Liveness
	defUse    map[ir.FunctionID]*analysis.DefUse
}

func newAnalysisCache(ctx *ir.Context) *AnalysisCache {
	return &AnalysisCache{
		ctx: ctx,
		domTrees: make(map[ir.FunctionID]*analysis.DomTree),
		liveness: make(map[ir.FunctionID]*analysis.Liveness),
		defUse: make(map[ir.FunctionID]*analysis.DefUse),
	}
}

func (c *AnalysisCache) DomTree(fn ir.FunctionID) *analysis.DomTree {
	if d, ok := c.domTrees[fn]; ok {
		return d
	}
	d := analysis.BuildDomTree(c.ctx, fn)
	c.domTrees[fn] = d
	return d
}

func (c *AnalysisCache) CallGraph(mod *ir.Module) *analysis.CallGraph {
	if c.callGraph == nil {
		c.callGraph = analysis.BuildCallGraph(c.ctx, mod)
	}
	return c.callGraph
}

func (c *AnalysisCache) Liveness(fn ir.FunctionID) *analysis.Liveness {
	if l, ok := c.liveness[fn]; ok {
		return l
	}
	l := analysis.ComputeLiveness(c.ctx, fn)
	c.liveness[fn] = l
	return l
}

func (c *AnalysisCache) DefUse(fn ir.FunctionID) *analysis.DefUse {
	if d, ok := c.defUse[fn]; ok {
		return d
	}
	d := analysis.ComputeDefUse(c.ctx, fn)
	c.defUse[fn] = d
	return d
}

func (c *AnalysisCache) invalidateAll() {
	c.domTrees = make(map[ir.FunctionID]*analysis.DomTree)
	c.callGraph = nil
	c.liveness = make(map[ir.FunctionID]*analysis.Liveness)
	c.defUse = make(map[ir.FunctionID]*analysis.DefUse)
}

// passDuration records each pass's wall-clock cost, exported on a
// package-local registry per so consumers opt in rather
// than colliding with the default global registry.
var (
	metricsRegistry = prometheus.NewRegistry()
	passDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "vmc_optimizer_pass_duration_seconds",
			Help: "Wall-clock duration of each optimizer pass.",
		}, []string{"pass"})
	verifierFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vmc_verifier_failures_total",
			Help: "Number of verifier failures, keyed by function name.",
		}, []string{"function"})
)

func init() {
	metricsRegistry.MustRegister(passDuration, verifierFailures)
}

// MetricsRegistry exposes the package-local registry for a process that
// wants to serve it, without forcing
// every consumer onto prometheus's global default registry.
func MetricsRegistry() *prometheus.Registry { return metricsRegistry }

// Manager runs a fixed, ordered list of passes over every live function of
// a Module, verifying after each mutating pass.
type Manager struct {
	passes []Pass
}

func NewManager(passes...Pass) *Manager {
	return &Manager{passes: passes}
}

// Run executes every pass in declared order. A pass's own Analyses()
// declaration is informational — it tells the Manager what the pass reads,
// so that in principle work could be reordered; in this implementation
// passes run strictly in the order they were registered with the Manager.
func (m *Manager) Run(ctx *ir.Context, mod *ir.Module, sink *diag.Sink) *diag.Error {
	cache := newAnalysisCache(ctx)
	log := optLog.WithField("module", mod.Name)

	for _, pass := range m.passes {
		start := time.Now()
		changed, err := pass.Run(ctx, mod, sink, cache)
		passDuration.WithLabelValues(pass.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			log.WithField("pass", pass.Name()).WithError(err).Error("pass failed")
			return err
		}
		if changed && pass.Mutates() {
			cache.invalidateAll()
		}
		log.WithFields(logrus.Fields{"pass": pass.Name(), "changed": changed}).Debug("pass complete")

		for _, fnID := range mod.Functions {
			if ctx.IsDead(fnID) {
				continue
			}
			if verr := verifier.Verify(ctx, fnID); verr != nil {
				verifierFailures.WithLabelValues(ctx.Function(fnID).Name).Inc()
				return verr
			}
		}
	}
	return nil
}

// DefaultPipeline returns the standard pass order: mem2reg-equivalent
// promotion first (it only ever shrinks the IR and helps later passes see
// through locals), then constant folding, DCE, dedup (level 1 and up; the
// metadata-aware variant when debugProfile is set, the plain one otherwise),
// and at level 2 demonomorphize, inlining and a second constant-fold/DCE
// round — run in that order because dedup should see
// the simplest possible function bodies before hashing them, and
// demonomorphize (a generalization of dedup) runs after plain dedup has
// already merged exact duplicates.
func DefaultPipeline(level int, debugProfile bool) *Manager {
	passes := []Pass{
		&Mem2RegPass{},
		&ConstantFoldPass{},
		&DCEPass{},
	}
	if level >= 1 {
		passes = append(passes, NewDedupPass(debugProfile))
	}
	if level >= 2 {
		passes = append(passes, &DemonomorphizePass{}, &InlinePass{})
		passes = append(passes, &ConstantFoldPass{}, &DCEPass{})
	}
	return NewManager(passes...)
}

// Package driver orchestrates one independently-compiled package's worth
// of typed AST through the full pipeline: IR builder,
// verifier, optimizer, ASM builder, register allocator, emitter. It owns
// no concurrency policy itself beyond the single-Context-per-Compile rule
// requires; CompileAll (parallel.go) is what fans packages out
// across goroutines.
package driver

import (
	"github.com/sirupsen/logrus"

	"vmc/pkg/asmgen"
	"vmc/pkg/diag"
	"vmc/pkg/emitter"
	"vmc/pkg/ir"
	"vmc/pkg/irbuilder"
	"vmc/pkg/optimizer"
	"vmc/pkg/regalloc"
	"vmc/pkg/typedast"
	"vmc/pkg/verifier"
)

var log = logrus.WithField("module", "driver")

// Package is one independently-compiled unit of typed-AST input: one
// ir.Context's worth of work, not a Go package.
type Package struct {
	Name string
	AST  *typedast.Module
}

// Options are the driver-level knobs pkg/config resolves from file/env,
// threaded through to the optimizer and allocator.
type Options struct {
	OptimizeLevel  int
	DebugProfile   bool
	MaxSpillRounds int
}

// Result is everything a successful Compile produces: the bytecode image,
// the JSON ABI for contracts, the IR context (kept alive for IR dumps),
// and any non-fatal diagnostics accumulated along the way.
type Result struct {
	Package *Package
	Ctx     *ir.Context
	ModID   ir.ModuleID
	ASM     *asmgen.Module
	Image   *emitter.Image
	ABI     *emitter.ABI
	Sink    *diag.Sink
}

// Compile runs one Package through IR building, verification, optimization,
// ASM generation, register allocation, and emission, in that order. Each
// Compile owns its own Context exclusively: nothing here is shared with a
// concurrent Compile of a different Package.
func Compile(pkg *Package, opts Options) (*Result, *diag.Error) {
	ctx := ir.NewContext()
	sink := diag.NewSink()
	flog := log.WithField("package", pkg.Name)

	b := irbuilder.New(ctx, sink)
	modID, err := b.BuildModule(pkg.AST)
	if err != nil {
		if derr, ok := err.(*diag.Error); ok {
			return nil, derr
		}
		return nil, diag.Internal(pkg.Name, "building IR: %v", err)
	}
	mod := ctx.Module(modID)

	for _, fnID := range mod.Functions {
		if ctx.IsDead(fnID) {
			continue
		}
		if verr := verifier.Verify(ctx, fnID); verr != nil {
			return nil, verr
		}
	}

	mgr := optimizer.DefaultPipeline(opts.OptimizeLevel, opts.DebugProfile)
	if perr := mgr.Run(ctx, mod, sink); perr != nil {
		return nil, perr
	}

	asmMod, aerr := asmgen.BuildModule(ctx, mod)
	if aerr != nil {
		if derr, ok := aerr.(*diag.Error); ok {
			return nil, derr
		}
		return nil, diag.Internal(pkg.Name, "building ASM: %v", aerr)
	}

	maxRounds := opts.MaxSpillRounds
	if maxRounds <= 0 {
		maxRounds = 4
	}
	for _, fn := range asmMod.Functions {
		if rerr := regalloc.Allocate(fn, maxRounds); rerr != nil {
			return nil, rerr
		}
	}

	img, eerr := emitter.Emit(ctx, mod, asmMod)
	if eerr != nil {
		return nil, eerr
	}

	abi := emitter.BuildABI(ctx, mod)

	flog.WithFields(logrus.Fields{"functions": len(mod.Functions), "image_bytes": len(img.Bytes)}).
	Info("compiled package")

	return &Result{Package: pkg, Ctx: ctx, ModID: modID, ASM: asmMod, Image: img, ABI: abi, Sink: sink}, nil
}

package driver

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CompileAll compiles every Package concurrently, one goroutine and one
// ir.Context per package; packages communicate only through their finished
// artifacts, never shared state. maxParallel bounds concurrent compiles
// (pkg/config's driver.max_parallel_packages); 0 means unbounded.
//
// The first package to fail aborts the remaining compiles, matching
// errgroup's standard fail-fast behavior; results are returned in the same
// order as pkgs regardless of completion order.
func CompileAll(ctx context.Context, pkgs []*Package, opts Options, maxParallel int) ([]*Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}

	results := make([]*Result, len(pkgs))
	for i, pkg := range pkgs {
		i, pkg := i, pkg
		g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				res, err := Compile(pkg, opts)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Package indexer coordinates an indexing run: it distributes compilation
// plan work items across a worker pool, runs the observation source for
// each item, and feeds the resulting observations into the shared index.
package indexer

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/symdex/symdex/internal/debug"
	sderr "github.com/symdex/symdex/internal/errors"
	"github.com/symdex/symdex/internal/index"
	"github.com/symdex/symdex/internal/plan"
	"github.com/symdex/symdex/internal/types"
)

// ObservationSource produces the symbol observations for one translation
// unit. Implementations must be safe to invoke concurrently for different
// work items and must not mutate shared state.
type ObservationSource interface {
	Observe(ctx context.Context, item plan.WorkItem) ([]*types.Observation, error)
}

// Report summarizes one indexing run. Per-file failures are recorded here
// for diagnostics; they never fail the run unless they exhaust every work
// item.
type Report struct {
	Attempted    int
	Succeeded    int
	Observations int
	Failures     []*sderr.FileError
}

// PartialFailure reports whether some, but not all, work items failed.
func (r *Report) PartialFailure() bool {
	return len(r.Failures) > 0 && r.Succeeded > 0
}

// Indexer runs observation sources over a compilation plan and merges their
// output into one index.
type Indexer struct {
	source ObservationSource
	// workers is the pool size; 0 means all available hardware parallelism.
	workers int
}

// New creates an indexer with the given source and worker count.
func New(source ObservationSource, workers int) *Indexer {
	return &Indexer{source: source, workers: workers}
}

// Run indexes every work item into idx. Each worker owns one item's entire
// parse-and-extract step; the only contended resource is the index's tables,
// which synchronize per merge. No ordering exists between items: determinism
// comes from the commutative merge policy and the finalize sort, never from
// controlling interleaving.
//
// A front-end failure for one file is recorded and the file skipped. A merge
// failure (identity collision, frozen index) is an internal-consistency
// defect and aborts the whole run. If every work item fails, Run returns a
// TotalFailureError alongside the report.
func (ix *Indexer) Run(ctx context.Context, items []plan.WorkItem, idx *index.Index) (*Report, error) {
	workers := ix.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	report := &Report{Attempted: len(items)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			observations, err := ix.source.Observe(ctx, item)
			if err != nil {
				fileErr := sderr.NewFileError("frontend", item.File, err)
				debug.Logf("indexer: %v", fileErr)
				mu.Lock()
				report.Failures = append(report.Failures, fileErr)
				mu.Unlock()
				return nil // skip the file, keep the run alive
			}

			for _, obs := range observations {
				if err := idx.Merge(obs); err != nil {
					return err
				}
			}

			mu.Lock()
			report.Succeeded++
			report.Observations += len(observations)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	if report.Attempted > 0 && report.Succeeded == 0 {
		errs := make([]error, len(report.Failures))
		for i, f := range report.Failures {
			errs[i] = f
		}
		return report, &sderr.TotalFailureError{Attempted: report.Attempted, Errors: errs}
	}
	return report, nil
}

// IsFatal reports whether err ends the run as a whole rather than one file.
func IsFatal(err error) bool {
	var collision *sderr.CollisionError
	var total *sderr.TotalFailureError
	return errors.As(err, &collision) || errors.As(err, &total)
}

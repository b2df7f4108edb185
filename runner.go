package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/oklog/ulid/v2"
)

// Run partitions items into batches of opts.BatchSize, executes fn for every
// batch on a pool of min(opts.ThreadCount, batches) workers and blocks until
// all batches have finished.
//
// An empty items slice is a no-op: fn is never called and no pool is
// started. If any batch fails, the remaining batches still run to
// completion; Run then returns the first failure observed, as a
// *BatchError. Every failure is available from Report.Err.
//
// ctx is handed to fn and carries the logger; it does not cancel batches.
func Run[T any](ctx context.Context, items []T, fn Consumer[T], opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, ErrNilConsumer
	}
	opts.FillDefaults()

	report := &Report{
		RunID: ulid.Make().String(),
		Items: len(items),
	}
	if len(items) == 0 {
		return report, nil
	}

	start := time.Now()
	batches := Partition(items, opts.BatchSize)
	pool := NewPool[T](opts.poolSize(len(batches)), opts)
	defer pool.Stop()

	err := runOn(ctx, pool, batches, fn, report, opts.BatchSize)
	report.Elapsed = time.Since(start)
	return report, err
}

// runOn executes batches on pool and fills in report. A pool shut down
// mid-run is an interruption: the batches already queued still finish and
// the error wraps ErrPoolClosed.
func runOn[T any](ctx context.Context, pool *Pool[T], batches []Batch[T], fn Consumer[T], report *Report, batchSize int) error {
	logger := lg.FromContext(ctx).With(lg.String("run_id", report.RunID))
	logger.Info("partitioned run started",
		lg.Int("items", report.Items),
		lg.Int("batches", len(batches)),
		lg.Int("batch_size", batchSize),
		lg.Int("workers", pool.Size()),
	)
	start := time.Now()

	submitted, results, err := dispatch(ctx, pool, batches, fn)
	report.Batches = submitted
	report.Results = results
	report.Workers = distinctWorkers(results, pool.Workers())

	var intr *interruptedError
	switch {
	case errors.As(err, &intr):
		logger.Error("partitioned run interrupted",
			lg.Int("submitted", submitted), lg.Any("error", intr.err))
		return fmt.Errorf("partition: run %s stopped after %d of %d batches: %w",
			report.RunID, submitted, len(batches), intr.err)
	case err != nil:
		logger.Error("partitioned run failed",
			lg.Int("failed", report.Failed()), lg.Any("error", err))
		return err
	}

	logger.Info("partitioned run finished", lg.String("took", time.Since(start).String()))
	return nil
}

// interruptedError reports that the pool stopped accepting batches before
// all of them were submitted.
type interruptedError struct{ err error }

func (e *interruptedError) Error() string { return e.err.Error() }
func (e *interruptedError) Unwrap() error { return e.err }

// dispatch submits batches in order and waits for every submitted one to
// finish. It returns the number submitted and their results. If the pool
// is shut down underneath the run, submission stops, the batches already
// queued are still awaited, and the error is an *interruptedError.
// Otherwise the error is the first batch failure by completion time.
func dispatch[T any](ctx context.Context, pool *Pool[T], batches []Batch[T], fn Consumer[T]) (int, []Result, error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstErr  error
		submitted int
	)
	results := make([]Result, len(batches))

	for _, b := range batches {
		wg.Add(1)
		err := pool.Submit(Job[T]{
			Batch: b,
			Fn:    fn,
			Ctx:   ctx,
			Done: func(r Result) {
				defer wg.Done()
				results[r.Index] = r
				if r.Err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = r.Err
					}
					mu.Unlock()
				}
			},
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return submitted, results[:submitted], &interruptedError{err: err}
		}
		submitted++
	}

	wg.Wait()
	return submitted, results, firstErr
}

// Runner runs partitioned work with options read from a source on every
// call, so configuration changes apply to the next run and never to one
// in flight.
type Runner[T any] struct {
	src OptionsSource
}

// NewRunner returns a Runner reading its options from src. A nil src uses
// DefaultOptions.
func NewRunner[T any](src OptionsSource) *Runner[T] {
	if src == nil {
		src = DefaultOptions()
	}
	return &Runner[T]{src: src}
}

// Run snapshots the options once and delegates to the package-level Run.
func (r *Runner[T]) Run(ctx context.Context, items []T, fn Consumer[T]) (*Report, error) {
	return Run(ctx, items, fn, r.src.Snapshot())
}

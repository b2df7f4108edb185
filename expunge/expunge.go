// Package expunge permanently deletes resources in partitioned batches.
//
// It is the caller side of the partition executor: it supplies the row
// keys and a per-batch consumer that deletes through a Store, retrying
// transient store failures with jittered backoff. The executor itself never
// retries.
package expunge

import (
	"context"
	"sync/atomic"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/pkg/errors"

	"github.com/Andrej220/go-utils/partition"
)

// Expunger deletes resources through a Store using a partition.Runner.
type Expunger struct {
	runner *partition.Runner[int64]
	store  Store
	retry  RetryPolicy
}

// Outcome is the result of one Expunge call.
type Outcome struct {
	Report *partition.Report

	// Deleted counts rows the store reported as removed, across all
	// batches and attempts.
	Deleted int
}

// New returns an Expunger. Options are read from src before every call.
func New(store Store, src partition.OptionsSource, retry RetryPolicy) *Expunger {
	return &Expunger{
		runner: partition.NewRunner[int64](src),
		store:  store,
		retry:  retry.withDefaults(),
	}
}

// Expunge deletes ids in batches and waits for all of them. A batch that
// still fails after its retries does not stop the others; the first such
// failure is returned once every batch has finished.
func (e *Expunger) Expunge(ctx context.Context, ids []int64) (*Outcome, error) {
	var deleted atomic.Int64

	report, err := e.runner.Run(ctx, ids, func(ctx context.Context, b partition.Batch[int64]) error {
		n, err := e.deleteBatch(ctx, b)
		deleted.Add(int64(n))
		return err
	})

	out := &Outcome{Report: report, Deleted: int(deleted.Load())}
	if err != nil {
		return out, errors.Wrapf(err, "expunge %d resources", len(ids))
	}
	return out, nil
}

func (e *Expunger) deleteBatch(ctx context.Context, b partition.Batch[int64]) (int, error) {
	logger := lg.FromContext(ctx).With(
		lg.String("worker", partition.WorkerName(ctx)),
		lg.Int("batch", b.Index),
	)
	pol := e.retry
	bo := boff.New(pol.Initial, pol.Max, time.Now().UnixNano())

	total := 0
	for attempt := 1; ; attempt++ {
		n, err := e.store.DeleteResources(ctx, b.Items)
		total += n
		if err == nil {
			return total, nil
		}
		if !IsTransient(err) || attempt >= pol.Attempts {
			return total, errors.Wrapf(err, "delete batch %d after %d attempt(s)", b.Index, attempt)
		}

		delay := bo.Next()
		logger.Warn("batch delete failed; backing off",
			lg.Int("attempt", attempt),
			lg.String("sleep", delay.String()),
			lg.Any("error", err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return total, errors.Wrapf(ctx.Err(), "delete batch %d canceled during backoff", b.Index)
		}
	}
}

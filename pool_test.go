package partition

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchOf(index int, ids ...int64) Batch[int64] {
	return Batch[int64]{Index: index, Items: ids}
}

func TestPoolWorkerNames(t *testing.T) {
	p := NewPool[int64](3, Options{NamePrefix: "expunge"})
	defer p.Stop()

	assert.Equal(t, 3, p.Size())
	assert.Equal(t, []string{"expunge-1", "expunge-2", "expunge-3"}, p.Workers())
}

func TestPoolNonPositiveSize(t *testing.T) {
	p := NewPool[int64](0, Options{})
	defer p.Stop()

	assert.Equal(t, []string{"worker-1"}, p.Workers())
}

func TestPoolFirstRoundIsSpreadInOrder(t *testing.T) {
	p := NewPool[int64](4, Options{})

	var (
		mu   sync.Mutex
		seen = map[int]string{}
		wg   sync.WaitGroup
	)
	release := make(chan struct{})
	for i := range 4 {
		wg.Add(1)
		err := p.Submit(Job[int64]{
			Batch: batchOf(i, int64(i)),
			Fn: func(ctx context.Context, b Batch[int64]) error {
				<-release
				return nil
			},
			Done: func(r Result) {
				mu.Lock()
				seen[r.Index] = r.Worker
				mu.Unlock()
				wg.Done()
			},
		})
		require.NoError(t, err)
	}
	close(release)
	wg.Wait()
	p.Stop()

	assert.Equal(t, map[int]string{0: "worker-1", 1: "worker-2", 2: "worker-3", 3: "worker-4"}, seen)
}

func TestPoolOneBatchAtATimePerWorker(t *testing.T) {
	p := NewPool[int64](2, Options{})

	var (
		mu      sync.Mutex
		running = map[string]int{}
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := range 20 {
		wg.Add(1)
		require.NoError(t, p.Submit(Job[int64]{
			Batch: batchOf(i, int64(i)),
			Fn: func(ctx context.Context, b Batch[int64]) error {
				name := WorkerName(ctx)
				mu.Lock()
				running[name]++
				if running[name] > 1 {
					overlap.Store(true)
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				running[name]--
				mu.Unlock()
				return nil
			},
			Done: func(Result) { wg.Done() },
		}))
	}
	wg.Wait()
	p.Stop()

	assert.False(t, overlap.Load(), "a worker ran two batches at once")
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := NewPool[int64](1, Options{})
	require.NoError(t, p.Shutdown(context.Background()))

	job := Job[int64]{Batch: batchOf(0, 1), Fn: func(context.Context, Batch[int64]) error { return nil }}
	assert.False(t, p.TrySubmit(job), "TrySubmit succeeded on closed pool")
	assert.ErrorIs(t, p.Submit(job), ErrPoolClosed)
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	p := NewPool[int64](1, Options{})

	var done atomic.Int32
	for i := range 5 {
		require.NoError(t, p.Submit(Job[int64]{
			Batch: batchOf(i, int64(i)),
			Fn: func(context.Context, Batch[int64]) error {
				time.Sleep(2 * time.Millisecond)
				done.Add(1)
				return nil
			},
		}))
	}
	p.Stop()

	assert.Equal(t, int32(5), done.Load())
	assert.Equal(t, int32(0), p.ActiveWorkers())
	assert.Equal(t, 0, p.QueueLength())
}

func TestPoolShutdownTimeout(t *testing.T) {
	p := NewPool[int64](1, Options{})

	started := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, p.Submit(Job[int64]{
		Batch: batchOf(0, 1),
		Fn: func(context.Context, Batch[int64]) error {
			close(started)
			time.Sleep(300 * time.Millisecond)
			close(finished)
			return nil
		},
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	<-finished
	assert.NoError(t, p.Shutdown(context.Background()), "second Shutdown")
}

func TestPoolPanicRecovery(t *testing.T) {
	p := NewPool[int64](1, Options{})
	defer p.Stop()

	results := make(chan Result, 2)
	require.NoError(t, p.Submit(Job[int64]{
		Batch: batchOf(0, 1),
		Fn:    func(context.Context, Batch[int64]) error { panic("boom") },
		Done:  func(r Result) { results <- r },
	}))
	require.NoError(t, p.Submit(Job[int64]{
		Batch: batchOf(1, 2),
		Fn:    func(context.Context, Batch[int64]) error { return nil },
		Done:  func(r Result) { results <- r },
	}))

	first := <-results
	var pe *PanicError
	require.ErrorAs(t, first.Err, &pe)
	assert.Equal(t, "boom", pe.Value)

	var be *BatchError
	require.ErrorAs(t, first.Err, &be)
	assert.Equal(t, "worker-1", be.Worker)

	second := <-results
	assert.NoError(t, second.Err, "worker did not survive the panic")
}

func TestPoolErrorHandlerAndMetrics(t *testing.T) {
	m := &AtomicMetrics{}
	var reported atomic.Int32
	boom := errors.New("boom")

	p := NewPool[int64](2, Options{
		Metrics:      m,
		OnBatchError: func(error) { reported.Add(1) },
	})
	for i := range 6 {
		require.NoError(t, p.Submit(Job[int64]{
			Batch: batchOf(i, int64(i)),
			Fn: func(_ context.Context, b Batch[int64]) error {
				if b.Index%2 == 0 {
					return boom
				}
				return nil
			},
		}))
	}
	p.Stop()

	waitUntil(t, time.Second, func() bool { return m.Executed() == 6 })
	assert.Equal(t, uint64(3), m.Failed())
	assert.Equal(t, int64(0), m.Queued())
	assert.Equal(t, int32(3), reported.Load())
}

func TestWorkerNameOutsideConsumer(t *testing.T) {
	assert.Equal(t, "", WorkerName(context.Background()))
}

func TestPoolPinnedWorkersRunBatches(t *testing.T) {
	p := NewPool[int64](2, Options{PinWorkers: true})

	var ran atomic.Int32
	for i := range 4 {
		require.NoError(t, p.Submit(Job[int64]{
			Batch: batchOf(i, int64(i)),
			Fn: func(context.Context, Batch[int64]) error {
				ran.Add(1)
				return nil
			},
		}))
	}
	p.Stop()

	assert.Equal(t, int32(4), ran.Load())
}

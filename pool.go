package partition

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

// Consumer processes one batch. It runs on a pool worker; WorkerName(ctx)
// reports which one.
type Consumer[T any] func(ctx context.Context, batch Batch[T]) error

// Result describes one finished batch.
type Result struct {
	Index    int
	Size     int
	Worker   string
	Err      error
	Duration time.Duration
}

// Job is a batch paired with the consumer that processes it.
type Job[T any] struct {
	Batch Batch[T]
	Fn    Consumer[T]
	Ctx   context.Context

	// Done is called on the worker once the batch has finished,
	// successfully or not.
	Done func(Result)
}

// Pool is a fixed set of named workers executing jobs one at a time.
//
// The first job submitted for each worker goes to that worker's own intake
// slot, so the first round is spread deterministically: job i runs on
// worker i+1. Every later job goes to a shared FIFO queue and is taken by
// whichever worker becomes idle first.
type Pool[T any] struct {
	opts  Options
	names []string

	intake []chan Job[T]
	jobs   chan Job[T]

	submitMu sync.Mutex
	seeded   int

	wg            sync.WaitGroup
	activeWorkers atomic.Int32
	stopOnce      sync.Once
	closed        chan struct{} // signals no more submissions
}

// NewPool starts workers goroutines. A non-positive count starts one.
func NewPool[T any](workers int, opts Options) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	opts.FillDefaults()

	p := &Pool[T]{
		opts:   opts,
		names:  make([]string, workers),
		intake: make([]chan Job[T], workers),
		jobs:   make(chan Job[T], workers*2),
		closed: make(chan struct{}),
	}
	for i := range workers {
		p.names[i] = workerName(opts.NamePrefix, i+1)
		p.intake[i] = make(chan Job[T], 1)
	}
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// Submit hands a job to the pool, blocking while the shared queue is full.
func (p *Pool[T]) Submit(job Job[T]) error {
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	select {
	case <-p.closed:
		return ErrPoolClosed
	default:
	}

	p.opts.Metrics.IncQueued()
	if p.seeded < len(p.intake) {
		p.intake[p.seeded] <- job
		p.seeded++
		return nil
	}
	p.jobs <- job
	return nil
}

// TrySubmit is the non-blocking form of Submit. It reports false if the
// pool is closed or the shared queue is full.
func (p *Pool[T]) TrySubmit(job Job[T]) bool {
	if job.Ctx == nil {
		job.Ctx = context.Background()
	}
	p.submitMu.Lock()
	defer p.submitMu.Unlock()

	select {
	case <-p.closed:
		return false
	default:
	}

	if p.seeded < len(p.intake) {
		p.opts.Metrics.IncQueued()
		p.intake[p.seeded] <- job
		p.seeded++
		return true
	}
	select {
	case p.jobs <- job:
		p.opts.Metrics.IncQueued()
		return true
	default:
		return false
	}
}

// Shutdown rejects new jobs, lets the workers drain everything already
// queued and waits for them to exit, or for ctx to be done.
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.submitMu.Lock()
		close(p.closed)
		for _, ch := range p.intake {
			close(ch)
		}
		close(p.jobs)
		p.submitMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop is the blocking form of Shutdown.
func (p *Pool[T]) Stop() { _ = p.Shutdown(context.Background()) }

func (p *Pool[T]) worker(i int) {
	defer p.wg.Done()
	name := p.names[i]

	if p.opts.PinWorkers {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := PinToCPU(i % runtime.NumCPU()); err != nil {
			lg.FromContext(context.Background()).Warn("worker pinning failed",
				lg.String("worker", name), lg.Any("error", err))
		}
	}

	own := p.intake[i]
	for {
		// A seeded job always wins over the shared queue.
		select {
		case job, ok := <-own:
			if ok {
				p.process(name, job)
			} else {
				own = nil
			}
			continue
		default:
		}

		select {
		case job, ok := <-own:
			if ok {
				p.process(name, job)
			} else {
				own = nil
			}
		case job, ok := <-p.jobs:
			if !ok {
				if own != nil {
					for job := range own {
						p.process(name, job)
					}
				}
				return
			}
			p.process(name, job)
		}
	}
}

func (p *Pool[T]) process(name string, job Job[T]) {
	p.opts.Metrics.DecQueued()
	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)

	ctx := withWorker(job.Ctx, name)
	logger := lg.FromContext(ctx).With(
		lg.String("worker", name),
		lg.Int("batch", job.Batch.Index),
		lg.Int("size", job.Batch.Len()),
	)
	logger.Info("worker processing batch", lg.Int32("active_workers", p.activeWorkers.Load()))

	start := time.Now()
	err := p.call(ctx, job)
	res := Result{
		Index:    job.Batch.Index,
		Size:     job.Batch.Len(),
		Worker:   name,
		Duration: time.Since(start),
	}

	p.opts.Metrics.ObserveBatch(res.Duration)
	p.opts.Metrics.IncExecuted()
	if err != nil {
		res.Err = &BatchError{Index: res.Index, Size: res.Size, Worker: name, Err: err}
		p.opts.Metrics.IncFailed()
		logger.Error("batch failed", lg.Any("error", err))
		p.reportBatchError(res.Err)
	} else {
		logger.Info("batch finished", lg.String("took", res.Duration.String()))
	}

	if job.Done != nil {
		job.Done(res)
	}
}

func (p *Pool[T]) call(ctx context.Context, job Job[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			lg.FromContext(ctx).Error("batch panicked", lg.Any("panic", r))
			err = &PanicError{Value: r}
		}
	}()
	return job.Fn(ctx, job.Batch)
}

// Size returns the number of workers.
func (p *Pool[T]) Size() int { return len(p.names) }

// Workers returns the worker names in creation order.
func (p *Pool[T]) Workers() []string { return append([]string(nil), p.names...) }

func (p *Pool[T]) ActiveWorkers() int32 { return p.activeWorkers.Load() }
func (p *Pool[T]) QueueLength() int     { return len(p.jobs) }

package partition

import (
	"sync/atomic"
	"time"
)

// MetricsPolicy defines hooks used by the pool to report queueing and
// execution activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {
	// IncQueued is called when a batch is accepted by the pool.
	IncQueued()

	// DecQueued is called when a worker takes a batch off the queue.
	DecQueued()

	// IncExecuted is called after every batch, failed or not.
	IncExecuted()

	// IncFailed is called after a batch whose consumer returned an error
	// or panicked.
	IncFailed()

	// ObserveBatch records how long one consumer call took.
	ObserveBatch(d time.Duration)
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	// executed is the total number of batches processed.
	executed atomic.Uint64

	_ [56]byte // padding to avoid false sharing

	// queued is the current number of batches waiting for a worker.
	queued atomic.Int64

	failed atomic.Uint64

	busyNanos atomic.Int64
}

// Executed returns the total number of executed batches.
func (m *AtomicMetrics) Executed() uint64 {
	return m.executed.Load()
}

// Queued returns the current number of queued batches.
func (m *AtomicMetrics) Queued() int64 {
	return m.queued.Load()
}

// Failed returns the total number of failed batches.
func (m *AtomicMetrics) Failed() uint64 {
	return m.failed.Load()
}

// Busy returns the summed consumer time across all workers.
func (m *AtomicMetrics) Busy() time.Duration {
	return time.Duration(m.busyNanos.Load())
}

func (m *AtomicMetrics) IncExecuted()                 { m.executed.Add(1) }
func (m *AtomicMetrics) IncQueued()                   { m.queued.Add(1) }
func (m *AtomicMetrics) DecQueued()                   { m.queued.Add(-1) }
func (m *AtomicMetrics) IncFailed()                   { m.failed.Add(1) }
func (m *AtomicMetrics) ObserveBatch(d time.Duration) { m.busyNanos.Add(int64(d)) }

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (m *NoopMetrics) IncExecuted()                 {}
func (m *NoopMetrics) IncQueued()                   {}
func (m *NoopMetrics) DecQueued()                   {}
func (m *NoopMetrics) IncFailed()                   {}
func (m *NoopMetrics) ObserveBatch(d time.Duration) {}

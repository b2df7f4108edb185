package partition

import (
	"fmt"
	"runtime"
)

const (
	// DefaultBatchSize is the number of items handed to one consumer call
	// when nothing else is configured.
	DefaultBatchSize = 800

	// DefaultNamePrefix names workers "worker-1" … "worker-N".
	DefaultNamePrefix = "worker"
)

// Options configure one partitioned run.
//
// BatchSize and ThreadCount have no implicit defaults: a value below one is
// a configuration error reported by Validate. Use DefaultOptions for a
// ready-made configuration.
type Options struct {
	// BatchSize is the maximum number of items per batch.
	BatchSize int

	// ThreadCount caps the number of workers. The pool never starts more
	// workers than there are batches.
	ThreadCount int

	// NamePrefix is used to build worker names ("<prefix>-<n>").
	NamePrefix string

	// PinWorkers locks every worker to an OS thread pinned to one CPU.
	// Linux only; ignored elsewhere.
	PinWorkers bool

	// Metrics receives queue and batch counters. FillDefaults installs
	// NoopMetrics when nil.
	Metrics MetricsPolicy

	// OnBatchError, if set, is called from the worker for every failed batch.
	OnBatchError func(err error)
}

// OptionsSource supplies a fresh Options value for every run.
type OptionsSource interface {
	Snapshot() Options
}

// DefaultOptions returns the defaults used by the expunge path of the server:
// 800 items per batch and one worker per CPU.
func DefaultOptions() Options {
	o := Options{
		BatchSize:   DefaultBatchSize,
		ThreadCount: runtime.NumCPU(),
	}
	o.FillDefaults()
	return o
}

// Snapshot lets a plain Options value act as an OptionsSource.
func (o Options) Snapshot() Options { return o }

// FillDefaults replaces zero values of the non-scalar fields.
func (o *Options) FillDefaults() {
	if o.NamePrefix == "" {
		o.NamePrefix = DefaultNamePrefix
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
}

// Validate reports ErrInvalidConfig if BatchSize or ThreadCount is below one.
func (o Options) Validate() error {
	if o.BatchSize < 1 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidConfig, o.BatchSize)
	}
	if o.ThreadCount < 1 {
		return fmt.Errorf("%w: thread count %d", ErrInvalidConfig, o.ThreadCount)
	}
	return nil
}

// poolSize is min(ThreadCount, batches).
func (o Options) poolSize(batches int) int {
	return min(o.ThreadCount, batches)
}

func workerName(prefix string, n int) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}

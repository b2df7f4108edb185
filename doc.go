// Package partition runs side-effecting work over a large ordered set of
// identifiers in fixed-size batches spread across a bounded pool of named
// workers, and blocks the caller until every batch has finished.
//
// It is the executor behind bulk operations such as expunging resources:
// the caller selects the row keys, supplies a per-batch callback, and Run
// fans the batches out and joins them again.
//
// Partitioning
//
// Partition splits the input into contiguous batches of at most BatchSize
// items. Every batch but the last holds exactly BatchSize items; the last
// holds the remainder. Partitioning is pure and deterministic. Batches own
// copies of their items, so a consumer may keep or modify its batch.
//
// Workers
//
// A run starts min(ThreadCount, batches) workers named "worker-1" …
// "worker-N" (see Options.NamePrefix). The first N batches are spread one
// per worker in order. Every later batch is taken by whichever worker
// becomes idle first, so beyond the first round the batch-to-worker mapping
// may differ from run to run. A worker executes one batch at a time.
//
// The worker name is available to the consumer through WorkerName(ctx).
//
// Barrier
//
// Run submits every batch and waits on a counter that is incremented per
// submitted batch and decremented per finished one. It returns only once
// the counter reaches zero.
//
// Errors
//
// Invalid options fail before any batch is dispatched. A batch that returns
// an error or panics does not stop its siblings: all batches run, and Run
// returns the first failure observed as a *BatchError. Report.Err combines
// all of them. There are no retries here; retry policy belongs to the
// caller (see package expunge).
//
// Configuration
//
// Options are passed by value and read once per run. Runner pulls them from
// an OptionsSource on every call, which lets a process-wide mutable settings
// object (package config) change between runs without affecting one in
// flight.
package partition

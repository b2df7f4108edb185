package partition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned before any batch is dispatched when the
	// batch size or thread count is below one.
	ErrInvalidConfig = errors.New("partition: invalid configuration")

	// ErrNilConsumer is returned when Run is called without a consumer.
	ErrNilConsumer = errors.New("partition: nil consumer")

	// ErrPoolClosed is returned when submitting to a pool that was shut down.
	ErrPoolClosed = errors.New("partition: pool closed")
)

// BatchError wraps the error returned (or panic raised) by a consumer for
// one batch.
type BatchError struct {
	Index  int
	Size   int
	Worker string
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("partition: batch %d (%d items) on %s: %v", e.Index, e.Size, e.Worker, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// PanicError is produced when a consumer panics. The worker survives.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("consumer panicked: %v", e.Value)
}

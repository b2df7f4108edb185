package expunge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrej220/go-utils/partition"
)

var fastRetry = RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}

func ids(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func opts(batchSize, threads int) partition.Options {
	return partition.Options{BatchSize: batchSize, ThreadCount: threads}
}

// flakyStore fails chosen batches (keyed by first id) a number of times
// before delegating to a MemoryStore.
type flakyStore struct {
	*MemoryStore

	mu       sync.Mutex
	failures map[int64]int
	err      error
	calls    atomic.Int32
}

func (s *flakyStore) DeleteResources(ctx context.Context, ids []int64) (int, error) {
	s.calls.Add(1)
	s.mu.Lock()
	left := s.failures[ids[0]]
	if left > 0 {
		s.failures[ids[0]] = left - 1
	}
	s.mu.Unlock()
	if left > 0 {
		return 0, s.err
	}
	return s.MemoryStore.DeleteResources(ctx, ids)
}

func TestExpungeDeletesEverything(t *testing.T) {
	store := NewMemoryStore(ids(95)...)
	e := New(store, opts(10, 4), fastRetry)

	out, err := e.Expunge(context.Background(), ids(95))

	require.NoError(t, err)
	assert.Equal(t, 95, out.Deleted)
	assert.Equal(t, 10, out.Report.Batches)
	assert.Equal(t, 0, store.Len())
	assert.LessOrEqual(t, len(out.Report.Workers), 4)
}

func TestExpungeEmpty(t *testing.T) {
	store := NewMemoryStore(ids(3)...)
	e := New(store, opts(10, 4), fastRetry)

	out, err := e.Expunge(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 0, out.Deleted)
	assert.Equal(t, 3, store.Len())
}

func TestExpungeSkipsMissingRows(t *testing.T) {
	store := NewMemoryStore(1, 2, 3)
	e := New(store, opts(2, 2), fastRetry)

	out, err := e.Expunge(context.Background(), []int64{1, 2, 3, 4, 5})

	require.NoError(t, err)
	assert.Equal(t, 3, out.Deleted)
}

func TestExpungeRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{
		MemoryStore: NewMemoryStore(ids(20)...),
		failures:    map[int64]int{1: 2, 11: 1},
		err:         Transient(errors.New("lock timeout")),
	}
	e := New(store, opts(10, 2), fastRetry)

	out, err := e.Expunge(context.Background(), ids(20))

	require.NoError(t, err)
	assert.Equal(t, 20, out.Deleted)
	assert.Equal(t, int32(5), store.calls.Load())
}

func TestExpungeGivesUpAfterAttempts(t *testing.T) {
	lockTimeout := errors.New("lock timeout")
	store := &flakyStore{
		MemoryStore: NewMemoryStore(ids(30)...),
		failures:    map[int64]int{11: 10},
		err:         Transient(lockTimeout),
	}
	e := New(store, opts(10, 3), fastRetry)

	out, err := e.Expunge(context.Background(), ids(30))

	require.Error(t, err)
	assert.ErrorIs(t, err, lockTimeout)
	var be *partition.BatchError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 1, be.Index)

	// the other two batches still ran
	assert.Equal(t, 20, out.Deleted)
	assert.Equal(t, 10, store.Len())
	assert.Equal(t, int32(2+fastRetry.Attempts), store.calls.Load())
}

func TestExpungeDoesNotRetryPermanentFailures(t *testing.T) {
	store := &flakyStore{
		MemoryStore: NewMemoryStore(ids(4)...),
		failures:    map[int64]int{1: 1},
		err:         errors.New("constraint violation"),
	}
	e := New(store, opts(4, 1), fastRetry)

	_, err := e.Expunge(context.Background(), ids(4))

	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestExpungeInvalidConfig(t *testing.T) {
	store := NewMemoryStore(ids(4)...)
	e := New(store, opts(0, 1), fastRetry)

	_, err := e.Expunge(context.Background(), ids(4))

	assert.ErrorIs(t, err, partition.ErrInvalidConfig)
	assert.Equal(t, 4, store.Len())
}

func TestExpungeCanceledDuringBackoff(t *testing.T) {
	store := &flakyStore{
		MemoryStore: NewMemoryStore(ids(2)...),
		failures:    map[int64]int{1: 1 << 20},
		err:         Transient(errors.New("connection reset")),
	}
	e := New(store, opts(2, 1), RetryPolicy{Attempts: 1 << 20, Initial: time.Second, Max: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := e.Expunge(ctx, ids(2))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRetryPolicyDefaults(t *testing.T) {
	assert.Equal(t, DefaultRetryPolicy(), RetryPolicy{}.withDefaults())

	p := RetryPolicy{Attempts: 1, Initial: time.Second, Max: time.Millisecond}.withDefaults()
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, time.Second, p.Max)
}

func TestTransient(t *testing.T) {
	assert.Nil(t, Transient(nil))

	base := errors.New("deadlock")
	err := Transient(base)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsTransient(base))
}

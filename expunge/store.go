package expunge

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Store removes resources and everything hanging off them (history,
// search index rows) by primary key.
//
// DeleteResources must be idempotent: ids that are already gone are
// skipped and not counted. It is called concurrently from several workers,
// each with its own batch.
type Store interface {
	DeleteResources(ctx context.Context, ids []int64) (int, error)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as worth retrying, e.g. a lock timeout or a dropped
// connection.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err, or anything it wraps, was marked with
// Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// MemoryStore is an in-process resource table.
type MemoryStore struct {
	mu        sync.Mutex
	resources map[int64]struct{}

	// Latency is slept on every DeleteResources call to stand in for a
	// database round trip.
	Latency time.Duration
}

func NewMemoryStore(ids ...int64) *MemoryStore {
	s := &MemoryStore{resources: make(map[int64]struct{}, len(ids))}
	s.Seed(ids...)
	return s
}

// Seed adds ids to the table.
func (s *MemoryStore) Seed(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.resources[id] = struct{}{}
	}
}

func (s *MemoryStore) Has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.resources[id]
	return ok
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

func (s *MemoryStore) DeleteResources(ctx context.Context, ids []int64) (int, error) {
	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return 0, errors.Wrap(ctx.Err(), "memory store")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.resources[id]; ok {
			delete(s.resources, id)
			n++
		}
	}
	return n, nil
}

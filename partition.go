package partition

import (
	"fmt"
	"slices"
)

// Batch is a contiguous run of items cut from the input slice.
//
// Index is the batch position in partition order (0-based). Items is owned
// by the batch: it never aliases the caller's slice or another batch.
type Batch[T any] struct {
	Index int
	Items []T
}

// Len returns the number of items in the batch.
func (b Batch[T]) Len() int { return len(b.Items) }

// BatchCount returns ceil(n / maxBatchSize). It is zero iff n is zero.
func BatchCount(n, maxBatchSize int) int {
	if n <= 0 {
		return 0
	}
	mustPositive(maxBatchSize)
	count := n / maxBatchSize
	if n%maxBatchSize > 0 {
		count++
	}
	return count
}

// Bounds returns the half-open [start, end) index pairs of every batch for
// n items. All pairs except possibly the last span exactly maxBatchSize.
func Bounds(n, maxBatchSize int) [][2]int {
	count := BatchCount(n, maxBatchSize)
	bounds := make([][2]int, count)
	for i := range count {
		start := i * maxBatchSize
		end := min(start+maxBatchSize, n)
		bounds[i] = [2]int{start, end}
	}
	return bounds
}

// Partition splits items into ordered batches of at most maxBatchSize items.
//
// Concatenating the batches in order reproduces items exactly. An empty
// input yields no batches. Partition panics if maxBatchSize < 1; callers
// that take the size from configuration should validate it first.
func Partition[T any](items []T, maxBatchSize int) []Batch[T] {
	mustPositive(maxBatchSize)
	bounds := Bounds(len(items), maxBatchSize)
	batches := make([]Batch[T], len(bounds))
	for i, b := range bounds {
		batches[i] = Batch[T]{
			Index: i,
			Items: slices.Clone(items[b[0]:b[1]]),
		}
	}
	return batches
}

func mustPositive(maxBatchSize int) {
	if maxBatchSize < 1 {
		panic(fmt.Sprintf("partition: batch size must be >= 1, got %d", maxBatchSize))
	}
}

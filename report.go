package partition

import (
	"time"

	"go.uber.org/multierr"
)

// Report summarizes a finished run.
type Report struct {
	RunID   string
	Items   int
	Batches int

	// Workers lists the distinct worker names that executed a batch, in
	// the order the workers were created.
	Workers []string

	// Results holds one entry per batch, in partition order.
	Results []Result

	Elapsed time.Duration
}

// Failed returns the number of failed batches.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Err combines every batch error, in partition order. It is nil when all
// batches succeeded.
func (r *Report) Err() error {
	var err error
	for _, res := range r.Results {
		err = multierr.Append(err, res.Err)
	}
	return err
}

// distinctWorkers returns the names in order that executed at least one of
// results.
func distinctWorkers(results []Result, order []string) []string {
	used := make(map[string]struct{}, len(order))
	for _, r := range results {
		used[r.Worker] = struct{}{}
	}
	var names []string
	for _, name := range order {
		if _, ok := used[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

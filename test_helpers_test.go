package partition

import (
	"runtime"
	"testing"
	"time"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	t.Fatal("condition not satisfied before timeout")
}

func testOptions(batchSize, threads int) Options {
	o := Options{BatchSize: batchSize, ThreadCount: threads}
	o.FillDefaults()
	return o
}

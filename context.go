package partition

import "context"

type workerKey struct{}

func withWorker(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, workerKey{}, name)
}

// WorkerName returns the name of the worker executing the batch whose
// consumer received ctx. It returns "" outside a consumer call.
func WorkerName(ctx context.Context) string {
	name, _ := ctx.Value(workerKey{}).(string)
	return name
}

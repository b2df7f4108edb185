package partition

// reportBatchError reports a failed batch to the configured handler.
//
// The handler runs on the worker that executed the batch, before the batch
// is counted as done. If no handler is registered, the error is still
// returned from Run.
func (p *Pool[T]) reportBatchError(err error) {
	if p.opts.OnBatchError != nil {
		p.opts.OnBatchError(err)
	}
}

package core

import "context"

// Job is a non-critical side effect run outside of the request/response lifecycle.
// Jobs must be idempotent: they may be retried.
type Job func(ctx context.Context) error

// Dispatcher runs jobs in the background. Failures are logged, never returned to the caller.
type Dispatcher interface {
	Dispatch(name string, job Job)
}

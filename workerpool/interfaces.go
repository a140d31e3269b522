package workerpool

import (
	"context"
)

type Manager interface {
	GetPool() (WorkerPool, error)
	Shutdown(context.Context) error
}

// WorkerPool defines the common methods for worker pool operations.
// It is backed by either a single ants.Pool or an ants.MultiPool.
type WorkerPool interface {
	Submit(ctx context.Context, task func()) error
	Shutdown()
}

package bootloader

import (
	"context"

	"github.com/pitabwire/bootloader/workerpool"
)

// WithWorkerPoolOptions overrides the pool derived from configuration.
func WithWorkerPoolOptions(options ...workerpool.Option) Option {
	return func(_ context.Context, l *Loader) {
		l.workerPoolOptions = append(l.workerPoolOptions, options...)
	}
}

func (l *Loader) WorkManager() workerpool.Manager {
	return l.workerPoolManager
}

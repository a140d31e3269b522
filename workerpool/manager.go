package workerpool

import (
	"context"
	"errors"
	"sync"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/config"
)

var ErrPoolNotConfigured = errors.New("worker pool is not configured")

type manager struct {
	pool     WorkerPool
	shutdown sync.Once
}

// NewManager builds the pool from configuration; opts override the derived values.
func NewManager(ctx context.Context, cfg config.ConfigurationWorkerPool, opts ...Option) (Manager, error) {
	log := util.Log(ctx)

	poolOpts := defaultWorkerPoolOpts(cfg, log)
	for _, opt := range opts {
		opt(poolOpts)
	}

	pool, err := setupWorkerPool(ctx, poolOpts)
	if err != nil {
		return nil, err
	}

	return &manager{pool: pool}, nil
}

func (m *manager) GetPool() (WorkerPool, error) {
	if m.pool == nil {
		return nil, ErrPoolNotConfigured
	}
	return m.pool, nil
}

func (m *manager) Shutdown(_ context.Context) error {
	if m.pool == nil {
		return ErrPoolNotConfigured
	}
	m.shutdown.Do(m.pool.Shutdown)
	return nil
}

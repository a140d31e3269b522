package bootloader

import (
	"context"
	"fmt"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/storage"
	"github.com/pitabwire/bootloader/storage/jetstream"
	"github.com/pitabwire/bootloader/storage/redis"
	"github.com/pitabwire/bootloader/storage/sqlite"
	"github.com/pitabwire/bootloader/storage/valkey"
)

// WithStore injects the store. The caller keeps ownership of it.
func WithStore(st storage.Store) Option {
	return func(_ context.Context, l *Loader) {
		l.store = st
	}
}

// WithStorageURI opens the store from dsn instead of STORAGE_URI. The Loader
// closes it.
func WithStorageURI(dsn string, name string) Option {
	return func(ctx context.Context, l *Loader) {
		st, closer, err := OpenStore(ctx, storage.DSN(dsn), name)
		if err != nil {
			l.addStartupError(fmt.Errorf("open store: %w", err))
			return
		}
		l.store, l.storeCloser = st, closer
	}
}

// OpenStore picks the backend from the DSN scheme. name namespaces keys, except
// for JetStream where it names the bucket.
func OpenStore(ctx context.Context, dsn storage.DSN, name string) (storage.Store, func() error, error) {
	var (
		backend storage.Backend
		err     error
	)

	opts := []storage.Option{storage.WithDSN(dsn)}
	storeOpts := []storage.Option{storage.WithName(name)}

	switch {
	case dsn.IsMem():
		backend = storage.NewInMemoryBackend()
	case dsn.IsRedis():
		backend, err = redis.New(opts...)
	case dsn.IsValkey():
		backend, err = valkey.New(opts...)
	case dsn.IsSqlite():
		backend, err = sqlite.New(opts...)
	case dsn.IsNats():
		if name != "" {
			opts = append(opts, storage.WithName(name))
		}
		storeOpts = nil
		backend, err = jetstream.New(opts...)
	default:
		return nil, nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedDSN, dsn)
	}
	if err != nil {
		return nil, nil, err
	}

	util.Log(ctx).WithField("backend", fmt.Sprintf("%T", backend)).Debug("store opened")
	return storage.New(backend, storeOpts...), backend.Close, nil
}

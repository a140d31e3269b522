package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/bootloader/storage"
)

// Backend is a Redis-backed storage implementation.
type Backend struct {
	client *redis.Client
}

const connectionTimeout = 5 * time.Second

// New connects to the redis:// DSN supplied through storage.WithDSN.
func New(opts ...storage.Option) (storage.Backend, error) {
	o := storage.Apply(storage.Options{}, opts...)

	redisOpts, err := redis.ParseURL(o.DSN.String())
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		_ = client.Close()
		return nil, pingErr
	}

	return &Backend{client: client}, nil
}

func (rb *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := rb.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Set persists the value without expiry.
func (rb *Backend) Set(ctx context.Context, key string, value []byte) error {
	return rb.client.Set(ctx, key, value, 0).Err()
}

func (rb *Backend) Delete(ctx context.Context, key string) error {
	return rb.client.Del(ctx, key).Err()
}

func (rb *Backend) Exists(ctx context.Context, key string) (bool, error) {
	count, err := rb.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (rb *Backend) Flush(ctx context.Context) error {
	return rb.client.FlushDB(ctx).Err()
}

func (rb *Backend) Close() error {
	return rb.client.Close()
}

package valkey

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/pitabwire/bootloader/storage"
)

// Backend is a Valkey-backed storage implementation using the official Valkey client.
type Backend struct {
	client valkey.Client
}

const connectionTimeout = 5 * time.Second

// New connects to the DSN supplied through storage.WithDSN. Both valkey:// and
// redis:// schemes are accepted.
func New(opts ...storage.Option) (storage.Backend, error) {
	o := storage.Apply(storage.Options{}, opts...)

	dsn := o.DSN
	if dsn.IsValkey() {
		dsn = dsn.WithScheme("redis")
	}

	valkeyOpts, err := valkey.ParseURL(dsn.String())
	if err != nil {
		return nil, err
	}

	client, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if pingErr := client.Do(ctx, client.B().Ping().Build()).Error(); pingErr != nil {
		client.Close()
		return nil, pingErr
	}

	return &Backend{client: client}, nil
}

func (vb *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := vb.client.Do(ctx, vb.client.B().Get().Key(key).Build())

	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	val, err := resp.AsBytes()
	if err != nil {
		return nil, false, err
	}

	return val, true, nil
}

func (vb *Backend) Set(ctx context.Context, key string, value []byte) error {
	cmd := vb.client.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()
	return vb.client.Do(ctx, cmd).Error()
}

func (vb *Backend) Delete(ctx context.Context, key string) error {
	return vb.client.Do(ctx, vb.client.B().Del().Key(key).Build()).Error()
}

func (vb *Backend) Exists(ctx context.Context, key string) (bool, error) {
	resp := vb.client.Do(ctx, vb.client.B().Exists().Key(key).Build())
	if err := resp.Error(); err != nil {
		return false, err
	}

	count, err := resp.AsInt64()
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (vb *Backend) Flush(ctx context.Context) error {
	return vb.client.Do(ctx, vb.client.B().Flushdb().Build()).Error()
}

func (vb *Backend) Close() error {
	vb.client.Close()
	return nil
}

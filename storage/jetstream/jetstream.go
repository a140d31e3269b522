package jetstream

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/pitabwire/bootloader/storage"
)

const defaultBucket = "bootloader"

// Backend persists entries in a NATS JetStream KeyValue bucket.
type Backend struct {
	conn   *nats.Conn
	bucket nats.KeyValue
}

// New connects to the nats:// DSN and binds the bucket named by storage.WithName,
// creating it when missing.
func New(opts ...storage.Option) (storage.Backend, error) {
	o := storage.Apply(storage.Options{Name: defaultBucket}, opts...)

	natsConn, err := nats.Connect(o.DSN.String())
	if err != nil {
		return nil, err
	}

	js, err := natsConn.JetStream()
	if err != nil {
		natsConn.Close()
		return nil, err
	}

	bucket, err := js.CreateKeyValue(&nats.KeyValueConfig{Bucket: o.Name})
	if err != nil {
		var apiErr *nats.APIError
		if !errors.As(err, &apiErr) || apiErr.ErrorCode != nats.JSErrCodeStreamNameInUse {
			natsConn.Close()
			return nil, err
		}

		bucket, err = js.KeyValue(o.Name)
		if err != nil {
			natsConn.Close()
			return nil, err
		}
	}

	if _, err = bucket.Status(); err != nil {
		natsConn.Close()
		return nil, err
	}

	return &Backend{conn: natsConn, bucket: bucket}, nil
}

func (jb *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, err := jb.bucket.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return entry.Value(), true, nil
}

func (jb *Backend) Set(_ context.Context, key string, value []byte) error {
	_, err := jb.bucket.Put(key, value)
	return err
}

func (jb *Backend) Delete(_ context.Context, key string) error {
	return jb.bucket.Delete(key)
}

func (jb *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := jb.Get(ctx, key)
	return found, err
}

func (jb *Backend) Flush(_ context.Context) error {
	keys, err := jb.bucket.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}
		return err
	}

	for _, key := range keys {
		if err = jb.bucket.Purge(key); err != nil {
			return err
		}
	}

	return nil
}

func (jb *Backend) Close() error {
	jb.conn.Close()
	return nil
}

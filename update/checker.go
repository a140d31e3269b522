// Package update asks the server for its current version and refreshes the
// client when it has moved on.
package update

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/client"
	"github.com/pitabwire/bootloader/storage"
)

var ErrUpdateCheckFailed = errors.New("update check failed")

// Meta is the part of the server metadata the checker reads.
type Meta struct {
	Version string `json:"version"`
}

type Checker struct {
	store     storage.Store
	origin    client.Manager
	refresher *Refresher
	timeout   time.Duration
}

type Option func(*Checker)

// WithTimeout bounds the metadata request. Zero means unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		c.timeout = timeout
	}
}

func NewChecker(st storage.Store, origin client.Manager, refresher *Refresher, opts ...Option) *Checker {
	c := &Checker{store: st, origin: origin, refresher: refresher}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check fetches the server version. When it differs from current the new value
// is persisted under v and a refresh follows. It reports whether that happened.
func (c *Checker) Check(ctx context.Context, current string) (bool, error) {
	meta, err := c.fetch(ctx)
	if err != nil {
		return false, err
	}

	log := util.Log(ctx).WithFields(map[string]any{
		"current": current,
		"server":  meta.Version,
	})

	if meta.Version == current {
		log.Debug("client is up to date")
		return false, nil
	}

	if err = c.store.Set(ctx, storage.KeyVersion, meta.Version); err != nil {
		return false, fmt.Errorf("%w: persist version: %w", ErrUpdateCheckFailed, err)
	}

	log.Info("new version available, refreshing")
	if c.refresher != nil {
		c.refresher.Refresh(ctx)
	}
	return true, nil
}

func (c *Checker) fetch(ctx context.Context) (*Meta, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	headers := http.Header{}
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Pragma", "no-cache")

	resp, err := c.origin.Invoke(ctx, http.MethodPost, "/api/meta", headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpdateCheckFailed, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		util.CloseAndLogOnError(ctx, resp)
		return nil, fmt.Errorf("%w: status %d", ErrUpdateCheckFailed, resp.StatusCode)
	}

	var meta Meta
	if err = resp.Decode(ctx, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode meta: %w", ErrUpdateCheckFailed, err)
	}
	if meta.Version == "" {
		return nil, fmt.Errorf("%w: meta has no version", ErrUpdateCheckFailed)
	}
	return &meta, nil
}

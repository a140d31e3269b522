// Package entry loads the application bundle that takes over once boot succeeds.
package entry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/client"
)

var ErrAppFetchFailed = errors.New("app fetch failed")

// ScriptLoader loads and executes the script at an origin relative path.
type ScriptLoader interface {
	Load(ctx context.Context, path string) error
}

// ScriptLoaderFunc adapts a function to ScriptLoader.
type ScriptLoaderFunc func(ctx context.Context, path string) error

func (f ScriptLoaderFunc) Load(ctx context.Context, path string) error {
	return f(ctx, path)
}

type Loader struct {
	scripts   ScriptLoader
	entryFile string
	timeout   time.Duration
}

type Option func(*Loader)

// WithTimeout bounds the bundle load. Zero means unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Loader) {
		l.timeout = timeout
	}
}

func NewLoader(scripts ScriptLoader, entryFile string, opts ...Option) *Loader {
	l := &Loader{scripts: scripts, entryFile: entryFile}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path is where the bundle is served from.
func (l *Loader) Path() string {
	return path.Join("/assets", l.entryFile)
}

// Load hands the bundle to the script loader. Any failure, a timeout included,
// is returned wrapped in ErrAppFetchFailed.
func (l *Loader) Load(ctx context.Context) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	p := l.Path()
	if err := l.scripts.Load(ctx, p); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAppFetchFailed, p, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAppFetchFailed, p, err)
	}

	util.Log(ctx).WithField("path", p).Debug("entry bundle loaded")
	return nil
}

// Handoff receives the fetched bundle. It is where the application takes over.
type Handoff func(ctx context.Context, path string, bundle []byte) error

// HTTPScriptLoader fetches scripts from the origin.
type HTTPScriptLoader struct {
	origin  client.Manager
	handoff Handoff
}

// NewHTTPScriptLoader builds a loader that passes each fetched bundle to handoff,
// which may be nil.
func NewHTTPScriptLoader(origin client.Manager, handoff Handoff) *HTTPScriptLoader {
	return &HTTPScriptLoader{origin: origin, handoff: handoff}
}

func (h *HTTPScriptLoader) Load(ctx context.Context, path string) error {
	resp, err := h.origin.Invoke(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		util.CloseAndLogOnError(ctx, resp)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	bundle, err := resp.ToContent(ctx)
	if err != nil {
		return err
	}

	if h.handoff == nil {
		return nil
	}
	return h.handoff(ctx, path, bundle)
}

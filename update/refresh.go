package update

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/client"
)

// ClearMessage asks the cache worker to drop everything it holds.
const ClearMessage = "clear"

// CacheWorker is the background cache serving assets to the client.
type CacheWorker interface {
	PostMessage(ctx context.Context, msg string) error
	Registrations(ctx context.Context) ([]Registration, error)
}

// Registration is an installed cache worker that can be removed.
type Registration interface {
	Unregister(ctx context.Context) error
}

// Reloader restarts the client from scratch.
type Reloader interface {
	Reload(ctx context.Context)
}

type ReloaderFunc func(ctx context.Context)

func (f ReloaderFunc) Reload(ctx context.Context) {
	f(ctx)
}

// Refresher invalidates client caches and then reloads.
type Refresher struct {
	worker   CacheWorker
	reloader Reloader
}

// NewRefresher builds a Refresher. worker may be nil when no cache worker exists.
func NewRefresher(worker CacheWorker, reloader Reloader) *Refresher {
	return &Refresher{worker: worker, reloader: reloader}
}

// Refresh clears and unregisters cache workers on a best effort basis, then
// always reloads.
func (r *Refresher) Refresh(ctx context.Context) {
	r.invalidate(ctx)
	if r.reloader != nil {
		r.reloader.Reload(ctx)
	}
}

func (r *Refresher) invalidate(ctx context.Context) {
	log := util.Log(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", fmt.Sprint(rec)).Warn("cache invalidation panicked")
		}
	}()

	if r.worker == nil {
		log.Debug("no cache worker, skipping invalidation")
		return
	}

	if err := r.worker.PostMessage(ctx, ClearMessage); err != nil {
		log.WithError(err).Warn("could not clear cache worker")
	}

	registrations, err := r.worker.Registrations(ctx)
	if err != nil {
		log.WithError(err).Warn("could not list cache worker registrations")
		return
	}

	for _, reg := range registrations {
		if err = reg.Unregister(ctx); err != nil {
			log.WithError(err).Warn("could not unregister cache worker")
		}
	}
}

// HTTPCacheWorker clears the server side cache through the flush endpoint. It
// has no registrations of its own.
type HTTPCacheWorker struct {
	origin client.Manager
}

func NewHTTPCacheWorker(origin client.Manager) *HTTPCacheWorker {
	return &HTTPCacheWorker{origin: origin}
}

func (w *HTTPCacheWorker) PostMessage(ctx context.Context, msg string) error {
	if msg != ClearMessage {
		return fmt.Errorf("unsupported cache worker message %q", msg)
	}

	resp, err := w.origin.Invoke(ctx, http.MethodGet, "/flush", nil)
	if err != nil {
		return err
	}
	defer util.CloseAndLogOnError(ctx, resp)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("flush returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *HTTPCacheWorker) Registrations(context.Context) ([]Registration, error) {
	return nil, nil
}

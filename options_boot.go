package bootloader

import (
	"context"

	"github.com/pitabwire/bootloader/entry"
	"github.com/pitabwire/bootloader/locale"
	"github.com/pitabwire/bootloader/update"
)

// WithScriptLoader replaces the HTTP bundle loader.
func WithScriptLoader(scripts entry.ScriptLoader) Option {
	return func(_ context.Context, l *Loader) {
		l.scripts = scripts
	}
}

// WithHandoff receives the bundle fetched by the default HTTP script loader.
func WithHandoff(handoff entry.Handoff) Option {
	return func(_ context.Context, l *Loader) {
		l.handoff = handoff
	}
}

// WithCacheWorker replaces the flush endpoint worker. A nil worker disables
// cache invalidation.
func WithCacheWorker(worker update.CacheWorker) Option {
	return func(_ context.Context, l *Loader) {
		l.cacheWorker = worker
		l.noWorker = worker == nil
	}
}

// WithReloader is called, in addition to flagging the Result, when a new
// version forces a reload.
func WithReloader(reloader update.Reloader) Option {
	return func(_ context.Context, l *Loader) {
		l.reloader = reloader
	}
}

// WithBrowserLanguage overrides BROWSER_LANGUAGE. Accept-Language lists are
// accepted.
func WithBrowserLanguage(acceptLanguage string) Option {
	return func(_ context.Context, l *Loader) {
		l.browserLang = locale.BrowserLanguage(acceptLanguage)
	}
}

package bootloader

import (
	"context"

	"github.com/pitabwire/bootloader/client"
	"github.com/pitabwire/bootloader/config"
)

// WithOrigin injects the client used for every server request.
func WithOrigin(origin client.Manager) Option {
	return func(_ context.Context, l *Loader) {
		l.origin = origin
	}
}

// WithHTTPClient sets options for the client built from SERVER_URL.
func WithHTTPClient(opts ...client.HTTPOption) Option {
	return func(_ context.Context, l *Loader) {
		l.httpOpts = append(l.httpOpts, opts...)
	}
}

func (l *Loader) clientOptions() []client.HTTPOption {
	var opts []client.HTTPOption
	if cfg, ok := l.configuration.(config.ConfigurationTraceRequests); ok && cfg.TraceReq() {
		opts = append(opts, client.WithHTTPTraceRequests())
		if cfg.TraceReqLogBody() {
			opts = append(opts, client.WithHTTPTraceRequestHeaders())
		}
	}
	return append(opts, l.httpOpts...)
}

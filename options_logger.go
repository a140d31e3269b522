package bootloader

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/config"
)

// WithLogger builds the loader's logger from the logging configuration, the
// telemetry log bridge when enabled, and opts.
func WithLogger(opts ...util.Option) Option {
	return func(ctx context.Context, l *Loader) {
		var logOpts []util.Option
		if cfg, ok := l.configuration.(config.ConfigurationLogLevel); ok {
			logLevel, err := util.ParseLevel(cfg.LoggingLevel())
			if err == nil {
				logOpts = append(logOpts, util.WithLogLevel(logLevel))
			}
			logOpts = append(logOpts,
				util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
				util.WithLogNoColor(!cfg.LoggingColored()))
			if cfg.LoggingShowStackTrace() {
				logOpts = append(logOpts, util.WithLogStackTrace())
			}
		}

		if l.telemetryManager != nil && l.telemetryManager.LogHandler() != nil {
			logOpts = append(logOpts, util.WithLogHandler(l.telemetryManager.LogHandler()))
		}

		l.logger = util.NewLogger(ctx, append(logOpts, opts...)...)
	}
}

// Log returns the loader's logger bound to ctx.
func (l *Loader) Log(ctx context.Context) *util.LogEntry {
	return l.logger.WithContext(ctx)
}

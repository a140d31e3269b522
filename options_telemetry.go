package bootloader

import (
	"context"

	"github.com/pitabwire/bootloader/config"
	"github.com/pitabwire/bootloader/telemetry"
)

// WithTelemetry installs the OpenTelemetry providers. Place it before WithLogger
// so logs are bridged.
func WithTelemetry(opts ...telemetry.Option) Option {
	return func(ctx context.Context, l *Loader) {
		cfg, _ := l.configuration.(config.ConfigurationTelemetry)

		if svc, ok := l.configuration.(config.ConfigurationService); ok {
			opts = append([]telemetry.Option{
				telemetry.WithServiceName(svc.Name()),
				telemetry.WithServiceVersion(svc.Version()),
				telemetry.WithServiceEnvironment(svc.Environment()),
			}, opts...)
		}

		m := telemetry.NewManager(ctx, cfg, opts...)
		if err := m.Init(ctx); err != nil {
			l.addStartupError(err)
			return
		}
		l.telemetryManager = m
	}
}

package bootloader

import (
	"context"
)

// WithConfig replaces the environment configuration. cfg is matched against the
// config accessor interfaces; *config.ConfigurationDefault satisfies them all.
func WithConfig(cfg any) Option {
	return func(_ context.Context, l *Loader) {
		l.configuration = cfg
	}
}

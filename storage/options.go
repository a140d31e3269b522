package storage

// Option configures a store or one of its backends.
type Option func(*Options)

// Options holds backend connection configuration.
type Options struct {
	DSN  DSN
	Name string
}

func WithDSN(dsn DSN) Option {
	return func(o *Options) {
		o.DSN = dsn
	}
}

// WithName sets the namespace for keys, or the bucket name for JetStream.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// Apply builds Options from opts over the supplied defaults.
func Apply(defaults Options, opts ...Option) *Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return &o
}

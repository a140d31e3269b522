package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/pitabwire/bootloader/version"
)

type contextKey string

func (c contextKey) String() string {
	return "bootloader/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	DefaultFetchTimeout = 30 * time.Second
	DefaultEntryTimeout = 60 * time.Second
)

// ToContext adds configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"`
	LogFormat     string `envDefault:"text"                      env:"LOG_FORMAT"      yaml:"log_format"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	LogShowStackTrace bool `envDefault:"false" env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	TraceRequests        bool `envDefault:"false" env:"TRACE_REQUESTS"          yaml:"trace_requests"`
	TraceRequestsLogBody bool `envDefault:"false" env:"TRACE_REQUESTS_LOG_BODY" yaml:"trace_requests_log_body"`

	OpenTelemetryDisable    bool    `envDefault:"true" env:"OPENTELEMETRY_DISABLE"        yaml:"opentelemetry_disable"`
	OpenTelemetryTraceRatio float64 `envDefault:"0.1"  env:"OPENTELEMETRY_TRACE_ID_RATIO" yaml:"opentelemetry_trace_id_ratio"`

	ServiceName        string `envDefault:"bootloader" env:"SERVICE_NAME"        yaml:"service_name"`
	ServiceEnvironment string `envDefault:""           env:"SERVICE_ENVIRONMENT" yaml:"service_environment"`
	ServiceVersion     string `envDefault:""           env:"SERVICE_VERSION"     yaml:"service_version"`

	ServerURLValue          string `envDefault:"http://localhost:3000" env:"SERVER_URL"          yaml:"server_url"`
	BrowserLanguageValue    string `envDefault:""                      env:"BROWSER_LANGUAGE"    yaml:"browser_language"`
	SupportedLanguagesValue string `envDefault:""                      env:"SUPPORTED_LANGUAGES" yaml:"supported_languages"`
	EntryFileValue          string `envDefault:""                      env:"ENTRY_FILE"          yaml:"entry_file"`
	CompiledVersionValue    string `envDefault:""                      env:"COMPILED_VERSION"    yaml:"compiled_version"`
	FetchTimeoutValue       string `envDefault:"30s"                   env:"FETCH_TIMEOUT"       yaml:"fetch_timeout"`
	EntryTimeoutValue       string `envDefault:"60s"                   env:"ENTRY_TIMEOUT"       yaml:"entry_timeout"`
	MaxReloadsValue         int    `envDefault:"3"                     env:"MAX_RELOADS"         yaml:"max_reloads"`

	StorageURIValue  string `envDefault:"mem://" env:"STORAGE_URI"  yaml:"storage_uri"`
	StorageNameValue string `envDefault:""       env:"STORAGE_NAME" yaml:"storage_name"`

	WorkerPoolCapacity       int    `envDefault:"8"  env:"WORKER_POOL_CAPACITY"        yaml:"worker_pool_capacity"`
	WorkerPoolCount          int    `envDefault:"1"  env:"WORKER_POOL_COUNT"           yaml:"worker_pool_count"`
	WorkerPoolExpiryDuration string `envDefault:"1s" env:"WORKER_POOL_EXPIRY_DURATION" yaml:"worker_pool_expiry_duration"`
}

type ConfigurationService interface {
	Name() string
	Environment() string
	Version() string
}

var _ ConfigurationService = new(ConfigurationDefault)

func (c *ConfigurationDefault) Name() string {
	return c.ServiceName
}
func (c *ConfigurationDefault) Environment() string {
	return c.ServiceEnvironment
}
func (c *ConfigurationDefault) Version() string {
	if c.ServiceVersion != "" {
		return c.ServiceVersion
	}
	return c.CompiledVersion()
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingFormat() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingFormat() string {
	return c.LogFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationTraceRequests interface {
	TraceReq() bool
	TraceReqLogBody() bool
}

var _ ConfigurationTraceRequests = new(ConfigurationDefault)

func (c *ConfigurationDefault) TraceReq() bool {
	return c.TraceRequests
}

func (c *ConfigurationDefault) TraceReqLogBody() bool {
	return c.TraceRequestsLogBody
}

type ConfigurationTelemetry interface {
	DisableOpenTelemetry() bool
	SamplingRatio() float64
}

var _ ConfigurationTelemetry = new(ConfigurationDefault)

func (c *ConfigurationDefault) DisableOpenTelemetry() bool {
	return c.OpenTelemetryDisable
}

func (c *ConfigurationDefault) SamplingRatio() float64 {
	return c.OpenTelemetryTraceRatio
}

// ConfigurationBoot covers the boot sequence itself.
type ConfigurationBoot interface {
	ServerURL() string
	BrowserLanguage() string
	SupportedLanguages() []string
	EntryFile() string
	CompiledVersion() string
	FetchTimeout() time.Duration
	EntryTimeout() time.Duration
	MaxReloads() int
}

var _ ConfigurationBoot = new(ConfigurationDefault)

func (c *ConfigurationDefault) ServerURL() string {
	return c.ServerURLValue
}

func (c *ConfigurationDefault) BrowserLanguage() string {
	return c.BrowserLanguageValue
}

// SupportedLanguages falls back to the build time list when none is configured.
func (c *ConfigurationDefault) SupportedLanguages() []string {
	if langs := version.SupportedLanguages(c.SupportedLanguagesValue); len(langs) > 0 {
		return langs
	}
	return version.SupportedLanguages(version.Languages)
}

func (c *ConfigurationDefault) EntryFile() string {
	if c.EntryFileValue != "" {
		return c.EntryFileValue
	}
	return version.EntryFile
}

func (c *ConfigurationDefault) CompiledVersion() string {
	if c.CompiledVersionValue != "" {
		return c.CompiledVersionValue
	}
	return version.Version
}

func (c *ConfigurationDefault) FetchTimeout() time.Duration {
	return parseDuration(c.FetchTimeoutValue, DefaultFetchTimeout)
}

func (c *ConfigurationDefault) EntryTimeout() time.Duration {
	return parseDuration(c.EntryTimeoutValue, DefaultEntryTimeout)
}

func (c *ConfigurationDefault) MaxReloads() int {
	if c.MaxReloadsValue < 0 {
		return 0
	}
	return c.MaxReloadsValue
}

type ConfigurationStorage interface {
	StorageURI() string
	StorageName() string
}

var _ ConfigurationStorage = new(ConfigurationDefault)

func (c *ConfigurationDefault) StorageURI() string {
	return c.StorageURIValue
}

func (c *ConfigurationDefault) StorageName() string {
	return c.StorageNameValue
}

type ConfigurationWorkerPool interface {
	GetCapacity() int
	GetCount() int
	GetExpiryDuration() time.Duration
}

var _ ConfigurationWorkerPool = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCapacity() int {
	return c.WorkerPoolCapacity
}

func (c *ConfigurationDefault) GetCount() int {
	return c.WorkerPoolCount
}

func (c *ConfigurationDefault) GetExpiryDuration() time.Duration {
	return parseDuration(c.WorkerPoolExpiryDuration, time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil && duration >= 0 {
			return duration
		}
	}
	return fallback
}

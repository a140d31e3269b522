// Package bootloader runs the client boot sequence: it resolves the active
// version, replays display preferences, loads the translation payload and the
// application bundle, and replaces the page with a diagnostic view when any of
// that fails.
package bootloader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pitabwire/util"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitabwire/bootloader/client"
	"github.com/pitabwire/bootloader/config"
	"github.com/pitabwire/bootloader/document"
	"github.com/pitabwire/bootloader/entry"
	"github.com/pitabwire/bootloader/errorpage"
	"github.com/pitabwire/bootloader/locale"
	"github.com/pitabwire/bootloader/storage"
	"github.com/pitabwire/bootloader/style"
	"github.com/pitabwire/bootloader/telemetry"
	"github.com/pitabwire/bootloader/update"
	"github.com/pitabwire/bootloader/version"
	"github.com/pitabwire/bootloader/workerpool"
)

type contextKey string

func (c contextKey) String() string {
	return "bootloader/" + string(c)
}

const ctxKeyLoader = contextKey("loaderKey")

// Result is the outcome of one boot attempt.
type Result struct {
	ID      string
	Version string
	Lang    string
	// Reloaded is set when the update checker asked for a fresh start.
	Reloaded bool
	// Failure is the last failure rendered, nil when boot succeeded.
	Failure *Failure
}

// Loader holds the components of the boot sequence. It is built once and may
// Run several times, once per page load.
type Loader struct {
	configuration any
	logger        *util.LogEntry

	store       storage.Store
	storeCloser func() error
	origin      client.Manager
	httpOpts    []client.HTTPOption

	scripts     entry.ScriptLoader
	handoff     entry.Handoff
	cacheWorker update.CacheWorker
	noWorker    bool
	reloader    update.Reloader
	browserLang string

	renderer          *errorpage.Renderer
	workerPoolManager workerpool.Manager
	workerPoolOptions []workerpool.Option
	telemetryManager  telemetry.Manager
	tracer            telemetry.Tracer
	failures          metric.Int64Counter

	startupErrors []error
	closeOnce     sync.Once
}

type Option func(ctx context.Context, l *Loader)

// NewLoader builds a Loader from the environment configuration and opts.
// Components not supplied through options are derived from configuration.
func NewLoader(ctx context.Context, opts ...Option) (context.Context, *Loader, error) {
	defaultCfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		return ctx, nil, fmt.Errorf("load configuration: %w", err)
	}

	l := &Loader{
		configuration: &defaultCfg,
		logger:        util.Log(ctx),
	}

	for _, opt := range opts {
		opt(ctx, l)
	}

	if err = l.setupDefaults(ctx); err != nil {
		l.startupErrors = append(l.startupErrors, err)
	}

	if err = errors.Join(l.startupErrors...); err != nil {
		l.Close(ctx)
		return ctx, nil, err
	}

	ctx = util.ContextWithLogger(ctx, l.logger)
	ctx = config.ToContext(ctx, l.configuration)
	return context.WithValue(ctx, ctxKeyLoader, l), l, nil
}

// FromContext returns the Loader NewLoader stored in ctx.
func FromContext(ctx context.Context) *Loader {
	l, _ := ctx.Value(ctxKeyLoader).(*Loader)
	return l
}

func (l *Loader) addStartupError(err error) {
	if err != nil {
		l.startupErrors = append(l.startupErrors, err)
	}
}

// Config returns the configuration object the loader was built with.
func (l *Loader) Config() any {
	return l.configuration
}

func (l *Loader) bootConfig() config.ConfigurationBoot {
	if cfg, ok := l.configuration.(config.ConfigurationBoot); ok {
		return cfg
	}
	return &config.ConfigurationDefault{}
}

func (l *Loader) setupDefaults(ctx context.Context) error {
	cfg := l.bootConfig()

	if l.store == nil {
		storageCfg, ok := l.configuration.(config.ConfigurationStorage)
		if !ok {
			return errors.New("storage configuration is not setup")
		}
		st, closer, err := OpenStore(ctx, storage.DSN(storageCfg.StorageURI()), storageCfg.StorageName())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		l.store, l.storeCloser = st, closer
	}

	if l.origin == nil {
		origin, err := client.NewManager(cfg.ServerURL(), l.clientOptions()...)
		if err != nil {
			return fmt.Errorf("server url: %w", err)
		}
		l.origin = origin
	}

	if l.scripts == nil {
		l.scripts = entry.NewHTTPScriptLoader(l.origin, l.handoff)
	}

	if l.cacheWorker == nil && !l.noWorker {
		l.cacheWorker = update.NewHTTPCacheWorker(l.origin)
	}

	if l.renderer == nil {
		renderer, err := errorpage.NewRenderer()
		if err != nil {
			return err
		}
		l.renderer = renderer
	}

	if l.workerPoolManager == nil {
		poolCfg, _ := l.configuration.(config.ConfigurationWorkerPool)
		wpm, err := workerpool.NewManager(ctx, poolCfg, l.workerPoolOptions...)
		if err != nil {
			return fmt.Errorf("worker pool: %w", err)
		}
		l.workerPoolManager = wpm
	}

	if l.tracer == nil {
		l.tracer = telemetry.NewTracer("bootloader")
	}
	if l.failures == nil {
		l.failures = telemetry.DimensionlessMeasure("bootloader", "/failures", "Boot attempts that ended on the diagnostic page.")
	}

	if l.browserLang == "" {
		l.browserLang = locale.BrowserLanguage(cfg.BrowserLanguage())
	}

	return nil
}

// Store is the persistent key value store the boot sequence reads and writes.
func (l *Loader) Store() storage.Store {
	return l.store
}

// Close releases the worker pool, the store and telemetry providers.
func (l *Loader) Close(ctx context.Context) {
	l.closeOnce.Do(func() {
		log := util.Log(ctx)
		if l.workerPoolManager != nil {
			if err := l.workerPoolManager.Shutdown(ctx); err != nil {
				log.WithError(err).Warn("could not stop worker pool")
			}
		}
		if l.storeCloser != nil {
			if err := l.storeCloser(); err != nil {
				log.WithError(err).Warn("could not close store")
			}
		}
		if l.telemetryManager != nil {
			if err := l.telemetryManager.Shutdown(ctx); err != nil {
				log.WithError(err).Warn("could not flush telemetry")
			}
		}
	})
}

// Run performs one boot attempt against doc. Failures are rendered into doc
// and reported in the Result, never returned as an error.
func (l *Loader) Run(ctx context.Context, doc document.Document) (res Result) {
	cfg := l.bootConfig()

	res = Result{ID: xid.New().String()}
	ctx = util.ContextWithLogger(ctx, l.logger.WithField("boot", res.ID))

	b := &boot{
		loader: l,
		doc:    doc,
		result: &res,
	}
	b.refresher = update.NewRefresher(l.cacheWorker, update.ReloaderFunc(b.reload))

	// panics in the synchronous part land in the same funnel as task failures
	defer func() {
		if rec := recover(); rec != nil {
			b.failSafely(ctx, &Failure{Code: CodeSomethingHappened, Details: fmt.Sprint(rec)})
		}
	}()

	res.Version = runStage(ctx, l.tracer, "version", func(ctx context.Context) (string, error) {
		return version.Resolve(ctx, l.store, cfg.CompiledVersion()), nil
	})
	b.version = res.Version

	runStage(ctx, l.tracer, "style", func(ctx context.Context) (struct{}, error) {
		style.NewReapplier(l.store).Apply(ctx, doc)
		return struct{}{}, nil
	})

	localeLoader := locale.NewLoader(l.store, l.origin,
		locale.WithLanguages(cfg.SupportedLanguages()),
		locale.WithBrowserLanguage(l.browserLang),
		locale.WithTimeout(cfg.FetchTimeout()))
	b.languages = localeLoader

	entryLoader := entry.NewLoader(l.scripts, cfg.EntryFile(), entry.WithTimeout(cfg.EntryTimeout()))

	localeTask := workerpool.Go(ctx, l.workerPoolManager, "locale", func(ctx context.Context) (locale.Result, error) {
		ctx, span := l.tracer.Start(ctx, "locale")
		out, err := localeLoader.Load(ctx, res.Version)
		l.tracer.End(ctx, span, err)
		return out, err
	})

	entryTask := workerpool.Go(ctx, l.workerPoolManager, "entry", func(ctx context.Context) (struct{}, error) {
		ctx, span := l.tracer.Start(ctx, "entry")
		err := entryLoader.Load(ctx)
		l.tracer.End(ctx, span, err)
		return struct{}{}, err
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out := localeTask.Wait(ctx)
		b.setLang(out.Item.Lang)
		b.failSafely(ctx, classify(out.Err))
	}()
	go func() {
		defer wg.Done()
		b.failSafely(ctx, classify(entryTask.Wait(ctx).Err))
	}()
	wg.Wait()

	if res.Lang == "" {
		res.Lang = b.lang(ctx)
	}

	if res.Failure == nil {
		util.Log(ctx).WithField("version", res.Version).WithField("lang", res.Lang).Info("boot complete")
	}
	return res
}

func runStage[T any](ctx context.Context, tracer telemetry.Tracer, name string, fn func(ctx context.Context) (T, error)) T {
	ctx, span := tracer.Start(ctx, name)
	out, err := fn(ctx)
	tracer.End(ctx, span, err)
	return out
}

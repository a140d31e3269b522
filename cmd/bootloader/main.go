package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader"
	"github.com/pitabwire/bootloader/config"
	"github.com/pitabwire/bootloader/document"
)

const (
	exitOK      = 0
	exitSetup   = 1
	exitFailure = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bootloader", flag.ContinueOnError)
	fs.SetOutput(stderr)
	seedFile := fs.String("seed", "", "YAML file of store entries written before booting")
	outFile := fs.String("out", "", "write the final document here instead of stdout")
	acceptLanguage := fs.String("accept-language", "", "browser language, overrides BROWSER_LANGUAGE")
	if err := fs.Parse(args); err != nil {
		return exitSetup
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		fmt.Fprintf(stderr, "configuration: %v\n", err)
		return exitSetup
	}

	opts := []bootloader.Option{
		bootloader.WithConfig(&cfg),
		bootloader.WithTelemetry(),
		bootloader.WithLogger(util.WithLogHandler(consoleHandler(stderr, &cfg))),
	}
	if *acceptLanguage != "" {
		opts = append(opts, bootloader.WithBrowserLanguage(*acceptLanguage))
	}

	ctx, loader, err := bootloader.NewLoader(ctx, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "setup: %v\n", err)
		return exitSetup
	}
	defer loader.Close(ctx)

	log := loader.Log(ctx)

	if *seedFile != "" {
		if err = seedStore(ctx, loader.Store(), *seedFile); err != nil {
			log.WithError(err).Error("could not seed store")
			return exitSetup
		}
	}

	res, doc := boot(ctx, loader, cfg.MaxReloads())

	out := stdout
	if *outFile != "" {
		f, createErr := os.Create(*outFile)
		if createErr != nil {
			log.WithError(createErr).Error("could not create output file")
			return exitSetup
		}
		defer util.CloseAndLogOnError(ctx, f)
		out = f
	}

	if err = doc.Render(out); err != nil {
		log.WithError(err).Error("could not write document")
		return exitSetup
	}

	if res.Failure != nil {
		return exitFailure
	}
	return exitOK
}

// boot runs attempts until one finishes without asking for a reload or the
// reload budget is spent.
func boot(ctx context.Context, loader *bootloader.Loader, maxReloads int) (bootloader.Result, *document.HTMLDocument) {
	log := loader.Log(ctx)

	for attempt := 0; ; attempt++ {
		doc := document.New()
		res := loader.Run(ctx, doc)

		if !res.Reloaded {
			return res, doc
		}
		if attempt >= maxReloads || errors.Is(ctx.Err(), context.Canceled) {
			log.WithField("attempts", attempt+1).Warn("reload requested but the reload budget is spent")
			return res, doc
		}
		log.WithField("attempt", attempt+1).Info("reloading with the new version")
	}
}

func consoleHandler(w io.Writer, cfg config.ConfigurationLogLevel) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LoggingLevel())); err != nil {
		level = slog.LevelInfo
	}

	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: cfg.LoggingTimeFormat(),
		NoColor:    !cfg.LoggingColored(),
		AddSource:  cfg.LoggingShowStackTrace(),
	})
}

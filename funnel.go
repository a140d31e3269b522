package bootloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitabwire/bootloader/document"
	"github.com/pitabwire/bootloader/locale"
	"github.com/pitabwire/bootloader/telemetry"
	"github.com/pitabwire/bootloader/update"
)

// boot is the state of one Run. fail is the single place every failure goes.
type boot struct {
	loader    *Loader
	doc       document.Document
	result    *Result
	refresher *update.Refresher
	languages *locale.Loader
	version   string

	mu       sync.Mutex
	checked  bool
	checkErr error
}

func (b *boot) setLang(lang string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if lang != "" {
		b.result.Lang = lang
	}
}

// lang is the language the diagnostic page is rendered in.
func (b *boot) lang(ctx context.Context) string {
	if b.languages == nil {
		return locale.DefaultLanguage
	}
	lang, err := b.languages.Language(ctx)
	if err != nil || lang == "" {
		return locale.DefaultLanguage
	}
	return lang
}

func (b *boot) reload(ctx context.Context) {
	b.result.Reloaded = true
	if b.loader.reloader != nil {
		b.loader.reloader.Reload(ctx)
	}
}

// fail runs the update check once per boot, then renders the diagnostic page.
// Once the check has failed every later failure is reported as UPDATE_CHECK_FAILED
// in place of its own code.
func (b *boot) fail(ctx context.Context, failure *Failure) {
	if failure == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.loader
	log := util.Log(ctx).WithField("code", failure.Code)
	if failure.Err != nil {
		log = log.WithError(failure.Err)
	}
	log.Warn("boot step failed")

	if !b.checked {
		b.checked = true
		b.checkErr = b.checkForUpdate(ctx)
		if b.checkErr != nil {
			log.WithField("check_error", b.checkErr.Error()).Error("update check failed")
		}
	}

	rendered := failure
	if b.checkErr != nil {
		rendered = updateCheckFailure(failure, b.checkErr)
	}

	lang := b.result.Lang
	if lang == "" {
		lang = b.lang(ctx)
	}

	b.result.Failure = rendered
	l.failures.Add(ctx, 1, metric.WithAttributes(telemetry.AttrCodeKey.String(rendered.Code)))

	if err := l.renderer.Render(ctx, b.doc, lang, rendered.Code, rendered.Details); err != nil {
		log.WithError(err).Error("could not render diagnostic page")
	}
}

// checkForUpdate is skipped when no version was resolved, since any server
// version would look new.
func (b *boot) checkForUpdate(ctx context.Context) error {
	if b.version == "" {
		util.Log(ctx).Warn("no current version, skipping update check")
		return nil
	}

	l := b.loader
	checker := update.NewChecker(l.store, l.origin, b.refresher,
		update.WithTimeout(l.bootConfig().FetchTimeout()))

	ctx, span := l.tracer.Start(ctx, "update")
	_, err := checker.Check(ctx, b.version)
	l.tracer.End(ctx, span, err)
	return err
}

// failSafely is fail for callers that must survive a panic inside it. The
// panic is recorded as SOMETHING_HAPPENED without rendering again.
func (b *boot) failSafely(ctx context.Context, failure *Failure) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		util.Log(ctx).WithField("panic", fmt.Sprint(rec)).Error("failure handling panicked")

		b.mu.Lock()
		defer b.mu.Unlock()
		b.result.Failure = &Failure{Code: CodeSomethingHappened, Details: fmt.Sprint(rec)}
	}()
	b.fail(ctx, failure)
}

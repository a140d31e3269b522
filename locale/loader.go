package locale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/client"
	"github.com/pitabwire/bootloader/storage"
)

var ErrLocaleFetchFailed = errors.New("locale fetch failed")

// Result describes what Load did.
type Result struct {
	Lang    string
	Fetched bool
}

// Loader keeps the persisted translation payload in step with the active version.
type Loader struct {
	store     storage.Store
	origin    client.Manager
	languages []string
	browser   string
	timeout   time.Duration
}

type Option func(*Loader)

// WithLanguages sets the supported language set, in preference order.
func WithLanguages(langs []string) Option {
	return func(l *Loader) {
		l.languages = slices.Clone(langs)
	}
}

// WithBrowserLanguage sets the language the client reports.
func WithBrowserLanguage(lang string) Option {
	return func(l *Loader) {
		l.browser = lang
	}
}

// WithTimeout bounds the locale fetch. Zero means unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Loader) {
		l.timeout = timeout
	}
}

func NewLoader(st storage.Store, origin client.Manager, opts ...Option) *Loader {
	l := &Loader{store: st, origin: origin}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Outdated reports whether the persisted payload is missing or was fetched for a
// different version than current.
func (l *Loader) Outdated(ctx context.Context, current string) (bool, error) {
	has, err := l.store.Has(ctx, storage.KeyLocale)
	if err != nil {
		return false, err
	}
	if !has {
		return true, nil
	}

	localeVersion, found, err := l.store.Get(ctx, storage.KeyLocaleVersion)
	if err != nil {
		return false, err
	}
	return !found || localeVersion != current, nil
}

// Language returns the persisted choice when it is supported, otherwise the
// browser language mapped onto the supported set.
func (l *Loader) Language(ctx context.Context) (string, error) {
	lang, found, err := l.store.Get(ctx, storage.KeyLang)
	if err != nil {
		return "", err
	}
	if found && slices.Contains(l.languages, lang) {
		return lang, nil
	}
	return SelectLanguage(l.browser, l.languages), nil
}

// Load fetches /assets/locales/{lang}.{version}.json when the persisted payload is
// outdated. Nothing is written unless the response is 200; a non-200 response
// returns ErrLocaleFetchFailed.
func (l *Loader) Load(ctx context.Context, current string) (Result, error) {
	outdated, err := l.Outdated(ctx, current)
	if err != nil {
		return Result{}, fmt.Errorf("check locale freshness: %w", err)
	}

	log := util.Log(ctx).WithField("version", current)
	if !outdated {
		lang, _, _ := l.store.Get(ctx, storage.KeyLang)
		log.WithField("lang", lang).Debug("locale is fresh")
		return Result{Lang: lang}, nil
	}

	lang, err := l.Language(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve language: %w", err)
	}
	log = log.WithField("lang", lang)

	payload, err := l.fetch(ctx, lang, current)
	if err != nil {
		return Result{Lang: lang}, err
	}

	// lang and the payload land before localeVersion marks the record valid
	for _, kv := range [][2]string{
		{storage.KeyLang, lang},
		{storage.KeyLocale, payload},
		{storage.KeyLocaleVersion, current},
	} {
		if err = l.store.Set(ctx, kv[0], kv[1]); err != nil {
			return Result{Lang: lang}, fmt.Errorf("persist %s: %w", kv[0], err)
		}
	}

	log.Info("locale refreshed")
	return Result{Lang: lang, Fetched: true}, nil
}

func (l *Loader) fetch(ctx context.Context, lang, current string) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	path := ResourcePath(lang, current)
	resp, err := l.origin.Invoke(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLocaleFetchFailed, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		util.CloseAndLogOnError(ctx, resp)
		return "", fmt.Errorf("%w: %s: status %d", ErrLocaleFetchFailed, path, resp.StatusCode)
	}

	body, err := resp.ToContent(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrLocaleFetchFailed, path, err)
	}
	return string(body), nil
}

// ResourcePath is the language and version qualified locale resource.
func ResourcePath(lang, version string) string {
	return fmt.Sprintf("/assets/locales/%s.%s.json", lang, version)
}

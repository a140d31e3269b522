package locale

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/pitabwire/bootloader/storage"
)

var ErrNoLocale = errors.New("no persisted locale")

// NewLocalizer loads the persisted translation payload into a go-i18n bundle so
// callers can look messages up without fetching again.
func NewLocalizer(ctx context.Context, st storage.Store) (*i18n.Localizer, error) {
	payload, found, err := st.Get(ctx, storage.KeyLocale)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoLocale
	}

	lang := storage.Lookup(ctx, st, storage.KeyLang)
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Make(DefaultLanguage)
	}

	bundle := i18n.NewBundle(tag)
	if _, err = bundle.ParseMessageFileBytes([]byte(payload), tag.String()+".json"); err != nil {
		return nil, fmt.Errorf("parse persisted locale: %w", err)
	}

	return i18n.NewLocalizer(bundle, tag.String()), nil
}

package version //nolint:revive // package name intentionally matches build-info convention

import (
	"context"
	"strings"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/storage"
)

// Build-time constants, injected with -ldflags "-X github.com/pitabwire/bootloader/version.Version=...".
//
//nolint:gochecknoglobals //version information is set at build time
var (
	Version   string
	Languages = "en-US,ja-JP"
	EntryFile = "app.js"
	Commit    string
	Date      string
)

// SupportedLanguages splits a comma separated language list, keeping order and
// dropping blanks and duplicates.
func SupportedLanguages(list string) []string {
	var langs []string
	seen := map[string]struct{}{}
	for _, lang := range strings.Split(list, ",") {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		langs = append(langs, lang)
	}
	return langs
}

// Resolve returns the version tag for this boot attempt: the persisted value when
// present, otherwise the compiled-in one. It never fails; a store error is logged and
// treated as absence.
func Resolve(ctx context.Context, st storage.Store, compiled string) string {
	stored, found, err := st.Get(ctx, storage.KeyVersion)
	if err != nil {
		util.Log(ctx).WithError(err).Warn("could not read stored version, using compiled version")
		return compiled
	}
	if !found || stored == "" {
		return compiled
	}
	return stored
}

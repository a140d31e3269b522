// Package style replays persisted display preferences onto the document before
// anything else renders.
package style

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pitabwire/util"

	"github.com/pitabwire/bootloader/document"
	"github.com/pitabwire/bootloader/storage"
)

const (
	// ThemeColorKey is the theme entry that also drives the theme-color meta tag.
	ThemeColorKey = "htmlThemeColor"
	// CustomStyleID identifies the head style element holding the user stylesheet.
	CustomStyleID = "custom"

	systemFontClass = "useSystemFont"
)

// Reapplier writes theme variables, font preferences, wallpaper and custom CSS
// from the store onto a document.
type Reapplier struct {
	store storage.Store
}

func NewReapplier(st storage.Store) *Reapplier {
	return &Reapplier{store: st}
}

// Apply runs every step in order. A failing step is logged and the next one
// still runs; Apply never fails.
func (r *Reapplier) Apply(ctx context.Context, doc document.Document) {
	steps := []struct {
		name string
		run  func(context.Context, document.Document)
	}{
		{name: "theme", run: r.applyTheme},
		{name: "fontSize", run: r.applyFontSize},
		{name: "useSystemFont", run: r.applySystemFont},
		{name: "wallpaper", run: r.applyWallpaper},
		{name: "customCss", run: r.applyCustomCSS},
	}

	for _, step := range steps {
		guard(ctx, step.name, func() { step.run(ctx, doc) })
	}
}

func guard(ctx context.Context, name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			util.Log(ctx).WithField("step", name).
				WithField("panic", fmt.Sprint(rec)).
				Error("style step panicked")
		}
	}()
	fn()
}

func (r *Reapplier) applyTheme(ctx context.Context, doc document.Document) {
	raw := storage.Lookup(ctx, r.store, storage.KeyTheme)
	if raw == "" {
		return
	}

	log := util.Log(ctx)

	var theme map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &theme); err != nil {
		log.WithError(err).Warn("theme is not a JSON object, skipping")
		return
	}

	for _, key := range slices.Sorted(maps.Keys(theme)) {
		value, err := themeValue(theme[key])
		if err == nil {
			err = checkThemeEntry(key, value)
		}
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("skipping theme entry")
			continue
		}

		guard(ctx, "theme."+key, func() {
			doc.SetRootStyleProperty("--"+key, value)
			if key == ThemeColorKey && !doc.SetMetaContent("theme-color", value) {
				log.Debug("no theme-color meta tag to update")
			}
		})
	}
}

// themeValue accepts JSON strings and numbers; numbers keep their literal text.
func themeValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("unsupported theme value %s", raw)
}

// checkThemeEntry refuses keys that are not plain identifiers and values that
// could end the declaration they are written into.
func checkThemeEntry(key, value string) error {
	if key == "" {
		return errors.New("empty theme key")
	}
	for _, r := range key {
		if !isIdentRune(r) {
			return fmt.Errorf("theme key %q is not an identifier", key)
		}
	}

	if i := strings.IndexAny(value, "\"'\\;{}\n\r\f"); i >= 0 {
		return fmt.Errorf("theme value %q contains %q", value, value[i])
	}

	depth := 0
	for _, r := range value {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("theme value %q has unbalanced parentheses", value)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("theme value %q has unbalanced parentheses", value)
	}
	return nil
}

func isIdentRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func (r *Reapplier) applyFontSize(ctx context.Context, doc document.Document) {
	if size := storage.Lookup(ctx, r.store, storage.KeyFontSize); size != "" {
		doc.AddRootClass("f-" + size)
	}
}

func (r *Reapplier) applySystemFont(ctx context.Context, doc document.Document) {
	if storage.Lookup(ctx, r.store, storage.KeyUseSystemFont) != "" {
		doc.AddRootClass(systemFontClass)
	}
}

func (r *Reapplier) applyWallpaper(ctx context.Context, doc document.Document) {
	if wallpaper := storage.Lookup(ctx, r.store, storage.KeyWallpaper); wallpaper != "" {
		doc.SetRootStyleProperty("background-image", CSSURL(wallpaper))
	}
}

func (r *Reapplier) applyCustomCSS(ctx context.Context, doc document.Document) {
	if css := storage.Lookup(ctx, r.store, storage.KeyCustomCSS); css != "" {
		doc.SetHeadStyle(CustomStyleID, css)
	}
}

var urlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\a `,
	"\r", `\d `,
	"\f", `\c `,
)

// CSSURL quotes a value as a CSS url() so it cannot break out of the declaration.
func CSSURL(value string) string {
	return `url("` + urlEscaper.Replace(value) + `")`
}

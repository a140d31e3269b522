// Package errorpage renders the diagnostic page that replaces the document when
// boot cannot continue.
package errorpage

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"

	"github.com/pitabwire/bootloader/document"
)

//go:embed templates/page.html
var templatesFS embed.FS

//go:embed messages/*.toml
var messagesFS embed.FS

var page = template.Must(template.ParseFS(templatesFS, "templates/page.html"))

// RecoveryLinks are the escape hatches offered on every diagnostic page.
var RecoveryLinks = []string{"/cli", "/bios", "/flush"}

var messageIDs = []string{
	"Title",
	"Advice",
	"StartClient",
	"RepairBIOS",
	"ClearCache",
	"StopCode",
	"FailedDetail",
}

// Renderer holds the parsed template and translations; it keeps nothing between
// renders.
type Renderer struct {
	bundle *i18n.Bundle
}

func NewRenderer() (*Renderer, error) {
	bundle := i18n.NewBundle(language.AmericanEnglish)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := fs.Glob(messagesFS, "messages/*.toml")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if _, err = bundle.LoadMessageFileFS(messagesFS, file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	return &Renderer{bundle: bundle}, nil
}

// Languages lists the languages with a translated page.
func (r *Renderer) Languages() []string {
	tags := r.bundle.LanguageTags()
	langs := make([]string, 0, len(tags))
	for _, tag := range tags {
		langs = append(langs, tag.String())
	}
	return langs
}

// Render replaces doc with the diagnostic page. code and details appear as
// literal text.
func (r *Renderer) Render(ctx context.Context, doc document.Document, lang, code, details string) error {
	markup, err := r.Markup(ctx, lang, code, details)
	if err != nil {
		return err
	}

	util.Log(ctx).WithFields(map[string]any{
		"code":    code,
		"details": details,
		"lang":    lang,
	}).Error("boot failed, showing diagnostic page")

	return doc.Replace(markup)
}

// Markup produces the page HTML without touching a document.
func (r *Renderer) Markup(ctx context.Context, lang, code, details string) (string, error) {
	localizer := i18n.NewLocalizer(r.bundle, lang, language.AmericanEnglish.String())

	data := map[string]string{
		"Lang":    lang,
		"Code":    code,
		"Details": details,
	}
	for _, id := range messageIDs {
		data[id] = r.translate(ctx, localizer, id)
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render diagnostic page: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) translate(ctx context.Context, localizer *i18n.Localizer, id string) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil {
		util.Log(ctx).WithError(err).WithField("messageID", id).Warn("missing diagnostic page translation")
		return id
	}
	return msg
}

package locale

import (
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is chosen when nothing in the supported set matches.
const DefaultLanguage = "en-US"

// SelectLanguage maps the browser language onto the supported set: an exact member
// first, then the first member sharing its primary subtag, then DefaultLanguage.
func SelectLanguage(browser string, supported []string) string {
	if browser != "" && slices.Contains(supported, browser) {
		return browser
	}

	primary := primarySubtag(browser)
	if primary != "" {
		for _, lang := range supported {
			if primarySubtag(lang) == primary {
				return lang
			}
		}
	}

	return DefaultLanguage
}

func primarySubtag(lang string) string {
	primary, _, _ := strings.Cut(lang, "-")
	return primary
}

// BrowserLanguage picks the preferred tag from an Accept-Language style list.
// Malformed or empty input yields "".
func BrowserLanguage(acceptLanguage string) string {
	if strings.TrimSpace(acceptLanguage) == "" {
		return ""
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 || tags[0] == language.Und {
		return ""
	}
	return tags[0].String()
}

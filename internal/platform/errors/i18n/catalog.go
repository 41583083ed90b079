// Package i18n renders user-facing messages for error codes.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
)

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// BaseLocale is the locale used when no better match exists.
const BaseLocale = "en-US"

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{
		BaseLocale: NewCatalog(BaseLocale, enUSMessages),
		"pt-BR":    NewCatalog("pt-BR", ptBRMessages),
	}
	matcher = language.NewMatcher([]language.Tag{
		language.AmericanEnglish,
		language.BrazilianPortuguese,
	})
)

// GetCatalog returns the catalog for the given locale.
// Unknown locales resolve to the closest supported one, then en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}
	if c, ok := lookupCatalog(resolve(requested)); ok {
		return c
	}
	c, _ := lookupCatalog(BaseLocale)
	return c
}

func resolve(locale string) string {
	tag, err := language.Parse(locale)
	if err != nil {
		return BaseLocale
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return BaseLocale
	}
	switch index {
	case 1:
		return "pt-BR"
	default:
		return BaseLocale
	}
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a catalog for the given locale, replacing any
// existing one.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

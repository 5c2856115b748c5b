package templates

import (
	"strings"
)

// Template keys used by the answer pipeline.
const (
	KeySystemPrompt     = "rag_system_prompt"
	KeyDocumentTemplate = "rag_document_template"
	KeyFooter           = "rag_footer"
)

// Vars holds named placeholder values substituted into a template.
type Vars map[string]string

// Catalog is a language-indexed map of prompt fragments. Lookup falls back
// to the default language when the requested language misses a key, and to
// an empty string when neither has it.
type Catalog struct {
	language        string
	defaultLanguage string
	locales         map[string]map[string]string
}

// New builds a catalog for the given primary and default languages.
// Unknown languages simply resolve through the fallback chain.
func New(language, defaultLanguage string) *Catalog {
	return &Catalog{
		language:        language,
		defaultLanguage: defaultLanguage,
		locales:         locales,
	}
}

// Language returns the catalog's primary language.
func (c *Catalog) Language() string {
	return c.language
}

// Get resolves a raw template string for the key.
func (c *Catalog) Get(key string) string {
	if tmpl, ok := c.lookup(c.language, key); ok {
		return tmpl
	}
	if tmpl, ok := c.lookup(c.defaultLanguage, key); ok {
		return tmpl
	}
	return ""
}

// Render resolves a template and substitutes the named placeholders.
func (c *Catalog) Render(key string, vars Vars) string {
	return Substitute(c.Get(key), vars)
}

func (c *Catalog) lookup(language, key string) (string, bool) {
	locale, ok := c.locales[language]
	if !ok {
		return "", false
	}
	tmpl, ok := locale[key]
	return tmpl, ok
}

// Substitute replaces {name} placeholders with their values. Placeholders
// without a value are left in place so broken templates surface in output.
func Substitute(tmpl string, vars Vars) string {
	if tmpl == "" || len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

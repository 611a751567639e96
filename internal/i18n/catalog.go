// Package i18n holds the message catalog for all user-facing bot replies.
//
// The catalog maps language code -> message key -> template. Templates use
// {name} placeholders. A built-in catalog is embedded in the binary; an
// external JSON file with the same shape replaces it when readable.
package i18n

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

//go:embed lang.json
var defaultCatalog []byte

// Params carries named placeholder values for message templates.
type Params map[string]string

// Catalog is loaded once at startup and immutable afterwards.
type Catalog struct {
	langs map[string]map[string]string
}

// Load reads the catalog from path, falling back to the embedded default
// when the file is missing or unreadable. A malformed file is an error:
// silently running with half a catalog would hide the problem until a
// user sees a bare key.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		data = defaultCatalog
	} else {
		slog.Info("loaded translation catalog", "path", path)
	}

	var langs map[string]map[string]string
	if err := json.Unmarshal(data, &langs); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &Catalog{langs: langs}, nil
}

// Has reports whether a language is present in the catalog.
func (c *Catalog) Has(lang string) bool {
	_, ok := c.langs[lang]
	return ok
}

// Resolve picks the active language. Priority: forced config language if
// present in the catalog, then the interaction locale, then the guild
// locale (matched by lowercased two-letter prefix), then "de" if present,
// else "en". It never fails; unusable hints degrade silently.
func (c *Catalog) Resolve(forced string, hints ...string) string {
	if forced != "" && c.Has(forced) {
		return forced
	}
	for _, hint := range hints {
		code := strings.ToLower(strings.TrimSpace(hint))
		if len(code) >= 2 && c.Has(code[:2]) {
			return code[:2]
		}
	}
	if c.Has("de") {
		return "de"
	}
	return "en"
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// T renders the message for key in lang. Lookup falls back per key:
// lang -> en -> de -> the literal key. Placeholder substitution degrades
// to the raw template when any placeholder has no supplied value, so a
// broken translation can never fail a delivery.
func (c *Catalog) T(lang, key string, params Params) string {
	text := c.lookup(lang, key)

	matches := placeholderRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text
	}
	pairs := make([]string, 0, 2*len(matches))
	for _, m := range matches {
		val, ok := params[m[1]]
		if !ok {
			return text
		}
		pairs = append(pairs, m[0], val)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (c *Catalog) lookup(lang, key string) string {
	for _, l := range []string{lang, "en", "de"} {
		if text, ok := c.langs[l][key]; ok && text != "" {
			return text
		}
	}
	return key
}

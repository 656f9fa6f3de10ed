// Package i18n translates interface strings and remembers the locale chosen
// in a browsing context.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/currency"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"github.com/irsalhamdi/raiseup/kv"
)

// StorageKey is where the chosen locale is persisted.
const StorageKey = "locale"

//go:embed locales/*.json
var files embed.FS

// Catalog holds the translations of every supported locale.
type Catalog struct {
	uni      *ut.UniversalTranslator
	def      string
	messages map[string]map[string]string
	params   map[string]map[string][]string
}

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// positional rewrites each {{name}} placeholder to the {0} form the
// translator understands and returns the names in index order.
func positional(text string) (string, []string) {
	var names []string
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		names = append(names, placeholder.FindStringSubmatch(m)[1])
		return "{" + strconv.Itoa(len(names)-1) + "}"
	})
	return out, names
}

// NewCatalog loads the embedded translations. def must be one of them.
func NewCatalog(def string) (*Catalog, error) {
	supported := []locales.Translator{en.New(), fr.New()}

	c := &Catalog{
		uni:      ut.New(supported[0], supported...),
		def:      def,
		messages: make(map[string]map[string]string),
		params:   make(map[string]map[string][]string),
	}

	for _, l := range supported {
		name := l.Locale()

		raw, err := files.ReadFile(path.Join("locales", name+".json"))
		if err != nil {
			return nil, fmt.Errorf("reading %s translations: %w", name, err)
		}

		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parsing %s translations: %w", name, err)
		}

		flat := make(map[string]string)
		flatten("", tree, flat)

		trans, _ := c.uni.GetTranslator(name)
		params := make(map[string][]string)
		for k, v := range flat {
			text, names := positional(v)
			if err := trans.Add(k, text, false); err != nil {
				return nil, fmt.Errorf("registering %s.%s: %w", name, k, err)
			}
			params[k] = names
		}
		c.messages[name] = flat
		c.params[name] = params
	}

	if _, ok := c.messages[def]; !ok {
		return nil, fmt.Errorf("unsupported default locale %q", def)
	}
	return c, nil
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case string:
			out[key] = v
		case map[string]any:
			flatten(key, v, out)
		}
	}
}

func (c *Catalog) Supports(locale string) bool {
	_, ok := c.messages[locale]
	return ok
}

// Locales lists the supported locales in order.
func (c *Catalog) Locales() []string {
	ls := make([]string, 0, len(c.messages))
	for l := range c.messages {
		ls = append(ls, l)
	}
	sort.Strings(ls)
	return ls
}

func (c *Catalog) Default() string { return c.def }

// Translate looks key up in locale and substitutes {{name}} placeholders.
// A key without a translation is returned unchanged.
func (c *Catalog) Translate(locale, key string, params map[string]string) string {
	trans, found := c.uni.GetTranslator(locale)
	if !found {
		return key
	}

	names := c.params[locale][key]
	args := make([]string, len(names))
	for i, name := range names {
		v, ok := params[name]
		if !ok {
			v = "{{" + name + "}}"
		}
		args[i] = v
	}

	text, err := trans.T(key, args...)
	if err != nil {
		return key
	}
	return text
}

// Messages returns every translation of locale keyed by its dotted path.
func (c *Catalog) Messages(locale string) map[string]string {
	out := make(map[string]string, len(c.messages[locale]))
	for k, v := range c.messages[locale] {
		out[k] = v
	}
	return out
}

// Price formats an amount in cents in the conventions of locale.
func (c *Catalog) Price(locale string, cents int64) string {
	trans, _ := c.uni.GetTranslator(locale)
	return trans.FmtCurrency(float64(cents)/100, 2, currency.USD)
}

// =============================================================================

// Store is the locale of one browsing context.
type Store struct {
	cat     *Catalog
	storage kv.Storage
	locale  string
}

// Open reads the persisted locale, falling back to the catalog default when
// none was chosen or it is no longer supported.
func (c *Catalog) Open(storage kv.Storage) *Store {
	s := &Store{cat: c, storage: storage, locale: c.def}
	if b, err := storage.Get(StorageKey); err == nil && c.Supports(string(b)) {
		s.locale = string(b)
	}
	return s
}

func (s *Store) Locale() string { return s.locale }

// SetLocale switches and persists the locale. Unknown locales are ignored
// and reported as false.
func (s *Store) SetLocale(locale string) (bool, error) {
	if !s.cat.Supports(locale) {
		return false, nil
	}
	s.locale = locale
	if err := s.storage.Set(StorageKey, []byte(locale)); err != nil {
		return true, fmt.Errorf("persisting locale: %w", err)
	}
	return true, nil
}

func (s *Store) T(key string, params map[string]string) string {
	return s.cat.Translate(s.locale, key, params)
}

func (s *Store) Price(cents int64) string {
	return s.cat.Price(s.locale, cents)
}

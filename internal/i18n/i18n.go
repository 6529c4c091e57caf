// Package i18n resolves message keys to localized text. Locale tables are
// nested YAML maps flattened to dotted keys ("coupon.not_found").
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// Bundle holds the strings of every loaded language.
type Bundle struct {
	fallback string
	messages map[string]map[string]string
}

// Load reads the built-in locales and then, when dir is not empty, the
// *.yaml files in dir. Files in dir override built-in keys.
func Load(dir, fallback string) (*Bundle, error) {
	b := &Bundle{fallback: fallback, messages: map[string]map[string]string{}}

	builtin, err := fs.Sub(embedded, "locales")
	if err != nil {
		return nil, err
	}
	if err := b.loadFS(builtin); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := b.loadFS(os.DirFS(dir)); err != nil {
			return nil, err
		}
	}

	if _, ok := b.messages[fallback]; !ok {
		return nil, fmt.Errorf("fallback language %q has no locale file", fallback)
	}
	return b, nil
}

func (b *Bundle) loadFS(fsys fs.FS) error {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return err
	}
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}

		var tree map[string]interface{}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("parse locale %s: %w", name, err)
		}

		lang := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		if b.messages[lang] == nil {
			b.messages[lang] = map[string]string{}
		}
		flatten("", tree, b.messages[lang])
	}
	return nil
}

func flatten(prefix string, tree map[string]interface{}, out map[string]string) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]interface{}:
			flatten(key, v, out)
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

// GetString returns the text of key in lang formatted with args. Unknown
// languages and missing keys fall back to the fallback language, and then
// to the key itself.
func (b *Bundle) GetString(lang, key string, args ...interface{}) string {
	text, ok := b.lookup(lang, key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

func (b *Bundle) lookup(lang, key string) (string, bool) {
	lang = normalizeLanguage(lang)
	if text, ok := b.messages[lang][key]; ok {
		return text, true
	}
	text, ok := b.messages[b.fallback][key]
	return text, ok
}

// Languages lists the loaded languages
func (b *Bundle) Languages() []string {
	langs := make([]string, 0, len(b.messages))
	for lang := range b.messages {
		langs = append(langs, lang)
	}
	return langs
}

// normalizeLanguage maps "en-US" and "EN" to "en".
func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

// Package i18n provides localized user-facing strings for the assistant.
// Locales are embedded JSON files with dot-separated keys (e.g. "bot.error").
// Russian ("ru") is the default language; Kazakh ("kz") falls back to Russian
// for any missing key.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLanguage is used when a request carries no language.
const DefaultLanguage = "ru"

var (
	loadOnce     sync.Once
	translations map[string]map[string]string
)

// load parses the embedded locale files into flat key→string maps.
func load() {
	translations = make(map[string]map[string]string)
	for _, lang := range []string{"ru", "kz"} {
		data, err := localeFS.ReadFile("locales/" + lang + ".json")
		if err != nil {
			translations[lang] = map[string]string{}
			continue
		}
		var nested map[string]any
		if err := json.Unmarshal(data, &nested); err != nil {
			translations[lang] = map[string]string{}
			continue
		}
		flat := make(map[string]string)
		flatten("", nested, flat)
		translations[lang] = flat
	}
}

func flatten(prefix string, src map[string]any, dst map[string]string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			dst[key] = val
		case map[string]any:
			flatten(key, val, dst)
		}
	}
}

// Normalize maps arbitrary language codes onto the supported set.
func Normalize(lang string) string {
	switch lang {
	case "kz", "kk", "kk-KZ":
		return "kz"
	default:
		return "ru"
	}
}

// T returns the translated string for key in the given language.
// Falls back to Russian, then to the key itself.
func T(lang, key string) string {
	loadOnce.Do(load)
	lang = Normalize(lang)
	if s, ok := translations[lang][key]; ok {
		return s
	}
	if s, ok := translations["ru"][key]; ok {
		return s
	}
	return key
}

// Tf returns the translated string formatted with fmt.Sprintf arguments.
func Tf(lang, key string, args ...any) string {
	return fmt.Sprintf(T(lang, key), args...)
}

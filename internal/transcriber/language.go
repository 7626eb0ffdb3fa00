package transcriber

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Language string

const (
	LanguageEnglish Language = "english"
	LanguagePunjabi Language = "punjabi"
)

var ErrUnknownLanguage = errors.New("unknown language")

var languageAliases = map[string]Language{
	"english":    LanguageEnglish,
	"en":         LanguageEnglish,
	"en-us":      LanguageEnglish,
	"en-gb":      LanguageEnglish,
	"en-in":      LanguageEnglish,
	"punjabi":    LanguagePunjabi,
	"pa":         LanguagePunjabi,
	"pa-in":      LanguagePunjabi,
	"pa-guru":    LanguagePunjabi,
	"pa-guru-in": LanguagePunjabi,
}

// ParseLanguage accepts a language name or a locale tag, case-insensitively,
// with either '-' or '_' separators.
func ParseLanguage(tag string) (Language, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
	if lang, ok := languageAliases[key]; ok {
		return lang, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, tag)
}

func SupportedLanguages() []Language {
	return []Language{LanguageEnglish, LanguagePunjabi}
}

// Aliases returns the tags accepted for lang, excluding its canonical name.
func Aliases(lang Language) []string {
	var out []string
	for alias, l := range languageAliases {
		if l == lang && alias != string(lang) {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

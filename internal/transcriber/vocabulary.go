package transcriber

import "strings"

// Vocabulary holds per-language transcription hints.
type Vocabulary map[Language][]string

// builtinHints are sent for every language unless a vocabulary file
// overrides that language.
var builtinHints = []string{
	"ਮੈਂ", "ਤੁਹਾਡਾ", "ਇਹ", "ਕੀ", "ਹੈ", "ਪੰਜਾਬੀ", "ਸੱਚ", "ਗੱਲ", "ਕਰਨਾ", "ਕਮਹ",
	"ਤੁਸੀਂ", "ਕਰਦੇ", "ਕਰਦੀ", "ਕਰਦਾ", "ਕੀਹ", "ਪਤਾ", "ਇੱਕ", "ਅਜਿਹਾ", "ਕਦੇ",
}

func DefaultVocabulary() Vocabulary {
	langs := SupportedLanguages()
	v := make(Vocabulary, len(langs))
	for _, lang := range langs {
		v[lang] = append([]string(nil), builtinHints...)
	}
	return v
}

// Merge returns a copy of v where every language present in override
// replaces v's list.
func (v Vocabulary) Merge(override Vocabulary) Vocabulary {
	out := make(Vocabulary, len(v)+len(override))
	for lang, words := range v {
		out[lang] = append([]string(nil), words...)
	}
	for lang, words := range override {
		out[lang] = append([]string(nil), words...)
	}
	return out
}

func (v Vocabulary) Hints(lang Language) []string {
	return NormalizeHints(v[lang])
}

// NormalizeHints trims entries and drops blanks and duplicates, keeping the
// first occurrence.
func NormalizeHints(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

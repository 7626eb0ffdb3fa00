package config

import (
	"fmt"
	"os"

	"github.com/foxseedlab/bolo/internal/transcriber"
	"gopkg.in/yaml.v3"
)

// LoadVocabulary reads a YAML mapping of language tag to word list:
//
//	punjabi:
//	  - ਸਤ
//	  - ਸ੍ਰੀ
//	en-US: [Bolo]
//
// Tags may be any alias accepted by transcriber.ParseLanguage.
func LoadVocabulary(path string) (transcriber.Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
	}
	return parseVocabulary(data)
}

func parseVocabulary(data []byte) (transcriber.Vocabulary, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file: %w", err)
	}

	vocab := make(transcriber.Vocabulary, len(raw))
	seenTag := make(map[transcriber.Language]string, len(raw))
	for tag, words := range raw {
		lang, err := transcriber.ParseLanguage(tag)
		if err != nil {
			return nil, fmt.Errorf("vocabulary file: %w", err)
		}
		if prev, dup := seenTag[lang]; dup {
			return nil, fmt.Errorf("vocabulary file: %q and %q both name %s", prev, tag, lang)
		}
		seenTag[lang] = tag
		vocab[lang] = transcriber.NormalizeHints(words)
	}
	return vocab, nil
}

package transcriber

import (
	"errors"
	"strings"
	"time"
)

const (
	DefaultEncoding    = "wav/pcm"
	DefaultModelType   = "accurate"
	DefaultEndpointing = 200 * time.Millisecond

	languageBehaviourManual = "manual"
	framesFormatBase64      = "base64"
)

// SessionConfig is sent once per session as the first message on the socket.
type SessionConfig struct {
	APIKey          string
	Language        Language
	SampleRate      int
	Encoding        string
	VocabularyHints []string
	ModelType       string
	AudioEnhancer   bool
	Endpointing     time.Duration
}

func (c SessionConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("api key is required")
	}
	if c.Language == "" {
		return errors.New("language is required")
	}
	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}
	return nil
}

func (c SessionConfig) clone() SessionConfig {
	c.VocabularyHints = NormalizeHints(c.VocabularyHints)
	if c.Encoding == "" {
		c.Encoding = DefaultEncoding
	}
	if c.ModelType == "" {
		c.ModelType = DefaultModelType
	}
	return c
}

func (c SessionConfig) message() configMessage {
	return configMessage{
		APIKey:            c.APIKey,
		Encoding:          c.Encoding,
		SampleRate:        c.SampleRate,
		LanguageBehaviour: languageBehaviourManual,
		Language:          string(c.Language),
		FramesFormat:      framesFormatBase64,
		ModelType:         c.ModelType,
		AudioEnhancer:     c.AudioEnhancer,
		Endpointing:       c.Endpointing.Milliseconds(),
		TranscriptionHint: strings.Join(c.VocabularyHints, ","),
	}
}

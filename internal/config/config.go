package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/foxseedlab/bolo/internal/transcriber"
)

type Config struct {
	Env                   string
	TranscriptionAPIKey   string
	TranscriptionEndpoint string
	APIKeyHeader          string
	DefaultLanguage       string
	AudioSampleRate       int
	AudioBlockSize        int
	ModelType             string
	AudioEnhancer         bool
	EndpointingMS         int
	VocabularyFile        string
	Vocabulary            transcriber.Vocabulary
	ConnectTimeoutSec     int
	WriteTimeoutSec       int
	FrameQueueSize        int
	MetricsAddr           string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	u, err := url.Parse(c.TranscriptionEndpoint)
	if err != nil {
		return fmt.Errorf("TRANSCRIPTION_ENDPOINT is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("TRANSCRIPTION_ENDPOINT must use ws or wss, got %q", u.Scheme)
	}
	if _, err := transcriber.ParseLanguage(c.DefaultLanguage); err != nil {
		return fmt.Errorf("DEFAULT_LANGUAGE is invalid: %w", err)
	}
	for _, pos := range c.positiveFieldChecks() {
		if pos.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", pos.name, pos.value)
		}
	}
	if c.EndpointingMS < 0 {
		return fmt.Errorf("TRANSCRIPTION_ENDPOINTING_MS must not be negative, got %d", c.EndpointingMS)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "TRANSCRIPTION_API_KEY", value: c.TranscriptionAPIKey},
		{name: "TRANSCRIPTION_ENDPOINT", value: c.TranscriptionEndpoint},
		{name: "DEFAULT_LANGUAGE", value: c.DefaultLanguage},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveFieldChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "AUDIO_SAMPLE_RATE", value: c.AudioSampleRate},
		{name: "AUDIO_BLOCK_SIZE", value: c.AudioBlockSize},
		{name: "CONNECT_TIMEOUT_SEC", value: c.ConnectTimeoutSec},
		{name: "WRITE_TIMEOUT_SEC", value: c.WriteTimeoutSec},
		{name: "FRAME_QUEUE_SIZE", value: c.FrameQueueSize},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

func (c *Config) Endpointing() time.Duration {
	return time.Duration(c.EndpointingMS) * time.Millisecond
}

// HintsFor returns the vocabulary hints for lang: the built-in list unless
// the configured vocabulary overrides that language.
func (c *Config) HintsFor(lang transcriber.Language) []string {
	return transcriber.DefaultVocabulary().Merge(c.Vocabulary).Hints(lang)
}

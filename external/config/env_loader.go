package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/bolo/internal/config"
	"github.com/joho/godotenv"
)

const dotenvFile = ".env"

type envConfig struct {
	Env                   string `env:"ENV" envDefault:"production"`
	TranscriptionAPIKey   string `env:"TRANSCRIPTION_API_KEY,required"`
	TranscriptionEndpoint string `env:"TRANSCRIPTION_ENDPOINT" envDefault:"wss://api.gladia.io/audio/text/audio-transcription"`
	APIKeyHeader          string `env:"TRANSCRIPTION_API_KEY_HEADER" envDefault:"x-gladia-key"`
	DefaultLanguage       string `env:"DEFAULT_LANGUAGE" envDefault:"english"`
	AudioSampleRate       int    `env:"AUDIO_SAMPLE_RATE" envDefault:"48000"`
	AudioBlockSize        int    `env:"AUDIO_BLOCK_SIZE" envDefault:"1024"`
	ModelType             string `env:"TRANSCRIPTION_MODEL_TYPE" envDefault:"accurate"`
	AudioEnhancer         bool   `env:"TRANSCRIPTION_AUDIO_ENHANCER" envDefault:"true"`
	EndpointingMS         int    `env:"TRANSCRIPTION_ENDPOINTING_MS" envDefault:"200"`
	VocabularyFile        string `env:"VOCABULARY_FILE"`
	ConnectTimeoutSec     int    `env:"CONNECT_TIMEOUT_SEC" envDefault:"10"`
	WriteTimeoutSec       int    `env:"WRITE_TIMEOUT_SEC" envDefault:"5"`
	FrameQueueSize        int    `env:"FRAME_QUEUE_SIZE" envDefault:"64"`
	MetricsAddr           string `env:"METRICS_ADDR"`
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", dotenvFile, err)
	}
	return load(env.Options{})
}

func load(opts env.Options) (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                   raw.Env,
		TranscriptionAPIKey:   raw.TranscriptionAPIKey,
		TranscriptionEndpoint: raw.TranscriptionEndpoint,
		APIKeyHeader:          raw.APIKeyHeader,
		DefaultLanguage:       raw.DefaultLanguage,
		AudioSampleRate:       raw.AudioSampleRate,
		AudioBlockSize:        raw.AudioBlockSize,
		ModelType:             raw.ModelType,
		AudioEnhancer:         raw.AudioEnhancer,
		EndpointingMS:         raw.EndpointingMS,
		VocabularyFile:        raw.VocabularyFile,
		ConnectTimeoutSec:     raw.ConnectTimeoutSec,
		WriteTimeoutSec:       raw.WriteTimeoutSec,
		FrameQueueSize:        raw.FrameQueueSize,
		MetricsAddr:           raw.MetricsAddr,
	}
	if cfg.VocabularyFile != "" {
		vocab, err := LoadVocabulary(cfg.VocabularyFile)
		if err != nil {
			return nil, err
		}
		cfg.Vocabulary = vocab
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

package main

import (
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	audioimpl "github.com/foxseedlab/bolo/external/audio"
	configloader "github.com/foxseedlab/bolo/external/config"
	transcriberimpl "github.com/foxseedlab/bolo/external/transcriber"
	"github.com/foxseedlab/bolo/internal/config"
	"github.com/foxseedlab/bolo/internal/metrics"
	"github.com/foxseedlab/bolo/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "bolo",
	Short:        "Live speech capture and streaming transcription",
	SilenceUsage: true,
}

func init() {
	listenCmd.Flags().StringP("language", "l", "", "language tag to transcribe (defaults to DEFAULT_LANGUAGE)")
	listenCmd.Flags().StringP("input", "i", audioimpl.InputMicrophone, `capture source: "mic" or a path to a mono 16-bit WAV file`)
	listenCmd.Flags().DurationP("duration", "d", 0, "stop automatically after this long (0 runs until interrupted)")
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(languagesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		return nil, nil, err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "env", cfg.Env, "endpoint", cfg.TranscriptionEndpoint)
	return cfg, logger, nil
}

// newLogger writes JSON in production and a colored console format at debug
// level in development.
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Level:           charmlog.DebugLevel,
			ReportTimestamp: true,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func setupDI(cfg *config.Config, logger *slog.Logger, input audioimpl.Input) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, metrics.New(prometheus.DefaultRegisterer))
	do.ProvideValue(injector, input)
	audioimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

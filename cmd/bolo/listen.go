package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/bolo/external/audio"
	"github.com/foxseedlab/bolo/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

const metricsShutdownTimeout = 5 * time.Second

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Capture audio and print the live transcript",
	Long: `Capture audio from the microphone (or replay a WAV file), stream it to the
transcription service and print the recognized text as it changes. The final
transcript is printed once listening stops.`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func runListen(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	language, _ := cmd.Flags().GetString("language")
	if language == "" {
		language = cfg.DefaultLanguage
	}
	input, _ := cmd.Flags().GetString("input")
	duration, _ := cmd.Flags().GetDuration("duration")

	injector := setupDI(cfg, logger, audioimpl.Input(input))
	ctrl, err := do.Invoke[*session.Controller](injector)
	if err != nil {
		slog.Error("failed to resolve session controller", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	if err := ctrl.Start(ctx, language); err != nil {
		slog.Error("failed to start listening", "error", err, "language", language, "input", input)
		return err
	}
	slog.Info("listening", "language", language, "input", input, "duration", duration)

	loopErr := printTranscript(ctx, ctrl, cmd.OutOrStdout())
	ctrl.Stop()

	final := ctrl.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "\nfinal transcript: %s\n", final.RecognizedText)
	return loopErr
}

// printTranscript writes each change of the recognized text until ctx is done
// or the session is lost.
func printTranscript(ctx context.Context, ctrl *session.Controller, out io.Writer) error {
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	var last string
	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping", "reason", context.Cause(ctx))
			return nil
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			if st.RecognizedText != last {
				last = st.RecognizedText
				fmt.Fprintf(out, "> %s\n", last)
			}
			if !st.Listening {
				if st.LastError != nil {
					return fmt.Errorf("listening ended: %w", st.LastError)
				}
				return nil
			}
		}
	}
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics endpoint listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", "error", err)
	}
}

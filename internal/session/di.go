package session

import (
	"log/slog"

	"github.com/foxseedlab/bolo/internal/audio"
	"github.com/foxseedlab/bolo/internal/config"
	"github.com/foxseedlab/bolo/internal/metrics"
	"github.com/foxseedlab/bolo/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Controller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		engine := do.MustInvoke[*audio.Engine](i)
		dialer := do.MustInvoke[transcriber.Dialer](i)
		logger := do.MustInvoke[*slog.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewController(cfg, engine, dialer, logger, m), nil
	})
}

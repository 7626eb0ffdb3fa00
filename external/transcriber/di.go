package transcriber

import (
	"log/slog"

	"github.com/foxseedlab/bolo/internal/config"
	"github.com/foxseedlab/bolo/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Dialer, error) {
		c := do.MustInvoke[*config.Config](i)
		logger := do.MustInvoke[*slog.Logger](i)
		return NewWebsocketDialer(c.APIKeyHeader, c.ConnectTimeout(), logger), nil
	})
}

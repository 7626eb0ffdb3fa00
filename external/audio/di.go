package audio

import (
	"log/slog"

	"github.com/foxseedlab/bolo/internal/audio"
	"github.com/foxseedlab/bolo/internal/metrics"
	"github.com/samber/do/v2"
)

// InputMicrophone selects the default input device. Any other Input value is
// a path to a WAV file to replay.
const InputMicrophone = "mic"

// Input names the capture source chosen on the command line.
type Input string

func NewDevice(input Input, logger *slog.Logger) audio.Device {
	if input == "" || input == InputMicrophone {
		return NewMicrophoneDevice(logger)
	}
	return NewWAVDevice(string(input), true, logger)
}

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.Device, error) {
		input := do.MustInvoke[Input](i)
		logger := do.MustInvoke[*slog.Logger](i)
		return NewDevice(input, logger), nil
	})
	do.Provide(injector, func(i do.Injector) (*audio.Engine, error) {
		device := do.MustInvoke[audio.Device](i)
		logger := do.MustInvoke[*slog.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return audio.NewEngine(device, logger, m), nil
	})
}

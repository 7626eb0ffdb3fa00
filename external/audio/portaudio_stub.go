//go:build !portaudio

package audio

import (
	"fmt"
	"log/slog"

	"github.com/foxseedlab/bolo/internal/audio"
)

type microphoneDevice struct{}

// NewMicrophoneDevice returns a device that always fails to open: the binary
// was built without the portaudio tag.
func NewMicrophoneDevice(_ *slog.Logger) audio.Device {
	return &microphoneDevice{}
}

func (d *microphoneDevice) Open(_ audio.Format, _ func(samples []int16)) (audio.InputStream, error) {
	return nil, fmt.Errorf("%w: built without portaudio support (rebuild with -tags portaudio)", audio.ErrDeviceUnavailable)
}

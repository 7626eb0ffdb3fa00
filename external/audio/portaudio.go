//go:build portaudio

package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/foxseedlab/bolo/internal/audio"
	"github.com/gordonklaus/portaudio"
)

type microphoneDevice struct {
	logger *slog.Logger
}

// NewMicrophoneDevice captures mono PCM16 from the default input device.
func NewMicrophoneDevice(logger *slog.Logger) audio.Device {
	return &microphoneDevice{logger: logger.With("device", "microphone")}
}

func (d *microphoneDevice) Open(format audio.Format, callback func(samples []int16)) (audio.InputStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, classifyPortAudioError(err)
	}
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(format.SampleRate), format.BlockSize, func(in []int16) {
		callback(in)
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, classifyPortAudioError(err)
	}
	d.logger.Debug("portaudio stream opened", "sample_rate", format.SampleRate, "block_size", format.BlockSize)
	return &microphoneStream{stream: stream, logger: d.logger}, nil
}

type microphoneStream struct {
	stream *portaudio.Stream
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
}

func (s *microphoneStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stream.Start(); err != nil {
		return classifyPortAudioError(err)
	}
	s.started = true
	return nil
}

// Close stops the stream, which waits for an in-flight callback, then
// releases PortAudio.
func (s *microphoneStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.started {
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminate portaudio: %w", err))
	}
	return errors.Join(errs...)
}

func classifyPortAudioError(err error) error {
	switch {
	case errors.Is(err, portaudio.InvalidSampleRate),
		errors.Is(err, portaudio.SampleFormatNotSupported),
		errors.Is(err, portaudio.InvalidChannelCount):
		return fmt.Errorf("%w: %v", audio.ErrUnsupportedFormat, err)
	default:
		return fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
}

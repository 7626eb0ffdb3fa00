package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/bolo/internal/metrics"
)

// Format describes the mono PCM16 stream requested from a Device.
type Format struct {
	SampleRate int
	BlockSize  int
}

func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrUnsupportedFormat, f.SampleRate)
	}
	if f.BlockSize <= 0 {
		return fmt.Errorf("%w: block size must be positive, got %d", ErrUnsupportedFormat, f.BlockSize)
	}
	return nil
}

// Device opens input streams on an audio source. The callback runs on the
// device's real-time thread and receives a buffer that is only valid for the
// duration of the call.
type Device interface {
	Open(format Format, callback func(samples []int16)) (InputStream, error)
}

// InputStream is an opened but not necessarily running capture stream. No
// callback may be delivered after Close returns.
type InputStream interface {
	Start() error
	Close() error
}

// Capture is everything derived from one block on the callback path.
type Capture struct {
	Block Block
	Level Level
	Frame Frame
}

// Sink receives captures on the real-time thread. It must not block.
type Sink func(Capture)

// Engine owns the input stream of one Device.
type Engine struct {
	device  Device
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	stream  InputStream
	nextGen uint64

	// active is the generation whose callbacks are accepted; 0 when stopped.
	active atomic.Uint64
}

func NewEngine(device Device, logger *slog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Engine{
		device:  device,
		logger:  logger.With("component", "capture"),
		metrics: m,
		now:     time.Now,
	}
}

// Start opens and starts a stream in the given format. A running stream is
// stopped first. On error no stream is left open.
func (e *Engine) Start(format Format, sink Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stream != nil {
		e.logger.Info("capture already running; restarting")
		e.stopLocked()
	}
	if err := format.Validate(); err != nil {
		return err
	}
	if sink == nil {
		sink = func(Capture) {}
	}

	e.nextGen++
	gen := e.nextGen
	stream, err := e.device.Open(format, func(samples []int16) {
		e.onSamples(gen, format.SampleRate, sink, samples)
	})
	if err != nil {
		return classifyDeviceError("open input stream", err)
	}

	e.active.Store(gen)
	if err := stream.Start(); err != nil {
		e.active.Store(0)
		if cerr := stream.Close(); cerr != nil {
			e.logger.Warn("failed to close stream after start failure", "error", cerr)
		}
		return classifyDeviceError("start input stream", err)
	}

	e.stream = stream
	e.metrics.ActiveCaptures.Inc()
	e.metrics.CapturesStarted.Inc()
	e.logger.Info("capture started", "sample_rate", format.SampleRate, "block_size", format.BlockSize)
	return nil
}

// Stop closes the running stream. It is safe to call at any time.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream != nil
}

func (e *Engine) stopLocked() {
	if e.stream == nil {
		return
	}
	e.active.Store(0)
	if err := e.stream.Close(); err != nil {
		e.logger.Warn("failed to close input stream", "error", err)
	}
	e.stream = nil
	e.metrics.ActiveCaptures.Dec()
	e.logger.Info("capture stopped")
}

// onSamples runs on the device thread. It must not take e.mu: Close waits for
// an in-flight callback to return while Stop holds the lock.
func (e *Engine) onSamples(gen uint64, sampleRate int, sink Sink, samples []int16) {
	if e.active.Load() != gen {
		return
	}
	block := NewBlock(samples, sampleRate, e.now())
	e.metrics.BlocksCaptured.Inc()
	sink(Capture{
		Block: block,
		Level: Measure(block),
		Frame: EncodeFrame(block),
	})
}

func classifyDeviceError(op string, err error) error {
	if errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrPermissionDenied) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrDeviceUnavailable, err)
}

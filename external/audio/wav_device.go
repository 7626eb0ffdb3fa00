package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/foxseedlab/bolo/internal/audio"
)

const (
	wavFormatPCM   = 1
	wavHeaderBytes = 12

	// Streaming writers leave the data size unset until the file is closed.
	wavUnknownSize = 0xFFFFFFFF
)

// WAVDevice replays a mono PCM16 WAV file as if it were a microphone. With
// realtime set, blocks are paced at the file's sample rate.
type WAVDevice struct {
	path     string
	realtime bool
	logger   *slog.Logger
}

func NewWAVDevice(path string, realtime bool, logger *slog.Logger) *WAVDevice {
	if logger == nil {
		logger = slog.Default()
	}
	return &WAVDevice{
		path:     path,
		realtime: realtime,
		logger:   logger.With("device", "wav", "path", path),
	}
}

func (d *WAVDevice) Open(format audio.Format, callback func(samples []int16)) (audio.InputStream, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", audio.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	samples, rate, err := decodeWAV(data)
	if err != nil {
		return nil, err
	}
	if rate != format.SampleRate {
		return nil, fmt.Errorf("%w: file is %d Hz, capture requested %d Hz", audio.ErrUnsupportedFormat, rate, format.SampleRate)
	}

	var interval time.Duration
	if d.realtime {
		interval = time.Duration(format.BlockSize) * time.Second / time.Duration(rate)
	}
	d.logger.Debug("wav file loaded", "samples", len(samples), "sample_rate", rate)
	return &wavStream{
		samples:   samples,
		blockSize: format.BlockSize,
		interval:  interval,
		callback:  callback,
		logger:    d.logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

type wavStream struct {
	samples   []int16
	blockSize int
	interval  time.Duration
	callback  func(samples []int16)
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

func (s *wavStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("wav stream is closed")
	}
	if s.started {
		return nil
	}
	s.started = true
	go s.run()
	return nil
}

// Close returns after the replay goroutine has exited.
func (s *wavStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	started := s.started
	s.mu.Unlock()

	if started {
		<-s.done
	}
	return nil
}

func (s *wavStream) run() {
	defer close(s.done)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	buf := make([]int16, s.blockSize)
	for off := 0; off < len(s.samples); off += s.blockSize {
		if tick != nil {
			select {
			case <-s.stop:
				return
			case <-tick:
			}
		} else {
			select {
			case <-s.stop:
				return
			default:
			}
		}
		n := copy(buf, s.samples[off:])
		clear(buf[n:])
		s.callback(buf)
	}
	s.logger.Info("wav replay finished")
}

// decodeWAV walks the RIFF chunks and returns the samples of a mono 16-bit
// PCM file. Unknown chunks such as LIST are skipped.
func decodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < wavHeaderBytes || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE file", audio.ErrUnsupportedFormat)
	}

	r := bytes.NewReader(data[wavHeaderBytes:])
	var (
		haveFmt    bool
		sampleRate int
	)
	for {
		var hdr struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, 0, fmt.Errorf("%w: missing data chunk", audio.ErrUnsupportedFormat)
			}
			return nil, 0, fmt.Errorf("%w: truncated chunk header: %v", audio.ErrUnsupportedFormat, err)
		}
		size := int64(hdr.Size)
		if string(hdr.ID[:]) == "data" && hdr.Size == wavUnknownSize {
			size = int64(r.Len())
		}
		if size > int64(r.Len()) {
			return nil, 0, fmt.Errorf("%w: chunk %q overruns file", audio.ErrUnsupportedFormat, hdr.ID[:])
		}

		switch string(hdr.ID[:]) {
		case "fmt ":
			var f struct {
				AudioFormat   uint16
				NumChannels   uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if size < int64(binary.Size(f)) {
				return nil, 0, fmt.Errorf("%w: fmt chunk too short", audio.ErrUnsupportedFormat)
			}
			if err := binary.Read(io.LimitReader(r, size), binary.LittleEndian, &f); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", audio.ErrUnsupportedFormat, err)
			}
			if f.AudioFormat != wavFormatPCM || f.BitsPerSample != 16 || f.NumChannels != 1 {
				return nil, 0, fmt.Errorf("%w: need mono 16-bit PCM, got format=%d channels=%d bits=%d",
					audio.ErrUnsupportedFormat, f.AudioFormat, f.NumChannels, f.BitsPerSample)
			}
			haveFmt = true
			sampleRate = int(f.SampleRate)
			if _, err := r.Seek(size-int64(binary.Size(f)), io.SeekCurrent); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", audio.ErrUnsupportedFormat, err)
			}
		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("%w: data chunk before fmt chunk", audio.ErrUnsupportedFormat)
			}
			samples := make([]int16, size/2)
			if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", audio.ErrUnsupportedFormat, err)
			}
			return samples, sampleRate, nil
		default:
			if _, err := r.Seek(size, io.SeekCurrent); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", audio.ErrUnsupportedFormat, err)
			}
		}
		if size%2 == 1 {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", audio.ErrUnsupportedFormat, err)
			}
		}
	}
}

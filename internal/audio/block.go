package audio

import (
	"encoding/binary"
	"time"
)

const (
	DefaultSampleRate = 48000
	DefaultBlockSize  = 1024
	bytesPerSample    = 2
)

// Block is one capture callback's worth of mono PCM16 audio. It is owned by
// the callback that produced it until handed off and must not be mutated
// afterwards.
type Block struct {
	Samples    []int16
	SampleRate int
	CapturedAt time.Time
}

func NewBlock(samples []int16, sampleRate int, capturedAt time.Time) Block {
	owned := make([]int16, len(samples))
	copy(owned, samples)
	return Block{Samples: owned, SampleRate: sampleRate, CapturedAt: capturedAt}
}

// Bytes returns the samples as little-endian PCM16.
func (b Block) Bytes() []byte {
	buf := make([]byte, len(b.Samples)*bytesPerSample)
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint16(buf[i*bytesPerSample:], uint16(s))
	}
	return buf
}

func (b Block) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

func samplesFromBytes(data []byte) []int16 {
	samples := make([]int16, len(data)/bytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:]))
	}
	return samples
}

package audio

import (
	"encoding/base64"
	"fmt"
)

// Frame is the wire envelope for one block of audio.
type Frame struct {
	Data string `json:"frames"`
}

// EncodeFrame base64-encodes the block's PCM16 bytes. It never fails.
func EncodeFrame(b Block) Frame {
	return Frame{Data: base64.StdEncoding.EncodeToString(b.Bytes())}
}

// DecodeFrame reverses EncodeFrame. The capture timestamp is not carried on
// the wire and is left zero.
func DecodeFrame(f Frame, sampleRate int) (Block, error) {
	raw, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return Block{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(raw)%bytesPerSample != 0 {
		return Block{}, fmt.Errorf("%w: odd payload length %d", ErrMalformedFrame, len(raw))
	}
	return Block{Samples: samplesFromBytes(raw), SampleRate: sampleRate}, nil
}

package audio

import "errors"

var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrMalformedFrame    = errors.New("malformed audio frame")
)

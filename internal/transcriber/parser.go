package transcriber

import (
	"encoding/json"
	"errors"
	"fmt"
)

type EventKind int

const (
	EventTranscript EventKind = iota + 1
	EventError
	EventLifecycle
)

type Lifecycle int

const (
	LifecycleConnected Lifecycle = iota + 1
	LifecycleDisconnected
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleConnected:
		return "connected"
	case LifecycleDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is what a Session publishes. Text is set for transcripts, Message for
// service errors, Lifecycle (and Err on an abnormal disconnect) for lifecycle
// events.
type Event struct {
	Kind      EventKind
	Text      string
	Message   string
	Lifecycle Lifecycle
	Err       error
}

var (
	ErrMalformedMessage  = errors.New("malformed message")
	ErrUnrecognizedEvent = errors.New("unrecognized event")
)

// ParseEvent decodes an inbound message. Malformed or unrecognized messages
// yield false.
func ParseEvent(raw []byte) (Event, bool) {
	ev, err := DecodeEvent(raw)
	return ev, err == nil
}

// DecodeEvent is ParseEvent with the reason a message was dropped.
func DecodeEvent(raw []byte) (Event, error) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch msg.Event {
	case eventTranscript:
		if msg.Transcription == nil {
			return Event{}, fmt.Errorf("%w: transcript without transcription", ErrMalformedMessage)
		}
		return Event{Kind: EventTranscript, Text: *msg.Transcription}, nil
	case eventError:
		return Event{Kind: EventError, Message: msg.Message}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnrecognizedEvent, msg.Event)
	}
}

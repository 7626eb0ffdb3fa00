package transcriber

import (
	"context"
	"fmt"
)

// Dialer opens the persistent socket to the transcription service.
type Dialer interface {
	Dial(ctx context.Context, endpoint, apiKey string) (Conn, error)
}

// Conn is one open socket. WriteText is called from at most one goroutine at a
// time and must honour the context deadline. ReadMessage blocks until a text
// message arrives or the connection fails or is closed.
type Conn interface {
	WriteText(ctx context.Context, data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

const (
	OpConnect   = "connect"
	OpConfigure = "configure"
	OpWrite     = "write"
	OpRead      = "read"
	OpTerminate = "terminate"
)

type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

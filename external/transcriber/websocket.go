package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/bolo/internal/transcriber"
	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// WebsocketDialer connects to the transcription service over a websocket.
// The API key is sent as a handshake header in addition to the config
// message.
type WebsocketDialer struct {
	apiKeyHeader     string
	handshakeTimeout time.Duration
	logger           *slog.Logger
}

func NewWebsocketDialer(apiKeyHeader string, handshakeTimeout time.Duration, logger *slog.Logger) *WebsocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketDialer{
		apiKeyHeader:     apiKeyHeader,
		handshakeTimeout: handshakeTimeout,
		logger:           logger.With("component", "websocket"),
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, endpoint, apiKey string) (transcriber.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}
	header := http.Header{}
	if d.apiKeyHeader != "" && apiKey != "" {
		header.Set(d.apiKeyHeader, apiKey)
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (status %d): %w", endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	d.logger.Debug("websocket connected", "endpoint", endpoint)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// WriteText maps the context deadline onto the socket write deadline.
func (c *wsConn) WriteText(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage returns the next text message. Binary messages are skipped.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

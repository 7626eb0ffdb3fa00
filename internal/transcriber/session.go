package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/bolo/internal/audio"
	"github.com/foxseedlab/bolo/internal/metrics"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingConnect
	StateStreaming
	StateTerminating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingConnect:
		return "awaiting_connect"
	case StateStreaming:
		return "streaming"
	case StateTerminating:
		return "terminating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var ErrSessionStarted = errors.New("transcription session already started")

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultQueueSize      = 64

	eventBufferSize  = 16
	maxLoggedPayload = 256
)

type Options struct {
	Endpoint       string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	QueueSize      int
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	return o
}

// Session drives one connect, configure, stream, terminate cycle. It is not
// reusable: once Closed, a new Session is required.
type Session struct {
	id      string
	dialer  Dialer
	cfg     SessionConfig
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	frames     chan audio.Frame
	events     chan Event
	connected  chan struct{}
	writerDone chan struct{}
	done       chan struct{}

	stopMu    sync.Mutex
	closeOnce sync.Once

	mu           sync.Mutex
	state        State
	err          error
	conn         Conn
	framesClosed bool
	draining     bool
}

func NewSession(id string, dialer Dialer, cfg SessionConfig, opts Options, logger *slog.Logger, m *metrics.Metrics) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	opts = opts.withDefaults()
	return &Session{
		id:         id,
		dialer:     dialer,
		cfg:        cfg.clone(),
		opts:       opts,
		logger:     logger.With("component", "transcriber", "session_id", id),
		metrics:    m,
		frames:     make(chan audio.Frame, opts.QueueSize),
		events:     make(chan Event, eventBufferSize),
		connected:  make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Config() SessionConfig {
	return s.cfg.clone()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the transport error that closed the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Events must be drained until closed. The last event is always a
// LifecycleDisconnected.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once all session goroutines have exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionStarted
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.logger.Info("transcription session connecting", "endpoint", s.opts.Endpoint, "language", s.cfg.Language)
	go s.run(ctx)
	return nil
}

// Send queues a frame for transmission without blocking. Frames are only
// accepted while streaming and before Stop begins draining the queue.
func (s *Session) Send(frame audio.Frame) bool {
	s.mu.Lock()
	if s.state != StateStreaming || s.draining {
		state := s.state
		s.mu.Unlock()
		s.metrics.FramesDropped.WithLabelValues(metrics.DropNotStreaming).Inc()
		s.logger.Debug("dropping frame outside streaming state", "state", state)
		return false
	}
	select {
	case s.frames <- frame:
		s.mu.Unlock()
		return true
	default:
		s.mu.Unlock()
		s.metrics.FramesDropped.WithLabelValues(metrics.DropQueueFull).Inc()
		s.logger.Debug("dropping frame; send queue full", "queue_size", s.opts.QueueSize)
		return false
	}
}

// Stop flushes queued frames, sends the termination message and closes the
// transport. Queued frames are written while the session is still Streaming;
// it only enters Terminating once the queue is empty. Stop is a no-op on an
// idle or already closed session and may be called concurrently with Start
// and with itself.
func (s *Session) Stop() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.State() == StateIdle {
		return
	}

	<-s.connected

	s.mu.Lock()
	if s.state != StateStreaming || s.draining {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.draining = true
	s.closeFramesLocked()
	conn := s.conn
	s.mu.Unlock()

	s.logger.Info("transcription session draining send queue")
	<-s.writerDone

	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.state = StateTerminating
	s.mu.Unlock()

	s.logger.Info("transcription session terminating")
	payload, _ := json.Marshal(controlMessage{Event: eventTerminate})
	if err := s.write(conn, payload); err != nil {
		s.metrics.TransportErrors.WithLabelValues(OpTerminate).Inc()
		s.logger.Warn("failed to send terminate message", "error", err)
	}
	s.closeTransport()
	<-s.done

	s.mu.Lock()
	if s.state == StateTerminating {
		s.state = StateClosed
	}
	s.mu.Unlock()
	s.logger.Info("transcription session closed")
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	conn, err := s.connect(ctx)
	close(s.connected)
	if err != nil {
		close(s.writerDone)
		s.emit(Event{Kind: EventLifecycle, Lifecycle: LifecycleDisconnected, Err: err})
		return
	}
	s.logger.Info("transcription session streaming")
	s.emit(Event{Kind: EventLifecycle, Lifecycle: LifecycleConnected})

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readLoop(conn)
	}()
	s.writeLoop(conn)
	<-readerDone

	s.emit(Event{Kind: EventLifecycle, Lifecycle: LifecycleDisconnected, Err: s.Err()})
}

func (s *Session) connect(ctx context.Context) (Conn, error) {
	s.mu.Lock()
	s.state = StateAwaitingConnect
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()
	conn, err := s.dialer.Dial(dialCtx, s.opts.Endpoint, s.cfg.APIKey)
	if err != nil {
		return nil, s.fail(OpConnect, err)
	}
	s.metrics.ActiveSockets.Inc()
	s.metrics.SocketsOpened.Inc()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	payload, err := json.Marshal(s.cfg.message())
	if err != nil {
		return nil, s.fail(OpConfigure, err)
	}
	if err := s.write(conn, payload); err != nil {
		return nil, s.fail(OpConfigure, err)
	}

	s.mu.Lock()
	s.state = StateStreaming
	s.mu.Unlock()
	return conn, nil
}

func (s *Session) writeLoop(conn Conn) {
	defer close(s.writerDone)
	for frame := range s.frames {
		payload, err := json.Marshal(frame)
		if err != nil {
			s.logger.Error("failed to marshal frame", "error", err)
			continue
		}
		if err := s.write(conn, payload); err != nil {
			_ = s.fail(OpWrite, err)
			return
		}
		s.metrics.FramesSent.Inc()
	}
}

func (s *Session) readLoop(conn Conn) {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if st := s.State(); st == StateTerminating || st == StateClosed {
				s.logger.Debug("read loop stopped", "state", st, "reason", err.Error())
				return
			}
			_ = s.fail(OpRead, err)
			return
		}
		s.metrics.MessagesReceived.Inc()

		ev, err := DecodeEvent(raw)
		if err != nil {
			s.metrics.ParseFailures.Inc()
			if errors.Is(err, ErrMalformedMessage) {
				s.logger.Warn("dropping malformed message", "error", err, "payload", truncatePayload(raw))
			} else {
				s.logger.Debug("ignoring message", "reason", err.Error())
			}
			continue
		}
		switch ev.Kind {
		case EventTranscript:
			s.metrics.Transcripts.Inc()
			s.logger.Debug("transcript received", "text", ev.Text)
		case EventError:
			s.logger.Warn("transcription service reported an error", "message", ev.Message)
		}
		s.emit(ev)
	}
}

func (s *Session) write(conn Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
	defer cancel()
	return conn.WriteText(ctx, payload)
}

// fail moves the session to Closed with a transport error. Errors raised while
// terminating are part of the shutdown and only logged.
func (s *Session) fail(op string, err error) error {
	terr := &TransportError{Op: op, Err: err}

	s.mu.Lock()
	switch s.state {
	case StateTerminating, StateClosed:
		s.mu.Unlock()
		s.logger.Debug("transport error during shutdown", "op", op, "error", err)
		return terr
	}
	s.state = StateClosed
	s.err = terr
	s.closeFramesLocked()
	s.mu.Unlock()

	s.metrics.TransportErrors.WithLabelValues(op).Inc()
	s.logger.Error("transcription transport failed", "op", op, "error", err)
	s.closeTransport()
	return terr
}

func (s *Session) closeFramesLocked() {
	if s.framesClosed {
		return
	}
	s.framesClosed = true
	close(s.frames)
}

func (s *Session) closeTransport() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}
		if err := conn.Close(); err != nil {
			s.logger.Debug("failed to close transport", "error", err)
		}
		s.metrics.ActiveSockets.Dec()
	})
}

func (s *Session) emit(ev Event) {
	s.events <- ev
}

func truncatePayload(raw []byte) string {
	if len(raw) > maxLoggedPayload {
		return string(raw[:maxLoggedPayload]) + "..."
	}
	return string(raw)
}

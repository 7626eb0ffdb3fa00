package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/bolo/internal/audio"
	"github.com/foxseedlab/bolo/internal/config"
	"github.com/foxseedlab/bolo/internal/metrics"
	"github.com/foxseedlab/bolo/internal/transcriber"
	"github.com/google/uuid"
)

// ErrUnknownLanguage is returned by Start for an unsupported language tag.
var ErrUnknownLanguage = transcriber.ErrUnknownLanguage

// StartError reports an audio failure that aborted Start. Nothing is left
// running when it is returned.
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start listening: %v", e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// CaptureEngine is the part of audio.Engine the controller drives.
type CaptureEngine interface {
	Start(format audio.Format, sink audio.Sink) error
	Stop()
}

// Controller owns at most one capture engine run and one transcription
// session at a time.
type Controller struct {
	cfg     *config.Config
	engine  CaptureEngine
	dialer  transcriber.Dialer
	base    *slog.Logger
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string

	lifecycleMu sync.Mutex
	gen         uint64
	current     *activeSession

	state *stateStore
}

type activeSession struct {
	gen          uint64
	session      *transcriber.Session
	consumerDone chan struct{}
	startedAt    time.Time
}

func NewController(cfg *config.Config, engine CaptureEngine, dialer transcriber.Dialer, logger *slog.Logger, m *metrics.Metrics) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		engine:  engine,
		dialer:  dialer,
		base:    logger,
		logger:  logger.With("component", "controller"),
		metrics: m,
		newID:   uuid.NewString,
		state:   newStateStore(),
	}
}

// Start begins capturing and streaming in the given language. An active
// session is fully stopped first. An invalid language leaves any active
// session untouched.
func (c *Controller) Start(ctx context.Context, languageTag string) error {
	lang, err := transcriber.ParseLanguage(languageTag)
	if err != nil {
		return err
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.current != nil {
		c.logger.Info("session already active; restarting", "session_id", c.current.session.ID())
		c.stopLocked()
	}

	sessCfg := transcriber.SessionConfig{
		APIKey:          c.cfg.TranscriptionAPIKey,
		Language:        lang,
		SampleRate:      c.cfg.AudioSampleRate,
		VocabularyHints: c.cfg.HintsFor(lang),
		ModelType:       c.cfg.ModelType,
		AudioEnhancer:   c.cfg.AudioEnhancer,
		Endpointing:     c.cfg.Endpointing(),
	}
	if err := sessCfg.Validate(); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}

	c.gen++
	sess := transcriber.NewSession(c.newID(), c.dialer, sessCfg, transcriber.Options{
		Endpoint:       c.cfg.TranscriptionEndpoint,
		ConnectTimeout: c.cfg.ConnectTimeout(),
		WriteTimeout:   c.cfg.WriteTimeout(),
		QueueSize:      c.cfg.FrameQueueSize,
	}, c.base, c.metrics)

	format := audio.Format{SampleRate: c.cfg.AudioSampleRate, BlockSize: c.cfg.AudioBlockSize}
	if err := c.engine.Start(format, c.sinkFor(sess)); err != nil {
		startErr := &StartError{Err: err}
		c.state.update(func(s *State) {
			s.Listening = false
			s.LastError = startErr
		})
		c.logger.Error("failed to start audio capture", "error", err)
		return startErr
	}
	if err := sess.Start(ctx); err != nil {
		c.engine.Stop()
		return fmt.Errorf("start transcription session: %w", err)
	}

	active := &activeSession{
		gen:          c.gen,
		session:      sess,
		consumerDone: make(chan struct{}),
		startedAt:    time.Now(),
	}
	c.current = active
	c.state.update(func(s *State) {
		*s = State{
			Listening:    true,
			Level:        audio.MinLevel,
			SessionState: transcriber.StateConnecting,
		}
	})
	c.metrics.SessionsStarted.Inc()
	go c.consume(active)

	c.logger.Info("listening started", "session_id", sess.ID(), "language", lang, "hints", len(sessCfg.VocabularyHints))
	return nil
}

// Stop ends capture, then the session. When it returns RecognizedText holds
// the final transcript. It is a no-op when nothing is running.
func (c *Controller) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.stopLocked()
}

func (c *Controller) Snapshot() State {
	return c.state.snapshot()
}

// Subscribe returns a channel carrying the latest State and a function that
// ends the subscription and closes the channel.
func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.state.subscribe()
}

func (c *Controller) stopLocked() {
	a := c.current
	if a == nil {
		return
	}
	c.current = nil

	c.engine.Stop()
	a.session.Stop()
	<-a.consumerDone

	duration := time.Since(a.startedAt)
	c.metrics.SessionDuration.Observe(duration.Seconds())
	c.state.update(func(s *State) {
		s.Listening = false
		s.Level = audio.MinLevel
		s.SessionState = a.session.State()
	})
	c.logger.Info("listening stopped", "session_id", a.session.ID(), "duration", duration)
}

// sinkFor runs on the audio callback path.
func (c *Controller) sinkFor(sess *transcriber.Session) audio.Sink {
	return func(capture audio.Capture) {
		c.state.update(func(s *State) { s.Level = capture.Level })
		sess.Send(capture.Frame)
	}
}

// consume is the only writer of RecognizedText for its generation.
func (c *Controller) consume(a *activeSession) {
	defer close(a.consumerDone)
	for ev := range a.session.Events() {
		switch ev.Kind {
		case transcriber.EventTranscript:
			c.state.update(func(s *State) { s.RecognizedText = ev.Text })
		case transcriber.EventError:
			c.logger.Debug("service error forwarded to controller", "session_id", a.session.ID(), "message", ev.Message)
		case transcriber.EventLifecycle:
			switch ev.Lifecycle {
			case transcriber.LifecycleConnected:
				c.state.update(func(s *State) { s.SessionState = transcriber.StateStreaming })
			case transcriber.LifecycleDisconnected:
				if ev.Err != nil {
					err := ev.Err
					c.state.update(func(s *State) {
						s.SessionState = transcriber.StateClosed
						s.LastError = err
					})
					go c.handleTransportLoss(a.gen, err)
				}
			}
		}
	}
}

// handleTransportLoss tears down capture after the session closed on its
// own. Stale generations are ignored.
func (c *Controller) handleTransportLoss(gen uint64, err error) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.current == nil || c.current.gen != gen {
		return
	}
	c.logger.Error("transcription session lost; stopping capture", "session_id", c.current.session.ID(), "error", err)
	c.stopLocked()
	c.state.update(func(s *State) { s.LastError = err })
}

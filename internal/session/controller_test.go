package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/bolo/internal/audio"
	"github.com/foxseedlab/bolo/internal/config"
	"github.com/foxseedlab/bolo/internal/metrics"
	"github.com/foxseedlab/bolo/internal/transcriber"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockEngine struct {
	mu        sync.Mutex
	startErr  error
	sink      audio.Sink
	format    audio.Format
	running   bool
	active    int
	maxActive int
	starts    int
	stops     int
}

func (e *mockEngine) Start(format audio.Format, sink audio.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	if e.running {
		e.active--
	}
	e.running = true
	e.active++
	if e.active > e.maxActive {
		e.maxActive = e.active
	}
	e.starts++
	e.sink = sink
	e.format = format
	return nil
}

func (e *mockEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	e.active--
	e.stops++
	e.sink = nil
}

func (e *mockEngine) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *mockEngine) fire(samples ...int16) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		return
	}
	block := audio.NewBlock(samples, 48000, time.Now())
	sink(audio.Capture{Block: block, Level: audio.Measure(block), Frame: audio.EncodeFrame(block)})
}

var errConnClosed = errors.New("use of closed connection")

type mockConn struct {
	dialer *mockDialer

	mu      sync.Mutex
	writes  [][]byte
	inbound chan []byte
	readErr chan error
	closed  chan struct{}
	once    sync.Once
}

func (c *mockConn) WriteText(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *mockConn) ReadMessage() ([]byte, error) {
	select {
	case m := <-c.inbound:
		return m, nil
	case err := <-c.readErr:
		return nil, err
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *mockConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.dialer.release()
	})
	return nil
}

func (c *mockConn) messages() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.writes))
	for _, w := range c.writes {
		var m map[string]any
		_ = json.Unmarshal(w, &m)
		out = append(out, m)
	}
	return out
}

func (c *mockConn) countFrames() int {
	n := 0
	for _, m := range c.messages() {
		if _, ok := m["frames"]; ok {
			n++
		}
	}
	return n
}

type mockDialer struct {
	mu      sync.Mutex
	err     error
	conns   []*mockConn
	live    int
	maxLive int
}

func (d *mockDialer) Dial(_ context.Context, _, _ string) (transcriber.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := &mockConn{
		dialer:  d,
		inbound: make(chan []byte, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
	}
	d.conns = append(d.conns, c)
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	return c, nil
}

func (d *mockDialer) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live--
}

func (d *mockDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *mockDialer) conn(i int) *mockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                   "development",
		TranscriptionAPIKey:   "key",
		TranscriptionEndpoint: "wss://example.test/stream",
		DefaultLanguage:       "english",
		AudioSampleRate:       48000,
		AudioBlockSize:        4,
		ModelType:             "accurate",
		AudioEnhancer:         true,
		EndpointingMS:         200,
		ConnectTimeoutSec:     1,
		WriteTimeoutSec:       1,
		FrameQueueSize:        16,
	}
}

type fixture struct {
	ctrl    *Controller
	engine  *mockEngine
	dialer  *mockDialer
	metrics *metrics.Metrics
}

func newFixture() *fixture {
	f := &fixture{
		engine:  &mockEngine{},
		dialer:  &mockDialer{},
		metrics: metrics.NewNop(),
	}
	f.ctrl = NewController(testConfig(), f.engine, f.dialer, nil, f.metrics)
	return f
}

func (f *fixture) startStreaming(t *testing.T, lang string) *mockConn {
	t.Helper()
	if err := f.ctrl.Start(context.Background(), lang); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		return f.ctrl.Snapshot().SessionState == transcriber.StateStreaming
	}, "session should reach streaming")
	return f.dialer.conn(f.dialer.dials() - 1)
}

func TestController_StartThenStopSendsConfigAndTerminateOnly(t *testing.T) {
	f := newFixture()
	if err := f.ctrl.Start(context.Background(), "english"); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	f.ctrl.Stop()

	msgs := f.dialer.conn(0).messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d: %v", len(msgs), msgs)
	}
	if msgs[0]["x_api_key"] != "key" || msgs[0]["language"] != "english" {
		t.Fatalf("expected config first, got %v", msgs[0])
	}
	if msgs[1]["event"] != "terminate" {
		t.Fatalf("expected terminate, got %v", msgs[1])
	}
	if f.engine.isRunning() {
		t.Fatal("expected capture to be stopped")
	}
	snap := f.ctrl.Snapshot()
	if snap.Listening || snap.SessionState != transcriber.StateClosed {
		t.Fatalf("unexpected state after stop: %+v", snap)
	}
}

func TestController_TranscriptUpdatesRecognizedText(t *testing.T) {
	f := newFixture()
	conn := f.startStreaming(t, "pa-IN")

	conn.inbound <- []byte(`{"event":"transcript","transcription":"ਸਤ ਸ੍ਰੀ ਅਕਾਲ"}`)
	waitUntil(t, time.Second, func() bool {
		return f.ctrl.Snapshot().RecognizedText == "ਸਤ ਸ੍ਰੀ ਅਕਾਲ"
	}, "recognized text should be updated")

	f.ctrl.Stop()
	if got := f.ctrl.Snapshot().RecognizedText; got != "ਸਤ ਸ੍ਰੀ ਅਕਾਲ" {
		t.Fatalf("expected final text to survive stop, got %q", got)
	}
}

func TestController_MalformedMessageLeavesStateUnchanged(t *testing.T) {
	f := newFixture()
	conn := f.startStreaming(t, "english")

	conn.inbound <- []byte(`{"event":"transcript","transcription":"before"}`)
	waitUntil(t, time.Second, func() bool { return f.ctrl.Snapshot().RecognizedText == "before" }, "first transcript should arrive")

	conn.inbound <- []byte("not json")
	waitUntil(t, time.Second, func() bool { return testutil.ToFloat64(f.metrics.ParseFailures) == 1 }, "malformed message should be counted")

	snap := f.ctrl.Snapshot()
	if snap.RecognizedText != "before" {
		t.Fatalf("expected text unchanged, got %q", snap.RecognizedText)
	}
	if !snap.Listening || snap.SessionState != transcriber.StateStreaming {
		t.Fatalf("expected to keep streaming, got %+v", snap)
	}
	f.ctrl.Stop()
}

func TestController_TransportLossStopsCapture(t *testing.T) {
	f := newFixture()
	conn := f.startStreaming(t, "english")

	conn.readErr <- errors.New("connection reset by peer")
	waitUntil(t, time.Second, func() bool { return !f.ctrl.Snapshot().Listening }, "listening should become false")
	waitUntil(t, time.Second, func() bool { return !f.engine.isRunning() }, "capture should be stopped")

	snap := f.ctrl.Snapshot()
	if snap.SessionState != transcriber.StateClosed {
		t.Fatalf("expected closed session, got %s", snap.SessionState)
	}
	var terr *transcriber.TransportError
	if !errors.As(snap.LastError, &terr) || terr.Op != transcriber.OpRead {
		t.Fatalf("expected read transport error, got %v", snap.LastError)
	}

	f.ctrl.Stop()
	for _, m := range conn.messages() {
		if m["event"] == "terminate" {
			t.Fatal("did not expect terminate on a lost transport")
		}
	}
}

func TestController_CapturesFlowToSocketAndLevel(t *testing.T) {
	f := newFixture()
	conn := f.startStreaming(t, "english")

	f.engine.fire(8000, -8000, 8000, -8000)
	f.engine.fire(1, 2, 3, 4)
	waitUntil(t, time.Second, func() bool { return conn.countFrames() == 2 }, "frames should reach the socket")

	if lvl := f.ctrl.Snapshot().Level; lvl < audio.MinLevel || lvl > audio.MaxLevel {
		t.Fatalf("level out of range: %v", lvl)
	}
	f.ctrl.Stop()

	f.engine.fire(1, 1, 1, 1)
	if conn.countFrames() != 2 {
		t.Fatal("expected no frames after stop")
	}
	if lvl := f.ctrl.Snapshot().Level; lvl != audio.MinLevel {
		t.Fatalf("expected level reset after stop, got %v", lvl)
	}
}

func TestController_RestartKeepsSingleEngineAndSocket(t *testing.T) {
	f := newFixture()
	first := f.startStreaming(t, "english")
	first.inbound <- []byte(`{"event":"transcript","transcription":"old"}`)
	waitUntil(t, time.Second, func() bool { return f.ctrl.Snapshot().RecognizedText == "old" }, "first transcript should arrive")

	f.startStreaming(t, "punjabi")

	if f.engine.starts != 2 || f.engine.stops != 1 {
		t.Fatalf("expected one stop-then-start cycle, got starts=%d stops=%d", f.engine.starts, f.engine.stops)
	}
	if f.engine.maxActive != 1 {
		t.Fatalf("expected at most one running engine, saw %d", f.engine.maxActive)
	}
	if f.dialer.maxLive != 1 {
		t.Fatalf("expected at most one live socket, saw %d", f.dialer.maxLive)
	}
	if v := testutil.ToFloat64(f.metrics.ActiveSockets); v != 1 {
		t.Fatalf("expected one active socket, got %v", v)
	}
	msgs := first.messages()
	if msgs[len(msgs)-1]["event"] != "terminate" {
		t.Fatal("expected first session to be terminated")
	}
	if got := f.ctrl.Snapshot().RecognizedText; got != "" {
		t.Fatalf("expected text reset on restart, got %q", got)
	}

	f.ctrl.Stop()
	if v := testutil.ToFloat64(f.metrics.ActiveSockets); v != 0 {
		t.Fatalf("expected no active sockets, got %v", v)
	}
	if v := testutil.ToFloat64(f.metrics.SessionsStarted); v != 2 {
		t.Fatalf("expected 2 sessions started, got %v", v)
	}
}

func TestController_ConcurrentStartStopSerialize(t *testing.T) {
	f := newFixture()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.ctrl.Start(context.Background(), "english")
		}()
		go func() {
			defer wg.Done()
			f.ctrl.Stop()
		}()
	}
	wg.Wait()
	f.ctrl.Stop()

	if f.engine.maxActive > 1 {
		t.Fatalf("expected at most one running engine, saw %d", f.engine.maxActive)
	}
	if f.dialer.maxLive > 1 {
		t.Fatalf("expected at most one live socket, saw %d", f.dialer.maxLive)
	}
	if v := testutil.ToFloat64(f.metrics.ActiveSockets); v != 0 {
		t.Fatalf("expected no active sockets, got %v", v)
	}
	if f.engine.isRunning() {
		t.Fatal("expected capture to be stopped")
	}
}

func TestController_AudioErrorIsStartError(t *testing.T) {
	f := newFixture()
	f.engine.startErr = audio.ErrPermissionDenied

	err := f.ctrl.Start(context.Background(), "english")
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected StartError, got %v", err)
	}
	if !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("expected wrapped permission error, got %v", err)
	}
	if f.dialer.dials() != 0 {
		t.Fatal("expected no socket to be opened")
	}
	if snap := f.ctrl.Snapshot(); snap.Listening || snap.LastError == nil {
		t.Fatalf("unexpected state: %+v", snap)
	}
	f.ctrl.Stop()
}

func TestController_UnknownLanguageKeepsActiveSession(t *testing.T) {
	f := newFixture()
	f.startStreaming(t, "english")

	if err := f.ctrl.Start(context.Background(), "klingon"); !errors.Is(err, ErrUnknownLanguage) {
		t.Fatalf("expected ErrUnknownLanguage, got %v", err)
	}
	if !f.ctrl.Snapshot().Listening || f.engine.stops != 0 {
		t.Fatal("expected active session to be untouched")
	}
	f.ctrl.Stop()
}

func TestController_StopWhenIdleIsNoop(t *testing.T) {
	f := newFixture()
	f.ctrl.Stop()
	f.ctrl.Stop()
	if f.engine.stops != 0 || f.dialer.dials() != 0 {
		t.Fatal("expected nothing to happen")
	}
	if f.ctrl.Snapshot().Listening {
		t.Fatal("expected not listening")
	}
}

func TestController_VocabularyHintsPerLanguage(t *testing.T) {
	f := newFixture()
	conn := f.startStreaming(t, "punjabi")
	f.ctrl.Stop()
	builtin, _ := conn.messages()[0]["transcription_hint"].(string)
	if builtin == "" {
		t.Fatal("expected built-in hints in punjabi config")
	}

	conn = f.startStreaming(t, "english")
	f.ctrl.Stop()
	if hint, _ := conn.messages()[0]["transcription_hint"].(string); hint != builtin {
		t.Fatalf("expected built-in hints in english config, got %q", hint)
	}

	f.ctrl.cfg.Vocabulary = transcriber.Vocabulary{transcriber.LanguageEnglish: {"Bolo", "transcribe"}}
	conn = f.startStreaming(t, "english")
	f.ctrl.Stop()
	if hint, _ := conn.messages()[0]["transcription_hint"].(string); hint != "Bolo,transcribe" {
		t.Fatalf("expected configured english hints, got %q", hint)
	}
}

func TestController_SubscribeReceivesLatestState(t *testing.T) {
	f := newFixture()
	ch, cancel := f.ctrl.Subscribe()

	initial := <-ch
	if initial.Listening || initial.Level != audio.MinLevel {
		t.Fatalf("unexpected initial state: %+v", initial)
	}

	f.startStreaming(t, "english")
	deadline := time.After(time.Second)
	for {
		select {
		case st := <-ch:
			if st.Listening && st.SessionState == transcriber.StateStreaming {
				f.ctrl.Stop()
				cancel()
				cancel()
				for range ch {
				}
				return
			}
		case <-deadline:
			t.Fatal("did not observe streaming state")
		}
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/kyousukehsm/TrivAI/audio"
	"github.com/kyousukehsm/TrivAI/gemini"
	"github.com/kyousukehsm/TrivAI/transcript"

	"google.golang.org/genai"
)

// ChannelEvents are the inbound callbacks a streaming channel delivers.
// Handlers run on the channel's receive goroutine and must not block.
type ChannelEvents struct {
	OnAudio          func(base64Data string)
	OnUserTranscript func(text string)
	OnHostTranscript func(text string)
	OnError          func(err error)
	OnClosed         func()
}

// Channel is a bidirectional streaming AI connection: outbound encoded audio
// chunks, inbound audio and transcription deltas, with open/error/close
// lifecycle events.
type Channel interface {
	Open(ctx context.Context, systemPrompt string, events ChannelEvents) error
	Send(chunk audio.Chunk) error
	Close() error
}

// CaptureSource produces encoded capture frames. Start may fail with
// audio.ErrPermissionDenied or audio.ErrNoDevice; Stop is idempotent and no
// frame is emitted after it returns.
type CaptureSource interface {
	Start(onChunk func(audio.Chunk)) error
	Stop()
}

// Callbacks are the events the core exposes to the game/UI layer.
type Callbacks struct {
	OnConnectionState func(state State, err error)
	OnSpeaking        func(speaking bool)
	OnTranscript      func(turns []transcript.Turn)
}

// LiveSession is one streaming connection attempt: it owns the channel, the
// capture source, the playback scheduler and the transcript reconciler, and
// is the only component that creates or destroys those resources.
type LiveSession struct {
	channel Channel
	capture CaptureSource
	sched   *audio.Scheduler
	recon   *transcript.Reconciler
	cb      Callbacks

	mu        sync.Mutex
	state     State
	connected bool

	releaseOnce sync.Once
}

// NewLiveSession wires the four owned resources together. sched must be
// non-nil; use a nil-sink scheduler for the degraded silent mode.
func NewLiveSession(channel Channel, capture CaptureSource, sched *audio.Scheduler, cb Callbacks) *LiveSession {
	s := &LiveSession{
		channel: channel,
		capture: capture,
		sched:   sched,
		recon:   transcript.NewReconciler(),
		cb:      cb,
		state:   StateIdle,
	}
	s.recon.OnUpdate = cb.OnTranscript
	sched.OnSpeaking = cb.OnSpeaking
	return s
}

// Connect opens the channel and, once it reports open, starts capture.
// Valid only from Idle. Capture cannot send before the channel is open:
// Start is called strictly after Open returns, and every frame re-checks
// connected state.
func (s *LiveSession) Connect(ctx context.Context, systemPrompt string) error {
	if err := s.transition(EventConnect); err != nil {
		return err
	}
	s.notifyState(StateConnecting, nil)

	events := ChannelEvents{
		OnAudio: s.handleAudio,
		OnUserTranscript: func(text string) {
			s.recon.Append(transcript.RoleUser, text)
		},
		OnHostTranscript: func(text string) {
			s.recon.Append(transcript.RoleHost, text)
		},
		OnError:  s.handleChannelError,
		OnClosed: s.handleChannelClosed,
	}

	if err := s.channel.Open(ctx, systemPrompt, events); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Disconnect raced the connect; the in-flight attempt settles closed.
		s.mu.Unlock()
		s.release()
		return errors.New("session closed during connect")
	}
	s.state = StateOpen
	s.connected = true
	s.mu.Unlock()
	s.notifyState(StateOpen, nil)

	// Disconnect may still race this window. Re-check under the lock on
	// both sides of the capture start; a start that lost the race is
	// released through Stop so the microphone never outlives the teardown.
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return errors.New("session closed during connect")
	}
	s.mu.Unlock()

	if err := s.capture.Start(s.sendFrame); err != nil {
		s.fail(fmt.Errorf("start capture: %w", err))
		return err
	}

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		s.capture.Stop()
		return errors.New("session closed during connect")
	}
	s.mu.Unlock()
	return nil
}

// Disconnect tears the session down from any state. It marks the handle
// not-connected first, so in-flight capture frames are dropped rather than
// queued, then releases every resource best-effort. Idempotent.
func (s *LiveSession) Disconnect() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state, _ = Transition(s.state, EventDisconnect)
	s.connected = false
	s.mu.Unlock()

	s.release()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.notifyState(StateClosed, nil)
}

// sendFrame forwards one capture frame while the handle is connected. Frames
// produced outside the Open window are discarded, never queued, and a send
// failure during teardown is expected and harmless.
func (s *LiveSession) sendFrame(chunk audio.Chunk) {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return
	}
	if err := s.channel.Send(chunk); err != nil {
		log.Printf("⚠️ dropped capture frame: %v", err)
	}
}

// handleAudio decodes one inbound audio payload and schedules it. A
// malformed chunk is dropped and logged; the session continues.
func (s *LiveSession) handleAudio(base64Data string) {
	frame, err := audio.DecodeFrame(base64Data, audio.PlaybackRate)
	if err != nil {
		log.Printf("⚠️ dropped malformed audio chunk: %v", err)
		return
	}
	s.sched.Schedule(frame)
}

// handleChannelError surfaces a connection-level failure and tears down.
// Errors arriving after teardown began are ignored.
func (s *LiveSession) handleChannelError(err error) {
	s.mu.Lock()
	open := s.state == StateOpen || s.state == StateConnecting
	s.mu.Unlock()
	if !open {
		return
	}
	s.fail(err)
}

// handleChannelClosed handles a remote close. Self-initiated closes arrive
// here too, after Disconnect has already moved the state machine on.
func (s *LiveSession) handleChannelClosed() {
	s.mu.Lock()
	if s.state.Terminal() || s.state == StateClosing {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.connected = false
	s.mu.Unlock()

	s.release()
	s.notifyState(StateClosed, nil)
}

// fail moves the machine to Error, surfaces the cause, and releases
// resources. No automatic retry: the caller must request a new connection.
func (s *LiveSession) fail(cause error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state, _ = Transition(s.state, EventFail)
	s.connected = false
	s.mu.Unlock()

	s.notifyState(StateError, cause)
	s.release()
}

// release frees the capture device, the channel and the output clock exactly
// once. Each release is attempted independently; a failure is logged and
// never prevents the others.
func (s *LiveSession) release() {
	s.releaseOnce.Do(func() {
		if s.capture != nil {
			s.capture.Stop()
		}
		if err := s.channel.Close(); err != nil {
			log.Printf("⚠️ channel close: %v", err)
		}
		if err := s.sched.Close(); err != nil {
			log.Printf("⚠️ playback close: %v", err)
		}
	})
}

func (s *LiveSession) transition(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *LiveSession) notifyState(state State, err error) {
	if s.cb.OnConnectionState != nil {
		s.cb.OnConnectionState(state, err)
	}
}

// State returns the current lifecycle state.
func (s *LiveSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether sends are currently admitted.
func (s *LiveSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Transcript returns the ordered conversation turns.
func (s *LiveSession) Transcript() []transcript.Turn {
	return s.recon.Turns()
}

// Scheduler exposes the playback scheduler, whose output tap feeds the
// energy visualizer.
func (s *LiveSession) Scheduler() *audio.Scheduler {
	return s.sched
}

// GeminiChannel adapts gemini.Proxy to the Channel interface.
type GeminiChannel struct {
	Proxy *gemini.Proxy
	Tools []*genai.Tool
}

func (c *GeminiChannel) Open(ctx context.Context, systemPrompt string, events ChannelEvents) error {
	c.Proxy.OnAudioRaw = events.OnAudio
	c.Proxy.OnUserTranscript = events.OnUserTranscript
	c.Proxy.OnHostTranscript = events.OnHostTranscript
	c.Proxy.OnError = events.OnError
	c.Proxy.OnClosed = events.OnClosed
	return c.Proxy.Open(ctx, systemPrompt, c.Tools)
}

func (c *GeminiChannel) Send(chunk audio.Chunk) error {
	raw, err := chunk.Bytes()
	if err != nil {
		return err
	}
	return c.Proxy.Send(raw)
}

func (c *GeminiChannel) Close() error {
	return c.Proxy.Close()
}

// MicSource adapts the PulseAudio capture pipeline to CaptureSource.
type MicSource struct {
	// DeviceHint selects the input source; empty means the default.
	DeviceHint string

	mu  sync.Mutex
	cap *audio.Capture
}

func (m *MicSource) Start(onChunk func(audio.Chunk)) error {
	cap, err := audio.StartCapture(m.DeviceHint, onChunk)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cap = cap
	m.mu.Unlock()
	return nil
}

func (m *MicSource) Stop() {
	m.mu.Lock()
	cap := m.cap
	m.cap = nil
	m.mu.Unlock()
	if cap != nil {
		cap.Stop()
	}
}

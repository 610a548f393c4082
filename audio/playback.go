package audio

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrNoDevice is returned when an output or input audio device cannot be
// opened. Callers treat playback as silently unavailable and continue.
var ErrNoDevice = errors.New("audio device unavailable")

// Clock is a monotonic output timeline, in seconds. The zero point is the
// moment the clock was created.
type Clock interface {
	Now() float64
}

type realClock struct {
	start time.Time
}

// NewClock returns a monotonic wall clock starting at zero.
func NewClock() Clock {
	return &realClock{start: time.Now()}
}

func (c *realClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// Sink consumes raw 16-bit little-endian PCM at the playback rate.
type Sink interface {
	Write(pcm []byte) error
	Close() error
}

type scheduledFrame struct {
	startAt float64
	raw     []byte
	samples []float32
}

const scheduleQueueSize = 64

// Scheduler converts decoded frames into a gapless, monotonically scheduled
// playback sequence on one output clock. Frames scheduled in arrival order
// never overlap; if the consumer stalls, the cursor snaps forward to the
// clock instead of building a backlog.
//
// A Scheduler with a nil sink keeps full cursor/speaking/tap bookkeeping and
// simply discards samples; this is the degraded silent mode used when no
// output device exists.
type Scheduler struct {
	// OnSpeaking is invoked with true when a scheduled frame begins playing
	// and false once the last scheduled frame has ended. Set before the
	// first Schedule call.
	OnSpeaking func(speaking bool)

	clock Clock
	sink  Sink
	tap   *tapRing

	queue chan scheduledFrame
	done  chan struct{}

	mu       sync.Mutex
	cursor   float64
	pending  int
	speaking bool
	endTimer *time.Timer
	closed   bool
}

// NewScheduler creates a scheduler on the given clock. sink may be nil.
func NewScheduler(clock Clock, sink Sink) *Scheduler {
	s := &Scheduler{
		clock: clock,
		sink:  sink,
		tap:   newTapRing(tapCapacity),
		queue: make(chan scheduledFrame, scheduleQueueSize),
		done:  make(chan struct{}),
	}
	s.cursor = clock.Now()
	go s.writePump()
	return s
}

// Schedule places a frame on the output timeline and returns its start time.
// The start is never earlier than the clock and never earlier than the end
// of the previously scheduled frame.
func (s *Scheduler) Schedule(f *Frame) float64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.cursor
	}
	now := s.clock.Now()
	start := s.cursor
	if start < now {
		// Consumer stalled; snap forward rather than scheduling into the past.
		start = now
	}
	s.cursor = start + f.Duration()
	s.pending++
	s.mu.Unlock()

	sf := scheduledFrame{
		startAt: start,
		raw:     SamplesToBytes(f.Samples),
		samples: f.Samples,
	}
	select {
	case s.queue <- sf:
	case <-s.done:
	}
	return start
}

// Cursor returns the next free time on the output timeline.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Speaking reports whether scheduled audio is currently playing.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Levels returns the most recent n output sample amplitudes for the
// visualizer tap.
func (s *Scheduler) Levels(n int) []float32 {
	return s.tap.levels(n)
}

// writePump delivers frames to the sink in schedule order, sleeping until
// each frame's start time. A single goroutine guarantees arrival order is
// preserved end to end.
func (s *Scheduler) writePump() {
	for {
		select {
		case <-s.done:
			return
		case sf := <-s.queue:
			if wait := sf.startAt - s.clock.Now(); wait > 0 {
				select {
				case <-s.done:
					return
				case <-time.After(time.Duration(wait * float64(time.Second))):
				}
			}
			s.deliver(sf)
		}
	}
}

func (s *Scheduler) deliver(sf scheduledFrame) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending--
	s.tap.push(sf.samples)
	notify := s.setSpeakingLocked(true)
	s.armEndTimerLocked()
	sink := s.sink
	s.mu.Unlock()

	if notify != nil {
		notify(true)
	}
	if sink != nil {
		if err := sink.Write(sf.raw); err != nil {
			log.Printf("🔇 playback sink write failed: %v", err)
		}
	}
}

// armEndTimerLocked resets the speaking-off timer to fire when the cursor is
// reached. Every newly delivered frame pushes the deadline out.
func (s *Scheduler) armEndTimerLocked() {
	if s.endTimer != nil {
		s.endTimer.Stop()
	}
	remaining := s.cursor - s.clock.Now()
	if remaining < 0 {
		remaining = 0
	}
	s.endTimer = time.AfterFunc(time.Duration(remaining*float64(time.Second)), s.onPlaybackEnd)
}

func (s *Scheduler) onPlaybackEnd() {
	s.mu.Lock()
	if s.closed || s.pending > 0 || s.clock.Now() < s.cursor {
		s.mu.Unlock()
		return
	}
	notify := s.setSpeakingLocked(false)
	s.mu.Unlock()
	if notify != nil {
		notify(false)
	}
}

// setSpeakingLocked flips the speaking flag and returns the callback to run
// after the lock is released, or nil when nothing changed.
func (s *Scheduler) setSpeakingLocked(speaking bool) func(bool) {
	if s.speaking == speaking {
		return nil
	}
	s.speaking = speaking
	return s.OnSpeaking
}

// Close stops the write pump and releases the sink. Safe to call more than
// once.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.endTimer != nil {
		s.endTimer.Stop()
	}
	s.speaking = false
	sink := s.sink
	s.sink = nil
	s.mu.Unlock()

	close(s.done)

	if sink != nil {
		return sink.Close()
	}
	return nil
}

const tapCapacity = 2048

// tapRing keeps the most recent output samples for the visualizer. Purely
// observational; overwrites oldest data.
type tapRing struct {
	mu   sync.Mutex
	buf  []float32
	next int
	full bool
}

func newTapRing(capacity int) *tapRing {
	return &tapRing{buf: make([]float32, capacity)}
}

func (t *tapRing) push(samples []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range samples {
		t.buf[t.next] = v
		t.next++
		if t.next == len(t.buf) {
			t.next = 0
			t.full = true
		}
	}
}

// levels returns the newest n samples, oldest first. Returns fewer when less
// audio has been written.
func (t *tapRing) levels(n int) []float32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	have := t.next
	if t.full {
		have = len(t.buf)
	}
	if n > have {
		n = have
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		idx := t.next - n + i
		if idx < 0 {
			idx += len(t.buf)
		}
		out[i] = t.buf[idx]
	}
	return out
}

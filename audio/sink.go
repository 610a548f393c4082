package audio

import (
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// PulseSink plays raw 24 kHz mono PCM through the default PulseAudio output.
// The Pulse client pulls from an internal queue on its own realtime
// goroutine; when the queue is empty the sink feeds silence, so scheduling
// gaps never stall the stream.
type PulseSink struct {
	client *pulse.Client
	stream *pulse.PlaybackStream
	queue  *pcmQueue

	mu     sync.Mutex
	closed bool
}

// NewPulseSink opens the default output device at the playback rate. Fails
// with ErrNoDevice when no Pulse server or sink is reachable.
func NewPulseSink() (*PulseSink, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("trivai"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return nil, classifyDeviceErr(err)
	}

	queue := &pcmQueue{}
	stream, err := client.NewPlayback(
		pulse.NewReader(queue, pulseproto.FormatInt16LE),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(PlaybackRate),
		pulse.PlaybackMediaName("trivai host voice"),
	)
	if err != nil {
		client.Close()
		return nil, classifyDeviceErr(err)
	}

	s := &PulseSink{client: client, stream: stream, queue: queue}
	stream.Start()
	return s, nil
}

// Write queues raw PCM bytes for playback.
func (s *PulseSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.queue.push(pcm)
	return nil
}

// Close stops the stream and releases the output device. Idempotent.
func (s *PulseSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// pcmQueue is the pull boundary between the scheduler (push) and the Pulse
// realtime reader (pull). Reads never block: missing data is zero-filled.
type pcmQueue struct {
	mu  sync.Mutex
	buf []byte
}

func (q *pcmQueue) push(pcm []byte) {
	q.mu.Lock()
	q.buf = append(q.buf, pcm...)
	q.mu.Unlock()
}

func (q *pcmQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	n := copy(p, q.buf)
	rest := copy(q.buf, q.buf[n:])
	q.buf = q.buf[:rest]
	q.mu.Unlock()

	// Zero-fill the remainder: silence instead of underrun.
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

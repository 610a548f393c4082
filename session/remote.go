package session

import (
	"sync"

	"github.com/kyousukehsm/TrivAI/audio"
)

// RemoteCapture is a CaptureSource fed by a websocket client instead of a
// local microphone: the browser captures audio and streams raw 16 kHz PCM
// binary frames, and this source re-imposes the fixed-frame discipline on
// the server side.
//
// Push runs on the connection's read goroutine and never blocks on the
// channel send: bytes land in a bounded AudioBuffer and a single drain
// goroutine assembles and forwards frames in arrival order.
type RemoteCapture struct {
	buf *AudioBuffer
	asm *audio.FrameAssembler

	notify chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	started  bool
	onChunk  func(audio.Chunk)
	stopOnce sync.Once
}

// NewRemoteCapture creates a source with the given buffer cap in bytes.
func NewRemoteCapture(maxBufferSize int) *RemoteCapture {
	return &RemoteCapture{
		buf:    NewAudioBuffer(maxBufferSize),
		asm:    audio.NewFrameAssembler(audio.CaptureRate, audio.FrameSamples),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start begins draining pushed audio into onChunk.
func (rc *RemoteCapture) Start(onChunk func(audio.Chunk)) error {
	rc.mu.Lock()
	rc.started = true
	rc.onChunk = onChunk
	rc.mu.Unlock()

	go rc.drain()
	return nil
}

// Stop halts the drain. Audio pushed after Stop is discarded.
func (rc *RemoteCapture) Stop() {
	rc.mu.Lock()
	rc.started = false
	rc.mu.Unlock()

	rc.stopOnce.Do(func() {
		close(rc.done)
	})
	rc.buf.Clear()
}

// Push accepts raw PCM bytes from the transport. Before Start (or after
// Stop) audio is discarded, not queued, so no frame exists outside the open
// window. Returns ErrBufferFull when the client outruns the drain.
func (rc *RemoteCapture) Push(raw []byte) error {
	rc.mu.Lock()
	started := rc.started
	rc.mu.Unlock()
	if !started {
		return nil
	}

	chunk := make([]byte, len(raw))
	copy(chunk, raw)
	if err := rc.buf.Append(chunk); err != nil {
		return err
	}
	select {
	case rc.notify <- struct{}{}:
	default:
	}
	return nil
}

func (rc *RemoteCapture) drain() {
	for {
		select {
		case <-rc.done:
			return
		case <-rc.notify:
		}

		data := rc.buf.Flush()
		if len(data) == 0 {
			continue
		}

		rc.mu.Lock()
		chunks, err := rc.asm.Push(data)
		onChunk := rc.onChunk
		rc.mu.Unlock()
		if err != nil {
			// Odd trailing byte from the client; drop this buffer, keep going.
			continue
		}
		for _, c := range chunks {
			select {
			case <-rc.done:
				return
			default:
			}
			onChunk(c)
		}
	}
}

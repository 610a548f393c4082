package session

import (
	"sync"
	"testing"
	"time"

	"github.com/kyousukehsm/TrivAI/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chunkCollector struct {
	mu     sync.Mutex
	chunks []audio.Chunk
}

func (c *chunkCollector) add(chunk audio.Chunk) {
	c.mu.Lock()
	c.chunks = append(c.chunks, chunk)
	c.mu.Unlock()
}

func (c *chunkCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

func (c *chunkCollector) all() []audio.Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audio.Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

func frameBytes(frames int, value int16) []byte {
	raw := make([]byte, frames*audio.FrameSamples*2)
	for i := 0; i < len(raw); i += 2 {
		raw[i] = byte(value)
		raw[i+1] = byte(value >> 8)
	}
	return raw
}

func TestRemoteCaptureEmitsFrames(t *testing.T) {
	rc := NewRemoteCapture(1 << 20)
	col := &chunkCollector{}
	require.NoError(t, rc.Start(col.add))
	defer rc.Stop()

	require.NoError(t, rc.Push(frameBytes(2, 42)))

	require.Eventually(t, func() bool { return col.count() == 2 }, time.Second, 5*time.Millisecond)

	for _, c := range col.all() {
		assert.Equal(t, "audio/pcm;rate=16000", c.MimeType)
		frame, err := audio.DecodeFrame(c.Data, audio.CaptureRate)
		require.NoError(t, err)
		assert.Len(t, frame.Samples, audio.FrameSamples)
	}
}

func TestRemoteCaptureReassemblesSplitFrames(t *testing.T) {
	rc := NewRemoteCapture(1 << 20)
	col := &chunkCollector{}
	require.NoError(t, rc.Start(col.add))
	defer rc.Stop()

	whole := frameBytes(1, 7)
	require.NoError(t, rc.Push(whole[:1000]))
	require.NoError(t, rc.Push(whole[1000:]))

	require.Eventually(t, func() bool { return col.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRemoteCaptureDiscardsBeforeStart(t *testing.T) {
	rc := NewRemoteCapture(1 << 20)

	// Audio pushed outside the open window is dropped, not queued.
	require.NoError(t, rc.Push(frameBytes(1, 1)))

	col := &chunkCollector{}
	require.NoError(t, rc.Start(col.add))
	defer rc.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, col.count())
}

func TestRemoteCaptureDiscardsAfterStop(t *testing.T) {
	rc := NewRemoteCapture(1 << 20)
	col := &chunkCollector{}
	require.NoError(t, rc.Start(col.add))

	rc.Stop()
	rc.Stop() // idempotent

	require.NoError(t, rc.Push(frameBytes(1, 1)))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, col.count())
}

func TestRemoteCaptureBufferFull(t *testing.T) {
	frame := audio.FrameSamples * 2
	rc := NewRemoteCapture(frame * 2)

	release := make(chan struct{})
	require.NoError(t, rc.Start(func(audio.Chunk) { <-release }))
	defer func() {
		close(release)
		rc.Stop()
	}()

	// The first frame drains and parks the consumer on release.
	require.NoError(t, rc.Push(frameBytes(1, 1)))
	require.Eventually(t, func() bool { return rc.buf.Size() == 0 }, time.Second, time.Millisecond)

	// With the consumer parked the bounded buffer fills, then overflows.
	require.NoError(t, rc.Push(frameBytes(1, 1)))
	require.NoError(t, rc.Push(frameBytes(1, 1)))
	require.ErrorIs(t, rc.Push(frameBytes(1, 1)), ErrBufferFull)
}

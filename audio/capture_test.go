package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmBytes(samples int, value int16) []byte {
	raw := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		raw[i*2] = byte(value)
		raw[i*2+1] = byte(value >> 8)
	}
	return raw
}

func TestAssemblerBuffersPartialFrame(t *testing.T) {
	a := NewFrameAssembler(CaptureRate, FrameSamples)

	chunks, err := a.Push(pcmBytes(1000, 42))
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, 1000, a.Pending())
}

func TestAssemblerEmitsFullFrames(t *testing.T) {
	a := NewFrameAssembler(CaptureRate, FrameSamples)

	// Two full frames plus a 100-sample remainder.
	chunks, err := a.Push(pcmBytes(FrameSamples*2+100, 42))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 100, a.Pending())

	for _, c := range chunks {
		assert.Equal(t, "audio/pcm;rate=16000", c.MimeType)
		frame, err := DecodeFrame(c.Data, CaptureRate)
		require.NoError(t, err)
		assert.Len(t, frame.Samples, FrameSamples)
	}
}

func TestAssemblerAccumulatesAcrossPushes(t *testing.T) {
	a := NewFrameAssembler(CaptureRate, FrameSamples)

	chunks, err := a.Push(pcmBytes(FrameSamples-1, 1))
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = a.Push(pcmBytes(1, 1))
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
	assert.Zero(t, a.Pending())
}

func TestAssemblerOddPayload(t *testing.T) {
	a := NewFrameAssembler(CaptureRate, FrameSamples)
	a.Push(pcmBytes(10, 1))

	_, err := a.Push([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrOddPayload)

	// The failed push consumed nothing.
	assert.Equal(t, 10, a.Pending())
}

func TestAssemblerPreservesSampleOrder(t *testing.T) {
	a := NewFrameAssembler(CaptureRate, 4)

	raw := make([]byte, 0, 16)
	for _, v := range []int16{100, 200, 300, 400, 500, 600, 700, 800} {
		raw = append(raw, byte(v), byte(v>>8))
	}

	chunks, err := a.Push(raw)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	first, err := chunks[0].Bytes()
	require.NoError(t, err)
	second, err := chunks[1].Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw[:8], first)
	assert.Equal(t, raw[8:], second)
}

func TestAssemblerReset(t *testing.T) {
	a := NewFrameAssembler(CaptureRate, FrameSamples)
	a.Push(pcmBytes(500, 1))
	a.Reset()
	assert.Zero(t, a.Pending())
}

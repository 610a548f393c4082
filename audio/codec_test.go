package audio

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -1, 1, 0.123, -0.987}

	chunk := EncodeFrame(samples, CaptureRate)
	assert.Equal(t, "audio/pcm;rate=16000", chunk.MimeType)

	frame, err := DecodeFrame(chunk.Data, CaptureRate)
	require.NoError(t, err)
	require.Len(t, frame.Samples, len(samples))

	// Quantization to 16 bits loses at most one step.
	for i, want := range samples {
		assert.InDelta(t, want, frame.Samples[i], 1.0/32768, "sample %d", i)
	}
}

func TestSamplesToBytesClampsOutOfRange(t *testing.T) {
	raw := SamplesToBytes([]float32{2.0, -3.0})
	samples, err := BytesToSamples(raw)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, samples[0], 1.0/32768)
	assert.Equal(t, float32(-1), samples[1])
}

func TestFullScaleQuantization(t *testing.T) {
	// +1 maps to 32767, -1 to -32768: asymmetric scaling avoids overflow.
	raw := SamplesToBytes([]float32{1, -1})
	require.Len(t, raw, 4)
	assert.Equal(t, []byte{0xFF, 0x7F}, raw[0:2])
	assert.Equal(t, []byte{0x00, 0x80}, raw[2:4])
}

func TestDecodeFrameOddPayload(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	_, err := DecodeFrame(data, PlaybackRate)
	require.ErrorIs(t, err, ErrOddPayload)
}

func TestDecodeFrameBadBase64(t *testing.T) {
	_, err := DecodeFrame("not!!base64", PlaybackRate)
	require.Error(t, err)
}

func TestFrameDuration(t *testing.T) {
	f := &Frame{SampleRate: CaptureRate, Samples: make([]float32, FrameSamples)}
	assert.InDelta(t, 0.256, f.Duration(), 1e-9)

	empty := &Frame{SampleRate: 0}
	assert.Zero(t, empty.Duration())
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "audio/pcm;rate=24000", MimeType(PlaybackRate))
}

func TestChunkBytes(t *testing.T) {
	chunk := EncodeBytes([]byte{1, 0, 2, 0}, PlaybackRate)
	raw, err := chunk.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0}, raw)
}

func TestSilenceRoundTrip(t *testing.T) {
	silence := make([]float32, 64)
	chunk := EncodeFrame(silence, PlaybackRate)
	frame, err := DecodeFrame(chunk.Data, PlaybackRate)
	require.NoError(t, err)
	for _, s := range frame.Samples {
		assert.Zero(t, math.Abs(float64(s)))
	}
}

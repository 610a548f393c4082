// Package audio implements the realtime PCM pipeline: base64 codec,
// microphone capture, gapless playback scheduling, and the output
// energy visualizer.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// CaptureRate is the outbound (microphone → Gemini) sample rate in Hz.
	CaptureRate = 16000
	// PlaybackRate is the inbound (Gemini/TTS → speaker) sample rate in Hz.
	PlaybackRate = 24000

	// FrameSamples is the fixed capture frame size in samples.
	FrameSamples = 4096

	bytesPerSample = 2
)

// ErrOddPayload is returned when a decoded audio payload has a trailing odd
// byte and cannot be reinterpreted as 16-bit samples.
var ErrOddPayload = errors.New("audio payload is not a multiple of 2 bytes")

// Frame is one quantum of linear PCM audio, mono, normalized to [-1, 1].
type Frame struct {
	SampleRate int
	Samples    []float32
}

// Duration returns the frame length in seconds.
func (f *Frame) Duration() float64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return float64(len(f.Samples)) / float64(f.SampleRate)
}

// Chunk is a wire-format audio payload: base64 16-bit little-endian PCM
// plus the mime type declaring the sample rate.
type Chunk struct {
	Data     string
	MimeType string
}

// MimeType returns the raw-PCM mime string for a sample rate, matching the
// format Gemini Live expects ("audio/pcm;rate=16000").
func MimeType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// DecodeFrame decodes a base64 16-bit little-endian PCM payload into a
// normalized Frame. Fails with ErrOddPayload on a truncated sample.
func DecodeFrame(data string, sampleRate int) (*Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	samples, err := BytesToSamples(raw)
	if err != nil {
		return nil, err
	}
	return &Frame{SampleRate: sampleRate, Samples: samples}, nil
}

// BytesToSamples reinterprets raw little-endian 16-bit PCM bytes as
// normalized float samples.
func BytesToSamples(raw []byte) ([]float32, error) {
	if len(raw)%bytesPerSample != 0 {
		return nil, ErrOddPayload
	}
	samples := make([]float32, len(raw)/bytesPerSample)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768
	}
	return samples, nil
}

// EncodeFrame clamps, quantizes and base64-encodes float samples as 16-bit
// little-endian PCM at the given rate.
func EncodeFrame(samples []float32, sampleRate int) Chunk {
	raw := SamplesToBytes(samples)
	return Chunk{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: MimeType(sampleRate),
	}
}

// SamplesToBytes quantizes normalized float samples to raw little-endian
// 16-bit PCM. Positive values scale by 32767, negative by 32768, so the
// full [-1, 1] range maps onto the int16 domain without overflow.
func SamplesToBytes(samples []float32) []byte {
	raw := make([]byte, len(samples)*bytesPerSample)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		var s int16
		if v >= 0 {
			s = int16(v * 32767)
		} else {
			s = int16(v * 32768)
		}
		binary.LittleEndian.PutUint16(raw[i*2:i*2+2], uint16(s))
	}
	return raw
}

// EncodeBytes wraps raw PCM bytes that are already in wire sample format.
// Used on paths that never leave the 16-bit domain.
func EncodeBytes(raw []byte, sampleRate int) Chunk {
	return Chunk{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: MimeType(sampleRate),
	}
}

// Bytes decodes the chunk payload back to raw PCM bytes.
func (c Chunk) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	return raw, nil
}

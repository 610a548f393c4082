package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// ErrPermissionDenied is returned when the OS or user refuses microphone
// access. Capture is abandoned, not retried.
var ErrPermissionDenied = errors.New("microphone access denied")

// FrameAssembler accumulates raw 16-bit little-endian PCM bytes and emits
// fixed-size encoded frames. The internal buffer is reused between frames so
// steady-state operation allocates only the emitted chunks.
type FrameAssembler struct {
	sampleRate   int
	frameSamples int
	pending      []float32
}

// NewFrameAssembler creates an assembler emitting frameSamples-sample chunks
// at the given rate.
func NewFrameAssembler(sampleRate, frameSamples int) *FrameAssembler {
	return &FrameAssembler{
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
		pending:      make([]float32, 0, frameSamples*2),
	}
}

// Push appends raw PCM bytes and returns every full frame now available,
// encoded for the wire, in order. A trailing odd byte fails with
// ErrOddPayload and consumes nothing.
func (a *FrameAssembler) Push(raw []byte) ([]Chunk, error) {
	if len(raw)%bytesPerSample != 0 {
		return nil, ErrOddPayload
	}
	for i := 0; i+1 < len(raw); i += 2 {
		s := int16(binary.LittleEndian.Uint16(raw[i : i+2]))
		a.pending = append(a.pending, float32(s)/32768)
	}

	var chunks []Chunk
	for len(a.pending) >= a.frameSamples {
		chunks = append(chunks, EncodeFrame(a.pending[:a.frameSamples], a.sampleRate))
		n := copy(a.pending, a.pending[a.frameSamples:])
		a.pending = a.pending[:n]
	}
	return chunks, nil
}

// Pending returns the number of samples waiting for a full frame.
func (a *FrameAssembler) Pending() int {
	return len(a.pending)
}

// Reset discards buffered samples.
func (a *FrameAssembler) Reset() {
	a.pending = a.pending[:0]
}

// Capture owns one exclusive PulseAudio record stream (16 kHz mono s16le)
// and hands fixed-size encoded frames to a transport callback. The callback
// runs on the capture goroutine and must not block.
type Capture struct {
	client *pulse.Client
	stream *pulse.RecordStream

	mu        sync.Mutex
	assembler *FrameAssembler
	onChunk   func(Chunk)
	stopped   bool
}

// StartCapture connects to the Pulse server, resolves the input source
// (empty deviceHint selects the default source) and starts streaming frames
// into onChunk.
func StartCapture(deviceHint string, onChunk func(Chunk)) (*Capture, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("trivai"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, classifyDeviceErr(err)
	}

	source, err := resolveSource(client, deviceHint)
	if err != nil {
		client.Close()
		return nil, err
	}

	c := &Capture{
		client:    client,
		assembler: NewFrameAssembler(CaptureRate, FrameSamples),
		onChunk:   onChunk,
	}

	writer := pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(CaptureRate),
		pulse.RecordBufferFragmentSize(FrameSamples*bytesPerSample),
		pulse.RecordMediaName("trivai live chat"),
	)
	if err != nil {
		client.Close()
		return nil, classifyDeviceErr(err)
	}

	c.stream = stream
	stream.Start()
	return c, nil
}

func resolveSource(client *pulse.Client, hint string) (*pulse.Source, error) {
	if strings.TrimSpace(hint) == "" {
		source, err := client.DefaultSource()
		if err != nil {
			return nil, classifyDeviceErr(err)
		}
		return source, nil
	}
	source, err := client.SourceByID(hint)
	if err != nil {
		return nil, fmt.Errorf("resolve capture source %q: %w", hint, err)
	}
	return source, nil
}

// onPCM receives raw Pulse buffers on the record goroutine, slices them into
// fixed frames, and forwards each encoded frame. Returns io.EOF once stopped
// so Pulse tears the stream down.
func (c *Capture) onPCM(buf []byte) (int, error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	chunks, err := c.assembler.Push(buf)
	onChunk := c.onChunk
	c.mu.Unlock()

	if err != nil {
		// A partial sample from the device; drop the buffer, keep the stream.
		return len(buf), nil
	}
	for _, chunk := range chunks {
		onChunk(chunk)
	}
	return len(buf), nil
}

// Stop halts capture and releases the microphone. Frames already handed to
// the transport are not recalled; no new frames are emitted after Stop
// returns. Safe to call more than once.
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.assembler.Reset()
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
}

// classifyDeviceErr maps Pulse connection failures onto the device error
// taxonomy: authorization failures become ErrPermissionDenied, everything
// else ErrNoDevice.
func classifyDeviceErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "denied") || strings.Contains(msg, "authoriz") || strings.Contains(msg, "authentication") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrNoDevice, err)
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

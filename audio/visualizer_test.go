package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTap struct {
	samples []float32
}

func (f *fixedTap) Levels(n int) []float32 {
	if n > len(f.samples) {
		n = len(f.samples)
	}
	return f.samples[:n]
}

func TestVisualizerFlatWhenInactive(t *testing.T) {
	v := NewVisualizer(16, nil, func() bool { return false })

	frame := v.Frame(0)
	require.Len(t, frame, 16)
	for _, lv := range frame {
		assert.Zero(t, lv)
	}
}

func TestVisualizerRendersTapAmplitude(t *testing.T) {
	tap := &fixedTap{samples: []float32{0.5, -0.5, 0.25, -0.25}}
	v := NewVisualizer(4, tap, func() bool { return true })

	frame := v.Frame(0)
	require.Len(t, frame, 4)
	// Negative samples render as magnitude.
	assert.Equal(t, []float32{0.5, 0.5, 0.25, 0.25}, frame)
}

func TestVisualizerFallbackDeterministic(t *testing.T) {
	a := NewVisualizer(8, nil, func() bool { return true })
	b := NewVisualizer(8, nil, func() bool { return true })

	times := []float64{0, 0.05, 0.1, 0.15, 0.2}
	for _, now := range times {
		fa := a.Frame(now)
		fb := b.Frame(now)
		assert.Equal(t, fa, fb, "frames diverge at t=%v", now)
	}
}

func TestVisualizerFallbackMoves(t *testing.T) {
	v := NewVisualizer(8, nil, func() bool { return true })

	first := v.Frame(0.05)
	second := v.Frame(0.10)

	assert.NotEqual(t, first, second)
	for _, frame := range [][]float32{first, second} {
		for _, lv := range frame {
			assert.GreaterOrEqual(t, lv, float32(0))
			assert.LessOrEqual(t, lv, float32(1))
		}
	}
}

func TestVisualizerEmptyTapFallsBack(t *testing.T) {
	tap := &fixedTap{}
	v := NewVisualizer(8, tap, func() bool { return true })

	v.Frame(0.05)
	frame := v.Frame(0.1)
	nonzero := false
	for _, lv := range frame {
		if lv > 0 {
			nonzero = true
		}
	}
	assert.True(t, nonzero, "fallback should render while active with no signal")
}

func TestVisualizerDefaultBars(t *testing.T) {
	v := NewVisualizer(0, nil, nil)
	assert.Len(t, v.Frame(0), 32)
}

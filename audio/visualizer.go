package audio

import "math"

// Tap exposes recent output sample amplitudes. *Scheduler implements it.
type Tap interface {
	Levels(n int) []float32
}

// Visualizer turns live output amplitude into per-display-frame waveform
// bars. It is driven by the consumer's display refresh (call Frame once per
// rendered frame), not by a fixed timer, and makes no audio decisions.
//
// With an attached tap and live signal it renders actual amplitude; while
// speech is active but no tap is attached it renders a deterministic
// phase-accumulating sine combination so the visual never goes dead
// mid-speech; when inactive it renders a flat baseline.
type Visualizer struct {
	// Bars is the number of output levels per frame.
	Bars int

	tap    Tap
	active func() bool
	phase  float64
	last   float64
}

// NewVisualizer creates a visualizer over an optional tap. active reports
// whether speech is nominally playing (used for the fallback waveform).
func NewVisualizer(bars int, tap Tap, active func() bool) *Visualizer {
	if bars <= 0 {
		bars = 32
	}
	return &Visualizer{Bars: bars, tap: tap, active: active}
}

// Frame returns one frame of waveform levels in [0, 1] for the display time
// now (seconds).
func (v *Visualizer) Frame(now float64) []float32 {
	if v.tap != nil {
		if levels := v.tap.Levels(v.Bars); len(levels) > 0 {
			out := make([]float32, v.Bars)
			for i := range out {
				if i < len(levels) {
					out[i] = float32(math.Abs(float64(levels[i])))
				}
			}
			v.last = now
			return out
		}
	}
	if v.active != nil && v.active() {
		return v.fallbackFrame(now)
	}
	v.last = now
	return make([]float32, v.Bars)
}

// fallbackFrame advances the accumulated phase by the elapsed display time
// and renders a two-sine combination. Deterministic for a given call
// sequence, so tests and replays render identically.
func (v *Visualizer) fallbackFrame(now float64) []float32 {
	dt := now - v.last
	if dt < 0 {
		dt = 0
	}
	v.last = now
	v.phase += dt * 2 * math.Pi * 2.5

	out := make([]float32, v.Bars)
	for i := range out {
		x := float64(i) / float64(v.Bars)
		a := math.Sin(v.phase + x*2*math.Pi)
		b := math.Sin(v.phase*1.7 + x*5*math.Pi)
		out[i] = float32(math.Abs(0.6*a+0.4*b)) * 0.8
	}
	return out
}

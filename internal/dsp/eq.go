// Package dsp implements the engine's real-time processing chain: headroom,
// parametric EQ, sinc resampling, and dither, applied in that fixed order
// over a mutable interleaved f64 buffer (§4.2).
package dsp

import "math"

// CanonicalBandFrequencies are the ten standard EQ band centers (Hz), §3.
var CanonicalBandFrequencies = [10]float64{31, 62, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// EqBand is one parametric band: center frequency and gain.
type EqBand struct {
	FrequencyHz float64 `json:"frequency" yaml:"frequency"`
	GainDB      float64 `json:"gain" yaml:"gain"`
}

// EqPreset is a named, ordered list of bands. Gain is clamped to ±12 dB by
// convention at the edit boundary; the cascade itself applies whatever
// coefficients it is given.
type EqPreset struct {
	Name  string   `json:"name" yaml:"name"`
	Bands []EqBand `json:"bands" yaml:"bands"`
}

// biquadCoeffs holds the five cookbook peaking-EQ coefficients, normalized
// so a0 == 1.
type biquadCoeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// peakingCoeffs computes Direct Form II Transposed coefficients for a
// peaking EQ band at (fc, gainDB, Q) sampled at fs, using the Audio EQ
// Cookbook formulas.
func peakingCoeffs(fc, gainDB, q float64, fs int) biquadCoeffs {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * fc / float64(fs)
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)
	alpha := sinW0 / (2 * q)

	b0 := 1 + alpha*a
	b1 := -2 * cosW0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosW0
	a2 := 1 - alpha/a

	return biquadCoeffs{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// biquadState is the per-channel Direct Form II Transposed delay pair.
type biquadState struct {
	z1, z2 float64
}

// biquadStage is one band's coefficients plus one delay-state slot per
// channel. State persists across blocks and is cleared on preset change.
type biquadStage struct {
	coeffs biquadCoeffs
	state  []biquadState
}

func (s *biquadStage) process(x float64, ch int) float64 {
	st := &s.state[ch]
	y := s.coeffs.b0*x + st.z1
	st.z1 = s.coeffs.b1*x - s.coeffs.a1*y + st.z2
	st.z2 = s.coeffs.b2*x - s.coeffs.a2*y
	return y
}

// EQ is a cascade of N peaking biquads, one per band, applied in the order
// the preset supplies (the cascade is not commutative under fixed
// coefficients even though the mathematical ideal is, §4.2).
type EQ struct {
	sampleRate int
	channels   int
	enabled    bool
	stages     []*biquadStage
}

// NewEQ returns a disabled, no-op EQ for the given sample rate and channel
// count. Call LoadPreset to activate it.
func NewEQ(sampleRate, channels int) *EQ {
	return &EQ{sampleRate: sampleRate, channels: channels}
}

// LoadPreset computes coefficients for every band and resets all biquad
// state. A preset with zero bands disables the stage (§4.2).
func (e *EQ) LoadPreset(preset EqPreset, q float64) {
	if q <= 0 {
		q = 1.0
	}
	stages := make([]*biquadStage, len(preset.Bands))
	for i, band := range preset.Bands {
		stages[i] = &biquadStage{
			coeffs: peakingCoeffs(band.FrequencyHz, band.GainDB, q, e.sampleRate),
			state:  make([]biquadState, e.channels),
		}
	}
	e.stages = stages
	e.enabled = len(stages) > 0
}

// SetSampleRate updates the sample rate used for coefficient computation on
// the next LoadPreset call. It does not retroactively recompute a loaded
// preset.
func (e *EQ) SetSampleRate(sampleRate int) { e.sampleRate = sampleRate }

// Enabled reports whether the EQ currently applies any processing.
func (e *EQ) Enabled() bool { return e.enabled }

// Process applies the biquad cascade in place to an interleaved buffer.
// A disabled EQ is a no-op.
func (e *EQ) Process(samples []float64, channels int) {
	if !e.enabled {
		return
	}
	frames := len(samples) / channels
	for _, stage := range e.stages {
		for f := 0; f < frames; f++ {
			for ch := 0; ch < channels; ch++ {
				idx := f*channels + ch
				samples[idx] = stage.process(samples[idx], ch)
			}
		}
	}
}

// Reset zeroes all biquad delay state without changing coefficients.
func (e *EQ) Reset() {
	for _, stage := range e.stages {
		for i := range stage.state {
			stage.state[i] = biquadState{}
		}
	}
}

package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"
)

// ResamplerQuality selects one of the four sinc-interpolation presets (§4.2).
type ResamplerQuality int

const (
	Fast ResamplerQuality = iota
	Balanced
	High
	Ultra
)

// WindowFunc names the window applied to the sinc kernel.
type WindowFunc int

const (
	WindowBlackman WindowFunc = iota
	WindowBlackmanHarris
	WindowBlackmanHarris2
)

// Interpolation names the fractional-index interpolation used between
// oversampled kernel taps.
type Interpolation int

const (
	InterpLinear Interpolation = iota
	InterpCubic
)

type qualityProfile struct {
	sincLength    int
	oversampling  int
	interpolation Interpolation
	windowFunc    WindowFunc
}

var profiles = map[ResamplerQuality]qualityProfile{
	Fast:     {sincLength: 64, oversampling: 128, interpolation: InterpLinear, windowFunc: WindowBlackman},
	Balanced: {sincLength: 128, oversampling: 256, interpolation: InterpCubic, windowFunc: WindowBlackmanHarris},
	High:     {sincLength: 256, oversampling: 256, interpolation: InterpCubic, windowFunc: WindowBlackmanHarris2},
	Ultra:    {sincLength: 512, oversampling: 512, interpolation: InterpCubic, windowFunc: WindowBlackmanHarris2},
}

// chunkFrames is the batch size reported by ChunkFrames. Process does not
// split its input by it.
const chunkFrames = 1024

// Resampler performs sinc-interpolated sample rate conversion on planar
// input. Each Process call resamples its whole input (plus the carried
// tail) in one pass; the input is not cut into fixed-size chunks. When
// input and output rates are identical it is a zero-copy passthrough.
type Resampler struct {
	quality  ResamplerQuality
	profile  qualityProfile
	kernel   []float64 // oversampled, windowed sinc kernel, one side
	channels int

	// tail buffers the unconsumed remainder of each channel's planar input
	// between Process calls, since the last output sample rarely lands
	// exactly on the end of the input.
	tail [][]float64
}

// NewResampler builds a resampler at the given quality preset for the given
// channel count. The kernel is precomputed once.
func NewResampler(quality ResamplerQuality, channels int) *Resampler {
	profile := profiles[quality]
	r := &Resampler{
		quality:  quality,
		profile:  profile,
		channels: channels,
		tail:     make([][]float64, channels),
	}
	r.kernel = buildSincKernel(profile)
	return r
}

// buildSincKernel constructs a windowed sinc lookup table of
// sincLength*oversampling + 1 taps covering one side of the kernel.
func buildSincKernel(p qualityProfile) []float64 {
	n := p.sincLength*p.oversampling + 1
	kernel := make([]float64, n)
	for i := range kernel {
		// Map i to a fractional tap position in [0, sincLength].
		x := float64(i) / float64(p.oversampling)
		kernel[i] = sinc(x)
	}
	applyWindow(kernel, p.windowFunc)
	return kernel
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// applyWindow multiplies kernel by the chosen window, evaluated over the
// full symmetric window width (2*len(kernel)-1) and taking the second half,
// matching gonum's window functions which operate on whole windows.
func applyWindow(kernel []float64, w WindowFunc) {
	full := make([]float64, 2*len(kernel)-1)
	for i := range full {
		full[i] = 1
	}
	switch w {
	case WindowBlackman:
		window.Blackman(full)
	case WindowBlackmanHarris:
		window.BlackmanHarris(full)
	case WindowBlackmanHarris2:
		// gonum has no second Blackman-Harris variant; Blackman-Nuttall is
		// the closest standard four-term window (similar sidelobe rolloff)
		// and stands in for "BlackmanHarris2" in the High/Ultra presets.
		window.BlackmanNuttall(full)
	}
	half := full[len(full)/2:]
	for i := range kernel {
		kernel[i] *= half[i]
	}
}

// kernelAt returns the interpolated kernel value at fractional offset t
// (t >= 0), using the resampler's configured interpolation mode.
func (r *Resampler) kernelAt(t float64) float64 {
	pos := t * float64(r.profile.oversampling)
	if pos >= float64(len(r.kernel)-1) {
		return 0
	}
	i0 := int(pos)
	frac := pos - float64(i0)

	switch r.profile.interpolation {
	case InterpLinear:
		if i0+1 >= len(r.kernel) {
			return r.kernel[i0]
		}
		return r.kernel[i0]*(1-frac) + r.kernel[i0+1]*frac
	default: // cubic
		return cubicInterp(r.kernel, i0, frac)
	}
}

func cubicInterp(k []float64, i0 int, frac float64) float64 {
	get := func(i int) float64 {
		if i < 0 || i >= len(k) {
			return 0
		}
		return k[i]
	}
	p0, p1, p2, p3 := get(i0-1), get(i0), get(i0+1), get(i0+2)
	a0 := p3 - p2 - p0 + p1
	a1 := p0 - p1 - a0
	a2 := p2 - p0
	a3 := p1
	f := frac
	return a0*f*f*f + a1*f*f + a2*f + a3
}

// Process resamples planar (per-channel) input from inRate to outRate and
// returns planar output. When inRate == outRate it returns the input
// unmodified (no allocation, no value mutation), per §8.
func (r *Resampler) Process(planarIn [][]float64, inRate, outRate int) [][]float64 {
	if inRate == outRate {
		return planarIn
	}
	ratio := float64(outRate) / float64(inRate)
	out := make([][]float64, len(planarIn))

	for ch := range planarIn {
		combined := append(append([]float64{}, r.tail[ch]...), planarIn[ch]...)
		outLen := int(math.Floor(float64(len(combined)) * ratio))
		chOut := make([]float64, 0, outLen)

		step := float64(inRate) / float64(outRate)
		srcPos := 0.0
		for len(chOut) < outLen {
			chOut = append(chOut, r.interpolateAt(combined, srcPos))
			srcPos += step
		}

		consumed := int(math.Floor(srcPos))
		if consumed > len(combined) {
			consumed = len(combined)
		}
		r.tail[ch] = append([]float64{}, combined[consumed:]...)
		out[ch] = chOut
	}
	return out
}

// interpolateAt evaluates the windowed-sinc reconstruction of src at
// fractional position pos.
func (r *Resampler) interpolateAt(src []float64, pos float64) float64 {
	center := int(math.Floor(pos))
	frac := pos - float64(center)
	span := r.profile.sincLength / 2

	sum := 0.0
	for k := -span; k <= span; k++ {
		idx := center + k
		if idx < 0 || idx >= len(src) {
			continue
		}
		dist := math.Abs(float64(k) - frac)
		sum += src[idx] * r.kernelAt(dist)
	}
	return sum
}

// Reset clears the internal tail buffers (e.g. on stream reconfiguration).
func (r *Resampler) Reset() {
	for i := range r.tail {
		r.tail[i] = nil
	}
}

// ChunkFrames returns 1024, a batch size for callers that want to feed
// Process fixed-size input. Process itself accepts input of any length.
func ChunkFrames() int { return chunkFrames }

package dsp

import (
	"math"
	"math/rand"

	"github.com/jaschadub/aaeq/internal/audio"
)

// DitherMode selects the noise added before quantization to a reduced bit
// depth (§4.2).
type DitherMode int

const (
	DitherNone DitherMode = iota
	DitherRectangular
	DitherTPDF
	DitherGaussian
)

// NoiseShape selects the feedback filter applied before quantization.
type NoiseShape int

const (
	ShapeNone NoiseShape = iota
	ShapeFirstOrder
	ShapeSecondOrder
	ShapeGesemann
)

// gesemannCoeffs is the fixed fourth-order noise-shaping curve tuned for
// 44.1/48 kHz playback (Stanley P. Lipshitz / Gesemann-style coefficients).
var gesemannCoeffs = [4]float64{2.033, -2.165, 1.959, -1.590}

// Dither is the pipeline's configurable dither stage. It is engaged on any
// reduction to <= 24-bit integer output; shaping state is per-channel and
// reset on any configuration change.
type Dither struct {
	mode   DitherMode
	shape  NoiseShape
	errors [][4]float64 // per-channel noise-shaping error history
}

// NewDither returns a Dither stage with the given mode and shaping.
func NewDither(mode DitherMode, shape NoiseShape, channels int) *Dither {
	return &Dither{mode: mode, shape: shape, errors: make([][4]float64, channels)}
}

// SetMode changes the dither mode and resets shaping state.
func (d *Dither) SetMode(mode DitherMode) {
	d.mode = mode
	d.Reset()
}

// SetShape changes the noise-shaping filter and resets shaping state.
func (d *Dither) SetShape(shape NoiseShape) {
	d.shape = shape
	d.Reset()
}

// Reset clears all per-channel shaping error history.
func (d *Dither) Reset() {
	for i := range d.errors {
		d.errors[i] = [4]float64{}
	}
}

// noise returns one dither sample scaled to one LSB at bits, per d.mode.
func (d *Dither) noise(bits int) float64 {
	lsb := math.Pow(2, -(float64(bits) - 1))
	switch d.mode {
	case DitherNone:
		return 0
	case DitherRectangular:
		return (rand.Float64() - 0.5) * lsb
	case DitherGaussian:
		// Box-Muller, scaled to ~0.3 LSB per §4.2.
		u1, u2 := rand.Float64(), rand.Float64()
		z := math.Sqrt(-2*math.Log(u1+1e-300)) * math.Cos(2*math.Pi*u2)
		return z * 0.3 * lsb
	default: // TPDF
		return ((rand.Float64() - 0.5) + (rand.Float64() - 0.5)) * lsb
	}
}

// shapeError applies the configured noise-shaping feedback to x for channel
// ch, using and updating that channel's error history.
func (d *Dither) shapeError(x float64, ch int) float64 {
	if d.shape == ShapeNone || ch >= len(d.errors) {
		return x
	}
	hist := &d.errors[ch]
	switch d.shape {
	case ShapeFirstOrder:
		return x + hist[0]
	case ShapeSecondOrder:
		return x + 2*hist[0] - hist[1]
	case ShapeGesemann:
		fb := 0.0
		for i, c := range gesemannCoeffs {
			fb += c * hist[i]
		}
		return x + fb
	default:
		return x
	}
}

func (d *Dither) pushError(errVal float64, ch int) {
	if ch >= len(d.errors) {
		return
	}
	hist := &d.errors[ch]
	hist[3], hist[2], hist[1], hist[0] = hist[2], hist[1], hist[0], errVal
}

// Process quantizes samples to the target format in place, applying the
// configured dither mode and noise shaping when target is <=24-bit. F64/F32
// targets pass through unchanged (dither only engages on integer reduction).
func (d *Dither) Process(samples []float64, channels int, target audio.Format) {
	if target != audio.S24LE && target != audio.S16LE {
		return
	}
	bits := target.BitDepth()
	step := math.Pow(2, -(float64(bits) - 1))

	for i, x := range samples {
		ch := i % channels
		shaped := d.shapeError(x, ch)
		dithered := shaped + d.noise(bits)

		quantized := math.Round(dithered/step) * step
		quantized = clampSample(quantized, step)

		d.pushError(shaped-quantized, ch)
		samples[i] = quantized
	}
}

// clampSample clamps v to [-1, 1-step] as required post-quantization (§4.2).
func clampSample(v, step float64) float64 {
	max := 1 - step
	if v > max {
		return max
	}
	if v < -1 {
		return -1
	}
	return v
}

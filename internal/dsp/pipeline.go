package dsp

import (
	"github.com/jaschadub/aaeq/internal/audio"
)

// StageLatency is a stage's declared design-reference latency, reported to
// telemetry (§4.2). These are not measured; they are the documented budget.
type StageLatency struct {
	Headroom float64
	EQ       float64
	Resample float64
	Dither   float64
}

// DefaultLatencyBudget is the pipeline's design-reference latency budget.
var DefaultLatencyBudget = StageLatency{Headroom: 0.1, EQ: 2.0, Resample: 1.5, Dither: 0.1}

// Config configures a Pipeline's stages.
type Config struct {
	HeadroomDB     float64
	Preset         EqPreset
	EqQ            float64
	ResamplerQual  ResamplerQuality
	DitherMode     DitherMode
	NoiseShape     NoiseShape
	OutputRate     int
	OutputFormat   audio.Format
}

// Pipeline is the strictly ordered DSP chain: headroom -> eq -> resampler ->
// dither (§4.2). None of its stages fail at runtime; they are strict
// functions over their inputs (§4.2 Failure semantics).
type Pipeline struct {
	channels int

	headroom   *Headroom
	eq         *EQ
	resampler  *Resampler
	dither     *Dither
	outputRate int
	outputFmt  audio.Format
}

// NewPipeline builds a pipeline for the given input channel count.
func NewPipeline(channels int, cfg Config) *Pipeline {
	p := &Pipeline{
		channels:   channels,
		headroom:   NewHeadroom(cfg.HeadroomDB),
		eq:         NewEQ(48000, channels),
		resampler:  NewResampler(cfg.ResamplerQual, channels),
		dither:     NewDither(cfg.DitherMode, cfg.NoiseShape, channels),
		outputRate: cfg.OutputRate,
		outputFmt:  cfg.OutputFormat,
	}
	if len(cfg.Preset.Bands) > 0 {
		p.eq.SetSampleRate(cfg.OutputRate)
		p.eq.LoadPreset(cfg.Preset, cfg.EqQ)
	}
	return p
}

// Headroom, EQ, Resampler, and Dither expose the stage objects for
// configuration and telemetry (clip counts, band state, etc.).
func (p *Pipeline) Headroom() *Headroom   { return p.headroom }
func (p *Pipeline) EQ() *EQ               { return p.eq }
func (p *Pipeline) Resampler() *Resampler { return p.resampler }
func (p *Pipeline) Dither() *Dither       { return p.dither }

// LoadPreset loads a new EQ preset, clearing biquad state (§4.2).
func (p *Pipeline) LoadPreset(preset EqPreset, q float64) {
	p.eq.SetSampleRate(p.outputRate)
	p.eq.LoadPreset(preset, q)
}

// Process runs block through headroom -> EQ -> resampler -> dither in place
// (resampling reshapes the buffer when rates differ) and returns the result
// as a fresh Block at the pipeline's configured output rate. A write is
// fully processed before the next block begins (§5 ordering guarantee).
func (p *Pipeline) Process(block audio.Block) audio.Block {
	samples := make([]float64, len(block.Samples))
	copy(samples, block.Samples)

	p.headroom.Process(samples)
	p.eq.Process(samples, block.Channels)

	outRate := p.outputRate
	if outRate == 0 {
		outRate = block.SampleRate
	}

	if outRate != block.SampleRate {
		planar := deinterleave(samples, block.Channels)
		resampled := p.resampler.Process(planar, block.SampleRate, outRate)
		samples = interleave(resampled, block.Channels)
	}

	p.dither.Process(samples, block.Channels, p.outputFmt)

	return audio.NewBlock(samples, outRate, block.Channels)
}

// LatencyBudget reports the pipeline's declared stage latencies (§4.2).
func (p *Pipeline) LatencyBudget() StageLatency { return DefaultLatencyBudget }

func deinterleave(samples []float64, channels int) [][]float64 {
	frames := len(samples) / channels
	planar := make([][]float64, channels)
	for ch := 0; ch < channels; ch++ {
		planar[ch] = make([]float64, frames)
		for f := 0; f < frames; f++ {
			planar[ch][f] = samples[f*channels+ch]
		}
	}
	return planar
}

func interleave(planar [][]float64, channels int) []float64 {
	if len(planar) == 0 {
		return nil
	}
	frames := len(planar[0])
	out := make([]float64, frames*channels)
	for ch := 0; ch < channels && ch < len(planar); ch++ {
		for f := 0; f < frames; f++ {
			out[f*channels+ch] = planar[ch][f]
		}
	}
	return out
}

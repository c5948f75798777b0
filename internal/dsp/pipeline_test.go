package dsp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaschadub/aaeq/internal/audio"
)

func TestPipelineOrderingHeadroomBeforeEQ(t *testing.T) {
	cfg := Config{
		HeadroomDB:    -6,
		ResamplerQual: Fast,
		DitherMode:    DitherNone,
		OutputRate:    48000,
		OutputFormat:  audio.F32,
	}
	p := NewPipeline(1, cfg)
	block := audio.NewBlock([]float64{1.0, 1.0, 1.0, 1.0}, 48000, 1)
	out := p.Process(block)

	require.InDelta(t, audio.DBToLinear(-6), out.Samples[0], 1e-6)
}

func TestPipelineClipCountIncrementsOnOverGain(t *testing.T) {
	cfg := Config{HeadroomDB: 6, ResamplerQual: Fast, DitherMode: DitherNone, OutputRate: 48000, OutputFormat: audio.F32}
	p := NewPipeline(1, cfg)
	block := audio.NewBlock([]float64{0.9}, 48000, 1)
	p.Process(block)
	require.Equal(t, uint64(1), p.Headroom().ClipCount())
}

func TestPipelineResamplesWhenRatesDiffer(t *testing.T) {
	cfg := Config{HeadroomDB: 0, ResamplerQual: Fast, DitherMode: DitherNone, OutputRate: 44100, OutputFormat: audio.F32}
	p := NewPipeline(1, cfg)
	block := audio.NewBlock(make([]float64, 4800), 48000, 1)
	out := p.Process(block)
	require.Equal(t, 44100, out.SampleRate)
	require.InDelta(t, 4800*44100/48000, len(out.Samples), 4)
}

// Package audio provides the engine's core sample representation: the
// interleaved f64 AudioBlock, sample format conversion, and the small set of
// pure gain/level/dither functions every DSP stage and sink builds on.
package audio

// Block is a lazy view over a contiguous interleaved float64 sample buffer.
// A Block does not own its buffer; callers that need to keep samples beyond
// the current pipeline pass must copy them.
type Block struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// NewBlock wraps samples with the given sample rate and channel count.
func NewBlock(samples []float64, sampleRate, channels int) Block {
	return Block{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// Frames returns the number of frames (samples per channel) in the block.
func (b Block) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// IsEmpty reports whether the block carries no samples.
func (b Block) IsEmpty() bool {
	return len(b.Samples) == 0
}

// Clone returns a Block with a freshly allocated, copied sample buffer.
func (b Block) Clone() Block {
	cp := make([]float64, len(b.Samples))
	copy(cp, b.Samples)
	return Block{Samples: cp, SampleRate: b.SampleRate, Channels: b.Channels}
}

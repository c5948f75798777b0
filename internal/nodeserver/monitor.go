package nodeserver

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/jaschadub/aaeq/internal/audio"
)

// OpusMonitorTap is an optional, experimental debug sidecar: it encodes
// each played block with Opus and immediately decodes it back, so a
// low-bandwidth debug client (the DspAudioSamples tap) could be fed the
// compressed bytes without touching the real playback path. It is never
// used to compress audio actually sent to a sink; the engine's DSP path
// carries linear PCM throughout.
type OpusMonitorTap struct {
	enc *opus.Encoder
	dec *opus.Decoder

	sampleRate int
	channels   int
}

// NewOpusMonitorTap builds a tap for the given format. Only 8000, 12000,
// 16000, 24000, and 48000 Hz are valid Opus sample rates; callers outside
// that set should not enable the tap.
func NewOpusMonitorTap(sampleRate, channels int) (*OpusMonitorTap, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppRestrictedLowdelay)
	if err != nil {
		return nil, fmt.Errorf("nodeserver: opus encoder: %w", err)
	}
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("nodeserver: opus decoder: %w", err)
	}
	return &OpusMonitorTap{enc: enc, dec: dec, sampleRate: sampleRate, channels: channels}, nil
}

// RoundTrip encodes block at the given bitrate then decodes it back,
// returning the compressed size in bytes alongside the reconstructed
// block for debug display.
func (t *OpusMonitorTap) RoundTrip(block audio.Block, bitrateBps int) (compressedBytes int, out audio.Block, err error) {
	if err := t.enc.SetBitrate(bitrateBps); err != nil {
		return 0, audio.Block{}, fmt.Errorf("nodeserver: opus set bitrate: %w", err)
	}

	pcm := make([]int16, len(block.Samples))
	for i, s := range block.Samples {
		pcm[i] = int16(s * 32767)
	}

	data := make([]byte, 4000)
	n, err := t.enc.Encode(pcm, data)
	if err != nil {
		return 0, audio.Block{}, fmt.Errorf("nodeserver: opus encode: %w", err)
	}
	data = data[:n]

	decoded := make([]int16, len(pcm))
	frames, err := t.dec.Decode(data, decoded)
	if err != nil {
		return 0, audio.Block{}, fmt.Errorf("nodeserver: opus decode: %w", err)
	}
	decoded = decoded[:frames*t.channels]

	samples := make([]float64, len(decoded))
	for i, s := range decoded {
		samples[i] = float64(s) / 32767
	}
	return len(data), audio.NewBlock(samples, t.sampleRate, t.channels), nil
}

package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSilenceImpliesPeakBelowThreshold(t *testing.T) {
	b := NewBlock([]float64{0.0001, -0.0002, 0.00005}, 48000, 1)
	require.True(t, IsSilence(b, -60))
	require.LessOrEqual(t, PeakDBFS(b), -60.0)
}

func TestNoiseFloorUsesQuietestDecile(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = 0.5
	}
	for i := 0; i < 10; i++ {
		samples[i] = 0.001
	}
	b := NewBlock(samples, 48000, 1)
	nf := NoiseFloorDBFS(b)
	require.InDelta(t, LinearToDB(0.001), nf, 1e-9)
}

func TestSoftLimiterPassesQuietSamplesUnchanged(t *testing.T) {
	b := NewBlock([]float64{0.1, -0.1, 0.05}, 48000, 1)
	out := ApplySoftLimiter(b, 0, nil) // 0 dB threshold = amplitude 1.0
	require.Equal(t, b.Samples, out)
}

func TestSoftLimiterCompressesLoudSamples(t *testing.T) {
	b := NewBlock([]float64{2.0, -2.0}, 48000, 1)
	out := ApplySoftLimiter(b, 0, nil)
	require.Less(t, out[0], 2.0)
	require.Greater(t, out[0], 0.0)
	require.Greater(t, out[1], -2.0)
	require.Less(t, out[1], 0.0)
}

func TestRMSDBFSEmptyBlock(t *testing.T) {
	require.True(t, math.IsInf(RMSDBFS(Block{Channels: 1}), -1))
}

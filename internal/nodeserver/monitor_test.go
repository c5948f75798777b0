package nodeserver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaschadub/aaeq/internal/audio"
)

func TestOpusMonitorTapRoundTripProducesCompressedBytes(t *testing.T) {
	tap, err := NewOpusMonitorTap(48000, 2)
	require.NoError(t, err)

	samples := make([]float64, 960) // 10ms at 48kHz stereo
	for i := range samples {
		samples[i] = 0.1
	}
	block := audio.NewBlock(samples, 48000, 2)

	n, out, err := tap.RoundTrip(block, 24000)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	require.Less(t, n, len(samples)*2) // compressed smaller than raw S16LE
	require.NotEmpty(t, out.Samples)
}

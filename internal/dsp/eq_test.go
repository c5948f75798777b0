package dsp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPresetZerosBiquadState(t *testing.T) {
	eq := NewEQ(48000, 2)
	eq.LoadPreset(EqPreset{Name: "bump", Bands: []EqBand{{FrequencyHz: 1000, GainDB: 6}}}, 1.0)

	samples := make([]float64, 2*4)
	for i := range samples {
		samples[i] = 1.0
	}
	eq.Process(samples, 2)

	nonzero := false
	for _, st := range eq.stages[0].state {
		if st.z1 != 0 || st.z2 != 0 {
			nonzero = true
		}
	}
	require.True(t, nonzero, "expected state to have accumulated after processing")

	eq.LoadPreset(EqPreset{Name: "bump", Bands: []EqBand{{FrequencyHz: 1000, GainDB: 6}}}, 1.0)
	for _, st := range eq.stages[0].state {
		require.Zero(t, st.z1)
		require.Zero(t, st.z2)
	}
}

func TestZeroGainBandIsIdentity(t *testing.T) {
	eq := NewEQ(48000, 1)
	eq.LoadPreset(EqPreset{Bands: []EqBand{{FrequencyHz: 1000, GainDB: 0}}}, 1.0)

	// Impulse followed by zeros.
	samples := make([]float64, 1024)
	samples[0] = 1.0
	orig := append([]float64{}, samples...)
	eq.Process(samples, 1)

	for i := range samples {
		require.InDelta(t, orig[i], samples[i], 1e-9)
	}
}

func TestEmptyPresetIsNoOp(t *testing.T) {
	eq := NewEQ(48000, 1)
	eq.LoadPreset(EqPreset{}, 1.0)
	require.False(t, eq.Enabled())

	samples := []float64{0.1, 0.2, 0.3}
	orig := append([]float64{}, samples...)
	eq.Process(samples, 1)
	require.Equal(t, orig, samples)
}

package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertFormatF64RoundTrips(t *testing.T) {
	b := NewBlock([]float64{0.5, -0.25, 1.0, -1.0}, 48000, 1)
	out := ConvertFormat(b, F64, nil)
	require.Len(t, out, 4*8)
	for i, want := range b.Samples {
		got := math.Float64frombits(leUint64(out[i*8 : i*8+8]))
		require.InDelta(t, want, got, 1e-12)
	}
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func TestS24ClampBoundaries(t *testing.T) {
	// Values comfortably away from the quantization step so TPDF dither
	// cannot push them across the clamp boundary.
	over := NewBlock([]float64{2.0}, 48000, 1)
	out := ConvertFormat(over, S24LE, nil)
	require.Equal(t, int32(s24Max), DecodeS24LE(out, 0))

	under := NewBlock([]float64{-2.0}, 48000, 1)
	out = ConvertFormat(under, S24LE, nil)
	require.Equal(t, int32(s24Min), DecodeS24LE(out, 0))
}

func TestS16ClampBoundaries(t *testing.T) {
	over := NewBlock([]float64{2.0}, 48000, 1)
	out := ConvertFormat(over, S16LE, nil)
	require.Equal(t, int16(s16Max), DecodeS16LE(out, 0))

	under := NewBlock([]float64{-2.0}, 48000, 1)
	out = ConvertFormat(under, S16LE, nil)
	require.Equal(t, int16(s16Min), DecodeS16LE(out, 0))
}

func TestConvertWithGainMatchesManualScale(t *testing.T) {
	b := NewBlock([]float64{0.1, 0.2, 0.3}, 48000, 1)
	gainDB := -6.0
	got := ConvertWithGain(b, F64, gainDB, nil)

	scale := DBToLinear(gainDB)
	scaled := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		scaled[i] = s * scale
	}
	want := ConvertFormat(NewBlock(scaled, 48000, 1), F64, nil)
	require.Equal(t, want, got)
}

func TestDBToLinearAndBack(t *testing.T) {
	require.InDelta(t, 1.0, DBToLinear(0), 1e-9)
	require.True(t, math.IsInf(LinearToDB(0), -1))
	require.InDelta(t, -6.0206, LinearToDB(0.5), 1e-3)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("S24LE")
	require.NoError(t, err)
	require.Equal(t, S24LE, f)

	_, err = ParseFormat("bogus")
	require.Error(t, err)
}

func TestFrames(t *testing.T) {
	b := NewBlock(make([]float64, 20), 48000, 2)
	require.Equal(t, 10, b.Frames())
}

package localdac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingWriteReadRoundTrip(t *testing.T) {
	r := newRing(8)
	n := r.write([]float64{1, 2, 3, 4})
	require.Equal(t, 4, n)

	out := make([]float64, 4)
	r.readInto(out)
	require.Equal(t, []float64{1, 2, 3, 4}, out)
}

func TestRingUnderrunFillsSilence(t *testing.T) {
	r := newRing(8)
	r.write([]float64{1, 2})

	out := make([]float64, 4)
	r.readInto(out)
	require.Equal(t, []float64{1, 2, 0, 0}, out)
}

func TestRingWriteStopsAtCapacity(t *testing.T) {
	r := newRing(4)
	n := r.write([]float64{1, 2, 3, 4, 5, 6})
	require.Equal(t, 4, n)
	require.Equal(t, 0, r.availableToWrite())
}

func TestRingFillPercent(t *testing.T) {
	r := newRing(10)
	require.Equal(t, 0.0, r.fillPercent())
	r.write([]float64{1, 2, 3, 4, 5})
	require.InDelta(t, 50.0, r.fillPercent(), 1e-9)
}

func TestSinkNameDefaultsToLocalDAC(t *testing.T) {
	s := New("", nil)
	require.Equal(t, "local-dac", s.Name())

	named := New("USB DAC", nil)
	require.Equal(t, "USB DAC", named.Name())
}

func TestSinkStartsClosed(t *testing.T) {
	s := New("", nil)
	require.False(t, s.IsOpen())
	require.Equal(t, 0.0, s.LatencyMs())
}

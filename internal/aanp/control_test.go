package aanp

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGainFromLevel(t *testing.T) {
	require.InDelta(t, 0, GainFromLevel(1.0), 1e-9)
	require.InDelta(t, -40, GainFromLevel(0.1), 1e-9)
	require.True(t, math.IsInf(GainFromLevel(0), -1))
}

func TestEnvelopeDetectsMessageType(t *testing.T) {
	raw, err := json.Marshal(VolumeSet{Type: MsgVolumeSet, Level: 0.5})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, MsgVolumeSet, env.Type)

	var vs VolumeSet
	require.NoError(t, json.Unmarshal(raw, &vs))
	require.Equal(t, 0.5, vs.Level)
}

func TestDSPUpdateAckRoundTrip(t *testing.T) {
	ack := DSPUpdateAck{
		Type:        MsgDSPUpdateAck,
		ProfileID:   "flat",
		Status:      "ok",
		ProfileHash: "abc123",
		Applied:     AppliedDSPState{Equalizer: true, Headroom: true},
	}
	raw, err := json.Marshal(ack)
	require.NoError(t, err)

	var parsed DSPUpdateAck
	require.NoError(t, json.Unmarshal(raw, &parsed))
	require.Equal(t, ack, parsed)
}

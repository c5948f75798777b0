package aanp

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRecordTXTRoundTrip(t *testing.T) {
	rec := Record{
		UUID:             uuid.New(),
		Version:          "0.4.0",
		SampleRates:      []int{44100, 48000, 96000, 192000},
		BitDepths:        []string{"S16", "S24", "F32"},
		Channels:         2,
		CoreFeatures:     []Feature{FeatureMicroPLL, FeatureCRCVerify, FeatureVolumeControl},
		OptionalFeatures: []Feature{FeatureDSPTransfer},
		ControlURL:       "ws://10.0.0.5:7890/control",
		State:            StatePlaying,
		VolumePercent:    62,
		DACName:          "ES9038Q2M",
		Platform:         "rpi4",
	}

	txt := rec.ToTXT()
	parsed, err := RecordFromTXT(txt)
	require.NoError(t, err)
	require.Equal(t, rec, parsed)
}

func TestRecordTXTRoundTripWithoutOptionalFields(t *testing.T) {
	rec := Record{
		UUID:          uuid.New(),
		Version:       "0.4.0",
		SampleRates:   []int{48000},
		BitDepths:     []string{"S16"},
		Channels:      2,
		CoreFeatures:  []Feature{FeatureCapabilities},
		State:         StateDisconnected,
		VolumePercent: 0,
	}

	txt := rec.ToTXT()
	_, hasCtrl := txt["ctrl"]
	require.False(t, hasCtrl)

	parsed, err := RecordFromTXT(txt)
	require.NoError(t, err)
	require.Equal(t, rec, parsed)
}

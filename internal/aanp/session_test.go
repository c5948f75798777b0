package aanp

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testAcceptConfig() AcceptConfig {
	return AcceptConfig{
		PayloadType: PayloadTypeL24,
		SampleRate:  48000,
		RecommendedConfig: RecommendedConfig{
			SampleRate: 48000,
			Format:     "s24le",
			BufferMs:   200,
			Reason:     "native dac rate",
		},
		Latency: LatencyInfo{DACMs: 5, PipelineMs: 3, CompMode: "auto"},
		Volume:  VolumeConfig{InitialLevel: 0.8, ControlMode: "software", CurveType: "log"},
		Buffer:  BufferConfig{TargetMs: 200, MinMs: 50, MaxMs: 500, StartThresholdMs: 100},
	}
}

func TestNegotiateIntersectsFeatures(t *testing.T) {
	srv := NewServer(
		NewFeatureSet(FeatureCapabilities, FeatureCRCVerify, FeatureGapless, FeatureMicroPLL),
		NewFeatureSet(FeatureDSPTransfer),
	)
	init := SessionInit{
		Type:             MsgSessionInit,
		ProtocolVersion:  ProtocolVersion,
		NodeUUID:         uuid.New(),
		Features:         []Feature{FeatureCapabilities, FeatureGapless},
		OptionalFeatures: []Feature{FeatureDSPTransfer},
	}

	accept, err := srv.Negotiate(init, testAcceptConfig())
	require.NoError(t, err)
	require.ElementsMatch(t, []Feature{FeatureCapabilities, FeatureGapless}, accept.ActiveFeatures)
	require.ElementsMatch(t, []Feature{FeatureDSPTransfer}, accept.OptionalFeatures)
	require.Nil(t, accept.MicroPLL, "micro_pll wasn't requested by the node so must stay unnegotiated")
	require.True(t, accept.RTPExtensions.Gapless.Enabled)
	require.False(t, accept.RTPExtensions.CRC32.Enabled)
}

func TestNegotiateRejectsVersionMismatch(t *testing.T) {
	srv := NewServer(NewFeatureSet(FeatureCapabilities), NewFeatureSet())
	init := SessionInit{ProtocolVersion: "0.3"}

	_, err := srv.Negotiate(init, testAcceptConfig())
	require.Error(t, err)

	var negErr *NegotiationError
	require.ErrorAs(t, err, &negErr)
	require.Equal(t, E201VersionMismatch, negErr.Code)
}

func TestNegotiateEnablesMicroPLLWhenBothSidesSupportIt(t *testing.T) {
	srv := NewServer(NewFeatureSet(FeatureCapabilities, FeatureMicroPLL), NewFeatureSet())
	init := SessionInit{
		ProtocolVersion: ProtocolVersion,
		Features:        []Feature{FeatureCapabilities, FeatureMicroPLL},
	}

	accept, err := srv.Negotiate(init, testAcceptConfig())
	require.NoError(t, err)
	require.NotNil(t, accept.MicroPLL)
}

func TestSessionIDsAreMonotonicAndDistinctSSRCs(t *testing.T) {
	srv := NewServer(NewFeatureSet(FeatureCapabilities), NewFeatureSet())
	init := SessionInit{ProtocolVersion: ProtocolVersion, Features: []Feature{FeatureCapabilities}}

	a1, err := srv.Negotiate(init, testAcceptConfig())
	require.NoError(t, err)
	a2, err := srv.Negotiate(init, testAcceptConfig())
	require.NoError(t, err)

	require.NotEqual(t, a1.SessionID, a2.SessionID)
	require.NotEqual(t, a1.RTPConfig.SSRC, a2.RTPConfig.SSRC)
}

func TestSSRCForSessionIsDeterministic(t *testing.T) {
	require.Equal(t, SSRCForSession("srv-1"), SSRCForSession("srv-1"))
	require.NotEqual(t, SSRCForSession("srv-1"), SSRCForSession("srv-2"))
}

func TestIsNegotiationSuccessfulRequiresActiveFeatures(t *testing.T) {
	require.False(t, IsNegotiationSuccessful(SessionAccept{}))
	require.True(t, IsNegotiationSuccessful(SessionAccept{ActiveFeatures: []Feature{FeatureCapabilities}}))
}

package aanp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeTableCategoriesAndSeverities(t *testing.T) {
	require.Equal(t, CategoryConnection, E101ConnectionUnreachable.Category())
	require.Equal(t, SeverityFatal, E101ConnectionUnreachable.Severity())
	require.Equal(t, SeverityWarning, E102ConnectionTimeout.Severity())

	require.Equal(t, SeverityWarning, E203InvalidMessageFormat.Severity())
	require.Equal(t, SeverityWarning, E204UnsupportedFeature.Severity())
	require.Equal(t, SeverityWarning, E205SSRCConflict.Severity())
	require.Equal(t, SeverityFatal, E201VersionMismatch.Severity())

	require.Equal(t, SeverityFatal, E401DriftTooHigh.Severity())
	require.Equal(t, SeverityFatal, E402PllUnlock.Severity())
	require.Equal(t, SeverityWarning, E403TimestampDiscontinuity.Severity())

	require.Equal(t, SeverityFatal, E501EqApplicationFailed.Severity())
	require.Equal(t, SeverityInfo, E601HardwareVolumeUnavailable.Severity())
	require.Equal(t, SeverityWarning, E602VolumeOutOfRange.Severity())
}

func TestNewErrorPopulatesFromCode(t *testing.T) {
	err := NewError(E304BufferUnderrun, nil, RecoveryIncreaseBuffer)
	require.Equal(t, CategoryAudio, err.Category)
	require.Equal(t, SeverityWarning, err.Severity)
	require.NotNil(t, err.RecoveryAction)
	require.Equal(t, RecoveryIncreaseBuffer, *err.RecoveryAction)
}

func TestRecoverNetworkInterruption(t *testing.T) {
	require.True(t, RecoverNetworkInterruption(500, 2))
	require.False(t, RecoverNetworkInterruption(0, 2))
	require.False(t, RecoverNetworkInterruption(500, 10))
}

func TestRecoverBufferUnderrun(t *testing.T) {
	require.Equal(t, RecoveryIncreaseBuffer, RecoverBufferUnderrun(6, 30))
	require.Equal(t, RecoveryDecreaseLatency, RecoverBufferUnderrun(2, 60))
	require.Equal(t, RecoveryAction(""), RecoverBufferUnderrun(1, 30))
}

func TestRecoverCRCFailureRate(t *testing.T) {
	require.False(t, RecoverCRCFailureRate(5, 500, 505))
	require.True(t, RecoverCRCFailureRate(15, 1100, 1115))
	require.False(t, RecoverCRCFailureRate(2, 998, 1000))
}

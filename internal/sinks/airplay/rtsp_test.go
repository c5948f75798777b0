package airplay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTransportPortsSplitsPair(t *testing.T) {
	dataPort, controlPort, err := parseTransportPorts(
		"RTP/AVP/UDP;unicast;mode=record;server_port=6000-6001",
	)
	require.NoError(t, err)
	require.Equal(t, 6000, dataPort)
	require.Equal(t, 6001, controlPort)
}

func TestParseTransportPortsMissingFieldErrors(t *testing.T) {
	_, _, err := parseTransportPorts("RTP/AVP/UDP;unicast;mode=record")
	require.Error(t, err)
}

func TestParseTransportPortsIgnoresOtherFields(t *testing.T) {
	dataPort, controlPort, err := parseTransportPorts(
		"RTP/AVP/UDP;unicast;interleaved=0-1;server_port=7000-7001;ssrc=1234",
	)
	require.NoError(t, err)
	require.Equal(t, 7000, dataPort)
	require.Equal(t, 7001, controlPort)
}

func TestErrMFiPairingRequiredMessage(t *testing.T) {
	err := &ErrMFiPairingRequired{Server: "AirTunes/220.68"}
	require.Contains(t, err.Error(), "AirTunes/220.68")
	require.Contains(t, err.Error(), "MFi")
}

func TestErrAuthNotImplementedMessage(t *testing.T) {
	err := &ErrAuthNotImplemented{}
	require.Contains(t, err.Error(), "authentication")
}

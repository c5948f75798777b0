package dlna

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSearchTarget(t *testing.T) {
	req := "M-SEARCH * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\nMAN: \"ssdp:discover\"\r\nMX: 3\r\nST: ssdp:all\r\n\r\n"
	require.Equal(t, "ssdp:all", parseSearchTarget(req))
}

func TestParseLocation(t *testing.T) {
	resp := "HTTP/1.1 200 OK\r\nLOCATION: http://10.0.0.5:1900/desc.xml\r\nST: upnp:rootdevice\r\n\r\n"
	require.Equal(t, "http://10.0.0.5:1900/desc.xml", parseLocation(resp))
}

func TestAnnouncerMatchesSTVariants(t *testing.T) {
	a := &Announcer{deviceUUID: DeviceUUID("host")}
	require.True(t, a.matchesST("ssdp:all"))
	require.True(t, a.matchesST("upnp:rootdevice"))
	require.True(t, a.matchesST("uuid:"+a.deviceUUID.String()))
	require.True(t, a.matchesST("urn:schemas-upnp-org:service:AVTransport:1"))
	require.False(t, a.matchesST("urn:schemas-upnp-org:device:Printer:1"))
}

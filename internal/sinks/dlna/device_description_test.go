package dlna

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceUUIDIsDeterministic(t *testing.T) {
	a := DeviceUUID("living-room-pi")
	b := DeviceUUID("living-room-pi")
	require.Equal(t, a, b)

	c := DeviceUUID("other-host")
	require.NotEqual(t, a, c)
}

func TestParseDeviceDescriptionResolvesServices(t *testing.T) {
	xmlDoc := []byte(`<?xml version="1.0"?>
<root>
  <device>
    <friendlyName>Living Room Speaker</friendlyName>
    <UDN>uuid:1234</UDN>
    <manufacturer>Sonos</manufacturer>
    <modelName>One</modelName>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
        <controlURL>/MediaRenderer/AVTransport/Control</controlURL>
        <eventSubURL>/MediaRenderer/AVTransport/Event</eventSubURL>
        <SCPDURL>/xml/AVTransport1.xml</SCPDURL>
      </service>
    </serviceList>
  </device>
</root>`)

	desc, err := ParseDeviceDescription(xmlDoc)
	require.NoError(t, err)
	require.Equal(t, "Living Room Speaker", desc.FriendlyName)
	require.Equal(t, "Sonos", desc.Manufacturer)
	require.Len(t, desc.ServiceList, 1)
	require.Contains(t, desc.ServiceList[0].ServiceType, "AVTransport")
}

func TestBuildDeviceDescriptionIncludesFriendlyNameAndServices(t *testing.T) {
	id := DeviceUUID("host")
	doc := BuildDeviceDescription(id, "AAEQ Engine", "http://192.168.1.5:8200")
	require.Contains(t, string(doc), "AAEQ Engine")
	require.Contains(t, string(doc), id.String())
	require.Contains(t, string(doc), "AVTransport")
	require.Contains(t, string(doc), "RenderingControl")
	require.Contains(t, string(doc), "ConnectionManager")
}

package dlna

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/google/uuid"
)

// ServiceDescription is one <service> entry within a device description.
type ServiceDescription struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
	SCPDURL     string `xml:"SCPDURL"`
}

// DeviceDescription is the subset of a UPnP device description XML
// document AANP reads and writes.
type DeviceDescription struct {
	XMLName      xml.Name              `xml:"root"`
	FriendlyName string                `xml:"device>friendlyName"`
	UDN          string                `xml:"device>UDN"`
	Manufacturer string                `xml:"device>manufacturer"`
	ModelName    string                `xml:"device>modelName"`
	DeviceType   string                `xml:"device>deviceType"`
	ServiceList  []ServiceDescription  `xml:"device>serviceList>service"`
}

// ParseDeviceDescription parses a UPnP device description document.
func ParseDeviceDescription(body []byte) (DeviceDescription, error) {
	var desc DeviceDescription
	if err := xml.Unmarshal(body, &desc); err != nil {
		return DeviceDescription{}, fmt.Errorf("dlna: parse device description: %w", err)
	}
	return desc, nil
}

// DeviceUUID derives a stable UUID v5 for hostname, within the DNS
// namespace, so the engine's advertised UDN stays constant across
// restarts on a given host.
func DeviceUUID(hostname string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(hostname))
}

// BuildDeviceDescription renders the engine's own MediaServer/MediaRenderer
// device description XML, advertising AVTransport, RenderingControl, and
// ConnectionManager service control URLs rooted at httpBaseURL.
func BuildDeviceDescription(deviceUUID uuid.UUID, friendlyName, httpBaseURL string) []byte {
	udn := "uuid:" + deviceUUID.String()
	xmlDoc := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaServer:1</deviceType>
    <friendlyName>%s</friendlyName>
    <manufacturer>aaeq</manufacturer>
    <modelName>aaeq-engine</modelName>
    <UDN>%s</UDN>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
        <SCPDURL>%s/AVTransport.xml</SCPDURL>
        <controlURL>%s/AVTransport/control</controlURL>
        <eventSubURL>%s/AVTransport/event</eventSubURL>
      </service>
      <service>
        <serviceType>urn:schemas-upnp-org:service:RenderingControl:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:RenderingControl</serviceId>
        <SCPDURL>%s/RenderingControl.xml</SCPDURL>
        <controlURL>%s/RenderingControl/control</controlURL>
        <eventSubURL>%s/RenderingControl/event</eventSubURL>
      </service>
      <service>
        <serviceType>urn:schemas-upnp-org:service:ConnectionManager:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:ConnectionManager</serviceId>
        <SCPDURL>%s/ConnectionManager.xml</SCPDURL>
        <controlURL>%s/ConnectionManager/control</controlURL>
        <eventSubURL>%s/ConnectionManager/event</eventSubURL>
      </service>
    </serviceList>
  </device>
</root>`,
		escapeXML(friendlyName), udn,
		httpBaseURL, httpBaseURL, httpBaseURL,
		httpBaseURL, httpBaseURL, httpBaseURL,
		httpBaseURL, httpBaseURL, httpBaseURL,
	)
	return []byte(xmlDoc)
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

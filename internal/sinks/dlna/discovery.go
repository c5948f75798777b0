package dlna

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	ssdpMulticastAddr = "239.255.255.250:1900"
	mediaRendererST    = "urn:schemas-upnp-org:device:MediaRenderer:1"
)

// Discover sends an SSDP M-SEARCH for MediaRenderer devices and collects
// responses until timeout elapses.
func Discover(ctx context.Context, timeout time.Duration) ([]Device, error) {
	addr, err := net.ResolveUDPAddr("udp4", ssdpMulticastAddr)
	if err != nil {
		return nil, fmt.Errorf("dlna: resolve ssdp multicast addr: %w", err)
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("dlna: open ssdp udp socket: %w", err)
	}
	defer conn.Close()

	msearch := fmt.Sprintf(
		"M-SEARCH * HTTP/1.1\r\n"+
			"HOST: 239.255.255.250:1900\r\n"+
			"MAN: \"ssdp:discover\"\r\n"+
			"MX: %d\r\n"+
			"ST: %s\r\n\r\n",
		int(timeout.Seconds()), mediaRendererST,
	)
	if _, err := conn.WriteToUDP([]byte(msearch), addr); err != nil {
		return nil, fmt.Errorf("dlna: send m-search: %w", err)
	}

	deadline := time.Now().Add(timeout)
	_ = conn.SetReadDeadline(deadline)

	var locations []string
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return buildDevices(ctx, locations)
		default:
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // deadline reached
		}
		loc := parseLocation(string(buf[:n]))
		if loc != "" {
			locations = append(locations, loc)
		}
	}
	return buildDevices(ctx, locations)
}

func parseLocation(resp string) string {
	for _, line := range strings.Split(resp, "\r\n") {
		if strings.HasPrefix(strings.ToUpper(line), "LOCATION:") {
			return strings.TrimSpace(line[len("LOCATION:"):])
		}
	}
	return ""
}

func buildDevices(ctx context.Context, locations []string) ([]Device, error) {
	var devices []Device
	for _, loc := range locations {
		d, err := FetchDeviceDescription(ctx, loc)
		if err != nil {
			continue
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// FetchDeviceDescription HTTP-GETs a device description document and
// extracts the fields AANP cares about, resolving service control URLs
// against the description URL.
func FetchDeviceDescription(ctx context.Context, locationURL string) (Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locationURL, nil)
	if err != nil {
		return Device{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Device{}, fmt.Errorf("dlna: fetch device description: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Device{}, err
	}

	desc, err := ParseDeviceDescription(body)
	if err != nil {
		return Device{}, err
	}

	base, err := url.Parse(locationURL)
	if err != nil {
		return Device{}, err
	}

	var avTransportURL string
	for _, svc := range desc.ServiceList {
		if strings.Contains(svc.ServiceType, "AVTransport") {
			resolved, err := base.Parse(svc.ControlURL)
			if err == nil {
				avTransportURL = resolved.String()
			}
		}
	}

	return Device{
		FriendlyName:   desc.FriendlyName,
		UDN:            desc.UDN,
		Manufacturer:   desc.Manufacturer,
		ModelName:      desc.ModelName,
		AVTransportURL: avTransportURL,
	}, nil
}

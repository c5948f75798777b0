package dlna

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

const avTransportServiceType = "urn:schemas-upnp-org:service:AVTransport:1"

// AVTransportClient issues SOAP actions against a renderer's AVTransport
// control URL.
type AVTransportClient struct {
	ControlURL string
	HTTPClient *http.Client
}

// NewAVTransportClient returns a client bound to controlURL.
func NewAVTransportClient(controlURL string) *AVTransportClient {
	return &AVTransportClient{ControlURL: controlURL, HTTPClient: http.DefaultClient}
}

func (c *AVTransportClient) call(ctx context.Context, action, body string) (string, error) {
	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
<s:Body>%s</s:Body>
</s:Envelope>`, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ControlURL, strings.NewReader(envelope))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", `text/xml; charset=utf-8`)
	req.Header.Set("SOAPAction", fmt.Sprintf(`"%s#%s"`, avTransportServiceType, action))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("dlna: soap %s request: %w", action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("dlna: soap %s read response: %w", action, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("dlna: soap %s failed: %d: %s", action, resp.StatusCode, string(respBody))
	}
	return string(respBody), nil
}

// SetAVTransportURI sets the renderer's current URI (and optional
// XML-escaped DIDL-Lite metadata) to stream from.
func (c *AVTransportClient) SetAVTransportURI(ctx context.Context, uri, didlMetadata string) error {
	var metaBuf strings.Builder
	if err := xml.EscapeText(&metaBuf, []byte(didlMetadata)); err != nil {
		return fmt.Errorf("dlna: escape metadata: %w", err)
	}
	var uriBuf strings.Builder
	if err := xml.EscapeText(&uriBuf, []byte(uri)); err != nil {
		return fmt.Errorf("dlna: escape uri: %w", err)
	}

	body := fmt.Sprintf(
		`<u:SetAVTransportURI xmlns:u="%s"><InstanceID>0</InstanceID><CurrentURI>%s</CurrentURI><CurrentURIMetaData>%s</CurrentURIMetaData></u:SetAVTransportURI>`,
		avTransportServiceType, uriBuf.String(), metaBuf.String(),
	)
	_, err := c.call(ctx, "SetAVTransportURI", body)
	return err
}

// Play starts playback at normal speed.
func (c *AVTransportClient) Play(ctx context.Context) error {
	body := fmt.Sprintf(`<u:Play xmlns:u="%s"><InstanceID>0</InstanceID><Speed>1</Speed></u:Play>`, avTransportServiceType)
	_, err := c.call(ctx, "Play", body)
	return err
}

// Stop halts playback.
func (c *AVTransportClient) Stop(ctx context.Context) error {
	body := fmt.Sprintf(`<u:Stop xmlns:u="%s"><InstanceID>0</InstanceID></u:Stop>`, avTransportServiceType)
	_, err := c.call(ctx, "Stop", body)
	return err
}

// Pause pauses playback.
func (c *AVTransportClient) Pause(ctx context.Context) error {
	body := fmt.Sprintf(`<u:Pause xmlns:u="%s"><InstanceID>0</InstanceID></u:Pause>`, avTransportServiceType)
	_, err := c.call(ctx, "Pause", body)
	return err
}

// TransportInfo is the parsed response of GetTransportInfo.
type TransportInfo struct {
	State  string
	Status string
	Speed  string
}

// GetTransportInfo queries the renderer's current transport state.
func (c *AVTransportClient) GetTransportInfo(ctx context.Context) (TransportInfo, error) {
	body := fmt.Sprintf(`<u:GetTransportInfo xmlns:u="%s"><InstanceID>0</InstanceID></u:GetTransportInfo>`, avTransportServiceType)
	resp, err := c.call(ctx, "GetTransportInfo", body)
	if err != nil {
		return TransportInfo{}, err
	}
	return TransportInfo{
		State:  extractTag(resp, "CurrentTransportState"),
		Status: extractTag(resp, "CurrentTransportStatus"),
		Speed:  extractTag(resp, "CurrentSpeed"),
	}, nil
}

// PositionInfo is the parsed response of GetPositionInfo.
type PositionInfo struct {
	Track         string
	TrackDuration string
	RelTime       string
	AbsTime       string
}

// GetPositionInfo queries the renderer's current playback position.
func (c *AVTransportClient) GetPositionInfo(ctx context.Context) (PositionInfo, error) {
	body := fmt.Sprintf(`<u:GetPositionInfo xmlns:u="%s"><InstanceID>0</InstanceID></u:GetPositionInfo>`, avTransportServiceType)
	resp, err := c.call(ctx, "GetPositionInfo", body)
	if err != nil {
		return PositionInfo{}, err
	}
	return PositionInfo{
		Track:         extractTag(resp, "Track"),
		TrackDuration: extractTag(resp, "TrackDuration"),
		RelTime:       extractTag(resp, "RelTime"),
		AbsTime:       extractTag(resp, "AbsTime"),
	}, nil
}

// extractTag pulls the text content of the first <tag>...</tag> occurrence.
func extractTag(body, tag string) string {
	re := regexp.MustCompile(fmt.Sprintf(`<%s>(.*?)</%s>`, regexp.QuoteMeta(tag), regexp.QuoteMeta(tag)))
	m := re.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

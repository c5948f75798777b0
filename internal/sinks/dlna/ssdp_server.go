package dlna

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const ssdpMaxAgeSeconds = 1800

// notificationTypes is the fixed set of NT values the server announces
// and answers M-SEARCH for, alongside the device's own UUID.
var notificationTypes = []string{
	"upnp:rootdevice",
	"urn:schemas-upnp-org:device:MediaServer:1",
	"urn:schemas-upnp-org:device:MediaRenderer:1",
	"urn:schemas-upnp-org:service:ContentDirectory:1",
	"urn:schemas-upnp-org:service:ConnectionManager:1",
	"urn:schemas-upnp-org:service:AVTransport:1",
}

// Announcer runs the SSDP NOTIFY alive/byebye loop and M-SEARCH responder
// for the engine's own advertised MediaServer device.
type Announcer struct {
	deviceUUID  uuid.UUID
	locationURL string
	conn        *net.UDPConn
	logger      *log.Logger
	stopCh      chan struct{}
}

// NewAnnouncer binds a UDP listener on port 1900 joined to the SSDP
// multicast group, ready to NOTIFY and answer M-SEARCH for locationURL
// (the device description document's own URL).
func NewAnnouncer(deviceUUID uuid.UUID, locationURL string, logger *log.Logger) (*Announcer, error) {
	if logger == nil {
		logger = log.Default()
	}
	addr, err := net.ResolveUDPAddr("udp4", ":1900")
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dlna: bind ssdp multicast listener: %w", err)
	}
	return &Announcer{
		deviceUUID:  deviceUUID,
		locationURL: locationURL,
		conn:        conn,
		logger:      logger.With("component", "ssdp-server"),
		stopCh:      make(chan struct{}),
	}, nil
}

// Run announces ssdp:alive immediately, then every max-age seconds, and
// answers incoming M-SEARCH requests, until ctx is canceled or Stop is
// called.
func (a *Announcer) Run(ctx context.Context) {
	a.sendAll("ssdp:alive")

	go a.respondLoop(ctx)

	ticker := time.NewTicker(ssdpMaxAgeSeconds * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.sendAll("ssdp:byebye")
			return
		case <-a.stopCh:
			a.sendAll("ssdp:byebye")
			return
		case <-ticker.C:
			a.sendAll("ssdp:alive")
		}
	}
}

// Stop withdraws the advertisement (best-effort).
func (a *Announcer) Stop() {
	close(a.stopCh)
	_ = a.conn.Close()
}

func (a *Announcer) sendAll(nts string) {
	dst, err := net.ResolveUDPAddr("udp4", ssdpMulticastAddr)
	if err != nil {
		return
	}
	for _, nt := range notificationTypes {
		usn := a.usnFor(nt)
		msg := a.buildNotify(nts, nt, usn)
		if _, err := a.conn.WriteToUDP([]byte(msg), dst); err != nil {
			a.logger.Warn("notify send failed", "nt", nt, "err", err)
		}
	}
	usn := a.usnFor("")
	msg := a.buildNotify(nts, "uuid:"+a.deviceUUID.String(), usn)
	if _, err := a.conn.WriteToUDP([]byte(msg), dst); err != nil {
		a.logger.Warn("notify send failed", "nt", "uuid", "err", err)
	}
}

func (a *Announcer) usnFor(nt string) string {
	if nt == "" {
		return "uuid:" + a.deviceUUID.String()
	}
	return fmt.Sprintf("uuid:%s::%s", a.deviceUUID.String(), nt)
}

func (a *Announcer) buildNotify(nts, nt, usn string) string {
	return fmt.Sprintf(
		"NOTIFY * HTTP/1.1\r\n"+
			"HOST: 239.255.255.250:1900\r\n"+
			"CACHE-CONTROL: max-age=%d\r\n"+
			"LOCATION: %s\r\n"+
			"NT: %s\r\n"+
			"NTS: %s\r\n"+
			"USN: %s\r\n"+
			"SERVER: aaeq/1.0 UPnP/1.0\r\n\r\n",
		ssdpMaxAgeSeconds, a.locationURL, nt, nts, usn,
	)
}

func (a *Announcer) respondLoop(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		default:
		}
		_ = a.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, src, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		req := string(buf[:n])
		if !strings.HasPrefix(req, "M-SEARCH") {
			continue
		}
		st := parseSearchTarget(req)
		if !a.matchesST(st) {
			continue
		}
		resp := a.buildSearchResponse(st)
		_, _ = a.conn.WriteToUDP([]byte(resp), src)
	}
}

func parseSearchTarget(req string) string {
	for _, line := range strings.Split(req, "\r\n") {
		if strings.HasPrefix(strings.ToUpper(line), "ST:") {
			return strings.TrimSpace(line[len("ST:"):])
		}
	}
	return ""
}

func (a *Announcer) matchesST(st string) bool {
	if st == "ssdp:all" || st == "upnp:rootdevice" || st == "uuid:"+a.deviceUUID.String() {
		return true
	}
	for _, nt := range notificationTypes {
		if st == nt {
			return true
		}
	}
	return false
}

func (a *Announcer) buildSearchResponse(st string) string {
	usn := a.usnFor(st)
	if st == "uuid:"+a.deviceUUID.String() {
		usn = "uuid:" + a.deviceUUID.String()
	}
	return fmt.Sprintf(
		"HTTP/1.1 200 OK\r\n"+
			"CACHE-CONTROL: max-age=%d\r\n"+
			"LOCATION: %s\r\n"+
			"SERVER: aaeq/1.0 UPnP/1.0\r\n"+
			"ST: %s\r\n"+
			"USN: %s\r\n\r\n",
		ssdpMaxAgeSeconds, a.locationURL, st, usn,
	)
}

package airplay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// ErrMFiPairingRequired is returned when the target device identifies as
// AirTunes/AirPlay and rejects OPTIONS with 403 — MFi pairing is
// explicitly unsupported by this sink.
type ErrMFiPairingRequired struct{ Server string }

func (e *ErrMFiPairingRequired) Error() string {
	return fmt.Sprintf("airplay: device %q requires MFi pairing, unsupported", e.Server)
}

// ErrAuthNotImplemented is returned when a response carries
// WWW-Authenticate or Apple-Challenge headers.
type ErrAuthNotImplemented struct{}

func (e *ErrAuthNotImplemented) Error() string {
	return "airplay: device requires authentication, not implemented"
}

// Dialog drives the RTSP handshake against one AirPlay receiver.
type Dialog struct {
	conn   net.Conn
	host   string
	cseq   int
	token  string // session token echoed from responses, if any
	dacpID string
	active string
}

// NewDialog opens a TCP connection to host:port for RTSP.
func NewDialog(ctx context.Context, host string, port int) (*Dialog, error) {
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("airplay: dial rtsp %s:%d: %w", host, port, err)
	}
	return &Dialog{
		conn:   conn,
		host:   host,
		dacpID: "0000000000000001",
		active: "0000000000000001",
	}, nil
}

// response is a parsed RTSP response.
type response struct {
	status  int
	headers textproto.MIMEHeader
	body    string
}

func (d *Dialog) send(method, uri, body string, extraHeaders map[string]string) (*response, error) {
	d.cseq++
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s RTSP/1.0\r\n", method, uri)
	fmt.Fprintf(&b, "CSeq: %d\r\n", d.cseq)
	fmt.Fprintf(&b, "Client-Instance: %s\r\n", d.dacpID)
	fmt.Fprintf(&b, "DACP-ID: %s\r\n", d.dacpID)
	fmt.Fprintf(&b, "Active-Remote: %s\r\n", d.active)
	if d.token != "" {
		fmt.Fprintf(&b, "Session: %s\r\n", d.token)
	}
	for k, v := range extraHeaders {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}
	if body != "" {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	b.WriteString(body)

	if err := d.conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return nil, err
	}
	if _, err := d.conn.Write([]byte(b.String())); err != nil {
		return nil, fmt.Errorf("airplay: write %s: %w", method, err)
	}

	return d.readResponse()
}

func (d *Dialog) readResponse() (*response, error) {
	reader := bufio.NewReader(d.conn)
	tp := textproto.NewReader(reader)

	statusLine, err := tp.ReadLine()
	if err != nil {
		return nil, fmt.Errorf("airplay: read status line: %w", err)
	}
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("airplay: malformed status line %q", statusLine)
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("airplay: malformed status code %q", parts[1])
	}

	headers, err := tp.ReadMIMEHeader()
	if err != nil && len(headers) == 0 {
		return nil, fmt.Errorf("airplay: read headers: %w", err)
	}

	body := ""
	if cl := headers.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(cl)
		if err == nil && n > 0 {
			buf := make([]byte, n)
			if _, err := io.ReadFull(reader, buf); err == nil {
				body = string(buf)
			}
		}
	}

	if sess := headers.Get("Session"); sess != "" {
		d.token = sess
	}

	return &response{status: status, headers: headers, body: body}, nil
}

// Options performs the OPTIONS handshake step, failing per the pairing/auth
// rejection rules.
func (d *Dialog) Options(ctx context.Context) error {
	resp, err := d.send("OPTIONS", "*", "", nil)
	if err != nil {
		return err
	}
	if resp.status == 403 {
		server := resp.headers.Get("Server")
		if strings.Contains(server, "AirTunes") || strings.Contains(server, "AirPlay") {
			return &ErrMFiPairingRequired{Server: server}
		}
	}
	if resp.headers.Get("WWW-Authenticate") != "" || resp.headers.Get("Apple-Challenge") != "" {
		return &ErrAuthNotImplemented{}
	}
	return nil
}

// Announce sends the ANNOUNCE request with an SDP body describing the ALAC
// payload.
func (d *Dialog) Announce(ctx context.Context, uri, sdpBody string) error {
	resp, err := d.send("ANNOUNCE", uri, sdpBody, map[string]string{"Content-Type": "application/sdp"})
	if err != nil {
		return err
	}
	if resp.status/100 != 2 {
		return fmt.Errorf("airplay: ANNOUNCE failed: %d", resp.status)
	}
	return nil
}

// Setup sends SETUP with a Transport header requesting UDP ports and
// returns the server's chosen ports.
func (d *Dialog) Setup(ctx context.Context, uri string, clientDataPort, clientControlPort int) (serverDataPort, serverControlPort int, err error) {
	transport := fmt.Sprintf(
		"RTP/AVP/UDP;unicast;interleaved=0-1;mode=record;control_port=%d;timing_port=%d",
		clientControlPort, clientDataPort,
	)
	resp, sendErr := d.send("SETUP", uri, "", map[string]string{"Transport": transport})
	if sendErr != nil {
		return 0, 0, sendErr
	}
	if resp.status/100 != 2 {
		return 0, 0, fmt.Errorf("airplay: SETUP failed: %d", resp.status)
	}
	return parseTransportPorts(resp.headers.Get("Transport"))
}

func parseTransportPorts(transport string) (dataPort, controlPort int, err error) {
	for _, field := range strings.Split(transport, ";") {
		if strings.HasPrefix(field, "server_port=") {
			val := strings.TrimPrefix(field, "server_port=")
			pair := strings.SplitN(val, "-", 2)
			if len(pair) == 2 {
				dataPort, _ = strconv.Atoi(pair[0])
				controlPort, _ = strconv.Atoi(pair[1])
			}
		}
	}
	if dataPort == 0 {
		return 0, 0, fmt.Errorf("airplay: no server_port in Transport header %q", transport)
	}
	return dataPort, controlPort, nil
}

// Record sends RECORD with the initial sequence and RTP timestamp,
// starting the streaming phase.
func (d *Dialog) Record(ctx context.Context, uri string, seq uint16, rtpTime uint32) error {
	rtpInfo := fmt.Sprintf("seq=%d;rtptime=%d", seq, rtpTime)
	resp, err := d.send("RECORD", uri, "", map[string]string{"Range": "npt=0-", "RTP-Info": rtpInfo})
	if err != nil {
		return err
	}
	if resp.status/100 != 2 {
		return fmt.Errorf("airplay: RECORD failed: %d", resp.status)
	}
	return nil
}

// Teardown sends TEARDOWN and closes the control connection.
func (d *Dialog) Teardown(ctx context.Context, uri string) error {
	_, err := d.send("TEARDOWN", uri, "", nil)
	closeErr := d.conn.Close()
	if err != nil {
		return err
	}
	return closeErr
}

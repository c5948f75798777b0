package aanp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ControlPort is the default TCP port an AANP node listens for the
// control-channel websocket on.
const ControlPort = 7100

// RTPPort is the fixed UDP port an AANP node listens for its RTP audio
// side channel on. session_accept carries no separate RTP destination:
// every node binds this port on startup, one fixed offset from
// ControlPort.
const RTPPort = ControlPort + 1

// Conn is a JSON control-channel connection to one AANP node.
type Conn struct {
	ws   *websocket.Conn
	host string
}

// Dial opens the AANP control-channel websocket to host:port.
func Dial(ctx context.Context, host string, port int) (*Conn, error) {
	if port == 0 {
		port = ControlPort
	}
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, port), Path: "/aanp/control"}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("aanp: dial %s: %w", u.String(), err)
	}
	return &Conn{ws: ws, host: host}, nil
}

// Host returns the node's address this connection was dialed to.
func (c *Conn) Host() string { return c.host }

// WriteJSON marshals v and writes it as one text frame.
func (c *Conn) WriteJSON(v any) error {
	return c.ws.WriteJSON(v)
}

// ReadEnvelope blocks for the next control message and returns its raw
// bytes alongside the peeked message type, so the caller can unmarshal
// into the concrete struct for that type.
func (c *Conn) ReadEnvelope() (Envelope, []byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return Envelope{}, nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("aanp: decode envelope: %w", err)
	}
	return env, data, nil
}

// ReadSessionInit blocks for the node's initial session_init message.
func (c *Conn) ReadSessionInit(timeout time.Duration) (SessionInit, error) {
	if timeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(timeout))
	}
	env, data, err := c.ReadEnvelope()
	if err != nil {
		return SessionInit{}, err
	}
	if env.Type != MsgSessionInit {
		return SessionInit{}, fmt.Errorf("aanp: expected %s, got %q", MsgSessionInit, env.Type)
	}
	var init SessionInit
	if err := json.Unmarshal(data, &init); err != nil {
		return SessionInit{}, fmt.Errorf("aanp: decode session_init: %w", err)
	}
	return init, nil
}

// Close closes the underlying websocket connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}

package aanp

import (
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Node is the node side (§4.5.2) of one control-channel connection: it
// sends session_init as soon as a server dials in, then hands the
// negotiated session_accept to OnAccept.
type Node struct {
	Capabilities     NodeCapabilities
	Features         []Feature
	OptionalFeatures []Feature

	// OnAccept is invoked once per accepted session with the server's
	// session_accept. A non-nil error closes the connection.
	OnAccept func(accept SessionAccept) error

	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewNode returns a Node advertising caps/features on every session_init.
func NewNode(caps NodeCapabilities, features, optional []Feature, logger *log.Logger) *Node {
	if logger == nil {
		logger = log.Default()
	}
	return &Node{
		Capabilities:     caps,
		Features:         features,
		OptionalFeatures: optional,
		upgrader:         websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }},
		logger:           logger.With("role", "aanp-node"),
	}
}

// Register binds the control-channel route on an Echo router.
func (n *Node) Register(e *echo.Echo) {
	e.GET("/aanp/control", n.handleControl)
}

func (n *Node) handleControl(c echo.Context) error {
	remote := c.RealIP()
	ws, err := n.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		n.logger.Error("control upgrade failed", "remote", remote, "err", err)
		return fmt.Errorf("aanp: upgrade control channel: %w", err)
	}
	defer ws.Close()

	init := SessionInit{
		Type:             MsgSessionInit,
		ProtocolVersion:  ProtocolVersion,
		NodeUUID:         uuid.New(),
		Features:         n.Features,
		OptionalFeatures: n.OptionalFeatures,
		NodeCapabilities: n.Capabilities,
	}
	if err := ws.WriteJSON(init); err != nil {
		n.logger.Error("write session_init failed", "remote", remote, "err", err)
		return nil
	}

	_ = ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	var accept SessionAccept
	if err := ws.ReadJSON(&accept); err != nil {
		n.logger.Error("read session_accept failed", "remote", remote, "err", err)
		return nil
	}
	_ = ws.SetReadDeadline(time.Time{})

	n.logger.Info("session accepted", "remote", remote, "session_id", accept.SessionID)
	if n.OnAccept != nil {
		if err := n.OnAccept(accept); err != nil {
			n.logger.Warn("session handler returned error", "remote", remote, "err", err)
		}
	}

	// Keep the control channel open for volume/health/DSP messages
	// until the server disconnects.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return nil
		}
	}
}

package aanp

import (
	"context"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestNodeSendsSessionInitAndInvokesOnAccept(t *testing.T) {
	var mu sync.Mutex
	var gotAccept SessionAccept
	acceptedCh := make(chan struct{})

	node := NewNode(
		NodeCapabilities{Platform: "linux", DACName: "Test DAC"},
		[]Feature{FeatureCapabilities, FeatureVolumeControl},
		nil,
		nil,
	)
	node.OnAccept = func(accept SessionAccept) error {
		mu.Lock()
		gotAccept = accept
		mu.Unlock()
		close(acceptedCh)
		return nil
	}

	e := echo.New()
	node.Register(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	host, portStr := splitTestServerURL(t, srv.URL)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	conn, err := Dial(context.Background(), host, port)
	require.NoError(t, err)
	defer conn.Close()

	init, err := conn.ReadSessionInit(time.Second)
	require.NoError(t, err)
	require.Equal(t, "Test DAC", init.NodeCapabilities.DACName)

	accept := SessionAccept{Type: MsgSessionAccept, ProtocolVersion: ProtocolVersion, SessionID: "srv-1"}
	require.NoError(t, conn.WriteJSON(accept))

	select {
	case <-acceptedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("OnAccept was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "srv-1", gotAccept.SessionID)
}

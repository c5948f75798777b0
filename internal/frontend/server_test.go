package frontend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaschadub/aaeq/internal/engine"
	"github.com/jaschadub/aaeq/internal/store/memstore"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng := engine.New(memstore.New(), "Flat", nil)
	return New(eng, nil)
}

func TestHandleHealthReportsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	require.NoError(t, s.handleHealth(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestHandleCommandRejectsMissingType(t *testing.T) {
	s := newTestServer(t)
	body, err := json.Marshal(map[string]string{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	err = s.handleCommand(c)
	require.Error(t, err)
}

func TestHandleCommandRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	err := s.handleCommand(c)
	require.Error(t, err)
}

func TestHandleCommandEnqueuesOnEngine(t *testing.T) {
	s := newTestServer(t)
	body, err := json.Marshal(engine.Command{Type: engine.CmdRefreshPresets})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)

	require.NoError(t, s.handleCommand(c))
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case cmd := <-s.engine.Commands():
		require.Equal(t, engine.CmdRefreshPresets, cmd.Type)
	case <-time.After(time.Second):
		t.Fatal("command was not enqueued")
	}
}

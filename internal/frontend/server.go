// Package frontend exposes engine.Engine over HTTP: POST /commands
// accepts one JSON-encoded Command, GET /events streams JSON Events as
// a server-sent-events feed. It exists so a non-Go front-end can drive
// the engine without linking against it directly.
package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/jaschadub/aaeq/internal/engine"
)

// Server is the Echo application fronting one Engine.
type Server struct {
	echo   *echo.Echo
	engine *engine.Engine
	logger *log.Logger
}

// New constructs an Echo app with the /commands and /events routes
// wired to eng.
func New(eng *engine.Engine, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, engine: eng, logger: logger}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/commands", s.handleCommand)
	s.echo.GET("/events", s.handleEvents)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleCommand decodes one Command from the request body and enqueues
// it on the engine's command channel. It does not wait for a reply —
// the caller observes the effect on the /events stream.
func (s *Server) handleCommand(c echo.Context) error {
	var cmd engine.Command
	if err := json.NewDecoder(c.Request().Body).Decode(&cmd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("decode command: %v", err))
	}
	if cmd.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "command type is required")
	}

	select {
	case s.engine.Commands() <- cmd:
	case <-time.After(time.Second):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "engine command queue is full")
	case <-c.Request().Context().Done():
		return c.Request().Context().Err()
	}
	return c.NoContent(http.StatusAccepted)
}

// handleEvents streams every Event the engine emits as SSE until the
// client disconnects.
func (s *Server) handleEvents(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.engine.Events():
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("marshal event for SSE", "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

// Run starts Echo on addr and blocks until ctx is canceled or startup
// fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down http front-end")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutCtx)
	}
}

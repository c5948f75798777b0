// Package dlna implements the DLNA/UPnP MediaRenderer sink: an HTTP-pull
// WAV stream plus SSDP discovery/announcement and AVTransport SOAP control.
package dlna

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/jaschadub/aaeq/internal/audio"
)

// maxBufferBytes bounds the sink's internal byte buffer; overflow drops the
// oldest bytes and records a buffer_overrun.
const maxBufferBytes = 10 * 1024 * 1024

// Mode selects whether the sink only serves HTTP (the renderer is
// expected to pull) or additionally drives the renderer via AVTransport.
type Mode int

const (
	ModePull Mode = iota
	ModePush
)

// Device identifies a discovered (or manually configured) DLNA renderer.
type Device struct {
	FriendlyName string
	UDN          string
	Manufacturer string
	ModelName    string
	AVTransportURL string
}

// Sink streams PCM audio to a DLNA MediaRenderer over HTTP, optionally
// driving playback via AVTransport SOAP.
type Sink struct {
	mu sync.Mutex

	mode     Mode
	bindAddr string
	device   Device
	profile  Profile

	server   *http.Server
	listener net.Listener

	buf       []byte
	cfg       audio.OutputConfig
	open      bool
	underruns uint64
	overruns  uint64

	logger *log.Logger
}

// New returns a DLNA sink bound to bindAddr (e.g. "0.0.0.0:8089"),
// targeting device in the given mode.
func New(bindAddr string, device Device, mode Mode, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{
		bindAddr: bindAddr,
		device:   device,
		mode:     mode,
		profile:  InferProfile(device.Manufacturer, device.ModelName, device.FriendlyName),
		logger:   logger.With("sink", "dlna", "device", device.FriendlyName),
	}
}

// Name implements sinks.Sink.
func (s *Sink) Name() string { return s.device.FriendlyName }

// Open implements sinks.Sink: starts the HTTP server and, in push mode,
// instructs the renderer to pull from it.
func (s *Sink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return fmt.Errorf("dlna: sink already open")
	}
	s.cfg = s.profile.AdjustConfig(cfg)
	s.buf = nil
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.bindAddr)
	if err != nil {
		return fmt.Errorf("dlna: listen %s: %w", s.bindAddr, err)
	}

	e := echo.New()
	e.HideBanner = true
	e.GET("/stream.wav", s.handleStream)
	e.GET("/status", s.handleStatus)

	srv := &http.Server{Handler: e}

	s.mu.Lock()
	s.listener = ln
	s.server = srv
	s.open = true
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server exited", "err", err)
		}
	}()

	if s.mode == ModePush {
		streamURL := fmt.Sprintf("http://%s/stream.wav", ln.Addr().String())
		client := NewAVTransportClient(s.device.AVTransportURL)
		if err := client.SetAVTransportURI(ctx, streamURL, ""); err != nil {
			return fmt.Errorf("dlna: SetAVTransportURI: %w", err)
		}
		if err := client.Play(ctx); err != nil {
			return fmt.Errorf("dlna: Play: %w", err)
		}
	}

	s.logger.Info("opened", "addr", ln.Addr().String(), "mode", s.mode, "format", s.cfg.Format)
	return nil
}

// Write implements sinks.Sink: converts block and appends to the buffer,
// dropping the oldest bytes on overflow.
func (s *Sink) Write(ctx context.Context, block audio.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return fmt.Errorf("dlna: write on closed sink")
	}
	s.buf = audio.ConvertFormat(block, s.cfg.Format, s.buf)
	if over := len(s.buf) - maxBufferBytes; over > 0 {
		s.buf = s.buf[over:]
		s.overruns++
	}
	return nil
}

// Drain implements sinks.Sink: waits for the buffer to empty.
func (s *Sink) Drain(ctx context.Context) error {
	for {
		s.mu.Lock()
		empty := len(s.buf) == 0
		s.mu.Unlock()
		if empty {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Close implements sinks.Sink: shuts down the HTTP server.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// LatencyMs implements sinks.Sink: the current buffer fill expressed as
// playback milliseconds.
func (s *Sink) LatencyMs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.SampleRate == 0 || s.cfg.Channels == 0 {
		return 0
	}
	bytesPerFrame := s.cfg.Format.BytesPerSample() * s.cfg.Channels
	if bytesPerFrame == 0 {
		return 0
	}
	frames := float64(len(s.buf)) / float64(bytesPerFrame)
	return frames / float64(s.cfg.SampleRate) * 1000
}

// IsOpen implements sinks.Sink.
func (s *Sink) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// handleStream serves the WAV header (with streaming-unknown sizes) then
// whatever PCM bytes are currently buffered, in a chunked response.
func (s *Sink) handleStream(c echo.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	profile := s.profile
	s.mu.Unlock()

	resp := c.Response()
	resp.Header().Set("Content-Type", "audio/wav")
	for k, v := range profile.ExtraHeaders {
		resp.Header().Set(k, v)
	}
	if profile.HasQuirk(QuirkNoChunkedTransfer) {
		resp.Header().Set("Content-Length", fmt.Sprintf("%d", 0xFFFFFFFF))
	}
	resp.WriteHeader(http.StatusOK)

	header := WAVHeader(cfg.SampleRate, cfg.Channels, cfg.Format.BitDepth())
	if _, err := resp.Write(header); err != nil {
		return err
	}

	for {
		s.mu.Lock()
		chunk := s.buf
		s.buf = nil
		open := s.open
		s.mu.Unlock()
		if !open {
			return nil
		}
		if len(chunk) == 0 {
			select {
			case <-c.Request().Context().Done():
				return nil
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}
		if _, err := resp.Write(chunk); err != nil {
			return nil
		}
		resp.Flush()
	}
}

func (s *Sink) handleStatus(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{
		"open":          s.open,
		"sample_rate":   s.cfg.SampleRate,
		"channels":      s.cfg.Channels,
		"format":        s.cfg.Format.String(),
		"buffer_bytes":  len(s.buf),
		"overruns":      s.overruns,
		"device":        s.device.FriendlyName,
	})
}

// WAVHeader builds a 44-byte streaming WAV header with 0xFFFFFFFF size
// fields (total size unknown ahead of time), per the pull-mode contract.
func WAVHeader(sampleRate, channels, bitDepth int) []byte {
	buf := make([]byte, 44)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 0xFFFFFFFF)
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	byteRate := sampleRate * channels * bitDepth / 8
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	blockAlign := channels * bitDepth / 8
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitDepth))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], 0xFFFFFFFF)
	return buf
}

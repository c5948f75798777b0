// Package nodeserver implements the AANP node side end to end: it
// answers the control-channel handshake (internal/aanp.Node), then
// once a session is accepted, listens on the RTP port and feeds
// decoded audio into a local sinks.Sink.
package nodeserver

import (
	"context"
	"fmt"
	"hash/crc32"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/jaschadub/aaeq/internal/aanp"
	"github.com/jaschadub/aaeq/internal/audio"
	"github.com/jaschadub/aaeq/internal/jitter"
	"github.com/jaschadub/aaeq/internal/sinks"
)

// rtpReadBuffer bounds one UDP datagram read; well over any packet this
// protocol produces at framesPerPacket-sized chunks.
const rtpReadBuffer = 4096

// Server wires an aanp.Node's accepted session to a playback sinks.Sink:
// audio arrives over RTP and is decoded, gapless/CRC32 trailers stripped
// per the negotiated extensions, and written to the sink as audio.Block.
type Server struct {
	node   *aanp.Node
	sink   sinks.Sink
	logger *log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	lastErr error

	monitorTap     *OpusMonitorTap
	monitorBitrate int
}

// SetMonitorTap attaches an experimental Opus round-trip tap that runs
// alongside (never instead of) the real PCM playback path, for debug
// inspection of how small the stream would be if it were compressed.
func (s *Server) SetMonitorTap(tap *OpusMonitorTap, bitrateBps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitorTap = tap
	s.monitorBitrate = bitrateBps
}

// New returns a Server that advertises caps/features on its control
// channel and plays accepted sessions out through sink.
func New(caps aanp.NodeCapabilities, features, optional []aanp.Feature, sink sinks.Sink, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{sink: sink, logger: logger.With("component", "nodeserver")}
	s.node = aanp.NewNode(caps, features, optional, logger)
	s.node.OnAccept = s.onAccept
	return s
}

// Register binds the control-channel route on an Echo router.
func (s *Server) Register(e *echo.Echo) {
	s.node.Register(e)
}

// onAccept opens the sink at the server's recommended configuration and
// starts the RTP receive loop. It is invoked on the control-channel's
// own goroutine, so it must not block past setup.
func (s *Server) onAccept(accept aanp.SessionAccept) error {
	format, err := audio.ParseFormat(accept.RecommendedConfig.Format)
	if err != nil {
		format = audio.S16LE
	}
	cfg := audio.OutputConfig{
		SampleRate: accept.RecommendedConfig.SampleRate,
		Channels:   2,
		Format:     format,
		BufferMs:   accept.RecommendedConfig.BufferMs,
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = accept.RTPConfig.TimestampRate
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.sink.Open(ctx, cfg); err != nil {
		cancel()
		return fmt.Errorf("nodeserver: open sink: %w", err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: aanp.RTPPort})
	if err != nil {
		cancel()
		_ = s.sink.Close()
		return fmt.Errorf("nodeserver: listen rtp :%d: %w", aanp.RTPPort, err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	depth := accept.Buffer.StartThresholdMs / estimatedPacketMs
	jb := jitter.New(depth, 2*time.Second)
	var jbMu sync.Mutex

	go s.receiveLoop(ctx, conn, accept, jb, &jbMu)
	go s.playbackLoop(ctx, accept, cfg, jb, &jbMu)
	return nil
}

// estimatedPacketMs is the sender's packetization interval assumed when
// sizing the jitter buffer from buffer.start_threshold_ms, and the
// playback tick the jitter buffer is drained at: aanpnode's sink frames
// 480-sample chunks, ~10ms at the sample rates this protocol targets.
const estimatedPacketMs = 10

// receiveLoop reads RTP packets until ctx is canceled or the socket
// errors, pushing each into the session's jitter buffer keyed by RTP
// sequence number. playbackLoop drains the buffer independently, so
// reordering or brief gaps on the UDP path don't reach playback as
// audible glitches.
func (s *Server) receiveLoop(ctx context.Context, conn *net.UDPConn, accept aanp.SessionAccept, jb *jitter.Buffer, jbMu *sync.Mutex) {
	defer conn.Close()

	buf := make([]byte, rtpReadBuffer)
	hasGapless := accept.RTPExtensions.Gapless.Enabled
	hasCRC32 := accept.RTPExtensions.CRC32.Enabled

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			s.recordErr(fmt.Errorf("nodeserver: read rtp: %w", err))
			return
		}

		pkt, err := aanp.UnmarshalPacket(buf[:n], hasGapless, hasCRC32)
		if err != nil {
			s.logger.Warn("drop malformed rtp packet", "err", err)
			continue
		}
		if hasCRC32 && pkt.CRC32 != nil {
			if crc32.ChecksumIEEE(pkt.Payload) != pkt.CRC32.Value {
				s.logger.Warn("rtp payload failed crc32 check", "seq", pkt.Header.SequenceNumber)
				continue
			}
		}

		jbMu.Lock()
		jb.Push(pkt.Header.SequenceNumber, pkt.Payload)
		jbMu.Unlock()
	}
}

// playbackLoop drains one frame from the jitter buffer every
// estimatedPacketMs and writes it to the sink, substituting silence for
// a reported missing frame so the sink's clock never stalls.
func (s *Server) playbackLoop(ctx context.Context, accept aanp.SessionAccept, cfg audio.OutputConfig, jb *jitter.Buffer, jbMu *sync.Mutex) {
	defer s.sink.Close()

	ticker := time.NewTicker(estimatedPacketMs * time.Millisecond)
	defer ticker.Stop()

	var lastFrames int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		jbMu.Lock()
		payload, ok := jb.Pop()
		jbMu.Unlock()
		if !ok {
			continue // still priming
		}

		if payload == nil {
			if lastFrames == 0 {
				continue
			}
			if err := s.sink.Write(ctx, audio.NewBlock(make([]float64, lastFrames*cfg.Channels), cfg.SampleRate, cfg.Channels)); err != nil {
				s.recordErr(fmt.Errorf("nodeserver: write sink: %w", err))
				return
			}
			continue
		}

		block := decodeBlock(payload, cfg)
		lastFrames = block.Frames()
		if err := s.sink.Write(ctx, block); err != nil {
			s.recordErr(fmt.Errorf("nodeserver: write sink: %w", err))
			return
		}
		s.tapMonitor(block)
	}
}

// tapMonitor runs the attached debug tap, if any, against a played block
// and logs the resulting compressed size. Errors are logged, not fatal:
// the tap is diagnostic only and never gates playback.
func (s *Server) tapMonitor(block audio.Block) {
	s.mu.Lock()
	tap, bitrate := s.monitorTap, s.monitorBitrate
	s.mu.Unlock()
	if tap == nil {
		return
	}
	n, _, err := tap.RoundTrip(block, bitrate)
	if err != nil {
		s.logger.Warn("opus monitor tap round trip failed", "err", err)
		return
	}
	s.logger.Debug("opus monitor tap", "compressed_bytes", n, "pcm_samples", len(block.Samples))
}

// decodeBlock converts a raw S16LE/S24LE RTP payload into an audio.Block
// of float64 samples in [-1, 1].
func decodeBlock(payload []byte, cfg audio.OutputConfig) audio.Block {
	bps := cfg.Format.BytesPerSample()
	if bps == 0 {
		bps = audio.S16LE.BytesPerSample()
	}
	n := len(payload) / bps
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		off := i * bps
		switch cfg.Format {
		case audio.S24LE:
			samples[i] = float64(audio.DecodeS24LE(payload, off)) / (1 << 23)
		default:
			samples[i] = float64(audio.DecodeS16LE(payload, off)) / (1 << 15)
		}
	}
	return audio.NewBlock(samples, cfg.SampleRate, cfg.Channels)
}

// recordErr stashes the terminal error of the receive or playback loop
// for Err to report and cancels any in-flight session state.
func (s *Server) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if s.cancel != nil {
		s.cancel()
	}
}

// Err returns the last error the RTP receive loop or the playback loop
// terminated with, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stop cancels the active session's receive loop, if one is running.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Package aanpnode implements sinks.Sink over an already-negotiated
// AANP session: it streams DSP-processed audio to a remote node as RTP,
// using the wire format session_accept agreed on.
package aanpnode

import (
	"context"
	"fmt"
	"hash/crc32"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jaschadub/aaeq/internal/aanp"
	"github.com/jaschadub/aaeq/internal/audio"
)

// framesPerPacket bounds RTP payload size to something well under typical
// path MTU at 16-bit stereo (1920 bytes for 480 frames @ 2ch).
const framesPerPacket = 480

// Sink streams audio to one AANP node over RTP/UDP, framed per the
// RTPConfig and RTPExtensions negotiated in session_accept.
type Sink struct {
	mu sync.Mutex

	host   string
	accept aanp.SessionAccept

	conn   net.Conn
	stream *aanp.Stream
	open   bool
	cfg    audio.OutputConfig

	logger *log.Logger
}

// New returns a Sink that will stream to host's RTP port once Open is
// called, framed according to accept (the session_accept this engine
// already sent the node).
func New(host string, accept aanp.SessionAccept, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{host: host, accept: accept, logger: logger.With("sink", "aanp-node", "host", host)}
}

// Name implements sinks.Sink.
func (s *Sink) Name() string { return s.host }

// Open implements sinks.Sink: dials the node's fixed RTP UDP port.
func (s *Sink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("aanpnode: sink already open")
	}

	addr := fmt.Sprintf("%s:%d", s.host, aanp.RTPPort)
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("aanpnode: dial rtp %s: %w", addr, err)
	}

	s.conn = conn
	s.stream = aanp.NewStream(s.accept.RTPConfig.PayloadType, s.accept.RTPConfig.SSRC)
	s.cfg = cfg
	s.open = true
	s.logger.Info("opened", "rtp_addr", addr)
	return nil
}

// Write implements sinks.Sink: converts the block to 16-bit PCM,
// packetizes it in framesPerPacket chunks, and writes each as one RTP
// datagram with the negotiated trailers.
func (s *Sink) Write(ctx context.Context, block audio.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return fmt.Errorf("aanpnode: write on closed sink")
	}

	pcm := audio.ConvertFormat(block, audio.S16LE, nil)
	bytesPerFrame := audio.S16LE.BytesPerSample() * s.cfg.Channels
	if bytesPerFrame == 0 {
		return nil
	}
	chunkBytes := framesPerPacket * bytesPerFrame

	for off := 0; off < len(pcm); off += chunkBytes {
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		payload := pcm[off:end]
		frames := aanp.FramesFromPayload(len(payload), s.cfg.Channels, audio.S16LE.BytesPerSample())

		pkt := s.stream.Next(payload, frames)
		if s.accept.RTPExtensions.Gapless.Enabled {
			g := aanp.GaplessPayloadExt{ID: s.accept.RTPExtensions.Gapless.ExtensionID}
			pkt.Gapless = &g
		}
		if s.accept.RTPExtensions.CRC32.Enabled {
			pkt.CRC32 = &aanp.CRC32PayloadExt{Value: crc32.ChecksumIEEE(payload)}
		}

		data, err := pkt.Marshal()
		if err != nil {
			return fmt.Errorf("aanpnode: marshal rtp packet: %w", err)
		}
		if _, err := s.conn.Write(data); err != nil {
			return fmt.Errorf("aanpnode: send rtp packet: %w", err)
		}
	}
	return nil
}

// Drain implements sinks.Sink. RTP is fire-and-forget on this side;
// there is no server-visible receiver queue to wait out.
func (s *Sink) Drain(ctx context.Context) error {
	return nil
}

// Close implements sinks.Sink.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	return s.conn.Close()
}

// LatencyMs implements sinks.Sink: the fixed per-packet framing latency,
// a lower bound since the node's own jitter buffer adds more.
func (s *Sink) LatencyMs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.SampleRate == 0 {
		return 0
	}
	return float64(framesPerPacket) / float64(s.cfg.SampleRate) * 1000
}

// IsOpen implements sinks.Sink.
func (s *Sink) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

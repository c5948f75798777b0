package airplay

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jaschadub/aaeq/internal/audio"
)

// Target identifies the AirPlay receiver to connect to.
type Target struct {
	Name string
	Host string
	Port int // RTSP control port, typically 5000
}

// Sink streams audio to an AirPlay (RAOP) receiver.
type Sink struct {
	mu sync.Mutex

	target Target
	cfg    audio.OutputConfig

	dialog *Dialog
	stream *MediaStream
	open   bool

	logger *log.Logger
}

// New returns an AirPlay sink targeting target. Open must be called
// before Write.
func New(target Target, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.Default()
	}
	return &Sink{target: target, logger: logger.With("sink", "airplay", "device", target.Name)}
}

// Name implements sinks.Sink.
func (s *Sink) Name() string { return s.target.Name }

// Open implements sinks.Sink: runs the RTSP dialog (OPTIONS, ANNOUNCE,
// SETUP, RECORD) then opens the UDP media sockets.
func (s *Sink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("airplay: sink already open")
	}

	dialog, err := NewDialog(ctx, s.target.Host, s.target.Port)
	if err != nil {
		return err
	}

	if err := dialog.Options(ctx); err != nil {
		return err
	}

	uri := fmt.Sprintf("rtsp://%s:%d/aaeq", s.target.Host, s.target.Port)
	sdp := buildSDP(s.target.Host, cfg)
	if err := dialog.Announce(ctx, uri, sdp); err != nil {
		return err
	}

	const clientDataPort, clientControlPort = 6000, 6001
	dataPort, controlPort, err := dialog.Setup(ctx, uri, clientDataPort, clientControlPort)
	if err != nil {
		return err
	}

	ssrc := uint32(0x41415150) // "AAEQ" derived constant, deterministic per process
	stream, err := NewMediaStream(s.target.Host, dataPort, controlPort, ssrc)
	if err != nil {
		return err
	}

	if err := dialog.Record(ctx, uri, stream.SequenceNumber(), stream.Timestamp()); err != nil {
		stream.Close()
		return err
	}

	s.dialog = dialog
	s.stream = stream
	s.cfg = cfg
	s.open = true
	s.logger.Info("opened", "host", s.target.Host, "data_port", dataPort, "control_port", controlPort)
	return nil
}

func buildSDP(host string, cfg audio.OutputConfig) string {
	return fmt.Sprintf(
		"v=0\r\no=aaeq 0 0 IN IP4 %s\r\ns=AAEQ\r\nc=IN IP4 %s\r\nt=0 0\r\n"+
			"m=audio 0 RTP/AVP 96\r\na=rtpmap:96 AppleLossless\r\n"+
			"a=fmtp:96 %d 0 16 40 10 14 2 255 0 0 44100\r\n",
		host, host, FramesPerPacket,
	)
}

// Write implements sinks.Sink: converts the block to 16-bit PCM and
// streams it as ALAC-framed RTP packets.
func (s *Sink) Write(ctx context.Context, block audio.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return fmt.Errorf("airplay: write on closed sink")
	}

	pcmBytes := audio.ConvertFormat(block, audio.S16LE, nil)
	pcm := make([]int16, len(pcmBytes)/2)
	for i := range pcm {
		pcm[i] = audio.DecodeS16LE(pcmBytes, i*2)
	}

	for _, packet := range SplitIntoPackets(pcm, s.cfg.Channels) {
		if err := s.stream.SendALACFrame(packet); err != nil {
			return fmt.Errorf("airplay: send rtp packet: %w", err)
		}
	}
	return nil
}

// Drain implements sinks.Sink. RAOP has no server-side buffer query, so
// this is a no-op once all Write calls have returned.
func (s *Sink) Drain(ctx context.Context) error {
	return nil
}

// Close implements sinks.Sink: sends TEARDOWN and closes the UDP sockets.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false

	var err error
	if s.stream != nil {
		err = s.stream.Close()
	}
	if s.dialog != nil {
		uri := fmt.Sprintf("rtsp://%s:%d/aaeq", s.target.Host, s.target.Port)
		if tErr := s.dialog.Teardown(context.Background(), uri); tErr != nil && err == nil {
			err = tErr
		}
	}
	return err
}

// LatencyMs implements sinks.Sink. RAOP doesn't expose a queryable
// receiver buffer depth, so this reports the fixed frames-per-packet
// latency as a lower bound.
func (s *Sink) LatencyMs() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.SampleRate == 0 {
		return 0
	}
	return float64(FramesPerPacket) / float64(s.cfg.SampleRate) * 1000
}

// IsOpen implements sinks.Sink.
func (s *Sink) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

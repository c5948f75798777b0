package nodeserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/jaschadub/aaeq/internal/aanp"
	"github.com/jaschadub/aaeq/internal/audio"
	"github.com/jaschadub/aaeq/internal/jitter"
)

type fakeSink struct {
	mu     sync.Mutex
	open   bool
	writes []audio.Block
	cfg    audio.OutputConfig
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Open(ctx context.Context, cfg audio.OutputConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = true
	f.cfg = cfg
	return nil
}

func (f *fakeSink) Write(ctx context.Context, block audio.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, block)
	return nil
}

func (f *fakeSink) Drain(ctx context.Context) error { return nil }

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *fakeSink) LatencyMs() float64 { return 0 }

func (f *fakeSink) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSink) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestOnAcceptOpensSinkAtRecommendedConfig(t *testing.T) {
	sink := &fakeSink{}
	s := New(aanp.NodeCapabilities{Platform: "linux"}, nil, nil, sink, nil)

	accept := aanp.SessionAccept{
		RTPConfig:         aanp.RTPConfig{PayloadType: aanp.PayloadTypeL16, SSRC: 1, TimestampRate: 44100},
		RecommendedConfig: aanp.RecommendedConfig{SampleRate: 48000, Format: "S16LE"},
	}
	// aanp.RTPPort is a fixed port; skip if something else in the test
	// environment already owns it.
	probe, err := net.ListenUDP("udp", &net.UDPAddr{Port: aanp.RTPPort})
	if err != nil {
		t.Skipf("aanp.RTPPort unavailable in this environment: %v", err)
	}
	probe.Close()

	require.NoError(t, s.onAccept(accept))
	defer s.Stop()

	require.True(t, sink.IsOpen())
	require.Equal(t, 48000, sink.cfg.SampleRate)
	require.Equal(t, audio.S16LE, sink.cfg.Format)
}

func TestReceiveLoopDecodesPacketsIntoSinkWrites(t *testing.T) {
	sink := &fakeSink{}
	cfg := audio.OutputConfig{SampleRate: 44100, Channels: 2, Format: audio.S16LE}

	clientConn, err := net.Dial("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	s := &Server{sink: sink, logger: log.Default()}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sink.Open(ctx, cfg))

	accept := aanp.SessionAccept{RTPConfig: aanp.RTPConfig{PayloadType: aanp.PayloadTypeL16, SSRC: 7}}
	jb := jitter.New(1, 2*time.Second)
	var jbMu sync.Mutex
	go s.receiveLoop(ctx, serverConn, accept, jb, &jbMu)
	go s.playbackLoop(ctx, accept, cfg, jb, &jbMu)

	stream := aanp.NewStream(aanp.PayloadTypeL16, 7)
	payload := audio.ConvertFormat(audio.NewBlock([]float64{0.1, -0.1, 0.2, -0.2}, 44100, 2), audio.S16LE, nil)
	pkt := stream.Next(payload, 2)
	data, err := pkt.Marshal()
	require.NoError(t, err)

	dest, err := net.ResolveUDPAddr("udp", serverConn.LocalAddr().String())
	require.NoError(t, err)
	conn, err := net.DialUDP("udp", nil, dest)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(data)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.writeCount() > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
}

func TestReceiveLoopReordersOutOfOrderPackets(t *testing.T) {
	sink := &fakeSink{}
	cfg := audio.OutputConfig{SampleRate: 44100, Channels: 1, Format: audio.S16LE}

	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	s := &Server{sink: sink, logger: log.Default()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sink.Open(ctx, cfg))

	// buffer.start_threshold_ms of 20ms at estimatedPacketMs=10 primes
	// after 2 packets, giving room to reorder one swapped pair.
	accept := aanp.SessionAccept{
		RTPConfig: aanp.RTPConfig{PayloadType: aanp.PayloadTypeL16, SSRC: 9},
		Buffer:    aanp.BufferConfig{StartThresholdMs: 20},
	}
	jb := jitter.New(2, 2*time.Second)
	var jbMu sync.Mutex
	go s.receiveLoop(ctx, serverConn, accept, jb, &jbMu)
	go s.playbackLoop(ctx, accept, cfg, jb, &jbMu)

	dest, err := net.ResolveUDPAddr("udp", serverConn.LocalAddr().String())
	require.NoError(t, err)
	conn, err := net.DialUDP("udp", nil, dest)
	require.NoError(t, err)
	defer conn.Close()

	stream := aanp.NewStream(aanp.PayloadTypeL16, 9)
	pkt0 := stream.Next(audio.ConvertFormat(audio.NewBlock([]float64{0.1}, 44100, 1), audio.S16LE, nil), 1)
	pkt1 := stream.Next(audio.ConvertFormat(audio.NewBlock([]float64{0.2}, 44100, 1), audio.S16LE, nil), 1)
	pkt2 := stream.Next(audio.ConvertFormat(audio.NewBlock([]float64{0.3}, 44100, 1), audio.S16LE, nil), 1)

	// Send out of order: 0, 2, 1.
	for _, pkt := range []aanp.Packet{pkt0, pkt2, pkt1} {
		data, err := pkt.Marshal()
		require.NoError(t, err)
		_, err = conn.Write(data)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return sink.writeCount() >= 3 }, 2*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.InDelta(t, 0.1, sink.writes[0].Samples[0], 0.01)
	require.InDelta(t, 0.2, sink.writes[1].Samples[0], 0.01)
	require.InDelta(t, 0.3, sink.writes[2].Samples[0], 0.01)
}

func TestDecodeBlockS16LERoundTrips(t *testing.T) {
	cfg := audio.OutputConfig{SampleRate: 44100, Channels: 1, Format: audio.S16LE}
	payload := audio.ConvertFormat(audio.NewBlock([]float64{0.5, -0.5}, 44100, 1), audio.S16LE, nil)
	block := decodeBlock(payload, cfg)
	require.Len(t, block.Samples, 2)
	require.InDelta(t, 0.5, block.Samples[0], 0.01)
	require.InDelta(t, -0.5, block.Samples[1], 0.01)
}

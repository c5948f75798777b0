package aanpnode

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaschadub/aaeq/internal/aanp"
	"github.com/jaschadub/aaeq/internal/audio"
)

// listenOnRTPPort binds aanp.RTPPort on loopback so Sink.Open's fixed-port
// dial has somewhere real to send to.
func listenOnRTPPort(t *testing.T) (*net.UDPConn, string) {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:"+strconv.Itoa(aanp.RTPPort))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		t.Skipf("aanp.RTPPort unavailable in this environment: %v", err)
	}
	return conn, "127.0.0.1"
}

func TestSinkWriteSendsRTPPacket(t *testing.T) {
	listener, host := listenOnRTPPort(t)
	defer listener.Close()

	accept := aanp.SessionAccept{
		RTPConfig: aanp.RTPConfig{SSRC: 0xAAE0C0DE, PayloadType: aanp.PayloadTypeL16},
	}
	s := New(host, accept, nil)
	require.NoError(t, s.Open(context.Background(), audio.OutputConfig{SampleRate: 44100, Channels: 2, Format: audio.S16LE}))
	defer s.Close()

	block := audio.NewBlock([]float64{0.1, -0.1, 0.2, -0.2}, 44100, 2)
	require.NoError(t, s.Write(context.Background(), block))

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, err := listener.Read(buf)
	require.NoError(t, err)
	require.Greater(t, n, 12) // at least the RTP header

	pkt, err := aanp.UnmarshalPacket(buf[:n], false, false)
	require.NoError(t, err)
	require.Equal(t, uint32(0xAAE0C0DE), pkt.Header.SSRC)
	require.Equal(t, aanp.PayloadTypeL16, pkt.Header.PayloadType)
}

func TestSinkWriteFailsWhenClosed(t *testing.T) {
	s := New("127.0.0.1", aanp.SessionAccept{}, nil)
	err := s.Write(context.Background(), audio.NewBlock([]float64{0, 0}, 44100, 2))
	require.Error(t, err)
}

func TestSinkLatencyMsReflectsSampleRate(t *testing.T) {
	s := New("127.0.0.1", aanp.SessionAccept{}, nil)
	s.cfg = audio.OutputConfig{SampleRate: 48000}
	s.open = true
	require.InDelta(t, float64(framesPerPacket)/48000*1000, s.LatencyMs(), 1e-9)
}

func TestSinkIsOpenReflectsState(t *testing.T) {
	s := New("127.0.0.1", aanp.SessionAccept{}, nil)
	require.False(t, s.IsOpen())
}

package airplay

import (
	"net"
	"strconv"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// payloadTypeALAC is the dynamic RTP payload type AirPlay receivers expect
// for the ALAC-framed stream.
const payloadTypeALAC uint8 = 96

// MediaStream owns the UDP data and control sockets for one AirPlay
// session and tracks RTP sequence/timestamp plus RTCP sender-report state.
type MediaStream struct {
	dataConn    *net.UDPConn
	controlConn *net.UDPConn

	seq uint16
	ts  uint32
	ssrc uint32

	packetsSent uint32
	octetsSent  uint32
	sinceReport int
}

// NewMediaStream dials UDP sockets for the data and control channels at
// the server-chosen ports.
func NewMediaStream(host string, dataPort, controlPort int, ssrc uint32) (*MediaStream, error) {
	dataConn, err := net.Dial("udp", udpAddr(host, dataPort))
	if err != nil {
		return nil, err
	}
	controlConn, err := net.Dial("udp", udpAddr(host, controlPort))
	if err != nil {
		dataConn.Close()
		return nil, err
	}
	return &MediaStream{
		dataConn:    dataConn.(*net.UDPConn),
		controlConn: controlConn.(*net.UDPConn),
		ssrc:        ssrc,
	}, nil
}

func udpAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SendALACFrame packs and sends one ALAC-framed RTP packet, advancing the
// sequence number (16-bit wrap) and timestamp (by frame count).
func (m *MediaStream) SendALACFrame(pcm []int16) error {
	payload := FrameALAC(pcm)
	header := rtp.Header{
		Version:        2,
		PayloadType:    payloadTypeALAC,
		SequenceNumber: m.seq,
		Timestamp:      m.ts,
		SSRC:           m.ssrc,
	}
	pkt := rtp.Packet{Header: header, Payload: payload}
	buf, err := pkt.Marshal()
	if err != nil {
		return err
	}
	if _, err := m.dataConn.Write(buf); err != nil {
		return err
	}

	m.seq++
	m.ts += uint32(len(pcm) / 2) // interleaved stereo frames
	m.packetsSent++
	m.octetsSent += uint32(len(payload))
	m.sinceReport++

	if m.sinceReport >= 100 {
		m.sinceReport = 0
		return m.sendSenderReport()
	}
	return nil
}

func (m *MediaStream) sendSenderReport() error {
	now := time.Now()
	ntpSeconds := uint32(now.Unix() + ntpEpochOffset)
	ntpFraction := uint32(float64(now.Nanosecond()) / 1e9 * (1 << 32))

	sr := &rtcp.SenderReport{
		SSRC:        m.ssrc,
		NTPTime:     uint64(ntpSeconds)<<32 | uint64(ntpFraction),
		RTPTime:     m.ts,
		PacketCount: m.packetsSent,
		OctetCount:  m.octetsSent,
	}
	buf, err := sr.Marshal()
	if err != nil {
		return err
	}
	_, err = m.controlConn.Write(buf)
	return err
}

// Close shuts down both UDP sockets.
func (m *MediaStream) Close() error {
	err1 := m.dataConn.Close()
	err2 := m.controlConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// SequenceNumber returns the next sequence number to be assigned.
func (m *MediaStream) SequenceNumber() uint16 { return m.seq }

// Timestamp returns the next RTP timestamp to be assigned.
func (m *MediaStream) Timestamp() uint32 { return m.ts }

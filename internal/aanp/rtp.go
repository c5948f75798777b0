package aanp

import (
	"encoding/binary"
	"fmt"

	"github.com/pion/rtp"
)

// Default AANP RTP payload types.
const (
	PayloadTypeL24 uint8 = 96
	PayloadTypeL16 uint8 = 97
)

// GaplessPayloadExt is the one-byte gapless-playback trailer appended after
// the audio payload when the gapless feature is active.
type GaplessPayloadExt struct {
	ID         uint8
	TrackEnd   bool
	TrackStart bool
}

func (g GaplessPayloadExt) marshal() byte {
	var b byte
	b |= (g.ID & 0x0F) << 4
	if g.TrackEnd {
		b |= 1 << 3
	}
	if g.TrackStart {
		b |= 1 << 2
	}
	return b
}

func unmarshalGapless(b byte) GaplessPayloadExt {
	return GaplessPayloadExt{
		ID:         (b >> 4) & 0x0F,
		TrackEnd:   (b>>3)&0x01 != 0,
		TrackStart: (b>>2)&0x01 != 0,
	}
}

// CRC32PayloadExt is the four-byte CRC32 trailer appended after the audio
// payload (and after any gapless trailer) when the crc_verify feature is
// active. The CRC32 covers the audio payload only.
type CRC32PayloadExt struct {
	Value uint32
}

// Packet is an AANP RTP packet: a standard 12-byte RTP header, an audio
// payload, and optional AANP-specific trailers.
type Packet struct {
	Header      rtp.Header
	Payload     []byte
	Gapless     *GaplessPayloadExt
	CRC32       *CRC32PayloadExt
}

// NewHeader builds the fixed 12-byte RTP header for an AANP stream.
func NewHeader(payloadType uint8, sequenceNumber uint16, timestamp, ssrc uint32) rtp.Header {
	return rtp.Header{
		Version:        2,
		PayloadType:    payloadType & 0x7F,
		SequenceNumber: sequenceNumber,
		Timestamp:      timestamp,
		SSRC:           ssrc,
	}
}

// Marshal serializes the packet: 12-byte header, payload, then any active
// trailers in gapless-then-crc32 order.
func (p Packet) Marshal() ([]byte, error) {
	head, err := p.Header.Marshal()
	if err != nil {
		return nil, fmt.Errorf("aanp: marshal rtp header: %w", err)
	}

	out := make([]byte, 0, len(head)+len(p.Payload)+5)
	out = append(out, head...)
	out = append(out, p.Payload...)
	if p.Gapless != nil {
		out = append(out, p.Gapless.marshal())
	}
	if p.CRC32 != nil {
		var crcBytes [4]byte
		binary.BigEndian.PutUint32(crcBytes[:], p.CRC32.Value)
		out = append(out, crcBytes[:]...)
	}
	return out, nil
}

// UnmarshalPacket parses a wire packet. hasGapless/hasCRC32 must reflect
// the negotiated extension state for the session the packet belongs to,
// since trailer presence isn't self-describing on the wire.
func UnmarshalPacket(buf []byte, hasGapless, hasCRC32 bool) (Packet, error) {
	var h rtp.Header
	n, err := h.Unmarshal(buf)
	if err != nil {
		return Packet{}, fmt.Errorf("aanp: unmarshal rtp header: %w", err)
	}

	rest := buf[n:]
	trailer := 0
	if hasGapless {
		trailer++
	}
	if hasCRC32 {
		trailer += 4
	}
	if len(rest) < trailer {
		return Packet{}, fmt.Errorf("aanp: rtp packet too short for negotiated trailers: %d bytes, want >= %d", len(rest), trailer)
	}

	payload := rest[:len(rest)-trailer]
	pkt := Packet{Header: h, Payload: payload}

	off := len(rest) - trailer
	if hasGapless {
		g := unmarshalGapless(rest[off])
		pkt.Gapless = &g
		off++
	}
	if hasCRC32 {
		v := binary.BigEndian.Uint32(rest[off : off+4])
		pkt.CRC32 = &CRC32PayloadExt{Value: v}
	}

	return pkt, nil
}

// PackS24BE packs a clamped 24-bit sample into 3 big-endian bytes (network
// byte order, per the RTP payload format).
func PackS24BE(sample int32) [3]byte {
	if sample > 8388607 {
		sample = 8388607
	}
	if sample < -8388608 {
		sample = -8388608
	}
	var full [4]byte
	binary.BigEndian.PutUint32(full[:], uint32(sample))
	return [3]byte{full[1], full[2], full[3]}
}

// UnpackS24BE sign-extends 3 big-endian bytes back to a 32-bit sample.
func UnpackS24BE(b [3]byte) int32 {
	sign := byte(0x00)
	if b[0]&0x80 != 0 {
		sign = 0xFF
	}
	return int32(binary.BigEndian.Uint32([]byte{sign, b[0], b[1], b[2]}))
}

// FramesFromPayload computes the number of audio frames a payload holds.
func FramesFromPayload(payloadBytes int, channels, bytesPerSample int) uint32 {
	if channels <= 0 || bytesPerSample <= 0 {
		return 0
	}
	return uint32(payloadBytes / (channels * bytesPerSample))
}

// Stream tracks the sequence number and RTP timestamp for one outgoing
// media stream, wrapping both counters per RFC 3550 semantics.
type Stream struct {
	PayloadType uint8
	SSRC        uint32

	seq uint16
	ts  uint32
}

// NewStream returns a Stream starting at sequence 0, timestamp 0.
func NewStream(payloadType uint8, ssrc uint32) *Stream {
	return &Stream{PayloadType: payloadType, SSRC: ssrc}
}

// Next builds the next outgoing packet for payload, advancing the sequence
// number by one and the timestamp by framesInPacket, both with wraparound.
func (s *Stream) Next(payload []byte, framesInPacket uint32) Packet {
	pkt := Packet{
		Header:  NewHeader(s.PayloadType, s.seq, s.ts, s.SSRC),
		Payload: payload,
	}
	s.seq++
	s.ts += framesInPacket
	return pkt
}

// SequenceNumber returns the next sequence number that will be assigned.
func (s *Stream) SequenceNumber() uint16 { return s.seq }

// Timestamp returns the next RTP timestamp that will be assigned.
func (s *Stream) Timestamp() uint32 { return s.ts }

// Reset rewinds the stream's sequence number and timestamp to zero,
// typically used when a session renegotiates without reallocating a Stream.
func (s *Stream) Reset() {
	s.seq = 0
	s.ts = 0
}

package aanp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRTPHeaderRoundTrip(t *testing.T) {
	pkt := Packet{
		Header:  NewHeader(PayloadTypeL24, 1234, 56789, 0x12345678),
		Payload: []byte{1, 2, 3, 4},
	}
	buf, err := pkt.Marshal()
	require.NoError(t, err)
	require.Len(t, buf[:12], 12)

	parsed, err := UnmarshalPacket(buf, false, false)
	require.NoError(t, err)
	require.Equal(t, pkt.Header.Version, parsed.Header.Version)
	require.Equal(t, pkt.Header.PayloadType, parsed.Header.PayloadType)
	require.Equal(t, pkt.Header.SequenceNumber, parsed.Header.SequenceNumber)
	require.Equal(t, pkt.Header.Timestamp, parsed.Header.Timestamp)
	require.Equal(t, pkt.Header.SSRC, parsed.Header.SSRC)
	require.Equal(t, pkt.Payload, parsed.Payload)
}

func TestRTPPacketWithTrailersRoundTrip(t *testing.T) {
	pkt := Packet{
		Header:  NewHeader(PayloadTypeL24, 1, 100, 0xAABBCCDD),
		Payload: []byte{0xAA, 0xBB, 0xCC},
		Gapless: &GaplessPayloadExt{ID: 1, TrackEnd: true, TrackStart: false},
		CRC32:   &CRC32PayloadExt{Value: 0xDEADBEEF},
	}
	buf, err := pkt.Marshal()
	require.NoError(t, err)

	parsed, err := UnmarshalPacket(buf, true, true)
	require.NoError(t, err)
	require.Equal(t, pkt.Payload, parsed.Payload)
	require.NotNil(t, parsed.Gapless)
	require.True(t, parsed.Gapless.TrackEnd)
	require.False(t, parsed.Gapless.TrackStart)
	require.Equal(t, uint8(1), parsed.Gapless.ID)
	require.NotNil(t, parsed.CRC32)
	require.Equal(t, uint32(0xDEADBEEF), parsed.CRC32.Value)
}

func TestS24BEPackUnpackRoundTrip(t *testing.T) {
	sample := int32(123456)
	packed := PackS24BE(sample)
	require.Equal(t, sample, UnpackS24BE(packed))
}

func TestS24BEClampBoundaries(t *testing.T) {
	require.Equal(t, int32(8388607), UnpackS24BE(PackS24BE(10_000_000)))
	require.Equal(t, int32(-8388608), UnpackS24BE(PackS24BE(-10_000_000)))
}

func TestFramesFromPayload(t *testing.T) {
	require.Equal(t, uint32(16), FramesFromPayload(100, 2, 3))
}

func TestStreamSequenceAndTimestampAdvance(t *testing.T) {
	s := NewStream(PayloadTypeL24, 0x12345678)

	p1 := s.Next(make([]byte, 100), 16)
	p2 := s.Next(make([]byte, 100), 16)

	require.Equal(t, uint16(0), p1.Header.SequenceNumber)
	require.Equal(t, uint16(1), p2.Header.SequenceNumber)
	require.Equal(t, uint32(0), p1.Header.Timestamp)
	require.Equal(t, uint32(16), p2.Header.Timestamp)
}

func TestStreamSequenceNumberWraps(t *testing.T) {
	s := NewStream(PayloadTypeL24, 1)
	s.seq = 65535
	p := s.Next(nil, 0)
	require.Equal(t, uint16(65535), p.Header.SequenceNumber)
	require.Equal(t, uint16(0), s.SequenceNumber())
}

func TestStreamAdvanceOverNPackets(t *testing.T) {
	s := NewStream(PayloadTypeL24, 1)
	const n = 10
	frameSizes := []uint32{16, 20, 16, 16, 32, 16, 16, 16, 16, 16}
	var total uint32
	for i := 0; i < n; i++ {
		s.Next(nil, frameSizes[i])
		total += frameSizes[i]
	}
	require.Equal(t, uint16(n), s.SequenceNumber())
	require.Equal(t, total, s.Timestamp())
}

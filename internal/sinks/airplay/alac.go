// Package airplay implements the AirPlay (RAOP) sink: RTSP session setup,
// ALAC-framed RTP streaming, and periodic RTCP sender reports.
package airplay

import "encoding/binary"

// FramesPerPacket is the fixed ALAC frame count per RTP payload.
const FramesPerPacket = 352

// FrameALAC serializes pcm (up to FramesPerPacket interleaved 16-bit
// frames) as big-endian samples for one RTP payload. It does no ALAC
// compression and writes no ALAC frame header: the payload is the bare
// big-endian PCM.
func FrameALAC(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.BigEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

// SplitIntoPackets slices pcm (interleaved stereo int16) into
// FramesPerPacket-frame chunks, each ready to pass to FrameALAC.
func SplitIntoPackets(pcm []int16, channels int) [][]int16 {
	frameStride := FramesPerPacket * channels
	var packets [][]int16
	for off := 0; off < len(pcm); off += frameStride {
		end := off + frameStride
		if end > len(pcm) {
			end = len(pcm)
		}
		packets = append(packets, pcm[off:end])
	}
	return packets
}

// Package jitter implements a single-stream playback jitter buffer for
// RTP-delivered audio frames: it reorders packets using sequence numbers,
// buffers a configurable number of frames before starting playback, and
// reports missing frames so the caller can fill with silence.
package jitter

import "time"

const (
	ringSize = 64 // must be a power of 2, comfortably over any negotiated buffer depth
	ringMask = ringSize - 1
)

// slot holds one payload in the ring buffer.
type slot struct {
	payload []byte
	seq     uint16
	set     bool
}

// Buffer is a single-sender jitter buffer keyed by RTP sequence number.
// Not safe for concurrent use; callers that Push and Pop from different
// goroutines must serialize access (internal/nodeserver holds a mutex).
type Buffer struct {
	ring     [ringSize]slot
	nextPlay uint16
	primed   bool
	count    int
	depth    int // frames to buffer before starting playback
	stale    time.Duration
	lastPush time.Time
}

// New creates a jitter buffer that primes on depth frames before
// releasing any, matching an AANP session_accept's buffer.start_threshold_ms
// once converted to a frame count by the caller. stale bounds how long the
// stream can go silent before IsStale reports true.
func New(depth int, stale time.Duration) *Buffer {
	if depth < 1 {
		depth = 1
	}
	if depth > ringSize/2 {
		depth = ringSize / 2
	}
	return &Buffer{depth: depth, stale: stale}
}

// Push inserts a received payload at seq into the ring buffer.
func (b *Buffer) Push(seq uint16, payload []byte) {
	b.lastPush = time.Now()
	idx := int(seq) & ringMask

	if !b.primed {
		if b.count == 0 {
			b.nextPlay = seq
		}
		b.ring[idx] = slot{payload: payload, seq: seq, set: true}
		b.count++
		if b.count >= b.depth {
			b.primed = true
		}
		return
	}

	dist := int16(seq - b.nextPlay)
	if dist < 0 {
		return // late arrival, already played past this sequence
	}
	if int(dist) >= ringSize {
		// Sender restart or long gap: reprime from this packet.
		*b = Buffer{depth: b.depth, stale: b.stale, nextPlay: seq, count: 1, lastPush: time.Now()}
		b.ring[idx] = slot{payload: payload, seq: seq, set: true}
		if b.count >= b.depth {
			b.primed = true
		}
		return
	}
	b.ring[idx] = slot{payload: payload, seq: seq, set: true}
}

// Pop returns the next frame in sequence order, if the buffer is primed.
// ok is false while priming or once the buffer has nothing queued. A
// returned payload of nil with ok true signals a missing frame the
// caller should fill with silence.
func (b *Buffer) Pop() (payload []byte, ok bool) {
	if !b.primed {
		return nil, false
	}
	idx := int(b.nextPlay) & ringMask
	s := b.ring[idx]
	b.ring[idx] = slot{}
	b.nextPlay++
	if s.set && s.seq == b.nextPlay-1 {
		return s.payload, true
	}
	return nil, true
}

// IsStale reports whether the stream has gone silent past the configured
// staleness timeout.
func (b *Buffer) IsStale() bool {
	return !b.lastPush.IsZero() && time.Since(b.lastPush) > b.stale
}

// Reset clears all buffered state, e.g. on session renegotiation.
func (b *Buffer) Reset() {
	*b = Buffer{depth: b.depth, stale: b.stale}
}

package dsp

import (
	"math"
	"sync/atomic"

	"github.com/jaschadub/aaeq/internal/audio"
)

// Headroom applies a scalar linear gain before EQ to reserve dynamic range
// for subsequent boosts, and tracks post-gain clipping for telemetry (§4.2).
type Headroom struct {
	gainDB    float64
	clipCount atomic.Uint64
	lastPeak  atomic.Uint64 // float64 bits of the most recent block peak (linear)
}

// NewHeadroom returns a Headroom stage at the given gain in dB (typically
// -3 to -6).
func NewHeadroom(gainDB float64) *Headroom {
	return &Headroom{gainDB: gainDB}
}

// SetGainDB updates the headroom gain.
func (h *Headroom) SetGainDB(db float64) { h.gainDB = db }

// GainDB returns the current headroom gain.
func (h *Headroom) GainDB() float64 { return h.gainDB }

// Process scales samples in place by the linear equivalent of gainDB and
// records clipping: any post-gain peak >= 0 dBFS within the block increments
// ClipCount.
func (h *Headroom) Process(samples []float64) {
	scale := audio.DBToLinear(h.gainDB)
	peak := 0.0
	for i, s := range samples {
		v := s * scale
		samples[i] = v
		if a := absF(v); a > peak {
			peak = a
		}
	}
	h.lastPeak.Store(math.Float64bits(peak))
	if peak >= 1.0 {
		h.clipCount.Add(1)
	}
}

// ClipCount returns the lifetime count of blocks that clipped post-gain.
func (h *Headroom) ClipCount() uint64 { return h.clipCount.Load() }

// LastPeakDB returns the most recent block's post-gain peak in dBFS, for
// the meter tap.
func (h *Headroom) LastPeakDB() float64 {
	return audio.LinearToDB(math.Float64frombits(h.lastPeak.Load()))
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

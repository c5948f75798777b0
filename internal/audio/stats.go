package audio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RMSDBFS returns the block's RMS level in dBFS. An empty block reads as
// negative infinity.
func RMSDBFS(b Block) float64 {
	if len(b.Samples) == 0 {
		return math.Inf(-1)
	}
	rms := math.Sqrt(stat.Mean(squareAll(b.Samples), nil))
	return LinearToDB(rms)
}

// PeakDBFS returns the block's peak absolute sample level in dBFS.
func PeakDBFS(b Block) float64 {
	peak := 0.0
	for _, s := range b.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return math.Inf(-1)
	}
	return LinearToDB(peak)
}

// IsSilence reports whether every sample's absolute value is at or below the
// linear amplitude equivalent to thresholdDBFS.
func IsSilence(b Block, thresholdDBFS float64) bool {
	limit := DBToLinear(thresholdDBFS)
	for _, s := range b.Samples {
		if math.Abs(s) > limit {
			return false
		}
	}
	return true
}

// NoiseFloorDBFS computes the RMS of the quietest 10% of absolute-sample
// values in the block (at least one sample), per §4.1.
func NoiseFloorDBFS(b Block) float64 {
	if len(b.Samples) == 0 {
		return math.Inf(-1)
	}
	abs := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		abs[i] = math.Abs(s)
	}
	sort.Float64s(abs)

	n := len(abs) / 10
	if n < 1 {
		n = 1
	}
	quietest := abs[:n]
	rms := math.Sqrt(stat.Mean(squareAll(quietest), nil))
	if rms == 0 {
		return math.Inf(-1)
	}
	return LinearToDB(rms)
}

// ApplySoftLimiter writes each sample as sign(x)*threshold*tanh(|x|/threshold)
// when |x| exceeds threshold, otherwise unchanged, appending to out.
func ApplySoftLimiter(b Block, thresholdDB float64, out []float64) []float64 {
	threshold := DBToLinear(thresholdDB)
	for _, x := range b.Samples {
		a := math.Abs(x)
		if a > threshold {
			sign := 1.0
			if x < 0 {
				sign = -1.0
			}
			out = append(out, sign*threshold*math.Tanh(a/threshold))
		} else {
			out = append(out, x)
		}
	}
	return out
}

func squareAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * x
	}
	return out
}

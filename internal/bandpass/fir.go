package bandpass

import (
	"fmt"
	"math"
)

// DefaultTaps is the FIR length used for envelope smoothing.
const DefaultTaps = 80

// FIR designs a linear-phase windowed-sinc bandpass with a Hamming window.
// Taps are scaled to unit gain at the centre of the pass band.
func FIR(numTaps int, cutoffs Cutoffs, sampleRate int) ([]float64, error) {
	if numTaps < 3 {
		return nil, fmt.Errorf("%w: need at least 3 taps, got %d", ErrInvalidCutoff, numTaps)
	}
	lo, hi, err := cutoffs.normalize(sampleRate)
	if err != nil {
		return nil, err
	}

	alpha := 0.5 * float64(numTaps-1)
	taps := make([]float64, numTaps)
	for i := range taps {
		m := float64(i) - alpha
		taps[i] = hi*sinc(hi*m) - lo*sinc(lo*m)
		// symmetric Hamming
		taps[i] *= 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(numTaps-1))
	}

	centre := 0.5 * (lo + hi)
	var s float64
	for i, h := range taps {
		s += h * math.Cos(math.Pi*(float64(i)-alpha)*centre)
	}
	for i := range taps {
		taps[i] /= s
	}
	return taps, nil
}

// FiltFiltFIR applies taps forward and backward over an odd extension of x.
func FiltFiltFIR(taps, x []float64) ([]float64, error) {
	padLen := 3 * len(taps)
	if padLen >= len(x) {
		padLen = len(x) - 1
	}
	if padLen < 1 {
		return nil, fmt.Errorf("%w: %d samples", ErrTooShort, len(x))
	}

	ext := oddExtend(x, padLen)
	ext = convolveSteady(taps, ext)
	reverse(ext)
	ext = convolveSteady(taps, ext)
	reverse(ext)

	out := make([]float64, len(x))
	copy(out, ext[padLen:padLen+len(x)])
	return out, nil
}

// convolveSteady is a causal FIR pass that treats samples before x[0] as
// equal to x[0].
func convolveSteady(taps, x []float64) []float64 {
	y := make([]float64, len(x))
	for n := range x {
		var acc float64
		for k, h := range taps {
			idx := n - k
			if idx < 0 {
				idx = 0
			}
			acc += h * x[idx]
		}
		y[n] = acc
	}
	return y
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

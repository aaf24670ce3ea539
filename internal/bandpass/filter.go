package bandpass

import (
	"errors"
	"fmt"
)

// ErrTooShort is returned when a signal is too short for zero-phase filtering.
var ErrTooShort = errors.New("bandpass: signal too short for zero-phase filtering")

// Mode selects forward-only or forward-backward filtering.
type Mode int

const (
	// Forward runs the cascade once, like a causal recording-chain filter.
	Forward Mode = iota
	// ZeroPhase runs the cascade forward and backward.
	ZeroPhase
)

// Apply designs a Butterworth bandpass and filters samples with it.
// The input slice is never modified.
func Apply(samples []float64, sampleRate int, cutoffs Cutoffs, order int, mode Mode) ([]float64, error) {
	coeffs, err := Butter(cutoffs, sampleRate, order)
	if err != nil {
		return nil, err
	}
	if mode == ZeroPhase {
		return coeffs.FiltFilt(samples)
	}
	return coeffs.Filter(samples), nil
}

// Filter runs the cascade forward over x with zero initial state.
func (c Coefficients) Filter(x []float64) []float64 {
	y := make([]float64, len(x))
	copy(y, x)
	for _, s := range c.Sections {
		s.run(y, 0, 0)
	}
	return y
}

// FiltFilt filters x forward and backward. The signal is extended at both
// ends by odd reflection and each pass starts from the steady state for its
// first sample, which keeps edge transients out of the result.
func (c Coefficients) FiltFilt(x []float64) ([]float64, error) {
	padLen := 3 * (2*len(c.Sections) + 1)
	if padLen >= len(x) {
		padLen = len(x) - 1
	}
	if padLen < 1 {
		return nil, fmt.Errorf("%w: %d samples", ErrTooShort, len(x))
	}

	ext := oddExtend(x, padLen)
	c.filterFromSteadyState(ext)
	reverse(ext)
	c.filterFromSteadyState(ext)
	reverse(ext)

	out := make([]float64, len(x))
	copy(out, ext[padLen:padLen+len(x)])
	return out, nil
}

// filterFromSteadyState filters y in place, starting every section from the
// state it would hold after an infinitely long constant input equal to y[0].
func (c Coefficients) filterFromSteadyState(y []float64) {
	if len(y) == 0 {
		return
	}
	level := y[0]
	for _, s := range c.Sections {
		out := s.dcGain() * level
		z1 := s.B1 + s.B2 - (s.A1+s.A2)*s.dcGain()
		z2 := s.B2 - s.A2*s.dcGain()
		s.run(y, z1*level, z2*level)
		level = out
	}
}

// run filters y in place from the given state.
func (s Biquad) run(y []float64, z1, z2 float64) {
	for i, x := range y {
		out := s.B0*x + z1
		z1 = s.B1*x - s.A1*out + z2
		z2 = s.B2*x - s.A2*out
		y[i] = out
	}
}

// Diff returns the first discrete difference of x; its length is len(x)-1.
func Diff(x []float64) []float64 {
	if len(x) < 2 {
		return []float64{}
	}
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = x[i+1] - x[i]
	}
	return out
}

func oddExtend(x []float64, n int) []float64 {
	ext := make([]float64, 0, len(x)+2*n)
	first, last := x[0], x[len(x)-1]
	for i := n; i >= 1; i-- {
		ext = append(ext, 2*first-x[i])
	}
	ext = append(ext, x...)
	for i := len(x) - 2; i >= len(x)-1-n; i-- {
		ext = append(ext, 2*last-x[i])
	}
	return ext
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

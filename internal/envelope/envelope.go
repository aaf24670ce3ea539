// Package envelope reduces audio or a spectrogram to a one-dimensional
// energy-over-time signal used for threshold segmentation.
package envelope

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/maauso/songseg/internal/bandpass"
	"github.com/maauso/songseg/internal/spect"
)

// DefaultSmoothingMs is the boxcar length used by Smooth when none is given.
const DefaultSmoothingMs = 2.0

// FromSpectrogram returns the column sums of s.Power, one value per time bin.
func FromSpectrogram(s *spect.Spectrogram) []float64 {
	rows, cols := s.Dims()
	out := make([]float64, cols)
	col := make([]float64, rows)
	for j := range out {
		mat.Col(col, j, s.Power)
		out[j] = floats.Sum(col)
	}
	return out
}

// SmoothOpts configures Smooth.
type SmoothOpts struct {
	// Band, when set, bandpass filters the audio before squaring.
	Band *bandpass.Cutoffs
	// WindowMs is the boxcar length in milliseconds.
	WindowMs float64
	// Taps is the FIR length of the bandpass.
	Taps int
}

// DefaultSmoothOpts returns options with a 2 ms boxcar and no band.
func DefaultSmoothOpts() SmoothOpts {
	return SmoothOpts{WindowMs: DefaultSmoothingMs, Taps: bandpass.DefaultTaps}
}

// Smooth returns a sample-aligned amplitude envelope: optional zero-phase FIR
// bandpass, squaring, then a moving average cropped back to len(samples).
func Smooth(samples []float64, sampleRate int, opts SmoothOpts) ([]float64, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("envelope: sample rate must be positive, got %d", sampleRate)
	}
	if len(samples) == 0 {
		return []float64{}, nil
	}

	x := samples
	if opts.Band != nil {
		taps := opts.Taps
		if taps == 0 {
			taps = bandpass.DefaultTaps
		}
		h, err := bandpass.FIR(taps, *opts.Band, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("envelope: design filter: %w", err)
		}
		if x, err = bandpass.FiltFiltFIR(h, samples); err != nil {
			return nil, fmt.Errorf("envelope: filter: %w", err)
		}
	}

	squared := make([]float64, len(x))
	floats.MulTo(squared, x, x)

	width := int(math.Round(float64(sampleRate) * opts.WindowMs / 1000))
	if width < 1 {
		width = 1
	}
	return movingAverage(squared, width), nil
}

// movingAverage computes the full convolution of x with a length-width
// boxcar and keeps the centred len(x) values.
func movingAverage(x []float64, width int) []float64 {
	full := len(x) + width - 1
	offset := int(math.RoundToEven(float64(full-len(x)) / 2))

	prefix := make([]float64, len(x)+1)
	floats.CumSum(prefix[1:], x)

	out := make([]float64, len(x))
	inv := 1 / float64(width)
	for i := range out {
		// full[n] sums x[n-width+1 .. n]
		n := i + offset
		hi := n
		if hi > len(x)-1 {
			hi = len(x) - 1
		}
		lo := n - width + 1
		if lo < 0 {
			lo = 0
		}
		out[i] = (prefix[hi+1] - prefix[lo]) * inv
	}
	return out
}

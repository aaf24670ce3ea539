package spect

import (
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// transform computes one-sided complex spectra for each segment of x.
// Results are indexed [frame][bin]; the matching frequency and time axes are
// the same for every backend.
type transform interface {
	frames(x []float64, sampleRate int) [][]complex128
}

// frameCount is the number of whole segments that fit in n samples.
func frameCount(n, segLen, step int) int {
	if n < segLen {
		return 0
	}
	return 1 + (n-segLen)/step
}

// oneSidedBins is the number of non-negative frequency bins for an n-point
// real FFT.
func oneSidedBins(n int) int {
	return n/2 + 1
}

// psdTransform produces a power spectral density per segment. Output values
// are real-valued power stored as complex numbers so both backends share
// the same post-processing.
type psdTransform struct {
	segLen int
	step   int
	win    []float64
	fft    *fourier.FFT
	scale  float64
}

func newPSDTransform(cfg Config, win []float64) *psdTransform {
	return &psdTransform{
		segLen: cfg.SegmentLength,
		step:   cfg.Step(),
		win:    win,
		fft:    fourier.NewFFT(cfg.SegmentLength),
		scale:  floats.Dot(win, win),
	}
}

func (t *psdTransform) frames(x []float64, sampleRate int) [][]complex128 {
	nFrames := frameCount(len(x), t.segLen, t.step)
	nBins := oneSidedBins(t.segLen)
	scale := 1 / (float64(sampleRate) * t.scale)

	out := make([][]complex128, nFrames)
	buf := make([]float64, t.segLen)
	coeffs := make([]complex128, nBins)
	for f := 0; f < nFrames; f++ {
		seg := x[f*t.step : f*t.step+t.segLen]
		mean := floats.Sum(seg) / float64(t.segLen)
		for i, v := range seg {
			buf[i] = (v - mean) * t.win[i]
		}
		coeffs = t.fft.Coefficients(coeffs, buf)

		row := make([]complex128, nBins)
		for k, c := range coeffs {
			p := (real(c)*real(c) + imag(c)*imag(c)) * scale
			// fold negative frequencies into the one-sided spectrum
			if k > 0 && !(t.segLen%2 == 0 && k == nBins-1) {
				p *= 2
			}
			row[k] = complex(p, 0)
		}
		out[f] = row
	}
	return out
}

// stftTransform produces the complex spectrum of each segment, scaled by
// the window sum.
type stftTransform struct {
	segLen int
	step   int
	win    []float64
	norm   float64
}

func newSTFTTransform(cfg Config, win []float64) *stftTransform {
	var norm float64
	for _, w := range win {
		if w < 0 {
			w = -w
		}
		norm += w
	}
	return &stftTransform{
		segLen: cfg.SegmentLength,
		step:   cfg.Step(),
		win:    win,
		norm:   norm,
	}
}

func (t *stftTransform) frames(x []float64, _ int) [][]complex128 {
	nFrames := frameCount(len(x), t.segLen, t.step)
	nBins := oneSidedBins(t.segLen)
	inv := complex(1/t.norm, 0)

	out := make([][]complex128, nFrames)
	buf := make([]float64, t.segLen)
	for f := 0; f < nFrames; f++ {
		seg := x[f*t.step : f*t.step+t.segLen]
		for i, v := range seg {
			buf[i] = v * t.win[i]
		}
		full := fft.FFTReal(buf)

		row := make([]complex128, nBins)
		for k := range row {
			row[k] = full[k] * inv
		}
		out[f] = row
	}
	return out
}

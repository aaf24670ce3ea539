// Package bandpass provides the signal conditioning applied to raw song
// before spectrograms or amplitude envelopes are computed: Butterworth and
// windowed-sinc bandpass filters, zero-phase (forward-backward) filtering and
// the first-difference filter.
package bandpass

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
)

// DefaultOrder is the Butterworth order used when callers pass zero.
const DefaultOrder = 8

// ErrInvalidCutoff is returned when a pass band is empty, not positive,
// or reaches the Nyquist frequency.
var ErrInvalidCutoff = errors.New("bandpass: invalid cutoff frequencies")

// Cutoffs is a pass band in Hz.
type Cutoffs struct {
	Low  float64
	High float64
}

// normalize returns the cutoffs as fractions of the Nyquist frequency.
func (c Cutoffs) normalize(sampleRate int) (float64, float64, error) {
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidCutoff, sampleRate)
	}
	nyquist := 0.5 * float64(sampleRate)
	if c.Low <= 0 || c.Low >= c.High {
		return 0, 0, fmt.Errorf("%w: need 0 < low < high, got [%g, %g]", ErrInvalidCutoff, c.Low, c.High)
	}
	if c.High >= nyquist {
		return 0, 0, fmt.Errorf("%w: high cutoff %g Hz is not below Nyquist %g Hz", ErrInvalidCutoff, c.High, nyquist)
	}
	return c.Low / nyquist, c.High / nyquist, nil
}

// Biquad is one second-order section in transposed direct form II.
// A0 is implicitly 1.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// dcGain is the section response at z = 1.
func (q Biquad) dcGain() float64 {
	return (q.B0 + q.B1 + q.B2) / (1 + q.A1 + q.A2)
}

// response evaluates the section at z = e^{jw}.
func (q Biquad) response(w float64) complex128 {
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(q.B0, 0) + complex(q.B1, 0)*z1 + complex(q.B2, 0)*z2
	den := 1 + complex(q.A1, 0)*z1 + complex(q.A2, 0)*z2
	return num / den
}

// Coefficients is a cascade of second-order sections.
type Coefficients struct {
	Sections []Biquad
}

// Response returns the complex frequency response at freq Hz.
func (c Coefficients) Response(freq float64, sampleRate int) complex128 {
	w := 2 * math.Pi * freq / float64(sampleRate)
	h := complex(1, 0)
	for _, s := range c.Sections {
		h *= s.response(w)
	}
	return h
}

// Butter designs an order-N digital Butterworth bandpass. Cutoffs are
// normalized by the Nyquist frequency, prewarped, and mapped through the
// bilinear transform. The resulting filter has 2N poles which are returned
// as N second-order sections.
func Butter(cutoffs Cutoffs, sampleRate, order int) (Coefficients, error) {
	if order <= 0 {
		order = DefaultOrder
	}
	lo, hi, err := cutoffs.normalize(sampleRate)
	if err != nil {
		return Coefficients{}, err
	}

	// Analog lowpass prototype, unit cutoff.
	proto := make([]complex128, 0, order)
	for m := -order + 1; m < order; m += 2 {
		proto = append(proto, -cmplx.Exp(complex(0, math.Pi*float64(m)/float64(2*order))))
	}

	// Prewarp for a bilinear transform with fs = 2.
	const fs = 2.0
	w1 := 2 * fs * math.Tan(math.Pi*lo/fs)
	w2 := 2 * fs * math.Tan(math.Pi*hi/fs)
	bw := w2 - w1
	wo := math.Sqrt(w1 * w2)

	// Lowpass to bandpass: each prototype pole splits in two, and N zeros
	// land at s = 0.
	poles := make([]complex128, 0, 2*order)
	for _, p := range proto {
		p *= complex(bw/2, 0)
		d := cmplx.Sqrt(p*p - complex(wo*wo, 0))
		poles = append(poles, p+d, p-d)
	}
	gain := math.Pow(bw, float64(order))

	// Bilinear transform. Zeros at s = 0 map to z = 1; the N zeros at
	// infinity map to z = -1.
	fs2 := complex(2*fs, 0)
	num := cmplx.Pow(fs2, complex(float64(order), 0))
	den := complex(1, 0)
	digital := make([]complex128, len(poles))
	for i, p := range poles {
		den *= fs2 - p
		digital[i] = (fs2 + p) / (fs2 - p)
	}
	gain *= real(num / den)

	sections := pairSections(digital)
	if len(sections) != order {
		return Coefficients{}, fmt.Errorf("bandpass: pole pairing produced %d sections, want %d", len(sections), order)
	}

	// Spread the gain evenly so no single section carries a huge factor.
	g := math.Pow(math.Abs(gain), 1/float64(order))
	for i := range sections {
		s := g
		if i == 0 && gain < 0 {
			s = -g
		}
		sections[i].B0 = s
		sections[i].B1 = 0
		sections[i].B2 = -s
	}
	return Coefficients{Sections: sections}, nil
}

// pairSections groups conjugate pole pairs, then leftover real poles two at
// a time, into denominator sections. Numerators are filled by the caller.
func pairSections(poles []complex128) []Biquad {
	const eps = 1e-12
	var sections []Biquad
	var reals []float64
	for _, p := range poles {
		switch {
		case imag(p) > eps:
			sections = append(sections, Biquad{A1: -2 * real(p), A2: real(p)*real(p) + imag(p)*imag(p)})
		case imag(p) < -eps:
			// partner of a pole already handled
		default:
			reals = append(reals, real(p))
		}
	}
	sort.Float64s(reals)
	for i := 0; i+1 < len(reals); i += 2 {
		sections = append(sections, Biquad{A1: -(reals[i] + reals[i+1]), A2: reals[i] * reals[i+1]})
	}
	return sections
}

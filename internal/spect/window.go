package spect

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// taper returns the configured window, or the backend default when none is
// configured.
func taper(cfg Config) ([]float64, error) {
	n := cfg.SegmentLength
	switch cfg.Window {
	case WindowHann:
		return window.Hann(n), nil
	case WindowDPSS:
		return dpss(n, 4/float64(n))
	case WindowDefault:
		if cfg.Backend == BackendSTFT {
			return window.Hann(n), nil
		}
		return tukey(n, 0.25), nil
	default:
		return nil, fmt.Errorf("%w: unknown window %q", ErrInvalidConfig, cfg.Window)
	}
}

// tukey returns a periodic Tukey (tapered cosine) window, suitable for
// spectral analysis.
func tukey(n int, alpha float64) []float64 {
	if n == 1 {
		return []float64{1}
	}
	// periodic: compute n+1 points of the symmetric window, drop the last
	m := n + 1
	w := make([]float64, m)
	width := int(math.Floor(alpha * float64(m-1) / 2))
	for i := range w {
		switch {
		case i <= width:
			w[i] = 0.5 * (1 + math.Cos(math.Pi*(-1+2*float64(i)/alpha/float64(m-1))))
		case i < m-width-1:
			w[i] = 1
		default:
			w[i] = 0.5 * (1 + math.Cos(math.Pi*(-2/alpha+1+2*float64(i)/alpha/float64(m-1))))
		}
	}
	return w[:n]
}

// dpss returns a Slepian taper of length n: the principal eigenvector of
// the n×n kernel K[i][j] = 2F·sinc(2F(i-j)) with 2F = width/2, scaled so
// its largest value is 1.
func dpss(n int, width float64) ([]float64, error) {
	if n == 1 {
		return []float64{1}, nil
	}
	twoF := width / 2
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			data[i*n+j] = twoF * sinc(twoF*float64(i-j))
		}
	}
	kernel := mat.NewSymDense(n, data)

	var eig mat.EigenSym
	if ok := eig.Factorize(kernel, true); !ok {
		return nil, fmt.Errorf("spect: dpss eigen decomposition failed for length %d", n)
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// eigenvalues are ascending; the principal vector is the last column
	w := mat.Col(nil, n-1, &vecs)
	for i := range w {
		w[i] = math.Abs(w[i])
	}
	floats.Scale(1/floats.Max(w), w)
	return w, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

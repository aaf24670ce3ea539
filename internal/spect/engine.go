package spect

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/maauso/songseg/internal/bandpass"
)

// Spectrogram is an immutable snapshot of a transform. Power has one row
// per entry of Freqs and one column per entry of Times; both axes ascend.
type Spectrogram struct {
	Power *mat.Dense
	Freqs []float64
	Times []float64
}

// Dims returns the number of frequency and time bins.
func (s *Spectrogram) Dims() (freqBins, timeBins int) {
	return s.Power.Dims()
}

// Computer turns raw samples into a spectrogram.
type Computer interface {
	Compute(samples []float64, sampleRate int) (*Spectrogram, error)
}

// Engine computes spectrograms for a fixed Config. The window is built once
// per Engine, so reuse one Engine across segments of a song.
type Engine struct {
	cfg       Config
	transform transform
}

// Compile-time check that Engine implements Computer.
var _ Computer = (*Engine)(nil)

// NewEngine validates cfg and prepares the window and backend.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	win, err := taper(cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg}
	switch cfg.Backend {
	case BackendPSD:
		e.transform = newPSDTransform(cfg, win)
	case BackendSTFT:
		e.transform = newSTFTTransform(cfg, win)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute runs the full pipeline over samples. It returns ErrWindowTooLong
// when the segment length exceeds the pre-filtered signal; callers working
// per syllable treat that as "no spectrogram for this segment".
func (e *Engine) Compute(samples []float64, sampleRate int) (*Spectrogram, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, sampleRate)
	}
	if len(samples) < e.cfg.SegmentLength {
		return nil, fmt.Errorf("%w: segment length %d, signal length %d",
			ErrWindowTooLong, e.cfg.SegmentLength, len(samples))
	}
	x, err := e.prefilter(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	if len(x) < e.cfg.SegmentLength {
		return nil, fmt.Errorf("%w: segment length %d, signal length %d",
			ErrWindowTooLong, e.cfg.SegmentLength, len(x))
	}

	frames := e.transform.frames(x, sampleRate)
	nBins := oneSidedBins(e.cfg.SegmentLength)

	freqs := make([]float64, nBins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(e.cfg.SegmentLength)
	}
	times := make([]float64, len(frames))
	step := e.cfg.Step()
	for i := range times {
		times[i] = (float64(e.cfg.SegmentLength)/2 + float64(i*step)) / float64(sampleRate)
	}

	first := 0
	if e.cfg.RemoveDC {
		first = 1
	}

	rows := make([]int, 0, nBins)
	for k := first; k < nBins; k++ {
		if b := e.cfg.Band; b != nil && (freqs[k] < b.Low || freqs[k] > b.High) {
			continue
		}
		rows = append(rows, k)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyBand
	}

	power := mat.NewDense(len(rows), len(frames), nil)
	keptFreqs := make([]float64, len(rows))
	for r, k := range rows {
		keptFreqs[r] = freqs[k]
		for t, frame := range frames {
			power.Set(r, t, e.level(frame[k]))
		}
	}

	return &Spectrogram{Power: power, Freqs: keptFreqs, Times: times}, nil
}

// level applies magnitude, log compression and the contrast floor to one bin.
func (e *Engine) level(c complex128) float64 {
	v := cmplx.Abs(c)
	if !e.cfg.LogCompress {
		return v
	}
	v = math.Log10(v)
	if e.cfg.Clamp != nil && v < *e.cfg.Clamp {
		v = *e.cfg.Clamp
	}
	return v
}

func (e *Engine) prefilter(samples []float64, sampleRate int) ([]float64, error) {
	switch e.cfg.Filter {
	case FilterDiff:
		return bandpass.Diff(samples), nil
	case FilterBandpass, FilterBandpassFiltFilt:
		mode := bandpass.Forward
		if e.cfg.Filter == FilterBandpassFiltFilt {
			mode = bandpass.ZeroPhase
		}
		cutoffs := bandpass.Cutoffs{Low: e.cfg.Band.Low, High: e.cfg.Band.High}
		out, err := bandpass.Apply(samples, sampleRate, cutoffs, bandpass.DefaultOrder, mode)
		if err != nil {
			return nil, fmt.Errorf("prefilter: %w", err)
		}
		return out, nil
	default:
		return samples, nil
	}
}

// Compute is a convenience wrapper building a one-off Engine.
func Compute(samples []float64, sampleRate int, cfg Config) (*Spectrogram, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return e.Compute(samples, sampleRate)
}

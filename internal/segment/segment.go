// Package segment finds syllable boundaries as threshold crossings of an
// amplitude envelope.
package segment

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Static errors for segmentation.
var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("segment: invalid config")
	// ErrAmbiguousAxis is returned when an Axis carries both or neither of
	// time bins and a sample rate.
	ErrAmbiguousAxis = errors.New("segment: exactly one of time bins or sample rate is required")
	// ErrAxisLength is returned when time bins and envelope differ in length.
	ErrAxisLength = errors.New("segment: time bins and envelope must have the same length")
)

// Config holds segmentation parameters. Durations are in seconds.
type Config struct {
	// Threshold is the envelope value a sample must exceed to be in a segment.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// MinSyllableDur is the shortest segment kept.
	MinSyllableDur float64 `json:"min_syllable_dur" yaml:"min_syllable_dur" validate:"gt=0"`
	// MinSilentDur is the shortest gap that keeps two segments apart.
	MinSilentDur float64 `json:"min_silent_dur" yaml:"min_silent_dur" validate:"gte=0"`
}

var validate = validator.New()

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Axis locates envelope values in time. Set exactly one field: TimeBins
// (seconds, one per envelope value) or SampleRate (envelope is per sample).
type Axis struct {
	TimeBins   []float64
	SampleRate int
}

// TimeAxis returns an Axis for a spectrogram-derived envelope.
func TimeAxis(bins []float64) Axis { return Axis{TimeBins: bins} }

// SampleAxis returns an Axis for a sample-aligned envelope.
func SampleAxis(rate int) Axis { return Axis{SampleRate: rate} }

func (a Axis) check(n int) error {
	hasBins := a.TimeBins != nil
	hasRate := a.SampleRate > 0
	if hasBins == hasRate {
		return ErrAmbiguousAxis
	}
	if hasBins && len(a.TimeBins) != n {
		return fmt.Errorf("%w: %d time bins, %d envelope values", ErrAxisLength, len(a.TimeBins), n)
	}
	return nil
}

// at maps an edge index in [0, n] to seconds. Index n is one past the last
// value; on a time-bin axis it is extrapolated by the last bin spacing.
func (a Axis) at(i int) float64 {
	if a.TimeBins == nil {
		return float64(i) / float64(a.SampleRate)
	}
	n := len(a.TimeBins)
	if i < n {
		return a.TimeBins[i]
	}
	if n < 2 {
		return a.TimeBins[n-1]
	}
	return a.TimeBins[n-1] + (a.TimeBins[n-1] - a.TimeBins[n-2])
}

// duration is the time between edge indices from and to. On a sample axis
// it is computed in samples first so ties are exact.
func (a Axis) duration(from, to int) float64 {
	if a.TimeBins == nil {
		return float64(to-from) / float64(a.SampleRate)
	}
	return a.at(to) - a.at(from)
}

// Boundaries are parallel onset and offset times in seconds.
type Boundaries struct {
	Onsets  []float64
	Offsets []float64
}

// Len returns the number of segments.
func (b Boundaries) Len() int { return len(b.Onsets) }

// Empty reports whether no segment was found.
func (b Boundaries) Empty() bool { return len(b.Onsets) == 0 }

// Segment finds segments where envelope exceeds cfg.Threshold. Gaps no
// longer than MinSilentDur are bridged, then segments no longer than
// MinSyllableDur are dropped. An envelope that never crosses the threshold
// yields empty Boundaries and no error.
func Segment(envelope []float64, cfg Config, axis Axis) (Boundaries, error) {
	if err := cfg.Validate(); err != nil {
		return Boundaries{}, err
	}
	if err := axis.check(len(envelope)); err != nil {
		return Boundaries{}, err
	}

	onIdx, offIdx := crossings(envelope, cfg.Threshold)
	if len(onIdx) == 0 || len(offIdx) == 0 {
		return Boundaries{Onsets: []float64{}, Offsets: []float64{}}, nil
	}

	// bridge short gaps: drop offset[i-1] and onset[i] together
	keptOn := append(make([]int, 0, len(onIdx)), onIdx[0])
	keptOff := make([]int, 0, len(offIdx))
	for i := 1; i < len(onIdx); i++ {
		if axis.duration(offIdx[i-1], onIdx[i]) > cfg.MinSilentDur {
			keptOff = append(keptOff, offIdx[i-1])
			keptOn = append(keptOn, onIdx[i])
		}
	}
	keptOff = append(keptOff, offIdx[len(offIdx)-1])

	out := Boundaries{
		Onsets:  make([]float64, 0, len(keptOn)),
		Offsets: make([]float64, 0, len(keptOn)),
	}
	for i := range keptOn {
		if axis.duration(keptOn[i], keptOff[i]) > cfg.MinSyllableDur {
			out.Onsets = append(out.Onsets, axis.at(keptOn[i]))
			out.Offsets = append(out.Offsets, axis.at(keptOff[i]))
		}
	}
	return out, nil
}

// crossings returns rising-edge indices and falling-edge indices of the
// above-threshold mask. A run that reaches the end closes at len(envelope).
func crossings(envelope []float64, threshold float64) (onsets, offsets []int) {
	prev := false
	for i, v := range envelope {
		above := v > threshold
		switch {
		case above && !prev:
			onsets = append(onsets, i)
		case !above && prev:
			offsets = append(offsets, i)
		}
		prev = above
	}
	if prev {
		offsets = append(offsets, len(envelope))
	}
	return onsets, offsets
}

// Package annotation models ground-truth segment boundaries with explicit
// units, reads them from the supported annotation formats and reconciles
// them against a segmentation configuration.
package annotation

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/maauso/songseg/internal/segment"
)

// Static errors for annotation handling.
var (
	// ErrParamsMismatch matches every *MismatchError.
	ErrParamsMismatch = errors.New("annotation: segment parameters mismatch")
	// ErrParamsRequired is returned when an annotation records segmentation
	// parameters but no configuration was supplied to check them against.
	ErrParamsRequired = errors.New("annotation: segmentation config required to check recorded parameters")
	// ErrMalformed is returned for annotations whose sequences disagree in
	// length or whose boundaries are out of order.
	ErrMalformed = errors.New("annotation: malformed annotation")
)

// Unit is the native unit of annotation boundaries.
type Unit int

const (
	// Samples are sample indices into the recording.
	Samples Unit = iota
	// Milliseconds are times from the start of the recording.
	Milliseconds
)

// String returns the unit name.
func (u Unit) String() string {
	switch u {
	case Samples:
		return "samples"
	case Milliseconds:
		return "ms"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// Params are the segmentation parameters recorded alongside an annotation.
type Params struct {
	Threshold float64
	MinDurMs  float64
	MinIntMs  float64
}

// Annotation is a decoded annotation in its native unit.
type Annotation struct {
	Onsets  []float64
	Offsets []float64
	Unit    Unit
	Labels  []string
	// Params is nil when the format records no segmentation parameters.
	Params *Params
}

// Validate checks that the sequences line up and every segment is ordered.
func (a *Annotation) Validate() error {
	if len(a.Onsets) != len(a.Offsets) || len(a.Onsets) != len(a.Labels) {
		return fmt.Errorf("%w: %d onsets, %d offsets, %d labels",
			ErrMalformed, len(a.Onsets), len(a.Offsets), len(a.Labels))
	}
	for i := range a.Onsets {
		if a.Offsets[i] <= a.Onsets[i] {
			return fmt.Errorf("%w: segment %d ends at %g before it starts at %g",
				ErrMalformed, i, a.Offsets[i], a.Onsets[i])
		}
	}
	return nil
}

// Reader decodes one annotation format.
type Reader interface {
	// Read decodes the annotation for the recording at audioPath from r.
	Read(r io.Reader, audioPath string) (*Annotation, error)
	// DefaultPath returns where the annotation for audioPath is expected
	// when none is given explicitly.
	DefaultPath(audioPath string) string
}

// MismatchError reports a recorded parameter that disagrees with the
// supplied segmentation config.
type MismatchError struct {
	Field    string
	File     string
	Recorded float64
	Supplied float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("annotation: %q parameter for %s is %g, segmentation config has %g",
		e.Field, e.File, e.Recorded, e.Supplied)
}

// Is makes errors.Is(err, ErrParamsMismatch) true.
func (e *MismatchError) Is(target error) bool {
	return target == ErrParamsMismatch
}

// Boundaries are reconciled segment boundaries in both time domains.
type Boundaries struct {
	OnsetsSec     []float64
	OffsetsSec    []float64
	OnsetsSample  []int
	OffsetsSample []int
	Labels        []string
}

// Reconcile checks recorded parameters against cfg and converts a's
// boundaries to seconds and sample indices. cfg may be nil only when a has
// no recorded parameters. file names the annotation in mismatch errors.
//
// Millisecond onsets map to sample round(s*rate)-1, clamped at zero;
// millisecond offsets map to round(s*rate). Sample boundaries are kept as
// they are and divided by rate for seconds.
func Reconcile(a *Annotation, cfg *segment.Config, sampleRate int, file string) (Boundaries, error) {
	if sampleRate <= 0 {
		return Boundaries{}, fmt.Errorf("annotation: sample rate must be positive, got %d", sampleRate)
	}
	if err := a.Validate(); err != nil {
		return Boundaries{}, fmt.Errorf("%s: %w", file, err)
	}
	if a.Params != nil {
		if cfg == nil {
			return Boundaries{}, fmt.Errorf("%s: %w", file, ErrParamsRequired)
		}
		if err := checkParams(*a.Params, *cfg, file); err != nil {
			return Boundaries{}, err
		}
	}

	n := len(a.Onsets)
	b := Boundaries{
		OnsetsSec:     make([]float64, n),
		OffsetsSec:    make([]float64, n),
		OnsetsSample:  make([]int, n),
		OffsetsSample: make([]int, n),
		Labels:        append([]string(nil), a.Labels...),
	}
	rate := float64(sampleRate)
	for i := 0; i < n; i++ {
		switch a.Unit {
		case Milliseconds:
			on, off := a.Onsets[i]/1000, a.Offsets[i]/1000
			b.OnsetsSec[i], b.OffsetsSec[i] = on, off
			b.OnsetsSample[i] = max(int(math.RoundToEven(on*rate))-1, 0)
			b.OffsetsSample[i] = int(math.RoundToEven(off * rate))
		case Samples:
			b.OnsetsSample[i] = int(a.Onsets[i])
			b.OffsetsSample[i] = int(a.Offsets[i])
			b.OnsetsSec[i] = a.Onsets[i] / rate
			b.OffsetsSec[i] = a.Offsets[i] / rate
		default:
			return Boundaries{}, fmt.Errorf("annotation: unknown unit %v", a.Unit)
		}
	}
	return b, nil
}

func checkParams(p Params, cfg segment.Config, file string) error {
	checks := []struct {
		field    string
		recorded float64
		supplied float64
	}{
		{"threshold", p.Threshold, cfg.Threshold},
		{"min_dur", p.MinDurMs / 1000, cfg.MinSyllableDur},
		{"min_int", p.MinIntMs / 1000, cfg.MinSilentDur},
	}
	for _, c := range checks {
		if !closeEnough(c.recorded, c.supplied) {
			return &MismatchError{Field: c.field, File: file, Recorded: c.recorded, Supplied: c.supplied}
		}
	}
	return nil
}

// closeEnough absorbs the rounding of the ms to s conversion.
func closeEnough(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

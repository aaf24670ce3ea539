// Package song provides the Song aggregate: a recording with its syllable
// boundaries and labels, built either from a trusted annotation or by
// segmenting the audio, from which per-syllable spectrograms are produced.
package song

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/maauso/songseg/internal/annotation"
	"github.com/maauso/songseg/internal/audio"
	"github.com/maauso/songseg/internal/bandpass"
	"github.com/maauso/songseg/internal/envelope"
	"github.com/maauso/songseg/internal/segment"
	"github.com/maauso/songseg/internal/spect"
)

// State is the lifecycle stage of a Song.
type State string

const (
	// StateUninitialized is the zero state before construction completes.
	StateUninitialized State = "uninitialized"
	// StateAnnotationLoaded means boundaries came from an annotation.
	StateAnnotationLoaded State = "annotation_loaded"
	// StateSegmented means boundaries came from segmenting the audio.
	StateSegmented State = "segmented"
	// StateMaskSelected means syllables to use have been chosen.
	StateMaskSelected State = "mask_selected"
	// StateSpectrogramsMaterialized means syllable spectrograms were computed.
	StateSpectrogramsMaterialized State = "spectrograms_materialized"
)

// Static errors for Song operations.
var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the song's current state.
	ErrInvalidTransition = errors.New("song: invalid state transition")
	// ErrNoSelection is returned when spectrograms are requested before
	// RestrictToLabels.
	ErrNoSelection = errors.New("song: select syllables with RestrictToLabels before materializing spectrograms")
	// ErrMissingConfig is returned when segmentation is requested without
	// both a spectrogram config and a segmentation config.
	ErrMissingConfig = errors.New("song: segmentation requires spectrogram and segmentation configs")
	// ErrSegmentTooLong matches every *SegmentTooLongError.
	ErrSegmentTooLong = errors.New("song: segment longer than fixed width")
	// ErrWidthExceedsRecording is returned when the fixed width in samples is
	// longer than the recording.
	ErrWidthExceedsRecording = errors.New("song: fixed width longer than recording")
	// ErrNotMaterialized is returned by Stack before spectrograms are kept.
	ErrNotMaterialized = errors.New("song: no persisted spectrograms")
)

// validTransitions defines which state transitions are allowed.
var validTransitions = map[State][]State{
	StateUninitialized:            {StateAnnotationLoaded, StateSegmented},
	StateAnnotationLoaded:         {StateMaskSelected},
	StateSegmented:                {StateMaskSelected},
	StateMaskSelected:             {StateMaskSelected, StateSpectrogramsMaterialized},
	StateSpectrogramsMaterialized: {StateMaskSelected, StateSpectrogramsMaterialized},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	return slices.Contains(validTransitions[from], to)
}

// UnlabeledLabel is assigned to every syllable found by segmentation.
const UnlabeledLabel = "-"

// EvtafBand is the envelope band used when segmenting evtaf recordings,
// matching the labelling tool that produced their annotations.
var EvtafBand = spect.Band{Low: 500, High: 10000}

// Input identifies the recording a Song is built from.
type Input struct {
	File      string
	Format    Format
	Recording audio.Recording
}

// Song is a recording with syllable boundaries in seconds and samples and
// one label per syllable. A Song is not safe for concurrent use; distinct
// Songs share no state.
type Song struct {
	file       string
	format     Format
	samples    []float64
	sampleRate int

	onsetsSec     []float64
	offsetsSec    []float64
	onsetsSample  []int
	offsetsSample []int
	labels        []string

	state     State
	selected  []bool
	syllables []Syllable

	logger *slog.Logger
}

// Option configures a Song.
type Option func(*Song)

// WithLogger sets the logger used for non-fatal diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Song) { s.logger = l }
}

func newSong(in Input, opts []Option) (*Song, error) {
	if in.Recording.SampleRate <= 0 {
		return nil, fmt.Errorf("song: %s: sample rate must be positive, got %d", in.File, in.Recording.SampleRate)
	}
	s := &Song{
		file:       in.File,
		format:     in.Format,
		samples:    in.Recording.Samples,
		sampleRate: in.Recording.SampleRate,
		state:      StateUninitialized,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromAnnotation builds a Song from a decoded annotation. When the
// annotation records segmentation parameters, segCfg must be given and
// must agree with them, else an *annotation.MismatchError is returned.
// annotationFile names the annotation in errors.
func FromAnnotation(in Input, ann *annotation.Annotation, annotationFile string, segCfg *segment.Config, opts ...Option) (*Song, error) {
	s, err := newSong(in, opts)
	if err != nil {
		return nil, err
	}
	b, err := annotation.Reconcile(ann, segCfg, s.sampleRate, annotationFile)
	if err != nil {
		return nil, err
	}

	s.onsetsSec, s.offsetsSec = b.OnsetsSec, b.OffsetsSec
	s.onsetsSample, s.offsetsSample = b.OnsetsSample, b.OffsetsSample
	s.labels = b.Labels
	if err := s.transitionTo(StateAnnotationLoaded); err != nil {
		return nil, err
	}
	return s, nil
}

// FromSegmentation builds a Song by segmenting a smoothed amplitude
// envelope of the audio. The envelope is band-limited to spectCfg's band,
// or to EvtafBand for evtaf recordings. Every syllable gets UnlabeledLabel.
func FromSegmentation(in Input, spectCfg *spect.Config, segCfg *segment.Config, opts ...Option) (*Song, error) {
	if spectCfg == nil || segCfg == nil {
		return nil, ErrMissingConfig
	}
	s, err := newSong(in, opts)
	if err != nil {
		return nil, err
	}

	smooth := envelope.DefaultSmoothOpts()
	band := spectCfg.Band
	if s.format == FormatEvtaf {
		band = &EvtafBand
	}
	if band != nil {
		smooth.Band = &bandpass.Cutoffs{Low: band.Low, High: band.High}
	}
	env, err := envelope.Smooth(s.samples, s.sampleRate, smooth)
	if err != nil {
		return nil, fmt.Errorf("song: %s: amplitude envelope: %w", s.file, err)
	}

	b, err := segment.Segment(env, *segCfg, segment.SampleAxis(s.sampleRate))
	if err != nil {
		return nil, fmt.Errorf("song: %s: %w", s.file, err)
	}

	n := b.Len()
	s.onsetsSec, s.offsetsSec = b.Onsets, b.Offsets
	s.onsetsSample = make([]int, n)
	s.offsetsSample = make([]int, n)
	s.labels = make([]string, n)
	rate := float64(s.sampleRate)
	for i := 0; i < n; i++ {
		s.onsetsSample[i] = int(math.RoundToEven(b.Onsets[i] * rate))
		s.offsetsSample[i] = int(math.RoundToEven(b.Offsets[i] * rate))
		s.labels[i] = UnlabeledLabel
	}
	if err := s.transitionTo(StateSegmented); err != nil {
		return nil, err
	}
	return s, nil
}

// transitionTo moves the song to state or returns ErrInvalidTransition.
func (s *Song) transitionTo(state State) error {
	if !canTransition(s.state, state) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, state)
	}
	s.state = state
	return nil
}

// File returns the recording path.
func (s *Song) File() string { return s.file }

// Format returns the recording format.
func (s *Song) Format() Format { return s.format }

// State returns the lifecycle state.
func (s *Song) State() State { return s.state }

// SampleRate returns the sample rate in Hz.
func (s *Song) SampleRate() int { return s.sampleRate }

// Samples returns the raw waveform. Callers must not modify it.
func (s *Song) Samples() []float64 { return s.samples }

// Len returns the number of syllables.
func (s *Song) Len() int { return len(s.labels) }

// Labels returns a copy of the syllable labels.
func (s *Song) Labels() []string { return slices.Clone(s.labels) }

// Seconds returns copies of onsets and offsets in seconds.
func (s *Song) Seconds() (onsets, offsets []float64) {
	return slices.Clone(s.onsetsSec), slices.Clone(s.offsetsSec)
}

// SampleIndices returns copies of onsets and offsets as sample indices.
func (s *Song) SampleIndices() (onsets, offsets []int) {
	return slices.Clone(s.onsetsSample), slices.Clone(s.offsetsSample)
}

// Selected returns a copy of the selection mask, or nil before
// RestrictToLabels.
func (s *Song) Selected() []bool { return slices.Clone(s.selected) }

// Syllables returns the persisted syllable views, or nil if none were kept.
func (s *Song) Syllables() []Syllable { return slices.Clone(s.syllables) }

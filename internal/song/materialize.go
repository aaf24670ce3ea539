package song

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/maauso/songseg/internal/cache"
	"github.com/maauso/songseg/internal/spect"
)

// wideSyllableSec is the fixed width above which syllables are hard to
// centre and memory use grows quickly.
const wideSyllableSec = 1.0

// Syllable is a read-only view of one selected segment.
type Syllable struct {
	// Index is the position of the segment in the song.
	Index int
	Label string
	// Audio is the segment slice, padded to the fixed width if one was set.
	Audio      []float64
	SampleRate int
	// Spect is nil when the segment is too short for the spectrogram window.
	Spect *spect.Spectrogram

	SegmentLength int
	Overlap       int
	Band          *spect.Band
}

// Available reports whether a spectrogram could be computed.
func (s Syllable) Available() bool {
	return s.Spect != nil
}

// SegmentTooLongError reports a segment that does not fit the fixed width.
type SegmentTooLongError struct {
	Index           int
	Label           string
	File            string
	DurationSamples int
	WidthSamples    int
}

func (e *SegmentTooLongError) Error() string {
	return fmt.Sprintf("song: syllable %d with label %q in %s lasts %d samples, longer than fixed width of %d samples",
		e.Index, e.Label, e.File, e.DurationSamples, e.WidthSamples)
}

// Is makes errors.Is(err, ErrSegmentTooLong) true.
func (e *SegmentTooLongError) Is(target error) bool {
	return target == ErrSegmentTooLong
}

// MaterializeOpts configures MaterializeSpectrograms.
type MaterializeOpts struct {
	// FixedWidth, when set, is the width in seconds of every syllable slice.
	FixedWidth *float64
	// Persist keeps the views on the Song.
	Persist bool
	// Progress is called after each selected syllable.
	Progress func(done, total int)
	// Cache serves and stores spectrograms.
	Cache *cache.Store
}

// DefaultMaterializeOpts returns options that keep views on the Song with
// native-width slices.
func DefaultMaterializeOpts() MaterializeOpts {
	return MaterializeOpts{Persist: true}
}

// MaterializeOption configures MaterializeSpectrograms.
type MaterializeOption func(*MaterializeOpts)

// WithFixedWidth centres every syllable in a slice of seconds length.
// The width in samples is seconds*rate rounded to the nearest integer, not
// truncated, so 0.3 s at 30303 Hz is 9091 samples.
func WithFixedWidth(seconds float64) MaterializeOption {
	return func(o *MaterializeOpts) { o.FixedWidth = &seconds }
}

// WithPersist toggles keeping the views on the Song.
func WithPersist(on bool) MaterializeOption {
	return func(o *MaterializeOpts) { o.Persist = on }
}

// WithProgress sets a callback invoked after each selected syllable.
func WithProgress(fn func(done, total int)) MaterializeOption {
	return func(o *MaterializeOpts) { o.Progress = fn }
}

// WithCache serves spectrograms from store when possible.
func WithCache(store *cache.Store) MaterializeOption {
	return func(o *MaterializeOpts) { o.Cache = store }
}

// MaterializeSpectrograms computes a spectrogram per selected syllable and
// returns the views in song order. A syllable too short for the window gets
// a nil Spect and a warning; every other error aborts.
//
// With a fixed width, every segment (selected or not) must fit it. Slices
// are centred on the segment with the odd sample of padding on the right,
// and shifted to the start or end of the recording when centring would run
// past either edge.
func (s *Song) MaterializeSpectrograms(cfg spect.Config, opts ...MaterializeOption) ([]Syllable, error) {
	if s.selected == nil {
		return nil, ErrNoSelection
	}
	if !canTransition(s.state, StateSpectrogramsMaterialized) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, StateSpectrogramsMaterialized)
	}

	o := DefaultMaterializeOpts()
	for _, opt := range opts {
		opt(&o)
	}

	width, err := s.fixedWidthSamples(o.FixedWidth)
	if err != nil {
		return nil, err
	}

	engine, err := spect.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	var computer spect.Computer = engine
	if o.Cache != nil {
		computer = cache.NewComputer(engine, o.Cache, s.logger)
	}

	var band *spect.Band
	if cfg.Band != nil {
		b := *cfg.Band
		band = &b
	}

	total := 0
	for _, sel := range s.selected {
		if sel {
			total++
		}
	}

	syllables := make([]Syllable, 0, total)
	for i := range s.labels {
		if !s.selected[i] {
			continue
		}
		seg := s.slice(i, width)

		sp, err := computer.Compute(seg, s.sampleRate)
		if errors.Is(err, spect.ErrWindowTooLong) {
			s.logger.Warn("segment too short for spectrogram window, spectrogram unavailable",
				slog.Int("index", i),
				slog.String("label", s.labels[i]),
				slog.String("file", s.file),
				slog.Int("samples", len(seg)),
				slog.Int("segment_length", cfg.SegmentLength),
			)
			sp, err = nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("song: %s: syllable %d: %w", s.file, i, err)
		}

		syllables = append(syllables, Syllable{
			Index:         i,
			Label:         s.labels[i],
			Audio:         seg,
			SampleRate:    s.sampleRate,
			Spect:         sp,
			SegmentLength: cfg.SegmentLength,
			Overlap:       cfg.Overlap,
			Band:          band,
		})
		if o.Progress != nil {
			o.Progress(len(syllables), total)
		}
	}

	if o.Persist {
		s.syllables = syllables
	}
	if err := s.transitionTo(StateSpectrogramsMaterialized); err != nil {
		return nil, err
	}
	return syllables, nil
}

// fixedWidthSamples converts the optional width to samples and checks it
// against the recording and every segment. It returns 0 without a width.
func (s *Song) fixedWidthSamples(seconds *float64) (int, error) {
	if seconds == nil {
		return 0, nil
	}
	if *seconds <= 0 {
		return 0, fmt.Errorf("song: fixed width must be positive, got %g", *seconds)
	}
	if *seconds > wideSyllableSec {
		s.logger.Warn("fixed syllable width is above one second; syllables will be hard to centre and use a lot of memory",
			slog.Float64("width_sec", *seconds),
			slog.String("file", s.file),
		)
	}

	width := int(math.Round(*seconds * float64(s.sampleRate)))
	if width > len(s.samples) {
		return 0, fmt.Errorf("%w: %d samples, %s has %d", ErrWidthExceedsRecording, width, s.file, len(s.samples))
	}
	for i := range s.labels {
		if d := s.offsetsSample[i] - s.onsetsSample[i]; d > width {
			return 0, &SegmentTooLongError{
				Index:           i,
				Label:           s.labels[i],
				File:            s.file,
				DurationSamples: d,
				WidthSamples:    width,
			}
		}
	}
	return width, nil
}

// slice returns segment i's audio, centred in width samples when width > 0.
func (s *Song) slice(i, width int) []float64 {
	on, off := s.onsetsSample[i], s.offsetsSample[i]
	n := len(s.samples)
	on, off = min(max(on, 0), n), min(max(off, 0), n)
	if width <= 0 {
		return s.samples[on:off:off]
	}

	diff := width - (off - on)
	left := diff / 2
	right := diff - left
	switch {
	case left > on:
		return s.samples[:width:width]
	case off+right > n:
		return s.samples[n-width : n : n]
	default:
		return s.samples[on-left : off+right : off+right]
	}
}

// Stack returns the spectrograms of persisted, available syllables with
// their song indices. All spectrograms must share one shape, as they do
// after a fixed-width materialization.
func (s *Song) Stack() ([]*mat.Dense, []int, error) {
	if s.state != StateSpectrogramsMaterialized || s.syllables == nil {
		return nil, nil, ErrNotMaterialized
	}

	var (
		out     []*mat.Dense
		indices []int
		rows    int
		cols    int
	)
	for _, syl := range s.syllables {
		if !syl.Available() {
			continue
		}
		r, c := syl.Spect.Dims()
		if len(out) == 0 {
			rows, cols = r, c
		} else if r != rows || c != cols {
			return nil, nil, fmt.Errorf("song: syllable %d spectrogram is %dx%d, expected %dx%d",
				syl.Index, r, c, rows, cols)
		}
		out = append(out, syl.Spect.Power)
		indices = append(indices, syl.Index)
	}
	return out, indices, nil
}

package song

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/songseg/internal/annotation"
	"github.com/maauso/songseg/internal/audio"
	"github.com/maauso/songseg/internal/segment"
	"github.com/maauso/songseg/internal/spect"
	"github.com/maauso/songseg/internal/storage"
)

// collaborators are the audio and annotation decoders of one format.
type collaborators struct {
	audio      audio.Loader
	annotation annotation.Reader
}

// Loader reads recordings and annotations through a storage.Storage and
// builds Songs.
type Loader struct {
	store   storage.Storage
	formats map[Format]collaborators
	logger  *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger passed to every Song.
func WithLoaderLogger(l *slog.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// WithTextSampleRate overrides the sample rate of txt recordings.
func WithTextSampleRate(rate int) LoaderOption {
	return func(ld *Loader) {
		c := ld.formats[FormatTxt]
		c.audio = audio.NewTextLoader(ld.store, rate)
		ld.formats[FormatTxt] = c
	}
}

// NewLoader creates a Loader for every supported format.
func NewLoader(store storage.Storage, opts ...LoaderOption) *Loader {
	wav := audio.NewWAVLoader(store)
	l := &Loader{
		store: store,
		formats: map[Format]collaborators{
			FormatEvtaf:   {audio: audio.NewCbinLoader(store), annotation: annotation.NotYAML{}},
			FormatKoumura: {audio: wav, annotation: annotation.Koumura{}},
			FormatWavTxt:  {audio: wav, annotation: annotation.CSV{}},
			FormatTxt:     {audio: audio.NewTextLoader(store, 0), annotation: annotation.CSV{}},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadOpts selects how boundaries are obtained.
type LoadOpts struct {
	// Resegment finds boundaries from the audio instead of an annotation.
	Resegment bool
	// AnnotationPath overrides the format's default annotation location.
	AnnotationPath string
	// Segment is required to resegment and to check recorded parameters.
	Segment *segment.Config
	// Spect is required to resegment.
	Spect *spect.Config
}

// Load reads the recording at path and builds a Song from its annotation,
// or by segmentation when opts.Resegment is set.
func (l *Loader) Load(ctx context.Context, path string, format Format, opts LoadOpts) (*Song, error) {
	c, ok := l.formats[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if opts.Resegment && (opts.Segment == nil || opts.Spect == nil) {
		return nil, ErrMissingConfig
	}

	rec, err := c.audio.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load audio: %w", err)
	}
	in := Input{File: path, Format: format, Recording: rec}

	if opts.Resegment {
		return FromSegmentation(in, opts.Spect, opts.Segment, WithLogger(l.logger))
	}

	annPath := opts.AnnotationPath
	if annPath == "" {
		annPath = c.annotation.DefaultPath(path)
	}
	ann, err := l.readAnnotation(ctx, c.annotation, annPath, path)
	if err != nil {
		if opts.AnnotationPath == "" && errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("could not find an annotation file for %s at %s: %w", path, annPath, err)
		}
		return nil, err
	}
	return FromAnnotation(in, ann, annPath, opts.Segment, WithLogger(l.logger))
}

func (l *Loader) readAnnotation(ctx context.Context, r annotation.Reader, annPath, audioPath string) (*annotation.Annotation, error) {
	rc, err := l.store.Open(ctx, annPath)
	if err != nil {
		return nil, fmt.Errorf("load annotation: %w", err)
	}
	defer func() { _ = rc.Close() }()

	ann, err := r.Read(rc, audioPath)
	if err != nil {
		return nil, fmt.Errorf("load annotation %s: %w", annPath, err)
	}
	return ann, nil
}

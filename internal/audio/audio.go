// Package audio provides loaders that decode recordings into raw samples.
// Each loader handles one on-disk format and reads bytes through a
// storage.Storage, so recordings can live on local disk or S3.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/maauso/songseg/internal/storage"
)

// ErrInvalidFormat is returned when a file cannot be decoded by the loader.
var ErrInvalidFormat = errors.New("audio: invalid format")

// Recording is a mono waveform. Samples keep the integer scale of the file
// so amplitude thresholds stay comparable across formats.
type Recording struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the recording in seconds.
func (r Recording) Duration() float64 {
	if r.SampleRate == 0 {
		return 0
	}
	return float64(len(r.Samples)) / float64(r.SampleRate)
}

// Loader decodes the recording at a path. Missing files yield an error
// matching storage.ErrNotFound.
type Loader interface {
	Load(ctx context.Context, path string) (Recording, error)
}

// readAll opens path through store and reads it fully.
func readAll(ctx context.Context, store storage.Storage, path string) ([]byte, error) {
	rc, err := store.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

package audio

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-audio/wav"

	"github.com/maauso/songseg/internal/storage"
)

// WAVLoader decodes PCM WAV files. Multi-channel files yield their first
// channel.
type WAVLoader struct {
	store storage.Storage
}

// Compile-time check that WAVLoader implements Loader.
var _ Loader = (*WAVLoader)(nil)

// NewWAVLoader creates a WAVLoader reading through store.
func NewWAVLoader(store storage.Storage) *WAVLoader {
	return &WAVLoader{store: store}
}

// Load implements Loader.
func (l *WAVLoader) Load(ctx context.Context, path string) (Recording, error) {
	b, err := readAll(ctx, l.store, path)
	if err != nil {
		return Recording{}, err
	}
	return DecodeWAV(b)
}

// DecodeWAV decodes an in-memory WAV file.
func DecodeWAV(b []byte) (Recording, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return Recording{}, fmt.Errorf("%w: not a valid wav file", ErrInvalidFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Recording{}, fmt.Errorf("%w: decode pcm: %v", ErrInvalidFormat, err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	rate := buf.Format.SampleRate
	if rate <= 0 {
		return Recording{}, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, rate)
	}

	samples := make([]float64, len(buf.Data)/channels)
	for i := range samples {
		samples[i] = float64(buf.Data[i*channels])
	}
	return Recording{Samples: samples, SampleRate: rate}, nil
}

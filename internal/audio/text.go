package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/maauso/songseg/internal/storage"
)

// DefaultTextSampleRate is the rate of recordings stored as text.
const DefaultTextSampleRate = 30303

// TextLoader decodes recordings stored as one sample per line. Blank lines
// are skipped.
type TextLoader struct {
	store      storage.Storage
	sampleRate int
}

// Compile-time check that TextLoader implements Loader.
var _ Loader = (*TextLoader)(nil)

// NewTextLoader creates a TextLoader. A non-positive sampleRate selects
// DefaultTextSampleRate.
func NewTextLoader(store storage.Storage, sampleRate int) *TextLoader {
	if sampleRate <= 0 {
		sampleRate = DefaultTextSampleRate
	}
	return &TextLoader{store: store, sampleRate: sampleRate}
}

// Load implements Loader.
func (l *TextLoader) Load(ctx context.Context, path string) (Recording, error) {
	b, err := readAll(ctx, l.store, path)
	if err != nil {
		return Recording{}, err
	}

	var samples []float64
	sc := bufio.NewScanner(bytes.NewReader(b))
	for line := 1; sc.Scan(); line++ {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Recording{}, fmt.Errorf("%w: %s line %d: %q", ErrInvalidFormat, path, line, s)
		}
		samples = append(samples, v)
	}
	if err := sc.Err(); err != nil {
		return Recording{}, fmt.Errorf("scan %s: %w", path, err)
	}
	return Recording{Samples: samples, SampleRate: l.sampleRate}, nil
}

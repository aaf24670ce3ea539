package audio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/songseg/internal/storage"
)

// CbinLoader decodes .cbin recordings: interleaved big-endian int16 samples
// with the sample rate and channel count in a .rec header next to them.
type CbinLoader struct {
	store storage.Storage
}

// Compile-time check that CbinLoader implements Loader.
var _ Loader = (*CbinLoader)(nil)

// NewCbinLoader creates a CbinLoader reading through store.
func NewCbinLoader(store storage.Storage) *CbinLoader {
	return &CbinLoader{store: store}
}

// RecPath returns the header path for a .cbin path.
func RecPath(cbinPath string) string {
	return strings.TrimSuffix(cbinPath, filepath.Ext(cbinPath)) + ".rec"
}

// Load implements Loader. The first channel is returned.
func (l *CbinLoader) Load(ctx context.Context, path string) (Recording, error) {
	rec, err := readAll(ctx, l.store, RecPath(path))
	if err != nil {
		return Recording{}, fmt.Errorf("read rec header: %w", err)
	}
	hdr, err := ParseRec(rec)
	if err != nil {
		return Recording{}, err
	}

	raw, err := readAll(ctx, l.store, path)
	if err != nil {
		return Recording{}, err
	}
	return DecodeCbin(raw, hdr)
}

// RecHeader holds the fields of a .rec header used for decoding.
type RecHeader struct {
	SampleRate int
	Channels   int
}

// ParseRec reads "key = value" lines, looking for ADFREQ and Chans.
// Chans defaults to 1.
func ParseRec(b []byte) (RecHeader, error) {
	hdr := RecHeader{Channels: 1}
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "ADFREQ":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return RecHeader{}, fmt.Errorf("%w: ADFREQ %q", ErrInvalidFormat, value)
			}
			hdr.SampleRate = int(math.Round(f))
		case "Chans":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return RecHeader{}, fmt.Errorf("%w: Chans %q", ErrInvalidFormat, value)
			}
			hdr.Channels = n
		}
	}
	if err := sc.Err(); err != nil {
		return RecHeader{}, fmt.Errorf("scan rec header: %w", err)
	}
	if hdr.SampleRate <= 0 {
		return RecHeader{}, fmt.Errorf("%w: rec header has no ADFREQ", ErrInvalidFormat)
	}
	return hdr, nil
}

// DecodeCbin decodes interleaved big-endian int16 frames, keeping channel 0.
func DecodeCbin(b []byte, hdr RecHeader) (Recording, error) {
	frame := 2 * hdr.Channels
	if len(b)%frame != 0 {
		return Recording{}, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames",
			ErrInvalidFormat, len(b), hdr.Channels)
	}
	samples := make([]float64, len(b)/frame)
	for i := range samples {
		samples[i] = float64(int16(binary.BigEndian.Uint16(b[i*frame:])))
	}
	return Recording{Samples: samples, SampleRate: hdr.SampleRate}, nil
}

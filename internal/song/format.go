package song

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownFormat is returned for an unsupported format tag.
var ErrUnknownFormat = errors.New("song: unknown file format")

// Format tags a recording format together with its annotation format.
type Format string

const (
	// FormatEvtaf is .cbin audio with a .not.yaml annotation in ms that
	// records its segmentation parameters.
	FormatEvtaf Format = "evtaf"
	// FormatKoumura is WAV audio annotated by a shared Annotation.xml.
	FormatKoumura Format = "koumura"
	// FormatWavTxt is WAV audio with a CSV annotation in samples.
	FormatWavTxt Format = "wav_txt"
	// FormatTxt is one-sample-per-line text audio with a CSV annotation.
	FormatTxt Format = "txt"
)

// Formats lists every supported format.
var Formats = []Format{FormatEvtaf, FormatKoumura, FormatWavTxt, FormatTxt}

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

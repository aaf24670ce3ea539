package annotation

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// KoumuraFileName is the annotation file shared by every recording of one
// bird in the Koumura & Okanoya dataset.
const KoumuraFileName = "Annotation.xml"

// ErrNotListed is returned when an annotation file has no entry for the
// requested recording.
var ErrNotListed = errors.New("annotation: recording not listed in annotation file")

type koumuraFile struct {
	Sequences []koumuraSequence `xml:"Sequence"`
}

type koumuraSequence struct {
	WaveFileName string        `xml:"WaveFileName"`
	Position     int           `xml:"Position"`
	Length       int           `xml:"Length"`
	Notes        []koumuraNote `xml:"Note"`
}

type koumuraNote struct {
	Position int    `xml:"Position"`
	Length   int    `xml:"Length"`
	Label    string `xml:"Label"`
}

// Koumura reads Annotation.xml files. A recording may hold several
// sequences; their notes are concatenated in file order. Note positions are
// offset by the position of their sequence.
type Koumura struct{}

// Compile-time check that Koumura implements Reader.
var _ Reader = Koumura{}

// DefaultPath returns Annotation.xml in the parent of the recording's
// directory.
func (Koumura) DefaultPath(audioPath string) string {
	return sibling(audioPath, "../"+KoumuraFileName)
}

// Read decodes the notes belonging to audioPath's file name.
func (Koumura) Read(r io.Reader, audioPath string) (*Annotation, error) {
	var f koumuraFile
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KoumuraFileName, err)
	}

	name := baseName(audioPath)
	a := &Annotation{
		Onsets:  []float64{},
		Offsets: []float64{},
		Labels:  []string{},
		Unit:    Samples,
	}
	found := false
	for _, seq := range f.Sequences {
		if seq.WaveFileName != name {
			continue
		}
		found = true
		for _, n := range seq.Notes {
			on := seq.Position + n.Position
			a.Onsets = append(a.Onsets, float64(on))
			a.Offsets = append(a.Offsets, float64(on+n.Length))
			a.Labels = append(a.Labels, n.Label)
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, name)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

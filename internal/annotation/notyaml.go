package annotation

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// NotYAMLSuffix is appended to a recording path to find its sidecar.
const NotYAMLSuffix = ".not.yaml"

// notFile is the sidecar written by the labelling tool: boundaries in ms,
// labels as one character per syllable and the segmentation parameters
// used to find the boundaries.
type notFile struct {
	Threshold *float64  `yaml:"threshold"`
	MinDur    *float64  `yaml:"min_dur"`
	MinInt    *float64  `yaml:"min_int"`
	Onsets    []float64 `yaml:"onsets"`
	Offsets   []float64 `yaml:"offsets"`
	Labels    string    `yaml:"labels"`
}

// NotYAML reads millisecond annotations with recorded parameters.
type NotYAML struct{}

// Compile-time check that NotYAML implements Reader.
var _ Reader = NotYAML{}

// DefaultPath returns audioPath with NotYAMLSuffix appended.
func (NotYAML) DefaultPath(audioPath string) string {
	return audioPath + NotYAMLSuffix
}

// Read decodes a sidecar. All three parameters are required.
func (NotYAML) Read(r io.Reader, _ string) (*Annotation, error) {
	var f notFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode not.yaml: %w", err)
	}
	if f.Threshold == nil || f.MinDur == nil || f.MinInt == nil {
		return nil, fmt.Errorf("%w: threshold, min_dur and min_int are required", ErrMalformed)
	}

	labels := make([]string, 0, len(f.Labels))
	for _, r := range f.Labels {
		labels = append(labels, string(r))
	}

	a := &Annotation{
		Onsets:  nonNil(f.Onsets),
		Offsets: nonNil(f.Offsets),
		Unit:    Milliseconds,
		Labels:  labels,
		Params: &Params{
			Threshold: *f.Threshold,
			MinDurMs:  *f.MinDur,
			MinIntMs:  *f.MinInt,
		},
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func nonNil(x []float64) []float64 {
	if x == nil {
		return []float64{}
	}
	return x
}

package annotation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVSuffix is appended to a recording path to find its annotation.
const CSVSuffix = ".csv"

// CSV reads onset,offset,label rows in samples. A header row is skipped
// when its first field is not a number.
type CSV struct{}

// Compile-time check that CSV implements Reader.
var _ Reader = CSV{}

// DefaultPath returns audioPath with CSVSuffix appended.
func (CSV) DefaultPath(audioPath string) string {
	return audioPath + CSVSuffix
}

// Read decodes every row of r.
func (CSV) Read(r io.Reader, _ string) (*Annotation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	a := &Annotation{
		Onsets:  []float64{},
		Offsets: []float64{},
		Labels:  []string{},
		Unit:    Samples,
	}
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}

		on, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if row == 0 {
				continue
			}
			return nil, fmt.Errorf("%w: row %d onset %q", ErrMalformed, row+1, rec[0])
		}
		off, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d offset %q", ErrMalformed, row+1, rec[1])
		}
		a.Onsets = append(a.Onsets, float64(on))
		a.Offsets = append(a.Offsets, float64(off))
		a.Labels = append(a.Labels, strings.TrimSpace(rec[2]))
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

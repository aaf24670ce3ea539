package song

import (
	"fmt"
	"slices"
	"strings"
)

// AllLabels is the selection string that keeps every syllable.
const AllLabels = "all"

// Selection chooses syllables by label.
type Selection struct {
	all    bool
	labels map[string]struct{}
}

// All selects every syllable.
func All() Selection {
	return Selection{all: true}
}

// Labels selects syllables whose label is one of labels.
func Labels(labels ...string) Selection {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return Selection{labels: set}
}

// ParseSelection reads "all" as All and any other string as a set of
// single-character labels, so "iab" selects i, a and b.
func ParseSelection(s string) Selection {
	if s == AllLabels {
		return All()
	}
	labels := make([]string, 0, len(s))
	for _, r := range s {
		labels = append(labels, string(r))
	}
	return Labels(labels...)
}

// Contains reports whether label is selected.
func (sel Selection) Contains(label string) bool {
	if sel.all {
		return true
	}
	_, ok := sel.labels[label]
	return ok
}

// String returns "all" or the sorted label set.
func (sel Selection) String() string {
	if sel.all {
		return AllLabels
	}
	labels := make([]string, 0, len(sel.labels))
	for l := range sel.labels {
		labels = append(labels, l)
	}
	slices.Sort(labels)
	return fmt.Sprintf("[%s]", strings.Join(labels, " "))
}

// RestrictToLabels sets the selection mask, one entry per syllable.
// It must be called before MaterializeSpectrograms and may be called again
// to change the selection.
func (s *Song) RestrictToLabels(sel Selection) error {
	if err := s.transitionTo(StateMaskSelected); err != nil {
		return err
	}
	s.selected = make([]bool, len(s.labels))
	for i, l := range s.labels {
		s.selected[i] = sel.Contains(l)
	}
	return nil
}

package main

import (
	"github.com/maauso/songseg/internal/song"
)

// Manifest lists the extracted syllables of every recording.
type Manifest struct {
	Recordings []Recording `yaml:"recordings"`
}

// Recording is one song's entry in the manifest.
type Recording struct {
	File       string     `yaml:"file"`
	Format     string     `yaml:"format"`
	SampleRate int        `yaml:"sample_rate"`
	Segments   int        `yaml:"segments"`
	Syllables  []Syllable `yaml:"syllables"`
}

// Syllable describes one selected segment and its spectrogram shape.
type Syllable struct {
	Index     int     `yaml:"index"`
	Label     string  `yaml:"label"`
	OnsetSec  float64 `yaml:"onset_sec"`
	OffsetSec float64 `yaml:"offset_sec"`
	Samples   int     `yaml:"samples"`
	Available bool    `yaml:"available"`
	FreqBins  int     `yaml:"freq_bins,omitempty"`
	TimeBins  int     `yaml:"time_bins,omitempty"`
}

// Summary counts syllables across the manifest.
type Summary struct {
	Syllables   int
	Unavailable int
}

func newRecording(s *song.Song, syllables []song.Syllable) Recording {
	onsets, offsets := s.Seconds()
	rec := Recording{
		File:       s.File(),
		Format:     string(s.Format()),
		SampleRate: s.SampleRate(),
		Segments:   s.Len(),
		Syllables:  make([]Syllable, 0, len(syllables)),
	}
	for _, syl := range syllables {
		entry := Syllable{
			Index:     syl.Index,
			Label:     syl.Label,
			OnsetSec:  onsets[syl.Index],
			OffsetSec: offsets[syl.Index],
			Samples:   len(syl.Audio),
			Available: syl.Available(),
		}
		if syl.Available() {
			entry.FreqBins, entry.TimeBins = syl.Spect.Dims()
		}
		rec.Syllables = append(rec.Syllables, entry)
	}
	return rec
}

// Summary returns the syllable totals.
func (m Manifest) Summary() Summary {
	var s Summary
	for _, r := range m.Recordings {
		for _, syl := range r.Syllables {
			s.Syllables++
			if !syl.Available {
				s.Unavailable++
			}
		}
	}
	return s
}

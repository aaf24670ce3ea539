package annotation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/songseg/internal/segment"
)

func evtafAnnotation() *Annotation {
	return &Annotation{
		Onsets:  []float64{100, 250.5},
		Offsets: []float64{180, 300},
		Unit:    Milliseconds,
		Labels:  []string{"i", "a"},
		Params:  &Params{Threshold: 5000, MinDurMs: 20, MinIntMs: 2},
	}
}

func TestReconcile_Milliseconds(t *testing.T) {
	cfg := &segment.Config{Threshold: 5000, MinSyllableDur: 0.02, MinSilentDur: 0.002}

	b, err := Reconcile(evtafAnnotation(), cfg, 32000, "song.cbin.not.yaml")
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.1, 0.2505}, b.OnsetsSec, 1e-12)
	assert.InDeltaSlice(t, []float64{0.18, 0.3}, b.OffsetsSec, 1e-12)
	assert.Equal(t, []int{3199, 8015}, b.OnsetsSample)
	assert.Equal(t, []int{5760, 9600}, b.OffsetsSample)
	assert.Equal(t, []string{"i", "a"}, b.Labels)
}

func TestReconcile_OnsetAtZeroClamps(t *testing.T) {
	a := &Annotation{Onsets: []float64{0}, Offsets: []float64{10}, Unit: Milliseconds, Labels: []string{"a"}}

	b, err := Reconcile(a, nil, 1000, "f")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, b.OnsetsSample)
	assert.Equal(t, []int{10}, b.OffsetsSample)
}

func TestReconcile_Samples(t *testing.T) {
	a := &Annotation{
		Onsets:  []float64{16000, 48000},
		Offsets: []float64{24000, 64000},
		Unit:    Samples,
		Labels:  []string{"b", "c"},
	}

	b, err := Reconcile(a, nil, 32000, "Annotation.xml")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, b.OnsetsSec)
	assert.Equal(t, []float64{0.75, 2}, b.OffsetsSec)
	assert.Equal(t, []int{16000, 48000}, b.OnsetsSample)
	assert.Equal(t, []int{24000, 64000}, b.OffsetsSample)
}

func TestReconcile_Mismatch(t *testing.T) {
	tests := []struct {
		name  string
		cfg   segment.Config
		field string
	}{
		{"threshold", segment.Config{Threshold: 4000, MinSyllableDur: 0.02, MinSilentDur: 0.002}, "threshold"},
		{"min duration", segment.Config{Threshold: 5000, MinSyllableDur: 0.03, MinSilentDur: 0.002}, "min_dur"},
		{"min interval", segment.Config{Threshold: 5000, MinSyllableDur: 0.02, MinSilentDur: 0.005}, "min_int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconcile(evtafAnnotation(), &tt.cfg, 32000, "bird/song.cbin.not.yaml")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParamsMismatch)

			var mm *MismatchError
			require.True(t, errors.As(err, &mm))
			assert.Equal(t, tt.field, mm.Field)
			assert.Equal(t, "bird/song.cbin.not.yaml", mm.File)
			assert.Contains(t, err.Error(), "bird/song.cbin.not.yaml")
		})
	}
}

func TestReconcile_AnyThresholdDifferenceFails(t *testing.T) {
	for _, delta := range []float64{-1000, -1, -0.5, 0.5, 1, 250} {
		cfg := &segment.Config{Threshold: 5000 + delta, MinSyllableDur: 0.02, MinSilentDur: 0.002}
		_, err := Reconcile(evtafAnnotation(), cfg, 32000, "f")
		assert.ErrorIs(t, err, ErrParamsMismatch, "delta %g", delta)
	}
}

func TestReconcile_Errors(t *testing.T) {
	t.Run("params without config", func(t *testing.T) {
		_, err := Reconcile(evtafAnnotation(), nil, 32000, "f")
		assert.ErrorIs(t, err, ErrParamsRequired)
	})

	t.Run("length mismatch", func(t *testing.T) {
		a := &Annotation{Onsets: []float64{1, 2}, Offsets: []float64{3}, Labels: []string{"a"}}
		_, err := Reconcile(a, nil, 32000, "f")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("offset before onset", func(t *testing.T) {
		a := &Annotation{Onsets: []float64{5}, Offsets: []float64{5}, Labels: []string{"a"}}
		_, err := Reconcile(a, nil, 32000, "f")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("invalid rate", func(t *testing.T) {
		_, err := Reconcile(&Annotation{}, nil, 0, "f")
		assert.Error(t, err)
	})
}

func TestNotYAML(t *testing.T) {
	const doc = `
threshold: 5000
min_dur: 20
min_int: 2
onsets: [100, 250.5]
offsets: [180, 300]
labels: ia
`
	a, err := NotYAML{}.Read(strings.NewReader(doc), "song.cbin")
	require.NoError(t, err)

	assert.Equal(t, Milliseconds, a.Unit)
	assert.Equal(t, evtafAnnotation(), a)
	assert.Equal(t, "song.cbin.not.yaml", NotYAML{}.DefaultPath("song.cbin"))

	t.Run("missing params", func(t *testing.T) {
		_, err := NotYAML{}.Read(strings.NewReader("onsets: []\noffsets: []\nlabels: ''\n"), "x")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("labels must match segments", func(t *testing.T) {
		_, err := NotYAML{}.Read(strings.NewReader("threshold: 1\nmin_dur: 1\nmin_int: 1\nonsets: [1]\noffsets: [2]\nlabels: ab\n"), "x")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := NotYAML{}.Read(strings.NewReader("onsets: [1"), "x")
		assert.Error(t, err)
	})
}

const koumuraDoc = `<?xml version="1.0" encoding="utf-8"?>
<AnnotationSequence>
  <Sequence>
    <WaveFileName>0.wav</WaveFileName>
    <Position>32000</Position>
    <Length>60000</Length>
    <NumNote>2</NumNote>
    <Note><Position>100</Position><Length>900</Length><Label>a</Label></Note>
    <Note><Position>2000</Position><Length>1500</Length><Label>b</Label></Note>
  </Sequence>
  <Sequence>
    <WaveFileName>1.wav</WaveFileName>
    <Position>0</Position>
    <Length>1000</Length>
    <NumNote>1</NumNote>
    <Note><Position>10</Position><Length>20</Length><Label>z</Label></Note>
  </Sequence>
  <Sequence>
    <WaveFileName>0.wav</WaveFileName>
    <Position>100000</Position>
    <Length>5000</Length>
    <NumNote>1</NumNote>
    <Note><Position>0</Position><Length>800</Length><Label>c</Label></Note>
  </Sequence>
</AnnotationSequence>`

func TestKoumura(t *testing.T) {
	a, err := Koumura{}.Read(strings.NewReader(koumuraDoc), "/data/Bird0/Wave/0.wav")
	require.NoError(t, err)

	assert.Equal(t, Samples, a.Unit)
	assert.Nil(t, a.Params)
	assert.Equal(t, []float64{32100, 34000, 100000}, a.Onsets)
	assert.Equal(t, []float64{33000, 35500, 100800}, a.Offsets)
	assert.Equal(t, []string{"a", "b", "c"}, a.Labels)

	t.Run("unlisted recording", func(t *testing.T) {
		_, err := Koumura{}.Read(strings.NewReader(koumuraDoc), "/data/Bird0/Wave/7.wav")
		assert.ErrorIs(t, err, ErrNotListed)
	})

	t.Run("default path", func(t *testing.T) {
		assert.Equal(t, "/data/Bird0/Annotation.xml", Koumura{}.DefaultPath("/data/Bird0/Wave/0.wav"))
		assert.Equal(t, "s3://birds/Bird0/Annotation.xml", Koumura{}.DefaultPath("s3://birds/Bird0/Wave/0.wav"))
	})
}

func TestCSV(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"with header", "onset,offset,label\n100,200,a\n300, 450, b\n"},
		{"without header", "100,200,a\n300,450,b\n"},
		{"with comment", "# bird 3\n100,200,a\n300,450,b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := CSV{}.Read(strings.NewReader(tt.doc), "song.wav")
			require.NoError(t, err)
			assert.Equal(t, Samples, a.Unit)
			assert.Equal(t, []float64{100, 300}, a.Onsets)
			assert.Equal(t, []float64{200, 450}, a.Offsets)
			assert.Equal(t, []string{"a", "b"}, a.Labels)
		})
	}

	t.Run("bad number after header", func(t *testing.T) {
		_, err := CSV{}.Read(strings.NewReader("onset,offset,label\n1,x,a\n"), "song.wav")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("wrong field count", func(t *testing.T) {
		_, err := CSV{}.Read(strings.NewReader("1,2\n"), "song.wav")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		a, err := CSV{}.Read(strings.NewReader(""), "song.wav")
		require.NoError(t, err)
		assert.Empty(t, a.Onsets)
	})

	assert.Equal(t, "s3://b/song.wav.csv", CSV{}.DefaultPath("s3://b/song.wav"))
}

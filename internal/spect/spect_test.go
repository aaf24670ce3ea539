package spect

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func tone(freq float64, rate, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = 1000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return x
}

func mustConfig(t *testing.T, opts ...Option) Config {
	t.Helper()
	cfg, err := NewConfig(opts...)
	require.NoError(t, err)
	return cfg
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := mustConfig(t, WithSegmentLength(512), WithOverlap(480))

	assert.Equal(t, 512, cfg.SegmentLength)
	assert.Equal(t, 480, cfg.Overlap)
	assert.Equal(t, 32, cfg.Step())
	require.NotNil(t, cfg.Band)
	assert.Equal(t, Band{Low: 500, High: 10000}, *cfg.Band)
	assert.Equal(t, BackendPSD, cfg.Backend)
	assert.True(t, cfg.LogCompress)
	require.NotNil(t, cfg.Clamp)
	assert.Equal(t, -4.0, *cfg.Clamp)
	assert.True(t, cfg.RemoveDC)
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"missing segment length", []Option{WithOverlap(0)}},
		{"negative segment length", []Option{WithSegmentLength(-1)}},
		{"overlap equals segment length", []Option{WithSegmentLength(256), WithOverlap(256)}},
		{"negative overlap", []Option{WithSegmentLength(256), WithOverlap(-1)}},
		{"unknown window", []Option{WithSegmentLength(256), WithWindow("hamming")}},
		{"unknown filter", []Option{WithSegmentLength(256), WithFilter("lowpass")}},
		{"unknown backend", []Option{WithSegmentLength(256), WithBackend("fftw")}},
		{"inverted band", []Option{WithSegmentLength(256), WithBand(8000, 1000)}},
		{"bandpass without band", []Option{WithSegmentLength(256), WithoutBand(), WithFilter(FilterBandpass)}},
		{"unknown preset", []Option{WithPreset("nobody")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.opts...)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNewConfig_Presets(t *testing.T) {
	t.Run("tachibana", func(t *testing.T) {
		cfg := mustConfig(t, WithPreset(PresetTachibana))
		assert.Equal(t, 256, cfg.SegmentLength)
		assert.Equal(t, 192, cfg.Overlap)
		assert.Equal(t, WindowHann, cfg.Window)
		assert.Equal(t, FilterDiff, cfg.Filter)
		assert.Equal(t, BackendSTFT, cfg.Backend)
		assert.False(t, cfg.LogCompress)
		assert.Nil(t, cfg.Band)
		assert.Nil(t, cfg.Clamp)
	})

	t.Run("koumura", func(t *testing.T) {
		cfg := mustConfig(t, WithPreset(PresetKoumura))
		assert.Equal(t, 512, cfg.SegmentLength)
		assert.Equal(t, 480, cfg.Overlap)
		assert.Equal(t, WindowDPSS, cfg.Window)
		assert.Equal(t, BackendPSD, cfg.Backend)
		assert.True(t, cfg.LogCompress)
		require.NotNil(t, cfg.Band)
		assert.Equal(t, Band{Low: 1000, High: 8000}, *cfg.Band)
	})

	t.Run("preset copies are independent", func(t *testing.T) {
		a, err := PresetConfig(PresetKoumura)
		require.NoError(t, err)
		a.Band.Low = 1

		b, err := PresetConfig(PresetKoumura)
		require.NoError(t, err)
		assert.Equal(t, 1000.0, b.Band.Low)
	})

	t.Run("explicit fields with preset warn and are ignored", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		cfg, err := NewConfig(WithLogger(logger), WithSegmentLength(1024), WithPreset(PresetTachibana))
		require.NoError(t, err)

		assert.Equal(t, 256, cfg.SegmentLength)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "segment_length")
	})

	t.Run("explicit fields equal to preset do not warn", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		cfg, err := NewConfig(WithLogger(logger), WithPreset(PresetKoumura),
			WithSegmentLength(512), WithOverlap(480), WithBand(1000, 8000), WithoutClamp())
		require.NoError(t, err)

		assert.Equal(t, 512, cfg.SegmentLength)
		assert.NotContains(t, buf.String(), "level=WARN")
	})

	t.Run("only conflicting fields are listed", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		_, err := NewConfig(WithLogger(logger), WithPreset(PresetKoumura),
			WithSegmentLength(512), WithOverlap(256), WithBand(500, 10000))
		require.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, "overlap")
		assert.Contains(t, out, "band")
		assert.NotContains(t, out, "segment_length")
	})
}

func TestNewConfig_ClampWithoutLogWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := NewConfig(WithLogger(logger), WithSegmentLength(128), WithLogCompress(false))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "clamp threshold has no effect")
}

func TestEngine_ShapeInvariant(t *testing.T) {
	const rate = 32000
	samples := tone(3000, rate, 8000)

	configs := map[string]Config{
		"defaults psd":   mustConfig(t, WithSegmentLength(512), WithOverlap(480)),
		"defaults stft":  mustConfig(t, WithSegmentLength(512), WithOverlap(480), WithBackend(BackendSTFT)),
		"tachibana":      mustConfig(t, WithPreset(PresetTachibana)),
		"koumura":        mustConfig(t, WithPreset(PresetKoumura)),
		"bandpass":       mustConfig(t, WithSegmentLength(256), WithOverlap(128), WithFilter(FilterBandpass)),
		"filtfilt":       mustConfig(t, WithSegmentLength(256), WithOverlap(128), WithFilter(FilterBandpassFiltFilt)),
		"odd length":     mustConfig(t, WithSegmentLength(255), WithOverlap(100), WithoutBand(), WithWindow(WindowHann)),
		"keep dc no log": mustConfig(t, WithSegmentLength(128), WithOverlap(0), WithoutBand(), WithRemoveDC(false), WithLogCompress(false), WithoutClamp()),
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			s, err := Compute(samples, rate, cfg)
			require.NoError(t, err)

			rows, cols := s.Dims()
			assert.Equal(t, len(s.Freqs), rows)
			assert.Equal(t, len(s.Times), cols)
			assert.False(t, floats.HasNaN(mat.Col(nil, 0, s.Power)))
			for i := 1; i < len(s.Freqs); i++ {
				assert.Greater(t, s.Freqs[i], s.Freqs[i-1])
			}
			for i := 1; i < len(s.Times); i++ {
				assert.Greater(t, s.Times[i], s.Times[i-1])
			}
		})
	}
}

func TestEngine_BackendsAgreeOnShapeAndPeak(t *testing.T) {
	const rate = 32000
	samples := tone(4000, rate, 6000)

	base := []Option{WithSegmentLength(512), WithOverlap(256), WithWindow(WindowHann), WithoutBand(), WithLogCompress(false), WithoutClamp()}
	psd, err := Compute(samples, rate, mustConfig(t, append(base, WithBackend(BackendPSD))...))
	require.NoError(t, err)
	stft, err := Compute(samples, rate, mustConfig(t, append(base, WithBackend(BackendSTFT))...))
	require.NoError(t, err)

	pr, pc := psd.Dims()
	sr, sc := stft.Dims()
	assert.Equal(t, pr, sr)
	assert.Equal(t, pc, sc)
	assert.Equal(t, psd.Freqs, stft.Freqs)
	assert.Equal(t, psd.Times, stft.Times)

	col := 2
	pPeak := floats.MaxIdx(mat.Col(nil, col, psd.Power))
	sPeak := floats.MaxIdx(mat.Col(nil, col, stft.Power))
	assert.Equal(t, pPeak, sPeak)
	assert.InDelta(t, 4000, psd.Freqs[pPeak], 62.5)
}

func TestEngine_KoumuraFixedRowCount(t *testing.T) {
	cfg := mustConfig(t, WithPreset(PresetKoumura))
	engine, err := NewEngine(cfg)
	require.NoError(t, err)

	for _, n := range []int{512, 1000, 4800, 32000} {
		s, err := engine.Compute(tone(2000, 32000, n), 32000)
		require.NoError(t, err)
		rows, cols := s.Dims()
		assert.Equal(t, 113, rows, "length %d", n)
		assert.Equal(t, 1+(n-512)/32, cols, "length %d", n)
		assert.Equal(t, 1000.0, s.Freqs[0])
		assert.Equal(t, 8000.0, s.Freqs[len(s.Freqs)-1])
	}
}

func TestEngine_BandCropInclusive(t *testing.T) {
	// 60-point segments at 30 kHz give bins at 0, 500, ..., 15000 Hz.
	cfg := mustConfig(t, WithSegmentLength(60), WithOverlap(30), WithBand(1000, 8000), WithRemoveDC(false))
	s, err := Compute(tone(3000, 30000, 600), 30000, cfg)
	require.NoError(t, err)

	want := make([]float64, 0, 15)
	for f := 1000.0; f <= 8000; f += 500 {
		want = append(want, f)
	}
	assert.Equal(t, want, s.Freqs)
}

func TestEngine_RemoveDC(t *testing.T) {
	samples := tone(1000, 8000, 1024)

	keep, err := Compute(samples, 8000, mustConfig(t, WithSegmentLength(64), WithOverlap(32), WithoutBand(), WithRemoveDC(false)))
	require.NoError(t, err)
	drop, err := Compute(samples, 8000, mustConfig(t, WithSegmentLength(64), WithOverlap(32), WithoutBand(), WithRemoveDC(true)))
	require.NoError(t, err)

	assert.Equal(t, 0.0, keep.Freqs[0])
	assert.Len(t, keep.Freqs, 33)
	assert.Len(t, drop.Freqs, 32)
	assert.Equal(t, keep.Freqs[1:], drop.Freqs)
}

func TestEngine_ClampFloor(t *testing.T) {
	samples := make([]float64, 2048)
	samples[1000] = 1

	cfg := mustConfig(t, WithSegmentLength(256), WithOverlap(128), WithoutBand(), WithClamp(-2))
	s, err := Compute(samples, 16000, cfg)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, mat.Min(s.Power), -2.0)
}

func TestEngine_TimeAxis(t *testing.T) {
	cfg := mustConfig(t, WithSegmentLength(100), WithOverlap(50), WithoutBand())
	s, err := Compute(tone(100, 1000, 400), 1000, cfg)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35}, roundAll(s.Times))
}

func TestEngine_WindowTooLong(t *testing.T) {
	t.Run("shorter than segment", func(t *testing.T) {
		cfg := mustConfig(t, WithSegmentLength(512), WithOverlap(256))
		_, err := Compute(make([]float64, 100), 32000, cfg)
		assert.ErrorIs(t, err, ErrWindowTooLong)
	})

	t.Run("differential filter shortens signal", func(t *testing.T) {
		cfg := mustConfig(t, WithSegmentLength(256), WithOverlap(128), WithFilter(FilterDiff))
		_, err := Compute(tone(1000, 32000, 256), 32000, cfg)
		assert.ErrorIs(t, err, ErrWindowTooLong)

		_, err = Compute(tone(1000, 32000, 257), 32000, cfg)
		assert.NoError(t, err)
	})
}

func TestEngine_EmptyBand(t *testing.T) {
	cfg := mustConfig(t, WithSegmentLength(64), WithOverlap(0), WithBand(20000, 30000))
	_, err := Compute(tone(1000, 8000, 512), 8000, cfg)
	assert.ErrorIs(t, err, ErrEmptyBand)
}

func TestEngine_DoesNotModifyInput(t *testing.T) {
	samples := tone(2500, 32000, 4096)
	orig := append([]float64(nil), samples...)

	for _, p := range []Preset{PresetTachibana, PresetKoumura} {
		_, err := Compute(samples, 32000, mustConfig(t, WithPreset(p)))
		require.NoError(t, err)
	}
	_, err := Compute(samples, 32000, mustConfig(t, WithSegmentLength(256), WithOverlap(0), WithFilter(FilterBandpass)))
	require.NoError(t, err)

	assert.Equal(t, orig, samples)
}

func TestWindows(t *testing.T) {
	t.Run("dpss is symmetric and peaks at one", func(t *testing.T) {
		w, err := dpss(64, 4.0/64)
		require.NoError(t, err)
		require.Len(t, w, 64)
		assert.InDelta(t, 1.0, floats.Max(w), 1e-12)
		for i := 0; i < 32; i++ {
			assert.InDelta(t, w[i], w[63-i], 1e-9)
		}
		assert.Less(t, w[0], w[32])
	})

	t.Run("tukey is periodic", func(t *testing.T) {
		w := tukey(16, 0.25)
		require.Len(t, w, 16)
		assert.InDelta(t, 0, w[0], 1e-12)
		assert.InDelta(t, 1, w[8], 1e-12)
		assert.Greater(t, w[15], 0.0)
	})

	t.Run("default window depends on backend", func(t *testing.T) {
		psd, err := taper(Config{SegmentLength: 16, Backend: BackendPSD})
		require.NoError(t, err)
		stft, err := taper(Config{SegmentLength: 16, Backend: BackendSTFT})
		require.NoError(t, err)
		assert.NotEqual(t, psd, stft)
		assert.InDelta(t, 0, stft[15], 1e-12)
	})
}

func roundAll(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Round(v*1e9) / 1e9
	}
	return out
}

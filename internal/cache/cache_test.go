package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/maauso/songseg/internal/spect"
)

func testSpectrogram() *spect.Spectrogram {
	return &spect.Spectrogram{
		Power: mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
		Freqs: []float64{1000, 1500},
		Times: []float64{0.01, 0.02, 0.03},
	}
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetPut(t *testing.T) {
	s := openMemory(t)

	_, ok, err := s.Get(42)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(42, testSpectrogram()))

	got, ok, err := s.Get(42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mat.Equal(testSpectrogram().Power, got.Power))
	assert.Equal(t, testSpectrogram().Freqs, got.Freqs)
	assert.Equal(t, testSpectrogram().Times, got.Times)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(7, testSpectrogram()))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, ok, err := s.Get(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testSpectrogram().Freqs, got.Freqs)
}

func TestKey(t *testing.T) {
	cfg, err := spect.NewConfig(spect.WithPreset(spect.PresetKoumura))
	require.NoError(t, err)
	other, err := spect.NewConfig(spect.WithPreset(spect.PresetTachibana))
	require.NoError(t, err)
	samples := []float64{1, 2, 3, 4}

	base, err := Key(cfg, 32000, samples)
	require.NoError(t, err)
	again, err := Key(cfg, 32000, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, base, again)

	for name, fn := range map[string]func() (uint64, error){
		"config":  func() (uint64, error) { return Key(other, 32000, samples) },
		"rate":    func() (uint64, error) { return Key(cfg, 44100, samples) },
		"samples": func() (uint64, error) { return Key(cfg, 32000, []float64{1, 2, 3, 5}) },
	} {
		k, err := fn()
		require.NoError(t, err, name)
		assert.NotEqual(t, base, k, name)
	}
}

// mockSource implements Source for testing.
type mockSource struct {
	mock.Mock
	cfg spect.Config
}

func (m *mockSource) Config() spect.Config { return m.cfg }

func (m *mockSource) Compute(samples []float64, sampleRate int) (*spect.Spectrogram, error) {
	args := m.Called(samples, sampleRate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*spect.Spectrogram), args.Error(1)
}

func TestComputer(t *testing.T) {
	cfg, err := spect.NewConfig(spect.WithPreset(spect.PresetKoumura))
	require.NoError(t, err)

	t.Run("second call is served from the store", func(t *testing.T) {
		src := &mockSource{cfg: cfg}
		src.On("Compute", []float64{1, 2, 3}, 32000).Return(testSpectrogram(), nil).Once()
		src.On("Compute", []float64{1, 2, 4}, 32000).Return(testSpectrogram(), nil).Once()
		c := NewComputer(src, openMemory(t), nil)

		first, err := c.Compute([]float64{1, 2, 3}, 32000)
		require.NoError(t, err)
		second, err := c.Compute([]float64{1, 2, 3}, 32000)
		require.NoError(t, err)
		assert.Equal(t, first.Freqs, second.Freqs)

		_, err = c.Compute([]float64{1, 2, 4}, 32000)
		require.NoError(t, err)

		src.AssertExpectations(t)
		src.AssertNumberOfCalls(t, "Compute", 2)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		src := &mockSource{cfg: cfg}
		src.On("Compute", mock.Anything, 32000).Return(nil, spect.ErrWindowTooLong)
		c := NewComputer(src, openMemory(t), nil)

		for i := 0; i < 2; i++ {
			_, err := c.Compute([]float64{1}, 32000)
			assert.True(t, errors.Is(err, spect.ErrWindowTooLong))
		}
		src.AssertNumberOfCalls(t, "Compute", 2)
	})

	t.Run("wraps a real engine", func(t *testing.T) {
		engine, err := spect.NewEngine(cfg)
		require.NoError(t, err)
		c := NewComputer(engine, openMemory(t), nil)

		samples := make([]float64, 2048)
		for i := range samples {
			samples[i] = float64(i%37) - 18
		}
		want, err := engine.Compute(samples, 32000)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			got, err := c.Compute(samples, 32000)
			require.NoError(t, err)
			assert.True(t, mat.EqualApprox(want.Power, got.Power, 0))
		}
	})
}

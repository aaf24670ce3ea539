package cache

import (
	"log/slog"

	"github.com/maauso/songseg/internal/spect"
)

// Source is a spect.Computer with a fixed configuration, such as
// *spect.Engine.
type Source interface {
	spect.Computer
	Config() spect.Config
}

// Computer serves spectrograms from a Store and computes misses with its
// source. Only successful results are stored, so errors such as
// spect.ErrWindowTooLong are recomputed and returned every time.
type Computer struct {
	next   Source
	store  *Store
	logger *slog.Logger
}

// Compile-time check that Computer implements spect.Computer.
var _ spect.Computer = (*Computer)(nil)

// NewComputer wraps next with store. A nil logger uses slog.Default().
func NewComputer(next Source, store *Store, logger *slog.Logger) *Computer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Computer{next: next, store: store, logger: logger}
}

// Compute implements spect.Computer. Cache read and write failures are
// logged and never fail the computation.
func (c *Computer) Compute(samples []float64, sampleRate int) (*spect.Spectrogram, error) {
	key, err := Key(c.next.Config(), sampleRate, samples)
	if err != nil {
		c.logger.Warn("spectrogram cache key failed", slog.String("error", err.Error()))
		return c.next.Compute(samples, sampleRate)
	}

	sp, ok, err := c.store.Get(key)
	if err != nil {
		c.logger.Warn("spectrogram cache read failed", slog.String("error", err.Error()))
	}
	if ok {
		c.logger.Debug("spectrogram cache hit", slog.Uint64("key", key))
		return sp, nil
	}

	sp, err = c.next.Compute(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(key, sp); err != nil {
		c.logger.Warn("spectrogram cache write failed", slog.String("error", err.Error()))
	}
	return sp, nil
}

// Package spect computes spectrograms of raw song: optional pre-filtering,
// a short-time transform through one of two interchangeable backends, DC
// removal, magnitude, log compression with a contrast floor and cropping to
// a frequency band.
package spect

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"
)

// Static errors for spectrogram configuration and computation.
var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("spect: invalid config")
	// ErrWindowTooLong is returned when the FFT segment is longer than the
	// (possibly pre-filtered) signal.
	ErrWindowTooLong = errors.New("spect: window is longer than input signal")
	// ErrEmptyBand is returned when no frequency bin falls inside the band.
	ErrEmptyBand = errors.New("spect: no frequency bins inside band")
)

// Backend selects the short-time transform algorithm.
type Backend string

const (
	// BackendPSD is a one-sided power spectral density: constant detrend,
	// periodic Tukey window unless one is configured, density scaling.
	BackendPSD Backend = "psd"
	// BackendSTFT is a complex short-time spectrum scaled by the window
	// sum: no detrend, symmetric Hann window unless one is configured.
	BackendSTFT Backend = "stft"
)

// Window selects the taper applied to each segment.
type Window string

const (
	// WindowDefault leaves the choice to the backend.
	WindowDefault Window = ""
	// WindowHann is a symmetric Hann window.
	WindowHann Window = "hann"
	// WindowDPSS is a Slepian (discrete prolate spheroidal) taper.
	WindowDPSS Window = "dpss"
)

// Filter selects the pre-filter applied to raw audio.
type Filter string

const (
	FilterNone             Filter = ""
	FilterDiff             Filter = "diff"
	FilterBandpass         Filter = "bandpass"
	FilterBandpassFiltFilt Filter = "bandpass_filtfilt"
)

// Preset names a published parameter set.
type Preset string

const (
	// PresetTachibana follows Tachibana, Oosugi & Okanoya (2014).
	PresetTachibana Preset = "tachibana"
	// PresetKoumura follows Koumura & Okanoya (2016).
	PresetKoumura Preset = "koumura"
)

// Band is a frequency band in Hz, inclusive on both ends.
type Band struct {
	Low  float64 `json:"low" validate:"gte=0"`
	High float64 `json:"high" validate:"gtfield=Low"`
}

// Config holds spectrogram parameters. Build it with NewConfig; the zero
// value is not valid.
type Config struct {
	// SegmentLength is the number of samples per FFT segment.
	SegmentLength int `json:"segment_length" validate:"gt=0"`
	// Overlap is the number of samples shared by consecutive segments.
	Overlap int `json:"overlap" validate:"gte=0,ltfield=SegmentLength"`
	// Band crops the result to [Low, High]; nil keeps every bin.
	Band *Band `json:"band,omitempty"`
	// Window is the segment taper.
	Window Window `json:"window,omitempty" validate:"omitempty,oneof=hann dpss"`
	// Filter is applied to raw audio first.
	Filter Filter `json:"filter,omitempty" validate:"omitempty,oneof=diff bandpass bandpass_filtfilt"`
	// Backend is the transform algorithm.
	Backend Backend `json:"backend" validate:"required,oneof=psd stft"`
	// LogCompress applies log10 to magnitudes.
	LogCompress bool `json:"log_compress"`
	// Clamp raises log values below it up to it. It is ignored, with a
	// construction warning, when LogCompress is off.
	Clamp *float64 `json:"clamp,omitempty"`
	// RemoveDC drops the zero-frequency row.
	RemoveDC bool `json:"remove_dc"`
}

// Step returns the hop between consecutive segments.
func (c Config) Step() int {
	return c.SegmentLength - c.Overlap
}

var validate = validator.New()

// Validate checks field ranges, enum values and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if (c.Filter == FilterBandpass || c.Filter == FilterBandpassFiltFilt) && c.Band == nil {
		return fmt.Errorf("%w: filter %q requires a frequency band", ErrInvalidConfig, c.Filter)
	}
	return nil
}

var presets = map[Preset]Config{
	PresetTachibana: {
		SegmentLength: 256,
		Overlap:       192,
		Window:        WindowHann,
		Filter:        FilterDiff,
		Backend:       BackendSTFT,
		LogCompress:   false,
		RemoveDC:      true,
	},
	PresetKoumura: {
		SegmentLength: 512,
		Overlap:       480,
		Band:          &Band{Low: 1000, High: 8000},
		Window:        WindowDPSS,
		Backend:       BackendPSD,
		LogCompress:   true,
		RemoveDC:      true,
	},
}

// PresetConfig returns a copy of a named preset.
func PresetConfig(p Preset) (Config, error) {
	cfg, ok := presets[p]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, p)
	}
	if cfg.Band != nil {
		b := *cfg.Band
		cfg.Band = &b
	}
	return cfg, nil
}

// Option configures NewConfig.
type Option func(*builder)

type builder struct {
	cfg      Config
	preset   Preset
	explicit []string
	logger   *slog.Logger
}

func (b *builder) set(name string, fn func(*Config)) {
	if !slices.Contains(b.explicit, name) {
		b.explicit = append(b.explicit, name)
	}
	fn(&b.cfg)
}

// conflicting returns the names in explicit whose value in got differs from
// the preset.
func conflicting(explicit []string, got, preset Config) []string {
	var out []string
	for _, name := range explicit {
		var same bool
		switch name {
		case "segment_length":
			same = got.SegmentLength == preset.SegmentLength
		case "overlap":
			same = got.Overlap == preset.Overlap
		case "band":
			same = equalPtr(got.Band, preset.Band)
		case "window":
			same = got.Window == preset.Window
		case "filter":
			same = got.Filter == preset.Filter
		case "backend":
			same = got.Backend == preset.Backend
		case "log_compress":
			same = got.LogCompress == preset.LogCompress
		case "clamp":
			same = equalPtr(got.Clamp, preset.Clamp)
		case "remove_dc":
			same = got.RemoveDC == preset.RemoveDC
		}
		if !same {
			out = append(out, name)
		}
	}
	return out
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// WithPreset selects a named parameter set. Explicit options given together
// with a preset are ignored with a warning.
func WithPreset(p Preset) Option {
	return func(b *builder) { b.preset = p }
}

// WithSegmentLength sets the FFT segment length in samples.
func WithSegmentLength(n int) Option {
	return func(b *builder) { b.set("segment_length", func(c *Config) { c.SegmentLength = n }) }
}

// WithOverlap sets the overlap between segments in samples.
func WithOverlap(n int) Option {
	return func(b *builder) { b.set("overlap", func(c *Config) { c.Overlap = n }) }
}

// WithBand keeps only bins within [low, high] Hz.
func WithBand(low, high float64) Option {
	return func(b *builder) { b.set("band", func(c *Config) { c.Band = &Band{Low: low, High: high} }) }
}

// WithoutBand keeps every frequency bin.
func WithoutBand() Option {
	return func(b *builder) { b.set("band", func(c *Config) { c.Band = nil }) }
}

// WithWindow sets the segment taper.
func WithWindow(w Window) Option {
	return func(b *builder) { b.set("window", func(c *Config) { c.Window = w }) }
}

// WithFilter sets the pre-filter.
func WithFilter(f Filter) Option {
	return func(b *builder) { b.set("filter", func(c *Config) { c.Filter = f }) }
}

// WithBackend sets the transform backend.
func WithBackend(be Backend) Option {
	return func(b *builder) { b.set("backend", func(c *Config) { c.Backend = be }) }
}

// WithLogCompress toggles log10 compression.
func WithLogCompress(on bool) Option {
	return func(b *builder) { b.set("log_compress", func(c *Config) { c.LogCompress = on }) }
}

// WithClamp sets the contrast floor for log values.
func WithClamp(v float64) Option {
	return func(b *builder) { b.set("clamp", func(c *Config) { c.Clamp = &v }) }
}

// WithoutClamp disables the contrast floor.
func WithoutClamp() Option {
	return func(b *builder) { b.set("clamp", func(c *Config) { c.Clamp = nil }) }
}

// WithRemoveDC toggles removal of the zero-frequency row.
func WithRemoveDC(on bool) Option {
	return func(b *builder) { b.set("remove_dc", func(c *Config) { c.RemoveDC = on }) }
}

// WithLogger sets the logger used for construction warnings.
func WithLogger(l *slog.Logger) Option {
	return func(b *builder) { b.logger = l }
}

// NewConfig builds and validates a Config from either explicit fields or a
// preset. Without a preset, defaults are: band [500, 10000] Hz, psd backend,
// log compression with a floor of -4, DC removed. SegmentLength and Overlap
// have no default.
func NewConfig(opts ...Option) (Config, error) {
	clamp := -4.0
	b := &builder{
		cfg: Config{
			Band:        &Band{Low: 500, High: 10000},
			Backend:     BackendPSD,
			LogCompress: true,
			Clamp:       &clamp,
			RemoveDC:    true,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	cfg := b.cfg
	if b.preset != "" {
		p, err := PresetConfig(b.preset)
		if err != nil {
			return Config{}, err
		}
		if ignored := conflicting(b.explicit, b.cfg, p); len(ignored) > 0 {
			b.logger.Warn("explicit spectrogram parameters ignored in favor of preset",
				slog.String("preset", string(b.preset)),
				slog.Any("ignored", ignored),
			)
		}
		cfg = p
	}

	if cfg.Clamp != nil && !cfg.LogCompress {
		b.logger.Warn("clamp threshold has no effect without log compression",
			slog.Float64("clamp", *cfg.Clamp),
		)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

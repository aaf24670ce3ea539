// Package main provides the entry point for the syllable extraction CLI.
//
// Usage:
//
//	extract -format evtaf [-labels iab] [-segment] [-out manifest.yaml] song1.cbin [song2.cbin ...]
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"gopkg.in/yaml.v3"

	"github.com/maauso/songseg/internal/bootstrap"
	"github.com/maauso/songseg/internal/config"
	"github.com/maauso/songseg/internal/song"
	"github.com/maauso/songseg/internal/spect"
)

type options struct {
	format     string
	annotation string
	resegment  bool
	labels     string
	nperseg    int
	noverlap   int
	out        string
	progress   bool
	paths      []string

	// explicit holds the names of flags given on the command line.
	explicit map[string]bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], envconfig.OsLookuper(), os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.StringVar(&o.format, "format", "", "recording format: evtaf, koumura, wav_txt or txt")
	fs.StringVar(&o.annotation, "annotation", "", "annotation file, overriding the format's default location")
	fs.BoolVar(&o.resegment, "segment", false, "segment the audio instead of reading an annotation")
	fs.StringVar(&o.labels, "labels", song.AllLabels, `labels to keep, one character each, or "all"`)
	fs.IntVar(&o.nperseg, "nperseg", 512, "spectrogram segment length in samples; SPECT_PRESET takes precedence")
	fs.IntVar(&o.noverlap, "noverlap", 384, "spectrogram overlap in samples; SPECT_PRESET takes precedence")
	fs.StringVar(&o.out, "out", "", "write a YAML syllable manifest to this path (local or s3://)")
	fs.BoolVar(&o.progress, "progress", true, "show a progress bar")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.paths = fs.Args()
	o.explicit = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.explicit[f.Name] = true })

	if o.format == "" {
		return o, errors.New("-format is required")
	}
	if len(o.paths) == 0 {
		return o, errors.New("at least one recording path is required")
	}
	if o.annotation != "" && len(o.paths) > 1 {
		return o, errors.New("-annotation can only be used with a single recording")
	}
	if o.annotation != "" && o.resegment {
		return o, errors.New("-annotation and -segment are mutually exclusive")
	}
	return o, nil
}

// spectOptions returns the spectrogram options implied by the flags. With a
// preset only explicitly given flags are forwarded, so conflicts with the
// preset are reported.
func spectOptions(o options, preset string) []spect.Option {
	var opts []spect.Option
	if preset == "" || o.explicit["nperseg"] {
		opts = append(opts, spect.WithSegmentLength(o.nperseg))
	}
	if preset == "" || o.explicit["noverlap"] {
		opts = append(opts, spect.WithOverlap(o.noverlap))
	}
	return opts
}

// run executes the CLI. Configuration is read through lookuper and logs are
// written to logOut.
func run(ctx context.Context, args []string, lookuper envconfig.Lookuper, logOut io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	format, err := song.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	// Load configuration from environment
	cfg, err := config.LoadWith(ctx, lookuper)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLoggerTo(logOut)
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger, spectOptions(opts, cfg.SpectPreset)...)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Close() }()

	logger.Info("starting extraction",
		slog.String("format", string(format)),
		slog.Int("recordings", len(opts.paths)),
		slog.String("labels", opts.labels),
		slog.Bool("resegment", opts.resegment),
		slog.Int("segment_length", deps.Spect.SegmentLength),
		slog.Int("overlap", deps.Spect.Overlap),
		slog.Bool("cache_enabled", deps.Cache != nil),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	var progress io.Writer = io.Discard
	if opts.progress {
		progress = os.Stderr
	}
	p := mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(progress))

	sel := song.ParseSelection(opts.labels)
	var manifest Manifest
	for _, path := range opts.paths {
		entry, err := extract(ctx, deps, p, path, format, sel, opts)
		if err != nil {
			p.Wait()
			return fmt.Errorf("%s: %w", path, err)
		}
		manifest.Recordings = append(manifest.Recordings, entry)
	}
	p.Wait()

	summary := manifest.Summary()
	logger.Info("extraction complete",
		slog.Int("recordings", len(manifest.Recordings)),
		slog.Int("syllables", summary.Syllables),
		slog.Int("unavailable", summary.Unavailable),
	)

	if opts.out == "" {
		return nil
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := deps.Store.Save(ctx, opts.out, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	logger.Info("manifest written", slog.String("path", opts.out))
	return nil
}

// extract loads one recording, selects its syllables and materializes their
// spectrograms.
func extract(ctx context.Context, deps *bootstrap.Dependencies, p *mpb.Progress, path string, format song.Format, sel song.Selection, opts options) (Recording, error) {
	if err := ctx.Err(); err != nil {
		return Recording{}, err
	}

	s, err := deps.Loader.Load(ctx, path, format, song.LoadOpts{
		Resegment:      opts.resegment,
		AnnotationPath: opts.annotation,
		Segment:        &deps.Segment,
		Spect:          &deps.Spect,
	})
	if err != nil {
		return Recording{}, err
	}
	if err := s.RestrictToLabels(sel); err != nil {
		return Recording{}, err
	}

	total := 0
	for _, ok := range s.Selected() {
		if ok {
			total++
		}
	}
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(path+": "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)

	matOpts := append(deps.MaterializeOptions(), song.WithProgress(func(done, _ int) {
		bar.SetCurrent(int64(done))
	}))
	syllables, err := s.MaterializeSpectrograms(deps.Spect, matOpts...)
	if err != nil {
		bar.Abort(false)
		return Recording{}, err
	}
	if total == 0 {
		bar.SetTotal(-1, true)
	}

	rec := newRecording(s, syllables)
	slog.Debug("recording extracted",
		slog.String("file", path),
		slog.Int("segments", s.Len()),
		slog.Int("selected", len(syllables)),
	)
	return rec, nil
}

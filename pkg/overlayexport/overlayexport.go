// Package overlayexport burns an animated text overlay into a video.
//
// A single Exporter runs one export at a time:
//
//	ex, err := overlayexport.New(overlayexport.Options{})
//	job, err := ex.ExportWithOverlay(ctx, "clip.mov", "Hello", overlayexport.PositionTop, "")
//	for p := range job.Updates() {
//		fmt.Printf("%.0f%%\n", p*100)
//	}
//	result, err := job.Wait()
package overlayexport

import (
	"context"

	"github.com/ZacxDev/video-overlay/internal/composition"
	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/export"
	"github.com/ZacxDev/video-overlay/internal/ffmpeg"
	"github.com/ZacxDev/video-overlay/internal/logging"
	"github.com/ZacxDev/video-overlay/internal/media"
	"github.com/ZacxDev/video-overlay/internal/overlay"
	"github.com/rs/zerolog"
)

type (
	Position = overlay.Position
	Job      = export.Job
	Result   = export.Result
	State    = export.State
	Error    = export.Error
	Kind     = export.Kind
	Asset    = media.Asset
)

const (
	PositionTop    = overlay.PositionTop
	PositionCenter = overlay.PositionCenter
	PositionBottom = overlay.PositionBottom

	KindCompositionFailed = export.KindCompositionFailed
	KindExportFailed      = export.KindExportFailed
	KindCancelled         = export.KindCancelled

	// FrameRate of every exported video
	FrameRate = config.FrameRate
)

// ErrExportInProgress is returned while another export is running
var ErrExportInProgress = export.ErrExportInProgress

// ParsePosition parses "top", "center" or "bottom"
func ParsePosition(s string) (Position, error) {
	return overlay.ParsePosition(s)
}

// IsCancelled reports whether err ended an export by cancellation
func IsCancelled(err error) bool { return export.IsCancelled(err) }

// KindOf returns the failure kind of err
func KindOf(err error) Kind { return export.KindOf(err) }

// Options overrides the loaded configuration. Zero values keep the
// configured setting.
type Options struct {
	ConfigPath string
	FFmpegPath string
	ScratchDir string
	BrandColor string
	Threads    int
	Logger     *zerolog.Logger
}

// Exporter renders overlays with ffmpeg
type Exporter struct {
	exporter  *export.Exporter
	processor *ffmpeg.Processor
}

// New loads the configuration, applies opts and prepares an Exporter
func New(opts Options) (*Exporter, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.FFmpegPath != "" {
		cfg.FFmpegPath = opts.FFmpegPath
	}
	if opts.ScratchDir != "" {
		cfg.ScratchDir = opts.ScratchDir
	}
	if opts.BrandColor != "" {
		cfg.BrandColor = opts.BrandColor
	}
	if opts.Threads > 0 {
		cfg.Threads = opts.Threads
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(nil)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return FromConfig(cfg, logger)
}

// FromConfig prepares an Exporter from an already validated configuration
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*Exporter, error) {
	brand, err := cfg.Brand()
	if err != nil {
		return nil, err
	}

	processor, err := ffmpeg.NewProcessor(logger, ffmpeg.Options{
		FFmpegPath: cfg.FFmpegPath,
		ScratchDir: cfg.ScratchDir,
		Threads:    cfg.Threads,
	})
	if err != nil {
		return nil, err
	}

	builder := composition.NewBuilder(logger, overlay.DefaultStyle(brand))
	return &Exporter{
		exporter: export.NewExporter(logger, builder, export.FFmpeg(processor), export.Options{
			OutputDir: cfg.ScratchDir,
		}),
		processor: processor,
	}, nil
}

// ExportWithOverlay starts burning text into source and returns at once.
// outputPath may be empty, a unique file in the scratch directory is used
// then.
func (e *Exporter) ExportWithOverlay(ctx context.Context, source, text string, position Position, outputPath string) (*Job, error) {
	return e.exporter.Export(ctx, export.Request{
		Source:     source,
		Text:       text,
		Position:   position,
		OutputPath: outputPath,
	})
}

// Running reports whether an export is in flight
func (e *Exporter) Running() bool {
	return e.exporter.Running()
}

// Progress returns the progress of the current or last export
func (e *Exporter) Progress() float64 {
	if job := e.exporter.Current(); job != nil {
		return job.Progress()
	}
	return 0
}

// Probe loads the metadata of a video file
func (e *Exporter) Probe(ctx context.Context, path string) (*Asset, error) {
	return e.processor.LoadAsset(ctx, path)
}

// ExportWithOverlay runs one export to completion with a fresh Exporter,
// passing every progress update to onProgress, and returns the output path
func ExportWithOverlay(ctx context.Context, source, text string, position Position, opts Options, onProgress func(float64)) (string, error) {
	ex, err := New(opts)
	if err != nil {
		return "", err
	}

	job, err := ex.ExportWithOverlay(ctx, source, text, position, "")
	if err != nil {
		return "", err
	}

	for p := range job.Updates() {
		if onProgress != nil {
			onProgress(p)
		}
	}

	result, err := job.Wait()
	if err != nil {
		return "", err
	}
	return result.OutputPath, nil
}

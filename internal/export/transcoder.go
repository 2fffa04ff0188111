package export

import (
	"context"

	"github.com/ZacxDev/video-overlay/internal/composition"
	"github.com/ZacxDev/video-overlay/internal/ffmpeg"
	"github.com/ZacxDev/video-overlay/internal/media"
)

// Session is one running transcode
type Session interface {
	// Progress is the pipeline's own completion estimate in [0, 1]
	Progress() float64
	// Run blocks until the output is written, ctx is cancelled or the
	// pipeline fails
	Run(ctx context.Context) error
}

// Transcoder is the codec pipeline behind the driver
type Transcoder interface {
	LoadAsset(ctx context.Context, path string) (*media.Asset, error)
	NewSession(g *composition.RenderGraph, outputPath string) (Session, error)
}

type ffmpegTranscoder struct {
	*ffmpeg.Processor
}

// FFmpeg adapts an ffmpeg processor to the Transcoder interface
func FFmpeg(p *ffmpeg.Processor) Transcoder {
	return ffmpegTranscoder{p}
}

func (t ffmpegTranscoder) NewSession(g *composition.RenderGraph, outputPath string) (Session, error) {
	s, err := t.Processor.NewSession(g, outputPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}

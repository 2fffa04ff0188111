package composition

import (
	"fmt"
	"image/color"
	"math"

	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/logging"
	"github.com/ZacxDev/video-overlay/internal/media"
	"github.com/ZacxDev/video-overlay/internal/overlay"
	"github.com/rs/zerolog"
)

// Error reports why a render graph could not be built
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("composition failed: %s", e.Reason)
}

func failf(format string, args ...interface{}) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Builder assembles render graphs
type Builder struct {
	style  overlay.Style
	logger zerolog.Logger
}

// NewBuilder creates a builder drawing overlays in style
func NewBuilder(logger zerolog.Logger, style overlay.Style) *Builder {
	return &Builder{
		style:  style,
		logger: logging.WithComponent(logger, "composition"),
	}
}

// Build creates the render graph for asset with spec burned in. The
// composition spans the whole source; nothing is trimmed.
func (b *Builder) Build(asset *media.Asset, spec overlay.Spec) (*RenderGraph, error) {
	if asset == nil {
		return nil, failf("no source asset")
	}

	video, ok := asset.VideoTrack()
	if !ok {
		return nil, failf("no video track")
	}
	if asset.Duration <= 0 {
		return nil, failf("invalid duration %s", asset.Duration)
	}
	if video.NaturalSize.IsZero() {
		return nil, failf("invalid video size %.0fx%.0f", video.NaturalSize.Width, video.NaturalSize.Height)
	}

	full := media.TimeRange{Start: 0, Duration: asset.Duration}
	display := video.Transform.ApplySize(video.NaturalSize)

	tracks := []Track{{
		Kind:        media.TrackVideo,
		SourceIndex: video.Index,
		SourceRange: full,
		TimeRange:   full,
		Transform:   video.Transform,
	}}

	if audio, ok := asset.AudioTrack(); ok {
		tracks = append(tracks, Track{
			Kind:        media.TrackAudio,
			SourceIndex: audio.Index,
			SourceRange: full,
			TimeRange:   full,
			Transform:   media.Identity,
		})
	}

	geom, err := overlay.Compute(display, spec)
	if err != nil {
		return nil, failf("overlay layout: %v", err)
	}

	graph := &RenderGraph{
		Source:      asset.Path,
		TimeRange:   full,
		Tracks:      tracks,
		NaturalSize: video.NaturalSize,
		RenderSize:  display,
		FrameRate:   config.FrameRate,
		Overlay:     geom,
		Style:       b.style,
		Root:        b.layerTree(display, geom),
	}

	b.logger.Debug().
		Str("source", asset.Path).
		Dur("duration", asset.Duration).
		Float64("display_width", display.Width).
		Float64("display_height", display.Height).
		Float64("rotation", video.Transform.Degrees()).
		Bool("audio", graph.HasAudio()).
		Int("lines", len(geom.Text.Lines)).
		Str("position", geom.Position.String()).
		Msg("built render graph")

	return graph, nil
}

func (b *Builder) layerTree(display media.Size, geom *overlay.Geometry) *Layer {
	frame := overlay.Rect{Width: display.Width, Height: display.Height}
	animations := []overlay.Animation{geom.Opacity, geom.Slide}

	background := &Layer{
		Name:       NameBackground,
		Kind:       LayerShape,
		Frame:      geom.Box,
		Opacity:    1,
		Animations: animations,
		Fill: color.NRGBA{
			R: b.style.Background.R,
			G: b.style.Background.G,
			B: b.style.Background.B,
			A: uint8(math.Round(config.BoxOpacity * 0xff)),
		},
		CornerRadius: config.BoxCornerRadius,
	}

	text := &Layer{
		Name:         NameText,
		Kind:         LayerText,
		Frame:        geom.TextFrame,
		Opacity:      1,
		Animations:   animations,
		Lines:        geom.Text.Lines,
		FontSize:     geom.FontSize,
		Wraps:        true,
		TextColor:    b.style.Text,
		ShadowColor:  b.style.Shadow,
		ShadowOffset: config.ShadowOffset,
	}

	return &Layer{
		Name:    NameRoot,
		Kind:    LayerRoot,
		Frame:   frame,
		Opacity: 1,
		Children: []*Layer{
			{Name: NameVideo, Kind: LayerVideo, Frame: frame, Opacity: 1},
			{
				Name:     NameOverlay,
				Kind:     LayerGroup,
				Frame:    frame,
				Opacity:  1,
				Children: []*Layer{background, text},
			},
		},
	}
}

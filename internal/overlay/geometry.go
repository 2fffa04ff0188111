package overlay

import (
	"math"
	"time"

	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/media"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Rect is a frame in screen space (origin top-left, y grows downwards)
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// MaxX returns the right edge
func (r Rect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Geometry is the resolved layout of the overlay for one display size
type Geometry struct {
	RenderSize   media.Size
	Position     Position
	FontSize     float64
	MaxTextWidth float64
	Margin       float64
	Text         TextLayout
	Box          Rect // resting frame of the background
	TextFrame    Rect // text bounds, centred in Box
	Opacity      Animation
	Slide        Animation
}

// Compute lays out spec against the display size of the video. The box is
// sized from the wrapped text, so any number of lines is enclosed.
func Compute(display media.Size, spec Spec) (*Geometry, error) {
	if display.IsZero() {
		return nil, errors.Errorf("invalid display size %.0fx%.0f", display.Width, display.Height)
	}
	pos, err := ParsePosition(string(spec.Position))
	if err != nil {
		return nil, err
	}

	fontSize := math.Max(1, math.Round(display.Width*config.FontSizeRatio))
	maxTextWidth := display.Width * config.MaxTextWidthRatio

	face, err := NewFace(fontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	text := LayoutText(face, fontSize, spec.Text, maxTextWidth)

	boxWidth := math.Min(math.Ceil(text.Width+config.BoxPadding), display.Width)
	boxHeight := math.Min(math.Ceil(text.Height+config.BoxPadding), display.Height)
	margin := math.Round(display.Height * config.VerticalMargin)
	// boxes too tall for a full margin on both sides share the leftover space,
	// which keeps the placements ordered
	edge := math.Floor(math.Min(margin, math.Max(0, (display.Height-boxHeight)/2)))

	var y float64
	switch pos {
	case PositionTop:
		y = edge
	case PositionCenter:
		y = math.Round((display.Height - boxHeight) / 2)
	default:
		y = display.Height - boxHeight - edge
	}
	y = clamp(y, 0, display.Height-boxHeight)

	box := Rect{
		X:      math.Floor((display.Width - boxWidth) / 2),
		Y:      y,
		Width:  boxWidth,
		Height: boxHeight,
	}

	return &Geometry{
		RenderSize:   display,
		Position:     pos,
		FontSize:     fontSize,
		MaxTextWidth: maxTextWidth,
		Margin:       margin,
		Text:         text,
		Box:          box,
		TextFrame: Rect{
			X:      box.X + (box.Width-text.Width)/2,
			Y:      box.Y + (box.Height-text.Height)/2,
			Width:  text.Width,
			Height: text.Height,
		},
		Opacity: FadeIn(),
		Slide:   SlideIn(pos, box.Y),
	}, nil
}

// BoxAt returns the background frame at timeline position t
func (g *Geometry) BoxAt(t time.Duration) Rect {
	r := g.Box
	r.Y = g.Slide.ValueAt(t)
	return r
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

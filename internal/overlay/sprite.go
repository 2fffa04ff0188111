package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Style holds the colours of the overlay
type Style struct {
	Background color.RGBA // opaque brand colour, BoxOpacity is applied on top
	Text       color.RGBA
	Shadow     color.RGBA
}

// DefaultStyle returns the overlay style for the given brand colour
func DefaultStyle(brand color.RGBA) Style {
	return Style{
		Background: brand,
		Text:       color.RGBA{0xff, 0xff, 0xff, 0xff},
		Shadow:     color.RGBA{0, 0, 0, uint8(math.Round(config.ShadowOpacity * 0xff))},
	}
}

// Rasterize draws the resting overlay (background and text) into an image
// the size of the box. Animations are applied by the compositor.
func Rasterize(g *Geometry, style Style) (*image.RGBA, error) {
	w := int(math.Max(1, math.Ceil(g.Box.Width)))
	h := int(math.Max(1, math.Ceil(g.Box.Height)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	bg := color.NRGBA{
		R: style.Background.R,
		G: style.Background.G,
		B: style.Background.B,
		A: uint8(math.Round(config.BoxOpacity * 0xff)),
	}
	fillRoundedRect(dst, float32(w), float32(h), float32(config.BoxCornerRadius), bg)

	if len(g.Text.Lines) == 0 {
		return dst, nil
	}

	face, err := NewFace(g.FontSize)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	top := (float64(h) - g.Text.Height) / 2
	for i, line := range g.Text.Lines {
		if line == "" {
			continue
		}
		x := (float64(w) - g.Text.LineWidths[i]) / 2
		baseline := top + float64(i)*g.Text.LineHeight + g.Text.Ascent

		drawString(dst, face, style.Shadow, line, x+config.ShadowOffset, baseline+config.ShadowOffset)
		drawString(dst, face, style.Text, line, x, baseline)
	}

	return dst, nil
}

// WritePNG rasterises the overlay and writes it to path
func WritePNG(path string, g *Geometry, style Style) error {
	img, err := Rasterize(g, style)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create overlay image")
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return errors.Wrap(err, "failed to encode overlay image")
	}
	return errors.WithStack(f.Close())
}

func fillRoundedRect(dst draw.Image, w, h, radius float32, c color.Color) {
	radius = float32(math.Min(float64(radius), math.Min(float64(w), float64(h))/2))

	r := vector.NewRasterizer(int(w), int(h))
	r.MoveTo(radius, 0)
	r.LineTo(w-radius, 0)
	r.QuadTo(w, 0, w, radius)
	r.LineTo(w, h-radius)
	r.QuadTo(w, h, w-radius, h)
	r.LineTo(radius, h)
	r.QuadTo(0, h, 0, h-radius)
	r.LineTo(0, radius)
	r.QuadTo(0, 0, radius, 0)
	r.ClosePath()
	r.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

func drawString(dst draw.Image, face font.Face, c color.Color, s string, x, baseline float64) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(baseline * 64)},
	}
	d.DrawString(s)
}

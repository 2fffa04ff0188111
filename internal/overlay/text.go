package overlay

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	fontOnce   sync.Once
	parsedFont *opentype.Font
	fontErr    error
)

func loadFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = opentype.Parse(goregular.TTF)
		if fontErr != nil {
			fontErr = errors.Wrap(fontErr, "failed to parse font")
		}
	})
	return parsedFont, fontErr
}

// NewFace returns a face of the overlay font at the given pixel size.
// The caller must close it.
func NewFace(size float64) (font.Face, error) {
	f, err := loadFont()
	if err != nil {
		return nil, err
	}
	if size < 1 {
		size = 1
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create font face")
	}
	return face, nil
}

// TextLayout is the result of wrapping a string at a fixed width
type TextLayout struct {
	Lines      []string
	LineWidths []float64
	FontSize   float64
	LineHeight float64
	Ascent     float64
	Width      float64 // widest line
	Height     float64 // len(Lines) * LineHeight
}

// LayoutText wraps text to maxWidth using face and measures the result.
// Empty text produces no lines and zero bounds.
func LayoutText(face font.Face, fontSize float64, text string, maxWidth float64) TextLayout {
	metrics := face.Metrics()
	layout := TextLayout{
		FontSize:   fontSize,
		LineHeight: toFloat(metrics.Height),
		Ascent:     toFloat(metrics.Ascent),
	}

	layout.Lines = wrapText(face, text, maxWidth)
	layout.LineWidths = make([]float64, len(layout.Lines))
	for i, line := range layout.Lines {
		w := measure(face, line)
		layout.LineWidths[i] = w
		if w > layout.Width {
			layout.Width = w
		}
	}
	layout.Height = float64(len(layout.Lines)) * layout.LineHeight

	return layout
}

func wrapText(face font.Face, text string, maxWidth float64) []string {
	if text == "" {
		return nil
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		line := ""
		for _, word := range words {
			for measure(face, word) > maxWidth && utf8.RuneCountInString(word) > 1 {
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				head, tail := splitToFit(face, word, maxWidth)
				lines = append(lines, head)
				word = tail
			}

			if line == "" {
				line = word
				continue
			}
			candidate := line + " " + word
			if measure(face, candidate) > maxWidth {
				lines = append(lines, line)
				line = word
			} else {
				line = candidate
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}

// splitToFit returns the longest prefix of word (at least one rune) that
// fits within maxWidth, and the remainder.
func splitToFit(face font.Face, word string, maxWidth float64) (string, string) {
	end := 0
	for i, r := range word {
		next := i + utf8.RuneLen(r)
		if end > 0 && measure(face, word[:next]) > maxWidth {
			break
		}
		end = next
	}
	return word[:end], word[end:]
}

func measure(face font.Face, s string) float64 {
	return toFloat(font.MeasureString(face, s))
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

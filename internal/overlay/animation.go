package overlay

import (
	"math"
	"time"

	"github.com/ZacxDev/video-overlay/internal/config"
)

// Timing is the interpolation curve of an animation
type Timing string

const (
	TimingLinear  Timing = "linear"
	TimingEaseOut Timing = "easeOut"
)

// Apply maps linear progress p in [0,1] through the curve
func (t Timing) Apply(p float64) float64 {
	p = clamp(p, 0, 1)
	switch t {
	case TimingEaseOut:
		return 1 - (1-p)*(1-p)
	default:
		return p
	}
}

// Key paths animated on the overlay layers
const (
	KeyOpacity   = "opacity"
	KeyPositionY = "position.y"
)

// Animation interpolates one property between From and To. BeginTime is
// measured on the render timeline, so zero means the first output frame no
// matter when the render runs. Before BeginTime the value is From and after
// the animation ends the final value is held.
type Animation struct {
	KeyPath   string
	From      float64
	To        float64
	BeginTime time.Duration
	Duration  time.Duration
	Timing    Timing
}

// End returns the timeline position where the animation settles
func (a Animation) End() time.Duration {
	return a.BeginTime + a.Duration
}

// ValueAt evaluates the animation at timeline position t
func (a Animation) ValueAt(t time.Duration) float64 {
	if t <= a.BeginTime {
		return a.From
	}
	if a.Duration <= 0 || t >= a.End() {
		return a.To
	}
	p := float64(t-a.BeginTime) / float64(a.Duration)
	return a.From + (a.To-a.From)*a.Timing.Apply(p)
}

// FadeIn is the opacity entrance shared by the background and the text
func FadeIn() Animation {
	return Animation{
		KeyPath:   KeyOpacity,
		From:      0,
		To:        1,
		BeginTime: 0,
		Duration:  seconds(config.FadeInSeconds),
		Timing:    TimingLinear,
	}
}

// SlideIn moves the box onto finalY. Top placements enter from above, the
// others from below.
func SlideIn(pos Position, finalY float64) Animation {
	return Animation{
		KeyPath:   KeyPositionY,
		From:      finalY + SlideOffset(pos),
		To:        finalY,
		BeginTime: 0,
		Duration:  seconds(config.SlideSeconds),
		Timing:    TimingEaseOut,
	}
}

// SlideOffset is the signed starting offset of the slide in screen space
// (y grows downwards)
func SlideOffset(pos Position) float64 {
	if pos == PositionTop {
		return -config.SlideDistance
	}
	return config.SlideDistance
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

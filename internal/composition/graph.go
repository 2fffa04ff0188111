// Package composition turns a source clip and an overlay spec into the
// render graph consumed by the transcoder.
package composition

import (
	"image/color"

	"github.com/ZacxDev/video-overlay/internal/media"
	"github.com/ZacxDev/video-overlay/internal/overlay"
)

// Track is a copy of one source track placed on the composition timeline
type Track struct {
	Kind        media.TrackKind
	SourceIndex int
	SourceRange media.TimeRange
	TimeRange   media.TimeRange
	Transform   media.Transform
}

// LayerKind identifies what a layer draws
type LayerKind string

const (
	LayerRoot  LayerKind = "root"
	LayerVideo LayerKind = "video"
	LayerGroup LayerKind = "group"
	LayerShape LayerKind = "shape"
	LayerText  LayerKind = "text"
)

// Layer names used in the overlay tree
const (
	NameRoot       = "root"
	NameVideo      = "video"
	NameOverlay    = "overlay"
	NameBackground = "background"
	NameText       = "text"
)

// Layer is one node of the visual tree. Children are in z-order, the last
// child is drawn on top.
type Layer struct {
	Name       string
	Kind       LayerKind
	Frame      overlay.Rect
	Opacity    float64
	Animations []overlay.Animation
	Children   []*Layer

	// shape layers
	Fill         color.NRGBA
	CornerRadius float64

	// text layers
	Lines        []string
	FontSize     float64
	Wraps        bool
	TextColor    color.RGBA
	ShadowColor  color.RGBA
	ShadowOffset float64
}

// Find returns the first layer named name in the subtree rooted at l
func (l *Layer) Find(name string) *Layer {
	if l == nil {
		return nil
	}
	if l.Name == name {
		return l
	}
	for _, c := range l.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// RenderGraph is built fresh for every export and never shared
type RenderGraph struct {
	Source      string
	TimeRange   media.TimeRange
	Tracks      []Track
	NaturalSize media.Size
	RenderSize  media.Size
	FrameRate   int
	Overlay     *overlay.Geometry
	Style       overlay.Style
	Root        *Layer
}

// VideoTrack returns the composition's video track
func (g *RenderGraph) VideoTrack() Track {
	t, _ := g.track(media.TrackVideo)
	return t
}

// AudioTrack returns the audio track if the source had one
func (g *RenderGraph) AudioTrack() (Track, bool) {
	return g.track(media.TrackAudio)
}

// HasAudio reports whether audio is passed through
func (g *RenderGraph) HasAudio() bool {
	_, ok := g.AudioTrack()
	return ok
}

func (g *RenderGraph) track(kind media.TrackKind) (Track, bool) {
	for _, t := range g.Tracks {
		if t.Kind == kind {
			return t, true
		}
	}
	return Track{}, false
}

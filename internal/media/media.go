// Package media describes source clips as the export engine sees them.
package media

import (
	"math"
	"time"
)

// Size is a width/height pair in pixels
type Size struct {
	Width  float64
	Height float64
}

// IsZero reports whether either dimension is empty
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Transform is the 2x2 part of an affine transform, in the same row-vector
// form ffmpeg's display matrix uses: (x, y) -> (a*x + c*y, b*x + d*y).
type Transform struct {
	A, B, C, D float64
}

// Identity is the transform of a clip stored upright
var Identity = Transform{A: 1, D: 1}

// Rotation returns the transform for a clockwise rotation in degrees.
// Components are rounded so multiples of 90 are exact.
func Rotation(degrees float64) Transform {
	rad := degrees * math.Pi / 180
	cos := round(math.Cos(rad))
	sin := round(math.Sin(rad))
	return Transform{A: cos, B: sin, C: -sin, D: cos}
}

// IsIdentity reports whether t leaves sizes unchanged
func (t Transform) IsIdentity() bool {
	return t == Identity
}

// Degrees returns the clockwise rotation encoded by t, normalised to [0, 360)
func (t Transform) Degrees() float64 {
	deg := math.Atan2(t.B, t.A) * 180 / math.Pi
	deg = math.Round(deg*1e6) / 1e6
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ApplySize maps a natural size through t and returns the absolute extent
func (t Transform) ApplySize(s Size) Size {
	return Size{
		Width:  math.Abs(t.A*s.Width + t.C*s.Height),
		Height: math.Abs(t.B*s.Width + t.D*s.Height),
	}
}

func round(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// TimeRange is a half-open interval [Start, Start+Duration)
type TimeRange struct {
	Start    time.Duration
	Duration time.Duration
}

// End returns the exclusive end of the range
func (r TimeRange) End() time.Duration {
	return r.Start + r.Duration
}

// TrackKind identifies the media type of a track
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// TrackInfo describes one stream of the source file
type TrackInfo struct {
	Kind        TrackKind
	Index       int // stream index within the file
	Codec       string
	NaturalSize Size      // video only
	Transform   Transform // video only
	FrameRate   float64   // video only
}

// Asset is a readable source clip. It is owned by the caller and never
// modified by the export engine.
type Asset struct {
	Path     string
	Duration time.Duration
	Tracks   []TrackInfo
}

// VideoTrack returns the first video track
func (a *Asset) VideoTrack() (TrackInfo, bool) {
	return a.firstTrack(TrackVideo)
}

// AudioTrack returns the first audio track
func (a *Asset) AudioTrack() (TrackInfo, bool) {
	return a.firstTrack(TrackAudio)
}

// HasAudio reports whether the asset carries an audio track
func (a *Asset) HasAudio() bool {
	_, ok := a.AudioTrack()
	return ok
}

// DisplaySize is the natural size of the first video track after applying
// its orientation transform. It is zero when there is no video track.
func (a *Asset) DisplaySize() Size {
	v, ok := a.VideoTrack()
	if !ok {
		return Size{}
	}
	return v.Transform.ApplySize(v.NaturalSize)
}

func (a *Asset) firstTrack(kind TrackKind) (TrackInfo, bool) {
	for _, t := range a.Tracks {
		if t.Kind == kind {
			return t, true
		}
	}
	return TrackInfo{}, false
}

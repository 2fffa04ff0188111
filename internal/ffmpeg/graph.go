package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/video-overlay/internal/composition"
	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/overlay"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Stream labels inside the filter graph
const (
	labelBase    = "base"
	labelOverlay = "ovl"
	labelOut     = "v"
)

// FilterGraph renders the composition as an ffmpeg filter_complex. The
// source video is resampled to the composition frame rate, the overlay
// sprite is looped as a still, faded in on its alpha channel and slid onto
// its resting position. ffmpeg applies the display rotation before the
// graph, so frames arrive at the render size.
func FilterGraph(g *composition.RenderGraph, spritePath string) (string, error) {
	if g == nil || g.Overlay == nil {
		return "", errors.New("render graph has no overlay")
	}
	video := g.VideoTrack()
	if video.Kind == "" {
		return "", errors.New("render graph has no video track")
	}

	geom := g.Overlay
	rate := g.FrameRate
	if rate <= 0 {
		rate = config.FrameRate
	}

	chains := []string{
		fmt.Sprintf("[0:%d]fps=%d,setpts=PTS-STARTPTS[%s]", video.SourceIndex, rate, labelBase),
		strings.Join([]string{
			"movie=" + escapeFilterArg(spritePath),
			"loop=loop=-1:size=1:start=0",
			fmt.Sprintf("setpts=N/(%d*TB)", rate),
			"format=rgba",
			fadeFilter(geom.Opacity),
		}, ",") + "[" + labelOverlay + "]",
		fmt.Sprintf("[%s][%s]overlay=x=%d:y=%s:eval=frame:shortest=1,format=yuv420p[%s]",
			labelBase, labelOverlay,
			int(geom.Box.X),
			escapeFilterArg(SlideExpr(geom.Slide)),
			labelOut),
	}

	return strings.Join(chains, ";"), nil
}

// SlideExpr is the overlay y position as an ffmpeg expression of t,
// matching Animation.ValueAt for the linear and ease-out curves
func SlideExpr(a overlay.Animation) string {
	if a.Duration <= 0 || a.From == a.To {
		return formatFloat(a.To)
	}
	progress := fmt.Sprintf("clip((t-%s)/%s,0,1)", formatSeconds(a.BeginTime), formatSeconds(a.Duration))
	curve := progress
	if a.Timing == overlay.TimingEaseOut {
		curve = fmt.Sprintf("(1-pow(1-%s,2))", progress)
	}
	return fmt.Sprintf("%s+(%s)*%s", formatFloat(a.From), formatFloat(a.To-a.From), curve)
}

func fadeFilter(a overlay.Animation) string {
	return fmt.Sprintf("fade=t=in:st=%s:d=%s:alpha=1", formatSeconds(a.BeginTime), formatSeconds(a.Duration))
}

// OutputArgs returns the ffmpeg-go output arguments for g
func (p *Processor) OutputArgs(g *composition.RenderGraph, filterGraph string) ffmpeg.KwArgs {
	settings := GetCodecSettings(config.OutputFormat)

	maps := []string{"[" + labelOut + "]"}
	kwargs := ffmpeg.KwArgs{
		"filter_complex": filterGraph,
		"c:v":            settings.VideoCodec,
		"pix_fmt":        settings.PixelFormat,
		"r":              g.FrameRate,
		"t":              formatSeconds(g.TimeRange.Duration),
		"threads":        p.threads,
		"f":              settings.ContainerFormat,
	}
	if audio, ok := g.AudioTrack(); ok {
		maps = append(maps, fmt.Sprintf("0:%d", audio.SourceIndex))
		kwargs["c:a"] = settings.AudioCodec
	} else {
		kwargs["an"] = ""
	}
	kwargs["map"] = maps

	for k, v := range settings.EncoderPresets["high_quality"] {
		kwargs[k] = v
	}
	return kwargs
}

// Args returns the full ffmpeg command line, without the binary, that
// renders g to outputPath with spritePath as the overlay image
func (p *Processor) Args(g *composition.RenderGraph, spritePath, outputPath string) ([]string, error) {
	fg, err := FilterGraph(g, spritePath)
	if err != nil {
		return nil, err
	}

	stream := ffmpeg.Input(g.Source).
		Output(outputPath, p.OutputArgs(g, fg)).
		OverWriteOutput()

	args := []string{"-hide_banner", "-nostats", "-loglevel", "error", "-progress", "pipe:2"}
	return append(args, stream.GetArgs()...), nil
}

// escapeFilterArg escapes s for use as an option value inside a
// filter_complex: once for the option parser and once for the graph parser.
func escapeFilterArg(s string) string {
	return escapeChars(escapeChars(s, `\':`), `\'[],;`)
}

func escapeChars(s, special string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatSeconds(d time.Duration) string {
	return formatFloat(d.Seconds())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package ffmpeg

import (
	"fmt"
	"testing"
	"time"

	"github.com/ZacxDev/video-overlay/internal/composition"
	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/media"
	"github.com/ZacxDev/video-overlay/internal/overlay"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T, text string, pos overlay.Position, audio bool) *composition.RenderGraph {
	t.Helper()
	asset := &media.Asset{
		Path:     "/videos/in.mov",
		Duration: 10 * time.Second,
		Tracks: []media.TrackInfo{{
			Kind:        media.TrackVideo,
			Index:       0,
			NaturalSize: media.Size{Width: 1920, Height: 1080},
			Transform:   media.Identity,
		}},
	}
	if audio {
		asset.Tracks = append(asset.Tracks, media.TrackInfo{Kind: media.TrackAudio, Index: 1})
	}
	return buildGraphFor(t, asset, text, pos)
}

func buildGraphFor(t *testing.T, asset *media.Asset, text string, pos overlay.Position) *composition.RenderGraph {
	t.Helper()
	brand, err := config.ParseHexColor(config.DefaultBrandColor)
	require.NoError(t, err)

	g, err := composition.NewBuilder(zerolog.Nop(), overlay.DefaultStyle(brand)).
		Build(asset, overlay.Spec{Text: text, Position: pos})
	require.NoError(t, err)
	return g
}

func testProcessor(t *testing.T) *Processor {
	return &Processor{
		logger:     zerolog.Nop(),
		ffmpegPath: "ffmpeg",
		scratchDir: t.TempDir(),
		threads:    2,
	}
}

func TestSlideExpr(t *testing.T) {
	tests := []struct {
		name string
		anim overlay.Animation
		want string
	}{
		{
			name: "ease out from above",
			anim: overlay.SlideIn(overlay.PositionTop, 54),
			want: "24+(30)*(1-pow(1-clip((t-0)/0.6,0,1),2))",
		},
		{
			name: "ease out from below",
			anim: overlay.SlideIn(overlay.PositionBottom, 900),
			want: "930+(-30)*(1-pow(1-clip((t-0)/0.6,0,1),2))",
		},
		{
			name: "linear",
			anim: overlay.Animation{From: 10, To: 20, BeginTime: time.Second, Duration: 500 * time.Millisecond, Timing: overlay.TimingLinear},
			want: "10+(10)*clip((t-1)/0.5,0,1)",
		},
		{
			name: "static",
			anim: overlay.Animation{From: 12.5, To: 12.5, Duration: time.Second},
			want: "12.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SlideExpr(tt.anim))
		})
	}
}

func TestFilterGraph(t *testing.T) {
	g := buildGraph(t, "Hello", overlay.PositionTop, true)

	fg, err := FilterGraph(g, "/tmp/overlay_1.png")
	require.NoError(t, err)

	want := "[0:0]fps=30,setpts=PTS-STARTPTS[base];" +
		"movie=/tmp/overlay_1.png,loop=loop=-1:size=1:start=0,setpts=N/(30*TB),format=rgba," +
		"fade=t=in:st=0:d=0.8:alpha=1[ovl];" +
		fmt.Sprintf("[base][ovl]overlay=x=%d:y=24+(30)*(1-pow(1-clip((t-0)/0.6\\,0\\,1)\\,2)):eval=frame:shortest=1,format=yuv420p[v]",
			int(g.Overlay.Box.X))
	assert.Equal(t, want, fg)
}

func TestFilterGraphRequiresOverlay(t *testing.T) {
	_, err := FilterGraph(&composition.RenderGraph{}, "sprite.png")
	assert.Error(t, err)

	_, err = FilterGraph(nil, "sprite.png")
	assert.Error(t, err)
}

func TestEscapeFilterArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/tmp/a.png", "/tmp/a.png"},
		{`C:\tmp\a.png`, `C\\:\\\\tmp\\\\a.png`},
		{"it's.png", `it\\\'s.png`},
		{"a,b;[c].png", `a\,b\;\[c\].png`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeFilterArg(tt.in))
		})
	}
}

func argValue(args []string, flag string) (string, bool) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

func argValues(args []string, flag string) []string {
	var values []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			values = append(values, args[i+1])
		}
	}
	return values
}

func TestArgsWithAudio(t *testing.T) {
	p := testProcessor(t)
	g := buildGraph(t, "Hello", overlay.PositionBottom, true)

	args, err := p.Args(g, "/tmp/sprite.png", "/tmp/out.mp4")
	require.NoError(t, err)

	assert.Equal(t, []string{"-hide_banner", "-nostats", "-loglevel", "error", "-progress", "pipe:2"}, args[:6])

	input, ok := argValue(args, "-i")
	require.True(t, ok)
	assert.Equal(t, "/videos/in.mov", input)

	assert.Equal(t, []string{"[v]", "0:1"}, argValues(args, "-map"))

	for flag, want := range map[string]string{
		"-c:v":      "libx264",
		"-c:a":      "copy",
		"-pix_fmt":  "yuv420p",
		"-r":        "30",
		"-t":        "10",
		"-threads":  "2",
		"-f":        "mp4",
		"-movflags": "+faststart",
	} {
		got, ok := argValue(args, flag)
		if assert.True(t, ok, flag) {
			assert.Equal(t, want, got, flag)
		}
	}

	fg, ok := argValue(args, "-filter_complex")
	require.True(t, ok)
	assert.Contains(t, fg, "movie=/tmp/sprite.png")

	assert.Contains(t, args, "/tmp/out.mp4")
	assert.Contains(t, args, "-y")
	assert.NotContains(t, args, "-an")
}

func TestArgsWithoutAudio(t *testing.T) {
	p := testProcessor(t)
	g := buildGraph(t, "Hello", overlay.PositionCenter, false)

	args, err := p.Args(g, "/tmp/sprite.png", "/tmp/out.mp4")
	require.NoError(t, err)

	assert.Equal(t, []string{"[v]"}, argValues(args, "-map"))
	assert.Contains(t, args, "-an")
	_, ok := argValue(args, "-c:a")
	assert.False(t, ok)
}

func TestEnsureExtension(t *testing.T) {
	assert.Equal(t, "clip.mp4", EnsureExtension("clip.mov", ".mp4"))
	assert.Equal(t, "clip.mp4", EnsureExtension("clip.MP4", ".mp4"))
	assert.Equal(t, "clip.final.mp4", EnsureExtension("clip.final", ".mp4"))
}

func TestGetCodecSettings(t *testing.T) {
	s := GetCodecSettings("mp4")
	assert.Equal(t, "libx264", s.VideoCodec)
	assert.Equal(t, s, GetCodecSettings("unknown"))
	assert.NotEmpty(t, s.EncoderPresets["high_quality"])
}

package ffmpeg

import (
	"math"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type CodecSettings struct {
	VideoCodec      string
	AudioCodec      string
	PixelFormat     string
	ContainerFormat string
	FileExtension   string
	EncoderPresets  map[string]ffmpeg.KwArgs
}

var codecPresets = map[string]CodecSettings{
	"mp4": {
		VideoCodec:      "libx264",
		AudioCodec:      "copy",
		PixelFormat:     "yuv420p",
		ContainerFormat: "mp4",
		FileExtension:   ".mp4",
		EncoderPresets: map[string]ffmpeg.KwArgs{
			"high_quality": {
				"preset":    "slow",
				"crf":       18,
				"profile:v": "high",
				"movflags":  "+faststart",
				"bf":        3,
				"refs":      4,
				"g":         60,
				"flags":     "+cgop",
			},
		},
	},
}

// GetCodecSettings returns the settings for outputFormat, falling back to mp4
func GetCodecSettings(outputFormat string) CodecSettings {
	if settings, ok := codecPresets[outputFormat]; ok {
		return settings
	}
	return codecPresets[config.OutputFormat]
}

// Options configures a Processor
type Options struct {
	FFmpegPath string
	ScratchDir string
	Threads    int
}

// Processor wraps the ffmpeg and ffprobe binaries. It loads assets and
// turns render graphs into transcode sessions.
type Processor struct {
	logger     zerolog.Logger
	ffmpegPath string
	scratchDir string
	threads    int
}

// NewProcessor resolves the ffmpeg binaries and prepares the scratch
// directory used for overlay sprites
func NewProcessor(logger zerolog.Logger, opts Options) (*Processor, error) {
	name := opts.FFmpegPath
	if name == "" {
		name = "ffmpeg"
	}
	ffmpegPath, err := exec.LookPath(name)
	if err != nil {
		return nil, errors.Wrapf(err, "ffmpeg not found (%s)", name)
	}
	// ffmpeg-go always probes with the ffprobe on PATH
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return nil, errors.Wrap(err, "ffprobe not found in PATH")
	}

	scratch := opts.ScratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create scratch directory")
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = GetOptimalThreadCount()
	}

	return &Processor{
		logger:     logging.WithComponent(logger, "ffmpeg"),
		ffmpegPath: ffmpegPath,
		scratchDir: scratch,
		threads:    threads,
	}, nil
}

// GetOptimalThreadCount uses 75% of the available cores
func GetOptimalThreadCount() int {
	cpuCount := runtime.NumCPU()
	return int(math.Max(1, float64(cpuCount)*0.75))
}

// EnsureExtension replaces any known video extension with extension
func EnsureExtension(filename, extension string) string {
	extensions := []string{".mp4", ".webm", ".mkv", ".avi", ".mov", ".m4v"}
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), ext) {
			filename = filename[:len(filename)-len(ext)]
			break
		}
	}
	return filename + extension
}

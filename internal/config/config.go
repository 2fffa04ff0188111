package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ExportOptions defines options for a single overlay export
type ExportOptions struct {
	InputPath  string
	OutputPath string
	Text       string
	Position   string // "top", "center" or "bottom"
	Verbose    bool
}

const (
	// Composited output frame rate, independent of the source rate
	FrameRate = 30

	// Output container
	OutputFormat = "mp4"

	// Overlay layout, as fractions of the display size
	FontSizeRatio     = 0.05 // font size relative to display width
	MaxTextWidthRatio = 0.80 // wrap width relative to display width
	VerticalMargin    = 0.05 // margin relative to display height

	// Overlay box
	BoxPadding      = 24.0 // added to the measured text bounds on each axis
	BoxCornerRadius = 12.0
	BoxOpacity      = 0.7

	// Text shadow
	ShadowOffset  = 2
	ShadowOpacity = 0.6

	// Entrance animation
	FadeInSeconds   = 0.8
	SlideSeconds    = 0.6
	SlideDistance   = 30.0
	ProgressEveryMs = 100

	// Temporary directory prefix
	TempDirPrefix = "video_overlay_"

	// Default brand colour for the overlay background
	DefaultBrandColor = "#FF3B5C"
)

// Config holds settings loaded from the config file and environment
type Config struct {
	FFmpegPath string `yaml:"ffmpeg_path"  env:"VIDEO_OVERLAY_FFMPEG"      validate:"required"`
	ScratchDir string `yaml:"scratch_dir"  env:"VIDEO_OVERLAY_SCRATCH_DIR" validate:"required"`
	BrandColor string `yaml:"brand_color"  env:"VIDEO_OVERLAY_BRAND_COLOR" validate:"required,hexcolor"`
	Threads    int    `yaml:"threads"      env:"VIDEO_OVERLAY_THREADS"     validate:"gte=0,lte=64"`
	LogLevel   string `yaml:"log_level"    env:"VIDEO_OVERLAY_LOG_LEVEL"   validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		FFmpegPath: "ffmpeg",
		ScratchDir: filepath.Join(os.TempDir(), "video-overlay"),
		BrandColor: DefaultBrandColor,
		Threads:    0,
		LogLevel:   "info",
	}
}

// Load reads the config file at path (or the first file found in the usual
// locations), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "failed to parse config %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to apply environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the config for invalid values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// Save writes the configuration to path
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.WriteFile(path, data, 0644))
}

// Brand parses BrandColor ("#RRGGBB") into an opaque colour
func (c *Config) Brand() (color.RGBA, error) {
	return ParseHexColor(c.BrandColor)
}

// ParseHexColor parses "#RGB" or "#RRGGBB"
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, errors.Errorf("invalid colour %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "invalid colour %q", s)
	}

	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, nil
}

func findConfigFile() string {
	candidates := []string{
		"./video-overlay.yaml",
		"./video-overlay.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".video-overlay", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

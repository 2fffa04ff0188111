package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, DefaultBrandColor, cfg.BrandColor)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "ffmpeg_path: /opt/ffmpeg\nbrand_color: \"#00ff00\"\nthreads: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	t.Setenv("VIDEO_OVERLAY_THREADS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "#00ff00", cfg.BrandColor)
	assert.Equal(t, 2, cfg.Threads)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Threads = 8
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Threads)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#FF3B5C", color.RGBA{0xff, 0x3b, 0x5c, 0xff}, false},
		{"#fff", color.RGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"000000", color.RGBA{0, 0, 0, 0xff}, false},
		{"#12345", color.RGBA{}, true},
		{"#zzzzzz", color.RGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

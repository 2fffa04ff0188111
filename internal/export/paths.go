package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ZacxDev/video-overlay/internal/config"
	"github.com/ZacxDev/video-overlay/internal/ffmpeg"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9-_.]`)
	underscores = regexp.MustCompile(`_+`)
)

func sanitizeFilename(filename string) string {
	sanitized := strings.TrimSuffix(filename, filepath.Ext(filename))
	sanitized = unsafeChars.ReplaceAllString(sanitized, "_")
	sanitized = underscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_.")
	if sanitized == "" {
		return "video"
	}
	return sanitized
}

// defaultOutputPath names a fresh output file in dir for source
func defaultOutputPath(dir, source string) string {
	name := fmt.Sprintf("%s_overlay_%s.%s", sanitizeFilename(filepath.Base(source)), uuid.NewString(), config.OutputFormat)
	return filepath.Join(dir, name)
}

// ensureOutputPath creates the parent directory and forces the container
// extension
func ensureOutputPath(path, format string) (string, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	ext := "." + format
	if !strings.HasSuffix(path, ext) {
		path = ffmpeg.EnsureExtension(path, ext)
	}
	return path, nil
}

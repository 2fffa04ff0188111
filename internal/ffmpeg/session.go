package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZacxDev/video-overlay/internal/composition"
	"github.com/ZacxDev/video-overlay/internal/overlay"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// lines of ffmpeg's own log kept for error reports
	logTail = 20

	// progress reported while ffmpeg is still running; 1 means the file
	// has been finalised
	maxRunningProgress = 0.99
)

// Session is one transcode of a render graph. It is single use.
type Session struct {
	logger     zerolog.Logger
	ffmpegPath string
	args       []string
	spritePath string
	outputPath string
	duration   time.Duration

	progress atomic.Uint64 // math.Float64bits of the current estimate
	started  atomic.Bool
}

// NewSession rasterises the overlay sprite and prepares the ffmpeg command
// that writes g to outputPath
func (p *Processor) NewSession(g *composition.RenderGraph, outputPath string) (*Session, error) {
	if g == nil || g.Overlay == nil {
		return nil, errors.New("render graph has no overlay")
	}

	spritePath := filepath.Join(p.scratchDir, "overlay_"+uuid.NewString()+".png")
	if err := overlay.WritePNG(spritePath, g.Overlay, g.Style); err != nil {
		return nil, err
	}

	args, err := p.Args(g, spritePath, outputPath)
	if err != nil {
		os.Remove(spritePath)
		return nil, err
	}

	return &Session{
		logger:     p.logger.With().Str("output", outputPath).Logger(),
		ffmpegPath: p.ffmpegPath,
		args:       args,
		spritePath: spritePath,
		outputPath: outputPath,
		duration:   g.TimeRange.Duration,
	}, nil
}

// Progress returns the completed fraction in [0, 1]. It is safe to call
// from any goroutine.
func (s *Session) Progress() float64 {
	return math.Float64frombits(s.progress.Load())
}

// Run executes ffmpeg and blocks until it exits. Cancelling ctx kills the
// process and Run returns ctx.Err(). A partial output file is removed on
// any failure.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already started")
	}
	defer os.Remove(s.spritePath)

	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", s.args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, s.ffmpegPath, s.args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "failed to create stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start ffmpeg")
	}

	var (
		wg   sync.WaitGroup
		tail []string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		tail = s.streamOutput(stderr)
	}()

	wg.Wait()
	err = cmd.Wait()

	if ctx.Err() != nil {
		os.Remove(s.outputPath)
		return ctx.Err()
	}
	if err != nil {
		os.Remove(s.outputPath)
		if len(tail) > 0 {
			return errors.Wrapf(err, "ffmpeg: %s", strings.Join(tail, "; "))
		}
		return errors.Wrap(err, "ffmpeg execution failed")
	}

	s.setProgress(1)
	s.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// streamOutput consumes ffmpeg's stderr, updating progress from the
// -progress key=value blocks and keeping the tail of everything else
func (s *Session) streamOutput(r io.Reader) []string {
	var tail []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if v, ok := ParseProgressLine(line, s.duration); ok {
			s.setProgress(math.Min(v, maxRunningProgress))
			continue
		}
		if isProgressKey(line) {
			continue
		}

		tail = append(tail, line)
		if len(tail) > logTail {
			tail = tail[1:]
		}
	}
	return tail
}

// setProgress only ever moves the estimate forwards
func (s *Session) setProgress(v float64) {
	v = math.Max(0, math.Min(1, v))
	for {
		old := s.progress.Load()
		if v <= math.Float64frombits(old) {
			return
		}
		if s.progress.CompareAndSwap(old, math.Float64bits(v)) {
			return
		}
	}
}

// ParseProgressLine turns one line of ffmpeg -progress output into a
// completed fraction of total. ok is false for lines that carry no
// position.
func ParseProgressLine(line string, total time.Duration) (float64, bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return 0, false
	}

	switch strings.TrimSpace(key) {
	// out_time_ms is in microseconds as well
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || us < 0 || total <= 0 {
			return 0, false
		}
		done := time.Duration(us) * time.Microsecond
		return math.Min(1, float64(done)/float64(total)), true
	case "progress":
		if strings.TrimSpace(value) == "end" {
			return 1, true
		}
	}
	return 0, false
}

var progressKeys = map[string]bool{
	"frame": true, "fps": true, "bitrate": true, "total_size": true,
	"out_time": true, "out_time_us": true, "out_time_ms": true,
	"dup_frames": true, "drop_frames": true, "speed": true, "progress": true,
}

func isProgressKey(line string) bool {
	key, _, found := strings.Cut(line, "=")
	if !found {
		return false
	}
	key = strings.TrimSpace(key)
	return progressKeys[key] || strings.HasPrefix(key, "stream_")
}

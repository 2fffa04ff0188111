package ffmpeg

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ZacxDev/video-overlay/internal/media"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const probeTimeout = 30 * time.Second

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Duration     string            `json:"duration"`
	NbFrames     string            `json:"nb_frames"`
	RFrameRate   string            `json:"r_frame_rate"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	Tags         map[string]string `json:"tags"`
	Disposition  struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
	SideDataList []struct {
		SideDataType string  `json:"side_data_type"`
		Rotation     float64 `json:"rotation"`
	} `json:"side_data_list"`
}

// LoadAsset probes path and returns its tracks. ffprobe runs in the
// background so ctx can abandon a slow probe.
func (p *Processor) LoadAsset(ctx context.Context, path string) (*media.Asset, error) {
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := ffmpeg.ProbeWithTimeout(path, probeTimeout, ffmpeg.KwArgs{})
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrapf(r.err, "error probing %s", path)
		}
		asset, err := ParseProbe(path, []byte(r.out))
		if err != nil {
			return nil, err
		}
		p.logger.Debug().
			Str("path", path).
			Dur("duration", asset.Duration).
			Int("tracks", len(asset.Tracks)).
			Msg("asset loaded")
		return asset, nil
	}
}

// ParseProbe builds an Asset from ffprobe's JSON output. A file without a
// video stream still loads; rejecting it is up to the caller.
func ParseProbe(path string, data []byte) (*media.Asset, error) {
	var probe probeResult
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "failed to parse probe output")
	}
	if len(probe.Streams) == 0 {
		return nil, errors.New("no streams found")
	}

	asset := &media.Asset{Path: path}
	var video *probeStream

	for i := range probe.Streams {
		s := &probe.Streams[i]
		switch s.CodecType {
		case "video":
			// cover art is reported as a video stream
			if s.Disposition.AttachedPic == 1 || video != nil {
				continue
			}
			video = s
			asset.Tracks = append(asset.Tracks, media.TrackInfo{
				Kind:  media.TrackVideo,
				Index: s.Index,
				Codec: s.CodecName,
				NaturalSize: media.Size{
					Width:  float64(s.Width),
					Height: float64(s.Height),
				},
				Transform: media.Rotation(s.rotation()),
				FrameRate: s.frameRate(),
			})
		case "audio":
			if asset.HasAudio() {
				continue
			}
			asset.Tracks = append(asset.Tracks, media.TrackInfo{
				Kind:      media.TrackAudio,
				Index:     s.Index,
				Codec:     s.CodecName,
				Transform: media.Identity,
			})
		}
	}

	seconds := 0.0

	// First try video stream duration
	if video != nil {
		seconds = parseSeconds(video.Duration)
	}

	// Then the container duration
	if seconds == 0 {
		seconds = parseSeconds(probe.Format.Duration)
	}

	// Finally frames over frame rate
	if seconds == 0 && video != nil {
		if frames, err := strconv.ParseFloat(video.NbFrames, 64); err == nil {
			if rate := video.frameRate(); rate > 0 {
				seconds = frames / rate
			}
		}
	}

	if seconds == 0 {
		return nil, errors.New("could not determine duration")
	}
	asset.Duration = time.Duration(math.Round(seconds * float64(time.Second)))

	return asset, nil
}

// rotation returns the clockwise display rotation in degrees. The legacy
// rotate tag is clockwise, the display matrix side data is counter-clockwise.
func (s *probeStream) rotation() float64 {
	for _, sd := range s.SideDataList {
		if sd.SideDataType == "Display Matrix" {
			return normaliseDegrees(-sd.Rotation)
		}
	}
	if v, ok := s.Tags["rotate"]; ok {
		if deg, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return normaliseDegrees(deg)
		}
	}
	return 0
}

func (s *probeStream) frameRate() float64 {
	if rate := parseRational(s.AvgFrameRate); rate > 0 {
		return rate
	}
	return parseRational(s.RFrameRate)
}

func parseSeconds(v string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

func parseRational(v string) float64 {
	nums := strings.Split(v, "/")
	if len(nums) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func normaliseDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

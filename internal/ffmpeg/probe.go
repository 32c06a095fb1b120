package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/kikiluvv/slopedit/pkg/util"
)

// fields read from ffprobe; anything else is left out of its output
const probeEntries = "format=duration,bit_rate:stream=codec_type,codec_name,width,height,r_frame_rate,avg_frame_rate,bit_rate"

// ProbeVideo reads the media information of a file. The first video
// stream decides dimensions and frame rate.
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-of", "json",
		"-show_entries", probeEntries,
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("ffprobe failed: %w: %s", err, ee.Stderr)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	info, err := parseProbe(output, filePath)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("file", filePath).
		Dur("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Bool("audio", info.HasAudio).
		Msg("probed video")

	return info, nil
}

func parseProbe(output []byte, filePath string) (*VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	v, ok := probe.first("video")
	if !ok {
		return nil, fmt.Errorf("no video stream in %s", filePath)
	}

	info := &VideoInfo{
		FilePath:   filePath,
		Duration:   seconds(probe.Format.Duration),
		Bitrate:    integer(probe.Format.BitRate),
		Width:      v.Width,
		Height:     v.Height,
		VideoCodec: v.CodecName,
		FPS:        v.frameRate(),
	}

	if a, ok := probe.first("audio"); ok {
		info.HasAudio = true
		info.AudioCodec = a.CodecName
		info.AudioBitrate = integer(a.BitRate)
	}

	return info, nil
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	BitRate      string `json:"bit_rate"`
}

// frameRate prefers the real base rate and falls back to the average,
// which is all some containers report
func (s probeStream) frameRate() float64 {
	if fps := util.ParseFrameRate(s.RFrameRate); fps > 0 {
		return fps
	}
	return util.ParseFrameRate(s.AvgFrameRate)
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

func (p probeResult) first(codecType string) (probeStream, bool) {
	for _, s := range p.Streams {
		if s.CodecType == codecType {
			return s, true
		}
	}
	return probeStream{}, false
}

func seconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

func integer(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

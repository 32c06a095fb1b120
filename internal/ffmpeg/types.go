package ffmpeg

import (
	"io"
	"time"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath     string
	Duration     time.Duration
	Width        int
	Height       int
	FPS          float64
	Bitrate      int64
	VideoCodec   string
	HasAudio     bool
	AudioCodec   string
	AudioBitrate int64
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame      int
	FPS        float64
	Bitrate    string
	Time       string
	Speed      string
	Percentage float64
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	Stdin           io.Reader
	Stdout          io.Writer
	Duration        float64
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	DefaultAudioCodec = "aac"
	DefaultPixFmt     = "yuv420p"
)

// EncodeOptions configures a raw-frame encoding session
type EncodeOptions struct {
	Output     string
	Width      int
	Height     int
	FPS        float64
	VideoCodec string
	AudioCodec string
	Preset     string
	Bitrate    string
	// AudioPath is a pre-mixed audio file laid under the frames
	AudioPath string
	// SourceAudio is a media file whose audio stream is mixed with AudioPath
	SourceAudio string
	// Duration caps the output length in seconds
	Duration     float64
	ProgressFunc ProgressFunc
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)

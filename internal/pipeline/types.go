package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"time"

	"github.com/kikiluvv/slopedit/internal/ffmpeg"
	"github.com/kikiluvv/slopedit/internal/timeline"
)

var (
	// ErrExportInProgress is returned when an export is already running
	ErrExportInProgress = errors.New("export already in progress")
	// ErrInvalidProject is returned when there is nothing exportable
	ErrInvalidProject = errors.New("invalid project")
)

// Quality presets
const (
	QualityUltra  = "ultra"
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

var bitrates = map[string]string{
	QualityUltra:  "15M",
	QualityHigh:   "8M",
	QualityMedium: "5M",
	QualityLow:    "2M",
}

var qualityCost = map[string]float64{
	QualityLow:    0.8,
	QualityMedium: 1.0,
	QualityHigh:   1.3,
	QualityUltra:  1.8,
}

// Config holds pipeline-specific configuration
type Config struct {
	FPS        float64
	Quality    string
	Format     string
	VideoCodec string
	AudioCodec string
	Preset     string
	OutputDir  string
	TempDir    string
}

// ExportOptions overrides Config for one export. Zero values fall back.
type ExportOptions struct {
	OutputPath string
	FPS        float64
	Quality    string
	Format     string
	// MuteSource drops the video file's own audio stream
	MuteSource bool
	// Audio renders the mixdown of the audio tracks; nil exports without it
	Audio      AudioRenderer
	OnProgress ProgressFunc
}

// ProgressFunc receives (percent, frameIndex, totalFrames)
type ProgressFunc func(percent float64, frame, total int)

// Result describes a finished export
type Result struct {
	Path     string
	Frames   int
	Duration float64
	Elapsed  time.Duration
}

// AudioRenderer produces the offline audio mixdown
type AudioRenderer interface {
	Tracks() []timeline.ID
	WriteWAV(w io.WriteSeeker, duration float64) error
}

// FrameReader yields source frames in order
type FrameReader interface {
	Next() (*image.RGBA, error)
	Close() error
}

// FrameWriter consumes composited frames
type FrameWriter interface {
	WriteFrame(img *image.RGBA) error
	Close() error
	Abort()
}

// Backend decodes the source and encodes the output
type Backend interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	OpenFrames(ctx context.Context, path string, from, fps float64, width, height int) (FrameReader, error)
	StartEncoder(ctx context.Context, opts ffmpeg.EncodeOptions) (FrameWriter, error)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kikiluvv/slopedit/internal/config"
	"github.com/kikiluvv/slopedit/internal/ffmpeg"
	"github.com/kikiluvv/slopedit/internal/playback"
	"github.com/kikiluvv/slopedit/internal/timeline"
	"github.com/kikiluvv/slopedit/pkg/util"
	"github.com/rs/zerolog"
)

// Pipeline renders a composition to a file by pulling frames through the
// engine's compositor at fixed times
type Pipeline struct {
	logger  zerolog.Logger
	config  Config
	backend Backend
	busy    atomic.Bool
	now     func() time.Time
}

// ConfigFrom maps the application config onto pipeline settings
func ConfigFrom(c *config.Config) Config {
	return Config{
		FPS:        c.Export.FPS,
		Quality:    c.Export.Quality,
		Format:     c.Export.Format,
		VideoCodec: c.Export.VideoCodec,
		AudioCodec: c.Export.AudioCodec,
		Preset:     c.Export.Preset,
		OutputDir:  c.Export.OutputDir,
		TempDir:    c.TempDir,
	}
}

// New creates a new pipeline instance
func New(logger zerolog.Logger, cfg Config, backend Backend) *Pipeline {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Quality == "" {
		cfg.Quality = QualityHigh
	}
	if cfg.Format == "" {
		cfg.Format = "mp4"
	}

	return &Pipeline{
		logger:  logger.With().Str("component", "pipeline").Logger(),
		config:  cfg,
		backend: backend,
		now:     time.Now,
	}
}

// Busy reports whether an export is running
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// job is one export with every option resolved
type job struct {
	ref        string
	output     string
	duration   float64
	fps        float64
	frames     int
	width      int
	height     int
	bitrate    string
	videoCodec string
	audioCodec string
}

// Export renders the engine's composition. The engine must not be edited
// or played while the export runs; frames are composited on the calling
// goroutine.
func (p *Pipeline) Export(ctx context.Context, eng *playback.Engine, opts ExportOptions) (*Result, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, ErrExportInProgress
	}
	defer p.busy.Store(false)

	j, err := p.prepare(eng, opts)
	if err != nil {
		return nil, err
	}

	started := p.now()
	p.logger.Info().
		Str("source", j.ref).
		Str("output", j.output).
		Float64("duration", j.duration).
		Float64("fps", j.fps).
		Int("frames", j.frames).
		Str("bitrate", j.bitrate).
		Msg("starting export")

	if err := util.EnsureDir(filepath.Dir(j.output)); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var audioPath string
	if opts.Audio != nil && len(opts.Audio.Tracks()) > 0 {
		audioPath, err = p.mixdown(opts.Audio, j.duration)
		if err != nil {
			return nil, err
		}
		defer util.CleanupFiles(audioPath)
	}

	var sourceAudio string
	if !opts.MuteSource {
		info, err := p.backend.ProbeVideo(ctx, j.ref)
		if err != nil {
			p.logger.Warn().Err(err).Msg("could not probe source audio, exporting without it")
		} else if info.HasAudio {
			sourceAudio = j.ref
		}
	}

	reader, err := p.backend.OpenFrames(ctx, j.ref, 0, j.fps, j.width, j.height)
	if err != nil {
		return nil, fmt.Errorf("failed to open source frames: %w", err)
	}
	defer reader.Close()

	writer, err := p.backend.StartEncoder(ctx, ffmpeg.EncodeOptions{
		Output:      j.output,
		Width:       j.width,
		Height:      j.height,
		FPS:         j.fps,
		VideoCodec:  j.videoCodec,
		AudioCodec:  j.audioCodec,
		Preset:      p.config.Preset,
		Bitrate:     j.bitrate,
		AudioPath:   audioPath,
		SourceAudio: sourceAudio,
		Duration:    j.duration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}

	if err := RenderFrames(ctx, eng, reader, writer, j.fps, j.frames, opts.OnProgress); err != nil {
		writer.Abort()
		util.CleanupFiles(j.output)
		p.logger.Warn().Err(err).Str("output", j.output).Msg("export aborted")
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish %s: %w", j.output, err)
	}

	res := &Result{
		Path:     j.output,
		Frames:   j.frames,
		Duration: j.duration,
		Elapsed:  p.now().Sub(started),
	}

	p.logger.Info().
		Str("output", res.Path).
		Int("frames", res.Frames).
		Dur("elapsed", res.Elapsed).
		Msg("export complete")

	return res, nil
}

// RenderFrames composites total frames at t = i/fps into w. Each source
// frame read from r backs the composite at the same index; once r runs out
// the last frame is held. onProgress, when set, is called before every frame
// and once more with (100, total, total).
func RenderFrames(ctx context.Context, eng *playback.Engine, r FrameReader, w FrameWriter, fps float64, total int, onProgress ProgressFunc) error {
	report := func(percent float64, i int) {
		if onProgress != nil {
			onProgress(percent, i, total)
		}
	}

	surface := eng.Surface().Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, surface.Dx(), surface.Dy()))

	var last *image.RGBA
	exhausted := false
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		report(float64(i)/float64(total)*100, i)

		if !exhausted {
			img, err := r.Next()
			switch {
			case err == nil:
				last = img
			case errors.Is(err, io.EOF):
				exhausted = true
			default:
				return fmt.Errorf("failed to decode frame %d: %w", i, err)
			}
		}

		eng.Composite(dst, float64(i)/fps, stillFrame{last})
		if err := w.WriteFrame(dst); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}

	report(100, total)
	return nil
}

// stillFrame is a FrameSource showing one decoded frame
type stillFrame struct {
	img *image.RGBA
}

func (s stillFrame) IsReady() bool {
	return s.img != nil
}

func (s stillFrame) CurrentFrame() (image.Image, error) {
	if s.img == nil {
		return nil, nil
	}
	return s.img, nil
}

func (p *Pipeline) prepare(eng *playback.Engine, opts ExportOptions) (*job, error) {
	if eng == nil {
		return nil, fmt.Errorf("%w: no engine", ErrInvalidProject)
	}
	video := eng.Timeline().Video()
	if video == nil {
		return nil, fmt.Errorf("%w: no video", ErrInvalidProject)
	}
	payload, ok := video.Payload.(timeline.VideoPayload)
	if !ok || payload.Ref == "" {
		return nil, fmt.Errorf("%w: video has no source", ErrInvalidProject)
	}

	duration := eng.Duration()
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration is %f", ErrInvalidProject, duration)
	}

	b := eng.Surface().Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: surface is %dx%d", ErrInvalidProject, b.Dx(), b.Dy())
	}

	fps := opts.FPS
	if fps <= 0 {
		fps = p.config.FPS
	}

	quality := opts.Quality
	if quality == "" {
		quality = p.config.Quality
	}
	bitrate, ok := bitrates[quality]
	if !ok {
		return nil, fmt.Errorf("unknown quality %q", quality)
	}

	format := strings.TrimPrefix(strings.ToLower(opts.Format), ".")
	if format == "" {
		format = p.config.Format
	}
	videoCodec, audioCodec := codecsFor(format, p.config.VideoCodec, p.config.AudioCodec)

	output := opts.OutputPath
	if output == "" {
		output = util.GenerateFilename(p.config.OutputDir, "video-edit", format, p.now())
	}

	return &job{
		ref:        payload.Ref,
		output:     output,
		duration:   duration,
		fps:        fps,
		frames:     int(math.Ceil(duration * fps)),
		width:      b.Dx(),
		height:     b.Dy(),
		bitrate:    bitrate,
		videoCodec: videoCodec,
		audioCodec: audioCodec,
	}, nil
}

// codecsFor keeps the configured codecs unless the container cannot hold them
func codecsFor(format, videoCodec, audioCodec string) (string, string) {
	if format == "webm" {
		if !strings.HasPrefix(videoCodec, "libvpx") {
			videoCodec = "libvpx-vp9"
		}
		if audioCodec != "libopus" && audioCodec != "libvorbis" {
			audioCodec = "libopus"
		}
	}
	return videoCodec, audioCodec
}

func (p *Pipeline) mixdown(a AudioRenderer, duration float64) (string, error) {
	f, err := util.TempFile(p.config.TempDir, "slopedit-mix-", ".wav")
	if err != nil {
		return "", fmt.Errorf("failed to create mixdown file: %w", err)
	}
	path := f.Name()

	if err := a.WriteWAV(f, duration); err != nil {
		f.Close()
		util.CleanupFiles(path)
		return "", fmt.Errorf("failed to render audio mixdown: %w", err)
	}
	if err := f.Close(); err != nil {
		util.CleanupFiles(path)
		return "", fmt.Errorf("failed to write audio mixdown: %w", err)
	}

	p.logger.Debug().Str("path", path).Int("tracks", len(a.Tracks())).Msg("audio mixdown rendered")
	return path, nil
}

// Bitrate returns the video bitrate for a quality preset
func Bitrate(quality string) (string, bool) {
	b, ok := bitrates[quality]
	return b, ok
}

// EstimateDuration guesses how long an export takes: two seconds of work per
// second of video, scaled by quality and frame rate, plus a per-track cost
func EstimateDuration(duration, fps float64, quality string, textTracks, audioTracks int) time.Duration {
	if duration <= 0 {
		return 0
	}
	if fps <= 0 {
		fps = 30
	}
	mult, ok := qualityCost[quality]
	if !ok {
		mult = 1
	}

	perSecond := 2 * mult * (fps / 30)
	perSecond += float64(textTracks) * 0.1
	perSecond += float64(audioTracks) * 0.2

	return time.Duration(math.Ceil(duration*perSecond)) * time.Second
}

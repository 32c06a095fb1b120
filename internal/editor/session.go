package editor

import (
	"context"
	"fmt"

	"github.com/gopxl/beep"
	"github.com/kikiluvv/slopedit/internal/audio"
	"github.com/kikiluvv/slopedit/internal/config"
	"github.com/kikiluvv/slopedit/internal/ffmpeg"
	"github.com/kikiluvv/slopedit/internal/overlays"
	"github.com/kikiluvv/slopedit/internal/pipeline"
	"github.com/kikiluvv/slopedit/internal/playback"
	"github.com/kikiluvv/slopedit/internal/timeline"
	"github.com/kikiluvv/slopedit/internal/video"
	"github.com/rs/zerolog"
)

// Options selects how a session is driven
type Options struct {
	// Scheduler drives the render loop; nil leaves the engine unstarted
	Scheduler playback.Scheduler
	// LiveAudio plays the mix through ffplay while the engine plays
	LiveAudio bool
}

// Session wires the timeline, engine and every collaborator from config
type Session struct {
	logger zerolog.Logger

	Config   *config.Config
	FFmpeg   *ffmpeg.Executor
	Timeline *timeline.Timeline
	Engine   *playback.Engine
	Video    *video.FileSource
	Mixer    *audio.Mixer
	Text     *overlays.TextRenderer
	Styles   *overlays.Registry
	Pipeline *pipeline.Pipeline
}

// Open builds a session. It fails when ffmpeg is missing or the surface
// cannot be allocated.
func Open(logger zerolog.Logger, cfg *config.Config, opts Options) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	exec, err := ffmpeg.New(logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	format := audio.DefaultFormat
	if cfg.Export.SampleRate > 0 {
		format.SampleRate = beep.SampleRate(cfg.Export.SampleRate)
	}

	var sink audio.Sink
	if opts.LiveAudio {
		ps, err := audio.NewFFplaySink(logger, "", format)
		if err != nil {
			logger.Warn().Err(err).Msg("live audio disabled")
		} else {
			sink = ps
		}
	}
	mixer := audio.NewMixer(logger, format, sink)

	text, err := overlays.NewTextRenderer(logger, TextStyle(cfg.Text))
	if err != nil {
		return nil, err
	}

	tl := timeline.New(logger, TimelineConfig(cfg.Timeline))
	src := video.NewFileSource(logger, video.FFmpegDecoder(exec), video.Options{FPS: cfg.Playback.FrameRate})

	eng, err := playback.New(logger, tl, playback.Config{
		Width:         cfg.Playback.Width,
		Height:        cfg.Playback.Height,
		SeekTolerance: cfg.Playback.SeekTolerance,
	}, playback.Collaborators{
		Video:     src,
		Audio:     mixer,
		Text:      text,
		Scheduler: opts.Scheduler,
	})
	if err != nil {
		text.Close()
		return nil, err
	}

	return &Session{
		logger:   logger.With().Str("component", "editor").Logger(),
		Config:   cfg,
		FFmpeg:   exec,
		Timeline: tl,
		Engine:   eng,
		Video:    src,
		Mixer:    mixer,
		Text:     text,
		Styles:   overlays.DefaultRegistry(),
		Pipeline: pipeline.New(logger, pipeline.ConfigFrom(cfg), pipeline.FFmpegBackend(exec)),
	}, nil
}

// Close stops playback and releases decoders
func (s *Session) Close() {
	s.Engine.Close()
	s.Video.Close()
	s.Text.Close()
}

// LoadVideo imports path as the composition's video
func (s *Session) LoadVideo(ctx context.Context, path string) (*timeline.Item, error) {
	return s.Engine.LoadVideo(ctx, path)
}

// AddMusic decodes path and places it on the audio track at start
func (s *Session) AddMusic(path string, start float64) (*timeline.Item, error) {
	payload, err := s.Mixer.Load(path)
	if err != nil {
		return nil, err
	}
	return s.Engine.AddAudio(payload, start)
}

// AddText places text styled with preset; an empty preset uses the
// configured default style
func (s *Session) AddText(text string, start, duration float64, preset string) (*timeline.Item, error) {
	var style timeline.TextStyle
	if preset != "" {
		st, ok := s.Styles.Get(preset)
		if !ok {
			return nil, fmt.Errorf("unknown text style %q", preset)
		}
		style = st
	}
	if err := overlays.ValidateStyle(overlays.Merge(overlays.Merge(style, TextStyle(s.Config.Text)), overlays.DefaultStyle)); err != nil {
		return nil, err
	}
	return s.Engine.AddText(timeline.TextPayload{Text: text, Style: style}, start, duration)
}

// Apply adds every parsed text and music spec
func (s *Session) Apply(texts []TextSpec, music []MusicSpec, preset string) error {
	for _, m := range music {
		if _, err := s.AddMusic(m.Path, m.Start); err != nil {
			return fmt.Errorf("failed to add music %s: %w", m.Path, err)
		}
	}
	for _, t := range texts {
		if _, err := s.AddText(t.Text, t.Start, t.Duration, preset); err != nil {
			return fmt.Errorf("failed to add text %q: %w", t.Text, err)
		}
	}
	return nil
}

// Export renders the composition with the session's mixer as audio source.
// It blocks the calling goroutine, which must own the engine; the render
// loop is suspended until the export returns.
func (s *Session) Export(ctx context.Context, opts pipeline.ExportOptions) (*pipeline.Result, error) {
	resume := s.Engine.Suspend()
	defer resume()
	return s.Pipeline.Export(ctx, s.Engine, s.exportOptions(opts))
}

// StartExport runs the export on its own goroutine. It must be called on
// the goroutine that owns the engine. The render loop stays suspended until
// done runs; done is handed to dispatch so it runs back on the owning
// goroutine, after the loop has been resumed.
func (s *Session) StartExport(ctx context.Context, opts pipeline.ExportOptions, dispatch func(func()), done func(*pipeline.Result, error)) {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	resume := s.Engine.Suspend()
	opts = s.exportOptions(opts)

	go func() {
		res, err := s.Pipeline.Export(ctx, s.Engine, opts)
		dispatch(func() {
			resume()
			if done != nil {
				done(res, err)
			}
		})
	}()
}

func (s *Session) exportOptions(opts pipeline.ExportOptions) pipeline.ExportOptions {
	if opts.Audio == nil {
		opts.Audio = s.Mixer
	}
	return opts
}

// TimelineConfig maps the timeline config section
func TimelineConfig(c config.TimelineConfig) timeline.Config {
	return timeline.Config{
		BasePixelsPerSecond: c.BasePixelsPerSecond,
		MinZoom:             c.MinZoom,
		MaxZoom:             c.MaxZoom,
		MinItemWidth:        c.MinItemWidth,
		MinTickSpacing:      c.MinTickSpacing,
		TargetTicks:         c.TargetTicks,
		MaxTicks:            c.MaxTicks,
		NudgeStep:           c.NudgeStep,
	}
}

// TextStyle maps the text config section to the default text style
func TextStyle(c config.TextConfig) timeline.TextStyle {
	return timeline.TextStyle{
		FontSize:   c.FontSize,
		Color:      c.Color,
		Background: c.Background,
		Padding:    c.Padding,
		Position:   timeline.Position(c.Position),
		Align:      c.Align,
		LineHeight: c.LineHeight,
	}
}

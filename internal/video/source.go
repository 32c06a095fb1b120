package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/kikiluvv/slopedit/internal/ffmpeg"
	"github.com/kikiluvv/slopedit/internal/playback"
	"github.com/kikiluvv/slopedit/pkg/util"
	"github.com/rs/zerolog"
)

// ErrNotLoaded is returned when playing before anything was loaded
var ErrNotLoaded = errors.New("no video loaded")

// Frames is a sequential frame decoder
type Frames interface {
	Next() (*image.RGBA, error)
	Close() error
}

// Decoder is the ffmpeg surface the source needs
type Decoder interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	ExtractFrame(ctx context.Context, path string, t float64, width, height int) (*image.RGBA, error)
	OpenFrames(ctx context.Context, path string, from, fps float64, width, height int) (Frames, error)
}

// FFmpegDecoder adapts an ffmpeg executor to Decoder
func FFmpegDecoder(e *ffmpeg.Executor) Decoder {
	return ffmpegDecoder{e}
}

type ffmpegDecoder struct {
	*ffmpeg.Executor
}

func (d ffmpegDecoder) OpenFrames(ctx context.Context, path string, from, fps float64, width, height int) (Frames, error) {
	fs, err := d.Executor.OpenFrames(ctx, path, from, fps, width, height)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// Options tunes preview decoding
type Options struct {
	// PreviewWidth caps the decoded frame width; height keeps the aspect ratio
	PreviewWidth int
	// FPS is the decode rate while playing
	FPS float64
}

// DefaultOptions returns the preview defaults
func DefaultOptions() Options {
	return Options{PreviewWidth: 960, FPS: 30}
}

// FileSource is a playback.VideoSource over a media file. Its native clock
// is wall time anchored at the last play/seek; frames decode in the
// background and CurrentFrame returns the latest one.
type FileSource struct {
	logger zerolog.Logger
	dec    Decoder
	opts   Options
	now    func() time.Time
	sleep  func(time.Duration)

	mu      sync.Mutex
	ref     string
	info    playback.MediaInfo
	width   int
	height  int
	loaded  bool
	ready   bool
	playing bool
	base    float64
	anchor  time.Time
	// gen changes on every load, seek, play and pause; decodes started
	// under an older gen are discarded
	gen     int
	frame   image.Image
	frameAt float64
	err     error
	pending bool
	ctx     context.Context
	cancel  context.CancelFunc
	// endStream cancels the running stream; runStream closes it
	endStream context.CancelFunc
}

var _ playback.VideoSource = (*FileSource)(nil)

// NewFileSource creates an empty source
func NewFileSource(logger zerolog.Logger, dec Decoder, opts Options) *FileSource {
	def := DefaultOptions()
	if opts.PreviewWidth <= 0 {
		opts.PreviewWidth = def.PreviewWidth
	}
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	return &FileSource{
		logger: logger.With().Str("component", "video").Logger(),
		dec:    dec,
		opts:   opts,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Load probes ref and starts decoding its first frame
func (s *FileSource) Load(ctx context.Context, ref string) (playback.MediaInfo, error) {
	info, err := s.dec.ProbeVideo(ctx, ref)
	if err != nil {
		return playback.MediaInfo{}, fmt.Errorf("failed to probe %s: %w", ref, err)
	}
	if info.Duration <= 0 {
		return playback.MediaInfo{}, fmt.Errorf("video %s has no duration", ref)
	}

	mi := playback.MediaInfo{
		Duration: info.Duration.Seconds(),
		Width:    info.Width,
		Height:   info.Height,
		FPS:      info.FPS,
		HasAudio: info.HasAudio,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.ref = ref
	s.info = mi
	s.width, s.height = previewSize(mi.Width, mi.Height, s.opts.PreviewWidth)
	s.loaded = true
	s.ready = false
	s.playing = false
	s.base = 0
	s.frame = nil
	s.err = nil
	s.gen++
	s.requestLocked()

	s.logger.Info().
		Str("ref", ref).
		Float64("duration", mi.Duration).
		Int("preview_width", s.width).
		Int("preview_height", s.height).
		Msg("video source loaded")

	return mi, nil
}

// Info returns what the last Load reported
func (s *FileSource) Info() playback.MediaInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// IsReady reports whether a frame has been decoded for the loaded file
func (s *FileSource) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && s.ready
}

// CurrentFrame returns the most recently decoded frame
func (s *FileSource) CurrentFrame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

// CurrentTime returns the native playback position
func (s *FileSource) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

// Paused reports whether the native clock is stopped. Reaching the end of
// the file pauses it.
func (s *FileSource) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positionLocked()
	return !s.playing
}

// Seek moves the native clock to t, clamped to the file
func (s *FileSource) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return
	}
	s.base = util.Clamp(t, 0, s.info.Duration)
	s.anchor = s.now()
	s.gen++
	s.closeStreamLocked()
	if s.playing {
		s.startStreamLocked()
		return
	}
	s.requestLocked()
}

// Play starts the native clock and sequential decoding
func (s *FileSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNotLoaded
	}
	if s.playing {
		return nil
	}
	if s.base >= s.info.Duration {
		return fmt.Errorf("at end of %s", s.ref)
	}
	s.playing = true
	s.anchor = s.now()
	s.gen++
	s.startStreamLocked()
	return nil
}

// Pause freezes the native clock and decodes the exact frame under it
func (s *FileSource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.base = s.positionLocked()
	s.playing = false
	s.gen++
	s.closeStreamLocked()
	s.requestLocked()
}

// Close stops all decoding
func (s *FileSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.loaded = false
	s.ready = false
}

func (s *FileSource) positionLocked() float64 {
	if !s.playing {
		return s.base
	}
	t := s.base + s.now().Sub(s.anchor).Seconds()
	if t >= s.info.Duration {
		s.base = s.info.Duration
		s.playing = false
		s.gen++
		s.closeStreamLocked()
		return s.base
	}
	return t
}

func (s *FileSource) stopLocked() {
	s.gen++
	s.closeStreamLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.pending = false
}

// closeStreamLocked cancels the running stream without waiting for it.
// The decoder is reaped by runStream once its last read returns.
func (s *FileSource) closeStreamLocked() {
	if s.endStream != nil {
		s.endStream()
		s.endStream = nil
	}
}

// requestLocked decodes the still frame at base unless a decode is already
// in flight; that one re-requests when it lands on a stale gen
func (s *FileSource) requestLocked() {
	if s.pending {
		return
	}
	s.pending = true
	go s.decodeStill(s.ctx, s.gen, s.ref, s.base, s.width, s.height)
}

func (s *FileSource) decodeStill(ctx context.Context, gen int, ref string, t float64, w, h int) {
	img, err := s.dec.ExtractFrame(ctx, ref, t, w, h)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.pending = false
	if gen != s.gen {
		if s.loaded && !s.playing {
			s.requestLocked()
		}
		return
	}
	s.applyLocked(img, t, err)
}

func (s *FileSource) applyLocked(img *image.RGBA, t float64, err error) {
	if err != nil {
		s.err = err
		s.logger.Warn().Err(err).Float64("time", t).Msg("frame decode failed")
		return
	}
	s.frame = img
	s.frameAt = t
	s.err = nil
	s.ready = true
}

func (s *FileSource) startStreamLocked() {
	s.closeStreamLocked()
	ctx, cancel := context.WithCancel(s.ctx)
	s.endStream = cancel
	go s.runStream(ctx, s.gen, s.ref, s.base, s.width, s.height)
}

// runStream decodes sequential frames from 'from' and publishes each one
// when the native clock reaches it, dropping frames that arrive late. It is
// the only reader of the stream and closes it on the way out, never while
// holding s.mu.
func (s *FileSource) runStream(ctx context.Context, gen int, ref string, from float64, w, h int) {
	fs, err := s.dec.OpenFrames(ctx, ref, from, s.opts.FPS, w, h)
	if err == nil {
		defer fs.Close()
	}

	s.mu.Lock()
	if gen != s.gen || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.applyLocked(nil, from, err)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	step := 1 / s.opts.FPS
	for i := 0; ; i++ {
		img, err := fs.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.mu.Lock()
				if gen == s.gen {
					s.applyLocked(nil, from, err)
				}
				s.mu.Unlock()
			}
			return
		}

		ft := from + float64(i)*step

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		cur := s.positionLocked()
		s.mu.Unlock()

		if ft+step < cur {
			continue
		}
		if ft > cur {
			s.sleep(time.Duration((ft - cur) * float64(time.Second)))
		}

		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.applyLocked(img, ft, nil)
		s.mu.Unlock()
	}
}

func previewSize(w, h, maxWidth int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxWidth, maxWidth * 9 / 16
	}
	if w <= maxWidth {
		return w, h
	}
	ph := h * maxWidth / w
	if ph < 1 {
		ph = 1
	}
	return maxWidth, ph
}

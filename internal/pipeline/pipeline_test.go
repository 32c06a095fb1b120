package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kikiluvv/slopedit/internal/ffmpeg"
	"github.com/kikiluvv/slopedit/internal/playback"
	"github.com/kikiluvv/slopedit/internal/timeline"
	"github.com/rs/zerolog"
)

var green = color.RGBA{0, 200, 0, 255}

type fakeVideo struct {
	info playback.MediaInfo
}

func (v *fakeVideo) Load(ctx context.Context, ref string) (playback.MediaInfo, error) {
	return v.info, nil
}

func (v *fakeVideo) Seek(float64) {}

func (v *fakeVideo) Play() error { return nil }

func (v *fakeVideo) Pause() {}

func (v *fakeVideo) Paused() bool { return true }

func (v *fakeVideo) CurrentTime() float64 { return 0 }

func (v *fakeVideo) IsReady() bool { return false }

func (v *fakeVideo) CurrentFrame() (image.Image, error) { return nil, nil }

type fakeText struct {
	times []float64
}

func (f *fakeText) Draw(dst draw.Image, item *timeline.Item, t float64) error {
	f.times = append(f.times, t)
	return nil
}

type fakeReader struct {
	left   int
	w, h   int
	closed bool
}

func (r *fakeReader) Next() (*image.RGBA, error) {
	if r.left == 0 {
		return nil, io.EOF
	}
	r.left--
	img := image.NewRGBA(image.Rect(0, 0, r.w, r.h))
	draw.Draw(img, img.Bounds(), image.NewUniform(green), image.Point{}, draw.Src)
	return img, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeWriter struct {
	frames  int
	centers []color.RGBA
	closed  bool
	aborted bool
	onWrite func()
}

func (w *fakeWriter) WriteFrame(img *image.RGBA) error {
	w.frames++
	b := img.Bounds()
	w.centers = append(w.centers, img.RGBAAt(b.Dx()/2, b.Dy()/2))
	if w.onWrite != nil {
		w.onWrite()
	}
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) Abort() { w.aborted = true }

type fakeBackend struct {
	sourceFrames int
	hasAudio     bool
	reader       *fakeReader
	writer       *fakeWriter
	encode       ffmpeg.EncodeOptions
	audioSeen    bool
}

func (b *fakeBackend) ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error) {
	return &ffmpeg.VideoInfo{FilePath: path, HasAudio: b.hasAudio}, nil
}

func (b *fakeBackend) OpenFrames(ctx context.Context, path string, from, fps float64, width, height int) (FrameReader, error) {
	b.reader = &fakeReader{left: b.sourceFrames, w: width, h: height}
	return b.reader, nil
}

func (b *fakeBackend) StartEncoder(ctx context.Context, opts ffmpeg.EncodeOptions) (FrameWriter, error) {
	b.encode = opts
	if opts.AudioPath != "" {
		_, err := os.Stat(opts.AudioPath)
		b.audioSeen = err == nil
	}
	b.writer = &fakeWriter{}
	return b.writer, nil
}

type fakeAudio struct {
	tracks []timeline.ID
	wrote  float64
}

func (a *fakeAudio) Tracks() []timeline.ID { return a.tracks }

func (a *fakeAudio) WriteWAV(w io.WriteSeeker, duration float64) error {
	a.wrote = duration
	_, err := w.Write([]byte("RIFF"))
	return err
}

type harness struct {
	engine  *playback.Engine
	text    *fakeText
	backend *fakeBackend
	pipe    *Pipeline
	dir     string
}

func newHarness(t *testing.T, duration float64, withVideo bool) *harness {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	tl := timeline.New(logger, timeline.DefaultConfig())
	text := &fakeText{}
	video := &fakeVideo{info: playback.MediaInfo{Duration: duration, Width: 32, Height: 18, FPS: 30}}

	eng, err := playback.New(logger, tl, playback.Config{Width: 64, Height: 36}, playback.Collaborators{
		Video: video,
		Text:  text,
	})
	if err != nil {
		t.Fatalf("playback.New: %v", err)
	}
	if withVideo {
		if _, err := eng.LoadVideo(context.Background(), "clip.mp4"); err != nil {
			t.Fatalf("LoadVideo: %v", err)
		}
	}

	dir := t.TempDir()
	backend := &fakeBackend{sourceFrames: 1000}
	pipe := New(logger, Config{FPS: 10, OutputDir: filepath.Join(dir, "out"), TempDir: dir}, backend)
	pipe.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	return &harness{engine: eng, text: text, backend: backend, pipe: pipe, dir: dir}
}

func TestExportRequiresVideo(t *testing.T) {
	h := newHarness(t, 1, false)
	_, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{})
	if !errors.Is(err, ErrInvalidProject) {
		t.Errorf("expected ErrInvalidProject, got %v", err)
	}
	if _, err := h.pipe.Export(context.Background(), nil, ExportOptions{}); !errors.Is(err, ErrInvalidProject) {
		t.Errorf("nil engine: expected ErrInvalidProject, got %v", err)
	}
}

func TestExportRendersEveryFrame(t *testing.T) {
	h := newHarness(t, 1, true)
	if _, err := h.engine.AddText(timeline.TextPayload{Text: "hello"}, 0.5, 0.25); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	h.text.times = nil

	type call struct {
		percent      float64
		frame, total int
	}
	var calls []call
	res, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{
		OnProgress: func(p float64, i, n int) { calls = append(calls, call{p, i, n}) },
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if res.Frames != 10 || h.backend.writer.frames != 10 {
		t.Errorf("frames = %d written %d, want 10", res.Frames, h.backend.writer.frames)
	}
	if !h.backend.writer.closed || !h.backend.reader.closed {
		t.Error("writer and reader should be closed")
	}
	if len(calls) != 11 {
		t.Fatalf("expected 11 progress calls, got %d", len(calls))
	}
	if calls[0] != (call{0, 0, 10}) {
		t.Errorf("first progress = %+v", calls[0])
	}
	if calls[5] != (call{50, 5, 10}) {
		t.Errorf("mid progress = %+v", calls[5])
	}
	if calls[10] != (call{100, 10, 10}) {
		t.Errorf("final progress = %+v", calls[10])
	}

	want := []float64{0.5, 0.6, 0.7}
	if len(h.text.times) != len(want) {
		t.Fatalf("text drawn at %v, want %v", h.text.times, want)
	}
	for i, tt := range want {
		if h.text.times[i] != tt {
			t.Errorf("text time %d = %f, want %f", i, h.text.times[i], tt)
		}
	}

	if h.backend.encode.Width != 32 || h.backend.encode.Height != 18 {
		t.Errorf("encode size = %dx%d", h.backend.encode.Width, h.backend.encode.Height)
	}
	if h.backend.encode.Bitrate != "8M" {
		t.Errorf("bitrate = %q", h.backend.encode.Bitrate)
	}
	wantPath := filepath.Join(h.dir, "out", "video-edit-20250102-030405.mp4")
	if res.Path != wantPath || h.backend.encode.Output != wantPath {
		t.Errorf("output = %q, want %q", res.Path, wantPath)
	}
}

func TestExportHoldsLastFrameWhenSourceRunsShort(t *testing.T) {
	h := newHarness(t, 1, true)
	h.backend.sourceFrames = 3

	if _, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	w := h.backend.writer
	if w.frames != 10 {
		t.Fatalf("frames = %d", w.frames)
	}
	for i, c := range w.centers {
		if c.G < 150 || c.R > 50 {
			t.Errorf("frame %d center = %v, want the source frame", i, c)
		}
	}
}

func TestExportWithoutSourceFramesShowsPlaceholder(t *testing.T) {
	h := newHarness(t, 0.2, true)
	h.backend.sourceFrames = 0

	if _, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	for i, c := range h.backend.writer.centers {
		if c.G > 150 && c.R < 50 {
			t.Errorf("frame %d should be a placeholder, got %v", i, c)
		}
	}
}

func TestExportRefusesConcurrent(t *testing.T) {
	h := newHarness(t, 1, true)
	h.pipe.busy.Store(true)
	if _, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{}); !errors.Is(err, ErrExportInProgress) {
		t.Errorf("expected ErrExportInProgress, got %v", err)
	}

	h.pipe.busy.Store(false)
	if _, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{}); err != nil {
		t.Errorf("export after release failed: %v", err)
	}
	if h.pipe.Busy() {
		t.Error("pipeline should be idle after export")
	}
}

func TestExportCancellation(t *testing.T) {
	h := newHarness(t, 1, true)
	ctx, cancel := context.WithCancel(context.Background())

	var frames int
	_, err := h.pipe.Export(ctx, h.engine, ExportOptions{
		OnProgress: func(p float64, i, n int) {
			frames = i
			if i == 3 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !h.backend.writer.aborted || h.backend.writer.closed {
		t.Error("encoder should be aborted, not closed")
	}
	if frames != 3 || h.backend.writer.frames != 4 {
		t.Errorf("progressed to %d, wrote %d", frames, h.backend.writer.frames)
	}
}

func TestExportAudio(t *testing.T) {
	h := newHarness(t, 1, true)
	h.backend.hasAudio = true
	mix := &fakeAudio{tracks: []timeline.ID{"a"}}

	if _, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{Audio: mix}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if mix.wrote != 1 {
		t.Errorf("mixdown duration = %f", mix.wrote)
	}
	if !h.backend.audioSeen {
		t.Error("mixdown file should exist while encoding")
	}
	if _, err := os.Stat(h.backend.encode.AudioPath); !os.IsNotExist(err) {
		t.Error("mixdown file should be removed after export")
	}
	if h.backend.encode.SourceAudio != "clip.mp4" {
		t.Errorf("source audio = %q", h.backend.encode.SourceAudio)
	}

	if _, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{MuteSource: true, Audio: &fakeAudio{}}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if h.backend.encode.SourceAudio != "" || h.backend.encode.AudioPath != "" {
		t.Errorf("expected no audio inputs, got %+v", h.backend.encode)
	}
}

func TestExportOptionsOverride(t *testing.T) {
	h := newHarness(t, 1, true)
	out := filepath.Join(h.dir, "custom.webm")

	res, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{
		OutputPath: out,
		FPS:        5,
		Quality:    QualityLow,
		Format:     "webm",
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Path != out || res.Frames != 5 {
		t.Errorf("result = %+v", res)
	}
	if h.backend.encode.Bitrate != "2M" || h.backend.encode.VideoCodec != "libvpx-vp9" {
		t.Errorf("encode = %+v", h.backend.encode)
	}

	if _, err := h.pipe.Export(context.Background(), h.engine, ExportOptions{Quality: "insane"}); err == nil {
		t.Error("expected error for unknown quality")
	}
}

func TestBitrate(t *testing.T) {
	tests := map[string]string{
		QualityUltra:  "15M",
		QualityHigh:   "8M",
		QualityMedium: "5M",
		QualityLow:    "2M",
	}
	for q, want := range tests {
		if got, ok := Bitrate(q); !ok || got != want {
			t.Errorf("Bitrate(%q) = %q, %v", q, got, ok)
		}
	}
	if _, ok := Bitrate("nope"); ok {
		t.Error("unknown quality should not resolve")
	}
}

func TestEstimateDuration(t *testing.T) {
	if got := EstimateDuration(10, 30, QualityMedium, 0, 0); got != 20*time.Second {
		t.Errorf("medium = %v", got)
	}
	if got := EstimateDuration(10, 30, QualityUltra, 0, 0); got != 36*time.Second {
		t.Errorf("ultra = %v", got)
	}
	if got := EstimateDuration(0, 30, QualityHigh, 1, 1); got != 0 {
		t.Errorf("empty = %v", got)
	}
	if EstimateDuration(10, 30, QualityMedium, 2, 2) <= EstimateDuration(10, 30, QualityMedium, 0, 0) {
		t.Error("tracks should add cost")
	}
}

func TestCodecsFor(t *testing.T) {
	v, a := codecsFor("mp4", "libx264", "aac")
	if v != "libx264" || a != "aac" {
		t.Errorf("mp4 = %s/%s", v, a)
	}
	v, a = codecsFor("webm", "libx264", "aac")
	if v != "libvpx-vp9" || a != "libopus" {
		t.Errorf("webm = %s/%s", v, a)
	}
}

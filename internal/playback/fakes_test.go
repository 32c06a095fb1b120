package playback

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

// fakeVideo is a video source whose native clock the test advances
type fakeVideo struct {
	info     MediaInfo
	loadErr  error
	ready    bool
	paused   bool
	native   float64
	frame    image.Image
	frameErr error
	panicky  bool

	seeks []float64
	plays int
}

func newFakeVideo(duration float64) *fakeVideo {
	frame := image.NewRGBA(image.Rect(0, 0, 64, 36))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.RGBA{0, 200, 0, 255}), image.Point{}, draw.Src)
	return &fakeVideo{
		info:   MediaInfo{Duration: duration, Width: 64, Height: 36, FPS: 30},
		paused: true,
		frame:  frame,
	}
}

func (v *fakeVideo) Load(ctx context.Context, ref string) (MediaInfo, error) {
	if v.loadErr != nil {
		return MediaInfo{}, v.loadErr
	}
	v.ready = true
	v.native = 0
	return v.info, nil
}

func (v *fakeVideo) Seek(t float64) {
	v.seeks = append(v.seeks, t)
	v.native = t
}

func (v *fakeVideo) Play() error {
	if !v.ready {
		return errors.New("not loaded")
	}
	v.plays++
	v.paused = false
	return nil
}

func (v *fakeVideo) Pause() { v.paused = true }

func (v *fakeVideo) Paused() bool { return v.paused }

func (v *fakeVideo) CurrentTime() float64 { return v.native }

func (v *fakeVideo) IsReady() bool { return v.ready }

func (v *fakeVideo) CurrentFrame() (image.Image, error) {
	if v.panicky {
		panic("decoder exploded")
	}
	return v.frame, v.frameErr
}

// advance moves the native clock forward like a playing element would
func (v *fakeVideo) advance(dt float64) {
	if v.paused {
		return
	}
	v.native += dt
	if v.native >= v.info.Duration {
		v.native = v.info.Duration
		v.paused = true
	}
}

type mixerCall struct {
	op string
	t  float64
}

type fakeMixer struct {
	calls   []mixerCall
	tracks  []timeline.ID
	removed []timeline.ID
	addErr  error
}

func (m *fakeMixer) AddTrack(item *timeline.Item) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.tracks = append(m.tracks, item.ID)
	return nil
}

func (m *fakeMixer) Play(from float64) { m.calls = append(m.calls, mixerCall{"play", from}) }

func (m *fakeMixer) Pause() { m.calls = append(m.calls, mixerCall{"pause", 0}) }

func (m *fakeMixer) Stop() { m.calls = append(m.calls, mixerCall{"stop", 0}) }

func (m *fakeMixer) Seek(t float64) { m.calls = append(m.calls, mixerCall{"seek", t}) }

func (m *fakeMixer) RemoveTrack(id timeline.ID) { m.removed = append(m.removed, id) }

func (m *fakeMixer) last() mixerCall {
	if len(m.calls) == 0 {
		return mixerCall{}
	}
	return m.calls[len(m.calls)-1]
}

type textCall struct {
	id timeline.ID
	t  float64
}

type fakeText struct {
	calls []textCall
	err   error
}

func (r *fakeText) Draw(dst draw.Image, item *timeline.Item, t float64) error {
	r.calls = append(r.calls, textCall{item.ID, t})
	return r.err
}

package playback

import (
	"context"
	"image"
	"image/draw"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

// MediaInfo is what a video source reports once a reference is loaded
type MediaInfo struct {
	Duration float64
	Width    int
	Height   int
	FPS      float64
	HasAudio bool
}

// FrameSource yields the frame to composite. It must tolerate being asked
// before anything is loaded.
type FrameSource interface {
	IsReady() bool
	CurrentFrame() (image.Image, error)
}

// VideoSource is a seekable, playable media handle with its own clock.
// The engine reads CurrentTime as the authoritative playback position.
type VideoSource interface {
	FrameSource
	Load(ctx context.Context, ref string) (MediaInfo, error)
	Seek(t float64)
	Play() error
	Pause()
	Paused() bool
	CurrentTime() float64
}

// AudioMixer plays the audio items in sync with the engine
type AudioMixer interface {
	AddTrack(item *timeline.Item) error
	Play(from float64)
	Pause()
	Stop()
	Seek(t float64)
}

// TrackRemover is implemented by mixers that can drop a registered track
type TrackRemover interface {
	RemoveTrack(id timeline.ID)
}

// TextRasterizer draws one text item onto the surface
type TextRasterizer interface {
	Draw(dst draw.Image, item *timeline.Item, t float64) error
}

type nopMixer struct{}

func (nopMixer) AddTrack(*timeline.Item) error { return nil }

func (nopMixer) Play(float64) {}

func (nopMixer) Pause() {}

func (nopMixer) Stop() {}

func (nopMixer) Seek(float64) {}

type nopText struct{}

func (nopText) Draw(draw.Image, *timeline.Item, float64) error { return nil }

package playback

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/nfnt/resize"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

var errNoFrame = errors.New("no decoded frame")

// Composite draws the frame at time t onto dst: the video frame from frames
// scaled to dst (or a placeholder), then every text item active at t in
// track order. It never fails; drawing errors are logged and replaced with
// the error placeholder. The live loop and export both render through here.
func (e *Engine) Composite(dst draw.Image, t float64, frames FrameSource) Placeholder {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	shown := PlaceholderNone
	switch {
	case e.timeline.Video() == nil || frames == nil:
		shown = PlaceholderNoVideo
	case !frames.IsReady():
		shown = PlaceholderLoading
	default:
		if err := drawVideo(dst, frames); err != nil {
			if errors.Is(err, errNoFrame) {
				shown = PlaceholderLoading
			} else {
				e.logger.Warn().Err(err).Float64("time", t).Msg("video frame draw failed")
				shown = PlaceholderError
			}
		}
	}
	if shown != PlaceholderNone {
		drawPlaceholder(dst, shown)
	}

	for _, item := range e.timeline.ActiveAt(timeline.KindText, t) {
		if err := e.drawText(dst, item, t); err != nil {
			e.logger.Warn().Err(err).Str("item", string(item.ID)).Msg("text overlay draw failed")
		}
	}
	return shown
}

func (e *Engine) drawText(dst draw.Image, item *timeline.Item, t float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text rasterizer panicked: %v", r)
		}
	}()
	return e.text.Draw(dst, item, t)
}

// drawVideo scales the current frame to dst. Panics from the decoder are
// turned into errors so one bad frame cannot stop the loop.
func drawVideo(dst draw.Image, frames FrameSource) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("video frame panicked: %v", r)
		}
	}()

	frame, err := frames.CurrentFrame()
	if err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return errNoFrame
	}

	b := dst.Bounds()
	if frame.Bounds().Dx() != b.Dx() || frame.Bounds().Dy() != b.Dy() {
		frame = resize.Resize(uint(b.Dx()), uint(b.Dy()), frame, resize.Bilinear)
	}
	draw.Draw(dst, b, frame, frame.Bounds().Min, draw.Src)
	return nil
}

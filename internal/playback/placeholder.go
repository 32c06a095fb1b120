package playback

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Placeholder identifies the substitute frame drawn instead of video
type Placeholder int

const (
	PlaceholderNone Placeholder = iota
	PlaceholderNoVideo
	PlaceholderLoading
	PlaceholderError
)

func (p Placeholder) String() string {
	switch p {
	case PlaceholderNoVideo:
		return "no-video"
	case PlaceholderLoading:
		return "loading"
	case PlaceholderError:
		return "error"
	}
	return "none"
}

var placeholderText = map[Placeholder]string{
	PlaceholderNoVideo: "Please import a video",
	PlaceholderLoading: "Loading video...",
	PlaceholderError:   "Error rendering video",
}

var (
	backgroundColor = color.RGBA{0, 0, 0, 255}
	panelColor      = color.RGBA{26, 26, 26, 255}
	labelColor      = color.RGBA{255, 255, 255, 255}
	errorColor      = color.RGBA{255, 107, 107, 255}
)

// drawPlaceholder fills dst with a dark panel and a centred message. The
// bitmap font is tiny, so the label is rendered small and scaled up to
// roughly a third of the surface width.
func drawPlaceholder(dst draw.Image, p Placeholder) {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(panelColor), image.Point{}, draw.Src)

	msg := placeholderText[p]
	if msg == "" || b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	fg := labelColor
	if p == PlaceholderError {
		fg = errorColor
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, msg).Ceil()
	label := image.NewRGBA(image.Rect(0, 0, width, face.Height))
	d := &font.Drawer{
		Dst:  label,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(msg)

	scale := b.Dx() / 3 / width
	if scale < 1 {
		scale = 1
	}
	var img image.Image = label
	if scale > 1 {
		img = resize.Resize(uint(width*scale), uint(face.Height*scale), label, resize.NearestNeighbor)
	}

	size := img.Bounds().Size()
	at := image.Pt(b.Min.X+(b.Dx()-size.X)/2, b.Min.Y+(b.Dy()-size.Y)/2)
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(size)}, img, img.Bounds().Min, draw.Over)
}

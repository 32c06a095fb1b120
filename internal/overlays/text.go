package overlays

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

var ErrNotText = errors.New("item is not a text item")

const (
	defaultFontSize   = 48
	defaultLineHeight = 1.2
	maxFontSize       = 200
	edgeMargin        = 0.1
)

// DefaultStyle is applied under every item's own style
var DefaultStyle = timeline.TextStyle{
	FontSize:   defaultFontSize,
	Color:      "#ffffff",
	Background: "transparent",
	Padding:    10,
	Position:   timeline.PositionCenter,
	Align:      "center",
	LineHeight: defaultLineHeight,
}

// TextRenderer rasterizes text items onto the output surface. Output only
// depends on the item; faces are cached per size. Font faces are not safe
// for concurrent use, so Draw and Measure hold mu for their whole run.
type TextRenderer struct {
	logger zerolog.Logger
	font   *opentype.Font
	base   timeline.TextStyle

	mu    sync.Mutex
	faces map[float64]font.Face
}

// NewTextRenderer parses the bundled Go Regular font. base fills fields the
// item's style leaves empty; pass DefaultStyle when there is no config.
func NewTextRenderer(logger zerolog.Logger, base timeline.TextStyle) (*TextRenderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &TextRenderer{
		logger: logger.With().Str("component", "overlays").Logger(),
		font:   f,
		base:   Merge(base, DefaultStyle),
		faces:  make(map[float64]font.Face),
	}, nil
}

// faceLocked returns the cached face for size; r.mu must be held
func (r *TextRenderer) faceLocked(size float64) (font.Face, error) {
	if f, ok := r.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	r.faces[size] = f
	r.logger.Debug().Float64("size", size).Msg("font face created")
	return f, nil
}

// Close releases cached faces
func (r *TextRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for size, f := range r.faces {
		f.Close()
		delete(r.faces, size)
	}
	return nil
}

// Layout is the measured placement of a block of text
type Layout struct {
	Lines      []string
	Widths     []int
	LineHeight float64
	Bounds     image.Rectangle // background box including padding
}

// Draw renders item's text at its styled position on dst
func (r *TextRenderer) Draw(dst draw.Image, item *timeline.Item, _ float64) error {
	p, ok := item.Payload.(timeline.TextPayload)
	if !ok {
		return ErrNotText
	}
	if strings.TrimSpace(p.Text) == "" {
		return nil
	}

	style := Merge(p.Style, r.base)
	if err := ValidateStyle(style); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	face, err := r.faceLocked(style.FontSize)
	if err != nil {
		return err
	}

	fg, _ := ParseColor(style.Color)
	bg, _ := ParseColor(style.Background)
	var shadow color.NRGBA
	if style.ShadowColor != "" {
		shadow, _ = ParseColor(style.ShadowColor)
	}

	lay := r.layout(face, p.Text, style, dst.Bounds())
	metrics := face.Metrics()
	baselineShift := float64(metrics.Ascent-metrics.Descent) / 64 / 2

	if bg.A > 0 {
		draw.Draw(dst, lay.Bounds, image.NewUniform(bg), image.Point{}, draw.Over)
	}
	for i, line := range lay.Lines {
		x := lineX(lay, i, style)
		centre := float64(lay.Bounds.Min.Y) + style.Padding + lay.LineHeight*(float64(i)+0.5)
		baseline := centre + baselineShift
		if shadow.A > 0 && (style.ShadowDX != 0 || style.ShadowDY != 0) {
			drawString(dst, face, shadow, float64(x)+style.ShadowDX, baseline+style.ShadowDY, line)
		}
		drawString(dst, face, fg, float64(x), baseline, line)
	}
	return nil
}

func drawString(dst draw.Image, face font.Face, c color.Color, x, y float64, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}
	d.DrawString(s)
}

// Measure lays out text with style on a surface of the given size
func (r *TextRenderer) Measure(text string, style timeline.TextStyle, surface image.Rectangle) (Layout, error) {
	style = Merge(style, r.base)
	if err := ValidateStyle(style); err != nil {
		return Layout{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	face, err := r.faceLocked(style.FontSize)
	if err != nil {
		return Layout{}, err
	}
	return r.layout(face, text, style, surface), nil
}

func (r *TextRenderer) layout(face font.Face, text string, style timeline.TextStyle, surface image.Rectangle) Layout {
	maxWidth := style.MaxWidth
	if maxWidth <= 0 {
		maxWidth = float64(surface.Dx()) * 0.8
	}
	lines := wrap(face, text, maxWidth)

	lay := Layout{Lines: lines, LineHeight: style.FontSize * style.LineHeight}
	blockW := 0
	for _, l := range lines {
		w := font.MeasureString(face, l).Ceil()
		lay.Widths = append(lay.Widths, w)
		if w > blockW {
			blockW = w
		}
	}
	blockH := lay.LineHeight * float64(len(lines))
	boxW := float64(blockW) + 2*style.Padding
	boxH := blockH + 2*style.Padding

	ax, ay, halign, valign := anchor(style, surface)
	var left, top float64
	switch halign {
	case "left":
		left = ax
	case "right":
		left = ax - boxW
	default:
		left = ax - boxW/2
	}
	switch valign {
	case "top":
		top = ay
	case "bottom":
		top = ay - boxH
	default:
		top = ay - boxH/2
	}
	lay.Bounds = image.Rect(
		int(math.Round(left)), int(math.Round(top)),
		int(math.Round(left+boxW)), int(math.Round(top+boxH)),
	)
	return lay
}

// lineX places line i inside the block according to the text alignment
func lineX(lay Layout, i int, style timeline.TextStyle) int {
	inner := lay.Bounds.Dx() - 2*int(style.Padding)
	left := lay.Bounds.Min.X + int(style.Padding)
	switch style.Align {
	case "left":
		return left
	case "right":
		return left + inner - lay.Widths[i]
	default:
		return left + (inner-lay.Widths[i])/2
	}
}

// anchor resolves a position to a point on the surface and the side of
// the text block that sits on it
func anchor(style timeline.TextStyle, b image.Rectangle) (x, y float64, halign, valign string) {
	w, h := float64(b.Dx()), float64(b.Dy())
	ox, oy := float64(b.Min.X), float64(b.Min.Y)
	near, far := edgeMargin, 1-edgeMargin

	switch style.Position {
	case timeline.PositionTop:
		return ox + w/2, oy + h*near, "center", "top"
	case timeline.PositionBottom:
		return ox + w/2, oy + h*far, "center", "bottom"
	case timeline.PositionLeft:
		return ox + w*near, oy + h/2, "left", "middle"
	case timeline.PositionRight:
		return ox + w*far, oy + h/2, "right", "middle"
	case timeline.PositionTopLeft:
		return ox + w*near, oy + h*near, "left", "top"
	case timeline.PositionTopRight:
		return ox + w*far, oy + h*near, "right", "top"
	case timeline.PositionBottomLeft:
		return ox + w*near, oy + h*far, "left", "bottom"
	case timeline.PositionBottomRight:
		return ox + w*far, oy + h*far, "right", "bottom"
	case timeline.PositionCustom:
		return ox + w*style.X/100, oy + h*style.Y/100, "center", "middle"
	}
	return ox + w/2, oy + h/2, "center", "middle"
}

// wrap breaks text on spaces so no line exceeds maxWidth unless a single
// word is wider. Explicit newlines always break.
func wrap(face font.Face, text string, maxWidth float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			candidate := current + " " + word
			if float64(font.MeasureString(face, candidate).Ceil()) <= maxWidth {
				current = candidate
				continue
			}
			lines = append(lines, current)
			current = word
		}
		lines = append(lines, current)
	}
	return lines
}

// ValidateStyle checks font size bounds and that every colour parses
func ValidateStyle(style timeline.TextStyle) error {
	if style.FontSize <= 0 || style.FontSize > maxFontSize {
		return fmt.Errorf("font size %v out of range (0, %d]", style.FontSize, maxFontSize)
	}
	if style.LineHeight <= 0 {
		return fmt.Errorf("line height must be positive")
	}
	for name, c := range map[string]string{
		"color":        style.Color,
		"background":   style.Background,
		"shadow color": style.ShadowColor,
	} {
		if c == "" {
			continue
		}
		if _, err := ParseColor(c); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

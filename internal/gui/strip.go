package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/slopedit/internal/playback"
	"github.com/kikiluvv/slopedit/internal/timeline"
)

const (
	rulerHeight = 24
	laneHeight  = 36
	lanePad     = 4
	// edgeGrab is how close to an item edge a drag resizes instead of moving
	edgeGrab    = 6
	minStripLen = 600
)

var (
	laneColor     = color.NRGBA{R: 40, G: 40, B: 44, A: 255}
	majorTick     = color.NRGBA{R: 220, G: 220, B: 220, A: 255}
	minorTick     = color.NRGBA{R: 120, G: 120, B: 120, A: 255}
	playheadColor = color.NRGBA{R: 255, G: 64, B: 64, A: 255}
	selectedColor = color.NRGBA{R: 255, G: 200, B: 0, A: 255}
	kindColors    = map[timeline.Kind]color.NRGBA{
		timeline.KindVideo: {R: 66, G: 133, B: 244, A: 255},
		timeline.KindAudio: {R: 52, G: 168, B: 83, A: 255},
		timeline.KindText:  {R: 171, G: 71, B: 188, A: 255},
	}
)

type zone int

const (
	zoneNone zone = iota
	zoneRuler
	zoneLane
)

// hit describes what lies under a pointer position
type hit struct {
	zone zone
	kind timeline.Kind
	item *timeline.Item
	edge timeline.Edge
}

// strip draws the ruler, the three lanes and the playhead straight from the
// timeline model and turns taps and drags into model calls
type strip struct {
	widget.BaseWidget

	logger zerolog.Logger
	tl     *timeline.Timeline
	eng    *playback.Engine
	// locked blocks editing, e.g. while exporting
	locked func() bool

	dragging bool
	renderer *stripRenderer
}

func newStrip(logger zerolog.Logger, eng *playback.Engine, locked func() bool) *strip {
	s := &strip{
		logger: logger,
		tl:     eng.Timeline(),
		eng:    eng,
		locked: locked,
	}
	s.ExtendBaseWidget(s)
	return s
}

func (s *strip) CreateRenderer() fyne.WidgetRenderer {
	r := &stripRenderer{s: s, playhead: canvas.NewLine(playheadColor)}
	r.playhead.StrokeWidth = 2
	r.rebuild(s.Size())
	s.renderer = r
	return r
}

// movePlayhead follows the timeline playhead without a full rebuild
func (s *strip) movePlayhead() {
	if s.renderer != nil {
		s.renderer.movePlayhead()
	}
}

// hitAt resolves a position in content coordinates
func (s *strip) hitAt(x, y float32) hit {
	if y < 0 || x < 0 {
		return hit{}
	}
	if y < rulerHeight {
		return hit{zone: zoneRuler}
	}
	kind, ok := laneAt(y)
	if !ok {
		return hit{}
	}
	h := hit{zone: zoneLane, kind: kind}
	item, ok := s.tl.HitTest(kind, float64(x))
	if !ok {
		return h
	}
	h.item = item
	if g, ok := s.tl.Geometry(item.ID); ok {
		h.edge = edgeAt(g, float64(x))
	}
	return h
}

// laneAt maps a y position below the ruler to its track
func laneAt(y float32) (timeline.Kind, bool) {
	i := int((y - rulerHeight) / laneHeight)
	if y < rulerHeight || i >= len(timeline.Kinds) {
		return "", false
	}
	return timeline.Kinds[i], true
}

// edgeAt reports whether x grabs an edge of g. Narrow items prefer the
// right edge so they can always be extended.
func edgeAt(g timeline.Geometry, x float64) timeline.Edge {
	if g.Right()-x <= edgeGrab {
		return timeline.EdgeRight
	}
	if x-g.Left <= edgeGrab {
		return timeline.EdgeLeft
	}
	return ""
}

// Tapped seeks on the ruler and selects in the lanes
func (s *strip) Tapped(ev *fyne.PointEvent) {
	if s.locked() {
		return
	}
	h := s.hitAt(ev.Position.X, ev.Position.Y)
	switch {
	case h.zone == zoneRuler:
		s.eng.Seek(s.tl.ToTime(float64(ev.Position.X)))
	case h.item != nil:
		if err := s.tl.Select(h.item.ID); err != nil {
			s.logger.Debug().Err(err).Msg("select failed")
		}
	case h.zone == zoneLane:
		s.tl.Deselect()
		s.Refresh()
	}
}

// Dragged starts a gesture on the first event and feeds it afterwards
func (s *strip) Dragged(ev *fyne.DragEvent) {
	x := float64(ev.Position.X)
	if !s.dragging {
		if s.locked() {
			return
		}
		// the gesture starts where the pointer went down
		h := s.hitAt(ev.Position.X-ev.Dragged.DX, ev.Position.Y-ev.Dragged.DY)
		start := x - float64(ev.Dragged.DX)
		switch {
		case h.zone == zoneRuler:
			s.eng.Seek(s.tl.ToTime(x))
			return
		case h.item == nil || h.item.Kind == timeline.KindVideo:
			return
		}
		s.tl.Select(h.item.ID)

		var err error
		if h.edge != "" {
			err = s.tl.BeginResize(h.item.ID, h.edge, start)
		} else {
			err = s.tl.BeginDrag(h.item.ID, start)
		}
		if err != nil {
			s.logger.Debug().Err(err).Msg("gesture refused")
			return
		}
		s.dragging = true
	}

	switch s.tl.Gesture().(type) {
	case timeline.Dragging:
		s.tl.UpdateDrag(x)
	case timeline.Resizing:
		s.tl.UpdateResize(x)
	}
	s.Refresh()
}

func (s *strip) DragEnd() {
	if !s.dragging {
		return
	}
	s.dragging = false
	switch s.tl.Gesture().(type) {
	case timeline.Dragging:
		s.tl.EndDrag()
	case timeline.Resizing:
		s.tl.EndResize()
	}
	s.Refresh()
}

func (s *strip) contentSize() fyne.Size {
	w := float32(s.tl.ContentWidth())
	if w < minStripLen {
		w = minStripLen
	}
	return fyne.NewSize(w, rulerHeight+laneHeight*float32(len(timeline.Kinds)))
}

type stripRenderer struct {
	s        *strip
	objects  []fyne.CanvasObject
	playhead *canvas.Line
	height   float32
}

func (r *stripRenderer) Layout(size fyne.Size) {
	r.rebuild(size)
}

func (r *stripRenderer) MinSize() fyne.Size {
	return r.s.contentSize()
}

func (r *stripRenderer) Refresh() {
	r.rebuild(r.s.Size())
	canvas.Refresh(r.s)
}

// movePlayhead repositions only the playhead line
func (r *stripRenderer) movePlayhead() {
	x := float32(r.s.tl.PlayheadCoord())
	r.playhead.Position1 = fyne.NewPos(x, 0)
	r.playhead.Position2 = fyne.NewPos(x, r.height)
	canvas.Refresh(r.playhead)
}

func (r *stripRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *stripRenderer) Destroy() {}

func (r *stripRenderer) rebuild(size fyne.Size) {
	tl := r.s.tl
	content := r.s.contentSize()
	if size.Width < content.Width {
		size.Width = content.Width
	}
	r.height = content.Height
	objs := make([]fyne.CanvasObject, 0, 64)

	for i := range timeline.Kinds {
		lane := canvas.NewRectangle(laneColor)
		lane.Move(fyne.NewPos(0, rulerHeight+float32(i)*laneHeight+1))
		lane.Resize(fyne.NewSize(size.Width, laneHeight-2))
		objs = append(objs, lane)
	}

	for _, tick := range tl.Ruler() {
		x := float32(tick.Coord)
		c, top := minorTick, float32(rulerHeight/2)
		if tick.Major {
			c, top = majorTick, 4
		}
		line := canvas.NewLine(c)
		line.Position1 = fyne.NewPos(x, top)
		line.Position2 = fyne.NewPos(x, rulerHeight)
		label := canvas.NewText(tick.Label, c)
		label.TextSize = theme.CaptionTextSize()
		if !tick.Major {
			label.TextSize *= 0.8
		}
		label.Move(fyne.NewPos(x+2, 0))
		objs = append(objs, line, label)
	}

	selected, hasSel := tl.Selected()
	for i, kind := range timeline.Kinds {
		y := rulerHeight + float32(i)*laneHeight + lanePad
		for _, item := range tl.Items(kind) {
			g, ok := tl.Geometry(item.ID)
			if !ok {
				continue
			}
			box := canvas.NewRectangle(kindColors[kind])
			box.CornerRadius = 3
			if hasSel && selected.ID == item.ID {
				box.StrokeColor = selectedColor
				box.StrokeWidth = 2
			}
			box.Move(fyne.NewPos(float32(g.Left), y))
			box.Resize(fyne.NewSize(float32(g.Width), laneHeight-2*lanePad))

			name := canvas.NewText(item.Name, color.White)
			name.TextSize = theme.CaptionTextSize()
			name.Move(fyne.NewPos(float32(g.Left)+4, y+4))
			objs = append(objs, box, name)
		}
	}

	objs = append(objs, r.playhead)
	r.objects = objs
	r.movePlayhead()
}

package timeline

import "math"

// Geometry is an item's derived placement in coordinate space
type Geometry struct {
	Left  float64
	Width float64
}

// Right returns Left+Width
func (g Geometry) Right() float64 {
	return g.Left + g.Width
}

// ToCoord maps seconds to coordinate units at the current zoom
func (t *Timeline) ToCoord(seconds float64) float64 {
	return seconds * t.pps
}

// ToTime maps coordinate units back to seconds at the current zoom
func (t *Timeline) ToTime(coord float64) float64 {
	return coord / t.pps
}

func (t *Timeline) Zoom() float64 {
	return t.zoom
}

func (t *Timeline) PixelsPerSecond() float64 {
	return t.pps
}

// ContentWidth is the coordinate extent of the whole composition
func (t *Timeline) ContentWidth() float64 {
	return t.ToCoord(t.duration)
}

// SetZoom clamps factor to the configured range and recomputes the scale.
// Items keep their time fields; only derived coordinates change. An active
// gesture is rescaled so it keeps tracking the same instants.
func (t *Timeline) SetZoom(factor float64) {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return
	}
	factor = math.Max(t.cfg.MinZoom, math.Min(t.cfg.MaxZoom, factor))
	oldPPS := t.pps
	t.zoom = factor
	t.pps = t.cfg.BasePixelsPerSecond * factor

	ratio := t.pps / oldPPS
	switch g := t.gesture.(type) {
	case Dragging:
		g.Offset *= ratio
		t.gesture = g
	case Resizing:
		g.StartPointer *= ratio
		g.StartLeft *= ratio
		g.StartWidth *= ratio
		g.Left *= ratio
		g.Width *= ratio
		t.gesture = g
	}

	t.logger.Debug().Float64("zoom", t.zoom).Float64("pps", t.pps).Msg("timeline zoom changed")
	t.notify(func(o Observer) { o.LayoutChanged() })
}

// ZoomBy multiplies the current zoom, as a ctrl+wheel step does
func (t *Timeline) ZoomBy(step float64) {
	t.SetZoom(t.zoom * step)
}

// Geometry returns the derived placement of an item. While the item is
// being resized the live gesture geometry is returned instead.
func (t *Timeline) Geometry(id ID) (Geometry, bool) {
	if g, ok := t.gesture.(Resizing); ok && g.Item == id {
		return Geometry{Left: g.Left, Width: g.Width}, true
	}
	item, ok := t.Item(id)
	if !ok {
		return Geometry{}, false
	}
	return t.layout(item), true
}

func (t *Timeline) layout(item *Item) Geometry {
	return Geometry{Left: t.ToCoord(item.Start), Width: t.ToCoord(item.Duration)}
}

// HitTest finds the topmost item of kind under coord. Later items draw on
// top, so the search runs backwards.
func (t *Timeline) HitTest(kind Kind, coord float64) (*Item, bool) {
	items := t.tracks[kind]
	for i := len(items) - 1; i >= 0; i-- {
		g, _ := t.Geometry(items[i].ID)
		if coord >= g.Left && coord <= g.Right() {
			return items[i], true
		}
	}
	return nil, false
}

package timeline

import "math"

// Edge selects which side of an item a resize gesture moves
type Edge string

const (
	EdgeLeft  Edge = "left"
	EdgeRight Edge = "right"
)

// Gesture is the pointer interaction state: Idle, Dragging or Resizing.
// Exactly one variant is active for the whole timeline.
type Gesture interface {
	gesture()
}

// Idle means no gesture is in progress
type Idle struct{}

// Dragging moves an item; Offset is the pointer distance from the item's left edge
type Dragging struct {
	Item   ID
	Offset float64
}

// Resizing moves one edge of an item. Start* hold the geometry captured at
// gesture start; Left and Width are the live result.
type Resizing struct {
	Item         ID
	Edge         Edge
	StartPointer float64
	StartLeft    float64
	StartWidth   float64
	Left         float64
	Width        float64
}

func (Idle) gesture()     {}
func (Dragging) gesture() {}
func (Resizing) gesture() {}

// Gesture returns the current interaction state
func (t *Timeline) Gesture() Gesture {
	return t.gesture
}

func (t *Timeline) idle() bool {
	_, ok := t.gesture.(Idle)
	return ok
}

// BeginDrag starts moving id, remembering where the pointer grabbed it
func (t *Timeline) BeginDrag(id ID, pointer float64) error {
	if !t.idle() {
		return ErrGestureActive
	}
	item, ok := t.Item(id)
	if !ok {
		return ErrUnknownItem
	}
	if math.IsNaN(pointer) {
		return ErrInvalidItem
	}

	t.gesture = Dragging{Item: id, Offset: pointer - t.ToCoord(item.Start)}
	t.logger.Debug().Str("item", string(id)).Msg("drag started")
	return nil
}

// UpdateDrag moves the dragged item so its left edge follows the pointer.
// The left edge is clamped to [0, ContentWidth-itemWidth] and the item's
// start time is updated immediately.
func (t *Timeline) UpdateDrag(pointer float64) error {
	g, ok := t.gesture.(Dragging)
	if !ok {
		return ErrNoGesture
	}
	item, ok := t.Item(g.Item)
	if !ok {
		t.gesture = Idle{}
		return ErrUnknownItem
	}
	if math.IsNaN(pointer) {
		return ErrInvalidItem
	}

	left := pointer - g.Offset
	maxLeft := t.ContentWidth() - t.ToCoord(item.Duration)
	left = math.Max(0, math.Min(left, maxLeft))
	item.Start = t.ToTime(left)
	return nil
}

// EndDrag finishes the drag and reports the item's final start time
func (t *Timeline) EndDrag() error {
	g, ok := t.gesture.(Dragging)
	if !ok {
		return ErrNoGesture
	}
	t.gesture = Idle{}

	item, ok := t.Item(g.Item)
	if !ok {
		return ErrUnknownItem
	}
	t.logger.Debug().Str("item", string(item.ID)).Float64("start", item.Start).Msg("drag ended")
	t.notify(func(o Observer) { o.ItemMoved(item.ID, item.Start) })
	return nil
}

// BeginResize starts moving one edge of id
func (t *Timeline) BeginResize(id ID, edge Edge, pointer float64) error {
	if !t.idle() {
		return ErrGestureActive
	}
	if edge != EdgeLeft && edge != EdgeRight {
		return ErrInvalidItem
	}
	item, ok := t.Item(id)
	if !ok {
		return ErrUnknownItem
	}
	if math.IsNaN(pointer) {
		return ErrInvalidItem
	}

	geom := t.layout(item)
	t.gesture = Resizing{
		Item:         id,
		Edge:         edge,
		StartPointer: pointer,
		StartLeft:    geom.Left,
		StartWidth:   geom.Width,
		Left:         geom.Left,
		Width:        geom.Width,
	}
	t.logger.Debug().Str("item", string(id)).Str("edge", string(edge)).Msg("resize started")
	return nil
}

// UpdateResize recomputes the live geometry from the pointer. Dragging the
// left edge moves the start and changes the width oppositely; the right edge
// only changes the width. Width never drops below MinItemWidth.
func (t *Timeline) UpdateResize(pointer float64) error {
	g, ok := t.gesture.(Resizing)
	if !ok {
		return ErrNoGesture
	}
	if math.IsNaN(pointer) {
		return ErrInvalidItem
	}

	delta := pointer - g.StartPointer
	minWidth := t.cfg.MinItemWidth
	switch g.Edge {
	case EdgeLeft:
		g.Left = math.Max(0, g.StartLeft+delta)
		g.Width = math.Max(minWidth, g.StartWidth-delta)
	case EdgeRight:
		g.Width = math.Max(minWidth, g.StartWidth+delta)
	}
	t.gesture = g
	return nil
}

// EndResize converts the final geometry back to start/duration and reports it
func (t *Timeline) EndResize() error {
	g, ok := t.gesture.(Resizing)
	if !ok {
		return ErrNoGesture
	}
	t.gesture = Idle{}

	item, ok := t.Item(g.Item)
	if !ok {
		return ErrUnknownItem
	}
	item.Start = t.ToTime(g.Left)
	item.Duration = t.ToTime(g.Width)

	t.logger.Debug().
		Str("item", string(item.ID)).
		Float64("start", item.Start).
		Float64("duration", item.Duration).
		Msg("item timing updated")
	t.notify(func(o Observer) { o.ItemRetimed(item.ID, item.Start, item.Duration) })
	return nil
}

// CancelGesture abandons any gesture without notifying. A cancelled drag
// keeps the start time it had reached; a cancelled resize changes nothing.
func (t *Timeline) CancelGesture() {
	t.gesture = Idle{}
}

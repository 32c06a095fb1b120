package timeline

import (
	"errors"
	"math"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidItem   = errors.New("invalid item")
	ErrUnknownItem   = errors.New("unknown item")
	ErrGestureActive = errors.New("gesture already active")
	ErrNoGesture     = errors.New("no active gesture")
)

// Key names understood by HandleKey
const (
	KeyDelete     = "Delete"
	KeyBackspace  = "Backspace"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
)

// Config controls the coordinate mapping, gesture limits and ruler layout
type Config struct {
	BasePixelsPerSecond float64
	MinZoom             float64
	MaxZoom             float64
	MinItemWidth        float64
	MinTickSpacing      float64
	TargetTicks         int
	MaxTicks            int
	NudgeStep           float64
}

// DefaultConfig returns the stock timeline settings
func DefaultConfig() Config {
	return Config{
		BasePixelsPerSecond: 100,
		MinZoom:             0.1,
		MaxZoom:             10,
		MinItemWidth:        20,
		MinTickSpacing:      60,
		TargetTicks:         20,
		MaxTicks:            500,
		NudgeStep:           0.1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BasePixelsPerSecond <= 0 {
		c.BasePixelsPerSecond = d.BasePixelsPerSecond
	}
	if c.MinZoom <= 0 {
		c.MinZoom = d.MinZoom
	}
	if c.MaxZoom < c.MinZoom {
		c.MaxZoom = math.Max(d.MaxZoom, c.MinZoom)
	}
	if c.MinItemWidth <= 0 {
		c.MinItemWidth = d.MinItemWidth
	}
	if c.MinTickSpacing <= 0 {
		c.MinTickSpacing = d.MinTickSpacing
	}
	if c.TargetTicks <= 0 {
		c.TargetTicks = d.TargetTicks
	}
	if c.MaxTicks <= 0 {
		c.MaxTicks = d.MaxTicks
	}
	if c.NudgeStep <= 0 {
		c.NudgeStep = d.NudgeStep
	}
	return c
}

// Timeline owns the placed items of a composition, the time/coordinate
// mapping and the pointer interaction state. It is not safe for concurrent
// use; all calls are expected from the goroutine that dispatches input.
type Timeline struct {
	logger zerolog.Logger
	cfg    Config

	tracks   map[Kind][]*Item
	duration float64
	playhead float64
	zoom     float64
	pps      float64

	selected ID
	gesture  Gesture

	observers []subscription
	nextSub   int
}

// New creates an empty timeline at zoom 1
func New(logger zerolog.Logger, cfg Config) *Timeline {
	cfg = cfg.withDefaults()
	return &Timeline{
		logger:  logger.With().Str("component", "timeline").Logger(),
		cfg:     cfg,
		tracks:  make(map[Kind][]*Item),
		zoom:    1,
		pps:     cfg.BasePixelsPerSecond,
		gesture: Idle{},
	}
}

// Config returns the effective settings
func (t *Timeline) Config() Config {
	return t.cfg
}

// AddItem places a new item built from payload. Video items always start at
// 0 and replace the single existing video item; audio and text items are
// appended at start. The payload's length becomes the item's duration.
func (t *Timeline) AddItem(kind Kind, payload Payload, start float64) (*Item, error) {
	if payload == nil || !kind.Valid() || payload.Kind() != kind {
		return nil, ErrInvalidItem
	}
	if kind == KindVideo {
		start = 0
	}
	duration := payload.Length()
	if !validSpan(start, duration) {
		return nil, ErrInvalidItem
	}

	item := &Item{
		ID:       newID(),
		Kind:     kind,
		Name:     itemName(payload),
		Start:    math.Max(0, start),
		Duration: duration,
		Payload:  payload,
	}

	if kind == KindVideo {
		replaced := t.tracks[KindVideo]
		for _, old := range replaced {
			t.forget(old)
		}
		t.tracks[KindVideo] = []*Item{item}
		t.duration = duration
		t.playhead = math.Min(t.playhead, t.duration)
		// observers see the new track when told about the old item
		for _, old := range replaced {
			t.notify(func(o Observer) { o.ItemDeleted(old) })
		}
	} else {
		t.tracks[kind] = append(t.tracks[kind], item)
	}

	t.logger.Info().
		Str("item", string(item.ID)).
		Str("kind", string(kind)).
		Float64("start", item.Start).
		Float64("duration", item.Duration).
		Msg("item added")

	t.notify(func(o Observer) { o.ItemAdded(item) })
	if kind == KindVideo {
		t.notify(func(o Observer) { o.LayoutChanged() })
	}
	return item, nil
}

// Item looks up an item by id
func (t *Timeline) Item(id ID) (*Item, bool) {
	for _, k := range Kinds {
		for _, it := range t.tracks[k] {
			if it.ID == id {
				return it, true
			}
		}
	}
	return nil, false
}

// Items returns a copy of the track's items in insertion order
func (t *Timeline) Items(kind Kind) []*Item {
	items := t.tracks[kind]
	out := make([]*Item, len(items))
	copy(out, items)
	return out
}

// Video returns the single video item, if any
func (t *Timeline) Video() *Item {
	if v := t.tracks[KindVideo]; len(v) > 0 {
		return v[0]
	}
	return nil
}

// ActiveAt returns the items of kind whose window contains at, in track order
func (t *Timeline) ActiveAt(kind Kind, at float64) []*Item {
	var out []*Item
	for _, it := range t.tracks[kind] {
		if it.Contains(at) {
			out = append(out, it)
		}
	}
	return out
}

// Duration is the composition's total duration
func (t *Timeline) Duration() float64 {
	return t.duration
}

// SetDuration overrides the total duration; negative values become 0
func (t *Timeline) SetDuration(d float64) {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return
	}
	t.duration = math.Max(0, d)
	t.playhead = math.Min(t.playhead, t.duration)
	t.logger.Debug().Float64("duration", t.duration).Msg("timeline duration set")
	t.notify(func(o Observer) { o.LayoutChanged() })
}

// SetPlayhead mirrors the engine's current time, clamped to [0, Duration]
func (t *Timeline) SetPlayhead(at float64) {
	if math.IsNaN(at) {
		return
	}
	t.playhead = math.Max(0, math.Min(at, t.duration))
}

func (t *Timeline) Playhead() float64 {
	return t.playhead
}

func (t *Timeline) PlayheadCoord() float64 {
	return t.ToCoord(t.playhead)
}

// Select makes id the single selected item and notifies observers
func (t *Timeline) Select(id ID) error {
	item, ok := t.Item(id)
	if !ok {
		return ErrUnknownItem
	}
	t.selected = id
	t.logger.Debug().Str("item", string(id)).Str("kind", string(item.Kind)).Msg("item selected")
	t.notify(func(o Observer) { o.ItemSelected(id, item.Kind) })
	return nil
}

// Deselect clears the selection without notification
func (t *Timeline) Deselect() {
	t.selected = ""
}

// Selected returns the selected item, if any
func (t *Timeline) Selected() (*Item, bool) {
	if t.selected == "" {
		return nil, false
	}
	return t.Item(t.selected)
}

// DeleteSelected removes the selected item. With nothing selected it does nothing.
func (t *Timeline) DeleteSelected() *Item {
	if t.selected == "" {
		return nil
	}
	return t.Delete(t.selected)
}

// Delete removes an item and any interaction state that references it.
// Unknown ids are ignored and return nil.
func (t *Timeline) Delete(id ID) *Item {
	item, ok := t.Item(id)
	if !ok {
		return nil
	}

	items := t.tracks[item.Kind]
	for i, it := range items {
		if it.ID == id {
			t.tracks[item.Kind] = append(items[:i:i], items[i+1:]...)
			break
		}
	}
	t.forget(item)

	if item.Kind == KindVideo {
		t.duration = 0
		t.playhead = 0
	}

	t.logger.Info().Str("item", string(id)).Str("kind", string(item.Kind)).Msg("item deleted")
	t.notify(func(o Observer) { o.ItemDeleted(item) })
	if item.Kind == KindVideo {
		t.notify(func(o Observer) { o.LayoutChanged() })
	}
	return item
}

// forget drops selection and gesture state that point at item
func (t *Timeline) forget(item *Item) {
	if t.selected == item.ID {
		t.selected = ""
	}
	if g, ok := t.gesture.(Dragging); ok && g.Item == item.ID {
		t.gesture = Idle{}
	}
	if g, ok := t.gesture.(Resizing); ok && g.Item == item.ID {
		t.gesture = Idle{}
	}
}

// SetTiming edits an item's time fields directly
func (t *Timeline) SetTiming(id ID, start, duration float64) error {
	item, ok := t.Item(id)
	if !ok {
		return ErrUnknownItem
	}
	if !validSpan(start, duration) {
		return ErrInvalidItem
	}
	item.Start = math.Max(0, start)
	item.Duration = duration
	t.notify(func(o Observer) { o.ItemRetimed(id, item.Start, item.Duration) })
	return nil
}

// Nudge shifts the selected item by delta seconds, never before 0
func (t *Timeline) Nudge(delta float64) bool {
	item, ok := t.Selected()
	if !ok || math.IsNaN(delta) {
		return false
	}
	item.Start = math.Max(0, item.Start+delta)
	t.notify(func(o Observer) { o.ItemMoved(item.ID, item.Start) })
	return true
}

// HandleKey applies the keyboard shortcuts that act on the selection and
// reports whether the key was consumed
func (t *Timeline) HandleKey(key string) bool {
	if t.selected == "" {
		return false
	}
	switch key {
	case KeyDelete, KeyBackspace:
		return t.DeleteSelected() != nil
	case KeyArrowLeft:
		return t.Nudge(-t.cfg.NudgeStep)
	case KeyArrowRight:
		return t.Nudge(t.cfg.NudgeStep)
	}
	return false
}

// Clear removes every item and resets selection and gestures
func (t *Timeline) Clear() {
	t.tracks = make(map[Kind][]*Item)
	t.selected = ""
	t.gesture = Idle{}
	t.duration = 0
	t.playhead = 0
	t.logger.Info().Msg("all tracks cleared")
	t.notify(func(o Observer) { o.LayoutChanged() })
}

package timeline

import (
	"math"

	"github.com/google/uuid"
)

// Kind identifies the track an item lives on
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindText  Kind = "text"
)

// Kinds lists track kinds in lane order
var Kinds = []Kind{KindVideo, KindAudio, KindText}

// Valid reports whether k is one of the known track kinds
func (k Kind) Valid() bool {
	switch k {
	case KindVideo, KindAudio, KindText:
		return true
	}
	return false
}

// ID is an opaque item identifier, stable for the item's lifetime
type ID string

func newID() ID {
	return ID(uuid.NewString())
}

// Item is a timed object placed on a track. Start and Duration are in
// seconds and are the source of truth; coordinates are always derived.
type Item struct {
	ID       ID
	Kind     Kind
	Name     string
	Start    float64
	Duration float64
	Payload  Payload
}

// End returns Start+Duration
func (i *Item) End() float64 {
	return i.Start + i.Duration
}

// Contains reports whether t falls in the half-open window [Start, End)
func (i *Item) Contains(t float64) bool {
	return t >= i.Start && t < i.End()
}

// Payload is the kind-specific data carried by an item
type Payload interface {
	Kind() Kind
	Length() float64
}

// VideoPayload references a loaded video source
type VideoPayload struct {
	Ref      string
	Duration float64
	Width    int
	Height   int
}

func (VideoPayload) Kind() Kind { return KindVideo }

func (p VideoPayload) Length() float64 { return p.Duration }

// Samples is decoded audio owned by whichever mixer plays it
type Samples interface {
	Len() int
}

// AudioPayload references decoded samples plus mix parameters
type AudioPayload struct {
	Ref      string
	Samples  Samples
	Duration float64
	Volume   float64
	FadeIn   float64
	FadeOut  float64
	Muted    bool
}

func (AudioPayload) Kind() Kind { return KindAudio }

func (p AudioPayload) Length() float64 { return p.Duration }

// Position names an anchor point on the output surface
type Position string

const (
	PositionCenter      Position = "center"
	PositionTop         Position = "top"
	PositionBottom      Position = "bottom"
	PositionLeft        Position = "left"
	PositionRight       Position = "right"
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCustom      Position = "custom"
)

// TextStyle describes how a text overlay is rasterized. Colours are CSS-like
// strings ("#RRGGBB", "#RRGGBBAA", "rgba(...)", "transparent").
type TextStyle struct {
	FontSize    float64
	Color       string
	Background  string
	Padding     float64
	Position    Position
	X, Y        float64 // percent of the surface, used with PositionCustom
	Align       string  // left, center, right
	LineHeight  float64
	MaxWidth    float64 // 0 means 80% of the surface width
	ShadowColor string
	ShadowDX    float64
	ShadowDY    float64
}

// TextPayload is literal text content with its style
type TextPayload struct {
	Text     string
	Style    TextStyle
	Duration float64
}

func (TextPayload) Kind() Kind { return KindText }

func (p TextPayload) Length() float64 { return p.Duration }

func validSpan(start, duration float64) bool {
	if math.IsNaN(start) || math.IsInf(start, 0) {
		return false
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return false
	}
	return duration > 0
}

func itemName(p Payload) string {
	switch v := p.(type) {
	case VideoPayload:
		return v.Ref
	case AudioPayload:
		return v.Ref
	case TextPayload:
		r := []rune(v.Text)
		if len(r) > 20 {
			return string(r[:20]) + "..."
		}
		return v.Text
	}
	return ""
}

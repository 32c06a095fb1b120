package gui

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

func newTestTimeline(t *testing.T) (*timeline.Timeline, *timeline.Item) {
	t.Helper()
	tl := timeline.New(zerolog.Nop(), timeline.DefaultConfig())
	if _, err := tl.AddItem(timeline.KindVideo, timeline.VideoPayload{Ref: "v.mp4", Duration: 20}, 0); err != nil {
		t.Fatalf("add video: %v", err)
	}
	text, err := tl.AddItem(timeline.KindText, timeline.TextPayload{Text: "hi", Duration: 2}, 3)
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	return tl, text
}

func TestLaneAt(t *testing.T) {
	tests := []struct {
		y    float32
		want timeline.Kind
		ok   bool
	}{
		{10, "", false},
		{rulerHeight + 1, timeline.KindVideo, true},
		{rulerHeight + laneHeight + 1, timeline.KindAudio, true},
		{rulerHeight + 2*laneHeight + 1, timeline.KindText, true},
		{rulerHeight + 3*laneHeight + 1, "", false},
	}
	for _, tt := range tests {
		got, ok := laneAt(tt.y)
		if got != tt.want || ok != tt.ok {
			t.Errorf("laneAt(%v) = %q, %v; want %q, %v", tt.y, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEdgeAt(t *testing.T) {
	g := timeline.Geometry{Left: 300, Width: 200}
	tests := []struct {
		x    float64
		want timeline.Edge
	}{
		{300, timeline.EdgeLeft},
		{306, timeline.EdgeLeft},
		{307, ""},
		{400, ""},
		{494, timeline.EdgeRight},
		{500, timeline.EdgeRight},
	}
	for _, tt := range tests {
		if got := edgeAt(g, tt.x); got != tt.want {
			t.Errorf("edgeAt(%v) = %q, want %q", tt.x, got, tt.want)
		}
	}

	narrow := timeline.Geometry{Left: 0, Width: 10}
	if got := edgeAt(narrow, 5); got != timeline.EdgeRight {
		t.Errorf("narrow item should prefer the right edge, got %q", got)
	}
}

func TestHitAt(t *testing.T) {
	tl, text := newTestTimeline(t)
	s := &strip{tl: tl}
	textY := float32(rulerHeight + 2*laneHeight + 10)

	if h := s.hitAt(50, 5); h.zone != zoneRuler {
		t.Errorf("ruler hit = %+v", h)
	}

	// text item spans coords 300..500 at the default zoom
	h := s.hitAt(400, textY)
	if h.zone != zoneLane || h.item == nil || h.item.ID != text.ID || h.edge != "" {
		t.Errorf("body hit = %+v", h)
	}
	if h := s.hitAt(302, textY); h.edge != timeline.EdgeLeft {
		t.Errorf("left edge hit = %+v", h)
	}
	if h := s.hitAt(498, textY); h.edge != timeline.EdgeRight {
		t.Errorf("right edge hit = %+v", h)
	}
	if h := s.hitAt(800, textY); h.zone != zoneLane || h.item != nil {
		t.Errorf("empty lane hit = %+v", h)
	}
	if h := s.hitAt(-1, textY); h.zone != zoneNone {
		t.Errorf("outside hit = %+v", h)
	}

	tl.SetZoom(2)
	if h := s.hitAt(700, textY); h.item == nil || h.item.ID != text.ID {
		t.Errorf("hit after zoom = %+v", h)
	}
}

func TestLabels(t *testing.T) {
	if got := clockLabel(65, 3600); got != "01:05 / 01:00:00" {
		t.Errorf("clockLabel = %q", got)
	}
	if got := zoomText(1.25); got != "125%" {
		t.Errorf("zoomText = %q", got)
	}
	item := &timeline.Item{Kind: timeline.KindText, Name: "hello", Start: 2, Duration: 3}
	if got := rowText(item); got != "T  hello  00:02-00:05" {
		t.Errorf("rowText = %q", got)
	}
}

package timeline

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

const eps = 1e-9

func newTestTimeline(t *testing.T) *Timeline {
	t.Helper()
	return New(zerolog.New(zerolog.NewTestWriter(t)), DefaultConfig())
}

// withVideo returns a timeline holding one video item of the given length
func withVideo(t *testing.T, duration float64) (*Timeline, *Item) {
	t.Helper()
	tl := newTestTimeline(t)
	v, err := tl.AddItem(KindVideo, VideoPayload{Ref: "clip.mp4", Duration: duration, Width: 1280, Height: 720}, 0)
	if err != nil {
		t.Fatalf("add video: %v", err)
	}
	return tl, v
}

func addText(t *testing.T, tl *Timeline, start, duration float64) *Item {
	t.Helper()
	it, err := tl.AddItem(KindText, TextPayload{Text: "hello", Duration: duration}, start)
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	return it
}

type recorder struct {
	added    []ID
	deleted  []ID
	selected []ID
	moved    map[ID]float64
	retimed  map[ID][2]float64
	layouts  int
}

func newRecorder() *recorder {
	return &recorder{moved: map[ID]float64{}, retimed: map[ID][2]float64{}}
}

func (r *recorder) ItemAdded(item *Item) { r.added = append(r.added, item.ID) }

func (r *recorder) ItemDeleted(item *Item) { r.deleted = append(r.deleted, item.ID) }

func (r *recorder) ItemSelected(id ID, _ Kind) { r.selected = append(r.selected, id) }

func (r *recorder) ItemMoved(id ID, start float64) { r.moved[id] = start }

func (r *recorder) ItemRetimed(id ID, s, d float64) { r.retimed[id] = [2]float64{s, d} }

func (r *recorder) LayoutChanged() { r.layouts++ }

func TestCoordRoundTrip(t *testing.T) {
	tl, _ := withVideo(t, 120)
	for _, zoom := range []float64{0.1, 0.37, 1, 2.5, 10} {
		tl.SetZoom(zoom)
		for _, sec := range []float64{0, 0.001, 1.5, 33.333, 119.999, 120} {
			got := tl.ToTime(tl.ToCoord(sec))
			if math.Abs(got-sec) > 1e-9 {
				t.Errorf("zoom %v: round trip of %v gave %v", zoom, sec, got)
			}
		}
	}
}

func TestZoomKeepsTimeFields(t *testing.T) {
	tl, v := withVideo(t, 60)
	txt := addText(t, tl, 12.5, 4)

	g1, _ := tl.Geometry(txt.ID)

	tl.SetZoom(3)
	g2, _ := tl.Geometry(txt.ID)
	if math.Abs(g2.Left-3*g1.Left) > eps {
		t.Errorf("left at zoom 3 = %v, want %v", g2.Left, 3*g1.Left)
	}

	tl.SetZoom(1)
	if txt.Start != 12.5 || txt.Duration != 4 {
		t.Errorf("text timing changed to %v/%v", txt.Start, txt.Duration)
	}
	if v.Start != 0 || v.Duration != 60 {
		t.Errorf("video timing changed to %v/%v", v.Start, v.Duration)
	}
	g3, _ := tl.Geometry(txt.ID)
	if g3 != g1 {
		t.Errorf("geometry after zoom back = %+v, want %+v", g3, g1)
	}
}

func TestSetZoomClamps(t *testing.T) {
	tl := newTestTimeline(t)

	tl.SetZoom(0.05)
	if tl.Zoom() != 0.1 {
		t.Errorf("zoom = %v, want 0.1", tl.Zoom())
	}
	if tl.PixelsPerSecond() != 10 {
		t.Errorf("pps = %v, want 10", tl.PixelsPerSecond())
	}

	tl.SetZoom(50)
	if tl.Zoom() != 10 {
		t.Errorf("zoom = %v, want 10", tl.Zoom())
	}

	tl.SetZoom(-1)
	tl.SetZoom(math.NaN())
	if tl.Zoom() != 10 {
		t.Errorf("invalid factor changed zoom to %v", tl.Zoom())
	}
}

func TestSetZoomNotifiesLayout(t *testing.T) {
	tl := newTestTimeline(t)
	rec := newRecorder()
	tl.Subscribe(rec)

	tl.SetZoom(2)
	tl.ZoomBy(1.5)
	if rec.layouts != 2 {
		t.Errorf("layout notifications = %d, want 2", rec.layouts)
	}
	if math.Abs(tl.Zoom()-3) > eps {
		t.Errorf("zoom = %v, want 3", tl.Zoom())
	}
}

func TestSingleVideoTrack(t *testing.T) {
	tl := newTestTimeline(t)
	rec := newRecorder()
	tl.Subscribe(rec)

	a, err := tl.AddItem(KindVideo, VideoPayload{Ref: "a.mp4", Duration: 10}, 0)
	if err != nil {
		t.Fatalf("add a: %v", err)
	}
	b, err := tl.AddItem(KindVideo, VideoPayload{Ref: "b.mp4", Duration: 25}, 7)
	if err != nil {
		t.Fatalf("add b: %v", err)
	}

	videos := tl.Items(KindVideo)
	if len(videos) != 1 || videos[0].ID != b.ID {
		t.Fatalf("video track = %v, want only b", videos)
	}
	if b.Start != 0 {
		t.Errorf("video start = %v, want 0", b.Start)
	}
	if tl.Duration() != 25 {
		t.Errorf("duration = %v, want 25", tl.Duration())
	}
	if len(rec.deleted) != 1 || rec.deleted[0] != a.ID {
		t.Errorf("deleted notifications = %v, want [%s]", rec.deleted, a.ID)
	}
}

func TestReplacedVideoGoneWhenDeleteNotified(t *testing.T) {
	tl, a := withVideo(t, 10)

	var seen []*Item
	var duration float64
	tl.Subscribe(ObserverFuncs{OnItemDeleted: func(item *Item) {
		if item.ID != a.ID {
			t.Errorf("deleted %s, want %s", item.ID, a.ID)
		}
		seen = tl.Items(KindVideo)
		duration = tl.Duration()
	}})

	b, err := tl.AddItem(KindVideo, VideoPayload{Ref: "b.mp4", Duration: 25}, 0)
	if err != nil {
		t.Fatalf("add b: %v", err)
	}
	if len(seen) != 1 || seen[0].ID != b.ID {
		t.Errorf("video track during delete notification = %v, want only b", seen)
	}
	if duration != 25 {
		t.Errorf("duration during delete notification = %v, want 25", duration)
	}
}

func TestAddItemRejectsInvalid(t *testing.T) {
	tl := newTestTimeline(t)

	cases := []struct {
		name    string
		kind    Kind
		payload Payload
		start   float64
	}{
		{"zero duration", KindText, TextPayload{Text: "x"}, 0},
		{"negative duration", KindAudio, AudioPayload{Duration: -2}, 0},
		{"kind mismatch", KindAudio, TextPayload{Text: "x", Duration: 1}, 0},
		{"unknown kind", Kind("subtitle"), TextPayload{Text: "x", Duration: 1}, 0},
		{"nil payload", KindText, nil, 0},
		{"nan start", KindText, TextPayload{Text: "x", Duration: 1}, math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tl.AddItem(tc.kind, tc.payload, tc.start); !errors.Is(err, ErrInvalidItem) {
				t.Errorf("err = %v, want ErrInvalidItem", err)
			}
		})
	}
	for _, k := range Kinds {
		if n := len(tl.Items(k)); n != 0 {
			t.Errorf("%s track has %d items after rejected adds", k, n)
		}
	}
}

func TestAddItemClampsNegativeStart(t *testing.T) {
	tl, _ := withVideo(t, 30)
	txt := addText(t, tl, -4, 2)
	if txt.Start != 0 {
		t.Errorf("start = %v, want 0", txt.Start)
	}
}

func TestActiveAtHalfOpen(t *testing.T) {
	tl, _ := withVideo(t, 10)
	txt := addText(t, tl, 2, 3)

	cases := map[float64]bool{1.9: false, 2.0: true, 3.5: true, 4.999: true, 5.0: false}
	for at, want := range cases {
		got := len(tl.ActiveAt(KindText, at)) == 1
		if got != want {
			t.Errorf("ActiveAt(%v) contains text = %v, want %v", at, got, want)
		}
	}
	if !txt.Contains(2) || txt.Contains(5) {
		t.Error("Contains disagrees with ActiveAt")
	}
}

func TestSelectNotifies(t *testing.T) {
	tl, v := withVideo(t, 10)
	txt := addText(t, tl, 1, 1)
	rec := newRecorder()
	tl.Subscribe(rec)

	if err := tl.Select(v.ID); err != nil {
		t.Fatalf("select video: %v", err)
	}
	if err := tl.Select(txt.ID); err != nil {
		t.Fatalf("select text: %v", err)
	}
	sel, ok := tl.Selected()
	if !ok || sel.ID != txt.ID {
		t.Errorf("selected = %v, want text", sel)
	}
	if len(rec.selected) != 2 {
		t.Errorf("selection notifications = %d, want 2", len(rec.selected))
	}
	if err := tl.Select("missing"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("select unknown err = %v", err)
	}
	if sel, _ := tl.Selected(); sel.ID != txt.ID {
		t.Error("failed select changed the selection")
	}
}

func TestDeleteSelectedWithoutSelection(t *testing.T) {
	tl, _ := withVideo(t, 10)
	addText(t, tl, 1, 1)

	if got := tl.DeleteSelected(); got != nil {
		t.Errorf("DeleteSelected with no selection returned %v", got)
	}
	if len(tl.Items(KindText)) != 1 {
		t.Error("item removed without selection")
	}
	if tl.Delete("nope") != nil {
		t.Error("deleting an unknown id returned an item")
	}
}

func TestDeleteSelectedClearsState(t *testing.T) {
	tl, _ := withVideo(t, 10)
	txt := addText(t, tl, 1, 1)
	rec := newRecorder()
	tl.Subscribe(rec)

	tl.Select(txt.ID)
	if err := tl.BeginDrag(txt.ID, 150); err != nil {
		t.Fatalf("begin drag: %v", err)
	}
	if got := tl.DeleteSelected(); got == nil || got.ID != txt.ID {
		t.Fatalf("deleted %v, want text", got)
	}
	if _, ok := tl.Selected(); ok {
		t.Error("selection survived delete")
	}
	if _, ok := tl.Gesture().(Idle); !ok {
		t.Errorf("gesture = %T, want Idle", tl.Gesture())
	}
	if len(rec.deleted) != 1 {
		t.Errorf("deleted notifications = %d, want 1", len(rec.deleted))
	}
	if tl.DeleteSelected() != nil {
		t.Error("second DeleteSelected was not a no-op")
	}
}

func TestDeleteVideoResetsDuration(t *testing.T) {
	tl, v := withVideo(t, 10)
	tl.SetPlayhead(4)
	tl.Delete(v.ID)
	if tl.Duration() != 0 || tl.Playhead() != 0 {
		t.Errorf("duration/playhead = %v/%v, want 0/0", tl.Duration(), tl.Playhead())
	}
	if tl.Video() != nil {
		t.Error("video still present")
	}
}

func TestSetDurationAndPlayhead(t *testing.T) {
	tl := newTestTimeline(t)
	tl.SetDuration(20)
	tl.SetPlayhead(25)
	if tl.Playhead() != 20 {
		t.Errorf("playhead = %v, want 20", tl.Playhead())
	}
	tl.SetPlayhead(-3)
	if tl.Playhead() != 0 {
		t.Errorf("playhead = %v, want 0", tl.Playhead())
	}
	tl.SetPlayhead(5)
	if tl.PlayheadCoord() != 500 {
		t.Errorf("playhead coord = %v, want 500", tl.PlayheadCoord())
	}
	tl.SetDuration(-1)
	if tl.Duration() != 0 {
		t.Errorf("duration = %v, want 0", tl.Duration())
	}
}

func TestSetTiming(t *testing.T) {
	tl, _ := withVideo(t, 10)
	txt := addText(t, tl, 1, 1)
	rec := newRecorder()
	tl.Subscribe(rec)

	if err := tl.SetTiming(txt.ID, -2, 3); err != nil {
		t.Fatalf("set timing: %v", err)
	}
	if txt.Start != 0 || txt.Duration != 3 {
		t.Errorf("timing = %v/%v, want 0/3", txt.Start, txt.Duration)
	}
	if rec.retimed[txt.ID] != [2]float64{0, 3} {
		t.Errorf("retimed notification = %v", rec.retimed[txt.ID])
	}
	if err := tl.SetTiming(txt.ID, 1, 0); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("zero duration err = %v", err)
	}
	if err := tl.SetTiming("x", 1, 1); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("unknown id err = %v", err)
	}
}

func TestHandleKey(t *testing.T) {
	tl, _ := withVideo(t, 10)
	txt := addText(t, tl, 1, 1)

	if tl.HandleKey(KeyArrowRight) {
		t.Error("key consumed without selection")
	}

	tl.Select(txt.ID)
	tl.HandleKey(KeyArrowRight)
	tl.HandleKey(KeyArrowRight)
	if math.Abs(txt.Start-1.2) > eps {
		t.Errorf("start after two right nudges = %v, want 1.2", txt.Start)
	}
	for i := 0; i < 20; i++ {
		tl.HandleKey(KeyArrowLeft)
	}
	if txt.Start != 0 {
		t.Errorf("start after many left nudges = %v, want 0", txt.Start)
	}
	if tl.HandleKey("Enter") {
		t.Error("unmapped key consumed")
	}
	if !tl.HandleKey(KeyBackspace) {
		t.Error("backspace not consumed")
	}
	if len(tl.Items(KindText)) != 0 {
		t.Error("backspace did not delete")
	}
}

func TestUnsubscribe(t *testing.T) {
	tl := newTestTimeline(t)
	rec := newRecorder()
	other := 0
	stop := tl.Subscribe(rec)
	tl.Subscribe(ObserverFuncs{OnLayout: func() { other++ }})

	tl.SetDuration(5)
	stop()
	tl.SetDuration(6)
	if rec.layouts != 1 {
		t.Errorf("unsubscribed observer saw %d layouts, want 1", rec.layouts)
	}
	if other != 2 {
		t.Errorf("remaining observer saw %d layouts, want 2", other)
	}
}

func TestClear(t *testing.T) {
	tl, _ := withVideo(t, 10)
	txt := addText(t, tl, 1, 1)
	tl.Select(txt.ID)
	tl.Clear()
	for _, k := range Kinds {
		if len(tl.Items(k)) != 0 {
			t.Errorf("%s track not empty", k)
		}
	}
	if _, ok := tl.Selected(); ok || tl.Duration() != 0 {
		t.Error("clear left selection or duration behind")
	}
}

func TestItemName(t *testing.T) {
	tl, _ := withVideo(t, 10)
	it, _ := tl.AddItem(KindText, TextPayload{Text: "a fairly long caption for the intro", Duration: 1}, 0)
	if it.Name != "a fairly long captio..." {
		t.Errorf("name = %q", it.Name)
	}
}

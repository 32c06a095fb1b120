package timeline

import (
	"errors"
	"math"
	"testing"
)

func TestDragClampsToStart(t *testing.T) {
	tl, _ := withVideo(t, 10)
	txt := addText(t, tl, 3, 2)

	// grab 50 units into the item
	if err := tl.BeginDrag(txt.ID, 350); err != nil {
		t.Fatalf("begin drag: %v", err)
	}
	if err := tl.UpdateDrag(-400); err != nil {
		t.Fatalf("update drag: %v", err)
	}
	if txt.Start != 0 {
		t.Errorf("start = %v, want 0", txt.Start)
	}
}

func TestDragClampsToEnd(t *testing.T) {
	tl, _ := withVideo(t, 10)
	txt := addText(t, tl, 3, 2)

	tl.BeginDrag(txt.ID, 300)
	tl.UpdateDrag(5000)
	if math.Abs(txt.End()-10) > eps {
		t.Errorf("end = %v, want 10", txt.End())
	}
}

func TestDragUpdatesStartLive(t *testing.T) {
	tl, _ := withVideo(t, 10)
	txt := addText(t, tl, 1, 2)
	rec := newRecorder()
	tl.Subscribe(rec)

	tl.BeginDrag(txt.ID, 120)
	tl.UpdateDrag(220)
	if math.Abs(txt.Start-2) > eps {
		t.Errorf("start mid-drag = %v, want 2", txt.Start)
	}
	if _, ok := rec.moved[txt.ID]; ok {
		t.Error("moved notification sent before the drag ended")
	}
	tl.UpdateDrag(420)
	if err := tl.EndDrag(); err != nil {
		t.Fatalf("end drag: %v", err)
	}
	if got := rec.moved[txt.ID]; math.Abs(got-4) > eps {
		t.Errorf("moved notification start = %v, want 4", got)
	}
	if _, ok := tl.Gesture().(Idle); !ok {
		t.Errorf("gesture = %T after end, want Idle", tl.Gesture())
	}
}

func TestResizeLeftEdge(t *testing.T) {
	tl, _ := withVideo(t, 20)
	txt := addText(t, tl, 4, 4)
	rec := newRecorder()
	tl.Subscribe(rec)

	if err := tl.BeginResize(txt.ID, EdgeLeft, 400); err != nil {
		t.Fatalf("begin resize: %v", err)
	}
	tl.UpdateResize(300)

	g, _ := tl.Geometry(txt.ID)
	if g.Left != 300 || g.Width != 500 {
		t.Errorf("live geometry = %+v, want left 300 width 500", g)
	}
	if txt.Start != 4 {
		t.Error("start changed before resize ended")
	}

	if err := tl.EndResize(); err != nil {
		t.Fatalf("end resize: %v", err)
	}
	if math.Abs(txt.Start-3) > eps || math.Abs(txt.Duration-5) > eps {
		t.Errorf("timing = %v/%v, want 3/5", txt.Start, txt.Duration)
	}
	if got := rec.retimed[txt.ID]; math.Abs(got[0]-3) > eps || math.Abs(got[1]-5) > eps {
		t.Errorf("retimed notification = %v", got)
	}
}

func TestResizeLeftEdgeNeverBeforeZero(t *testing.T) {
	tl, _ := withVideo(t, 20)
	txt := addText(t, tl, 1, 4)

	tl.BeginResize(txt.ID, EdgeLeft, 100)
	tl.UpdateResize(-900)
	tl.EndResize()
	if txt.Start != 0 {
		t.Errorf("start = %v, want 0", txt.Start)
	}
}

func TestResizeMinimumWidth(t *testing.T) {
	for _, edge := range []Edge{EdgeLeft, EdgeRight} {
		t.Run(string(edge), func(t *testing.T) {
			tl, _ := withVideo(t, 20)
			txt := addText(t, tl, 2, 3)
			minWidth := tl.Config().MinItemWidth

			pointer := 200.0
			squeeze := 1000.0
			if edge == EdgeRight {
				pointer = 500
				squeeze = -1000
			}
			tl.BeginResize(txt.ID, edge, pointer)
			tl.UpdateResize(pointer + squeeze)

			g, _ := tl.Geometry(txt.ID)
			if g.Width != minWidth {
				t.Errorf("width = %v, want %v", g.Width, minWidth)
			}
			tl.EndResize()
			if math.Abs(txt.Duration-tl.ToTime(minWidth)) > eps {
				t.Errorf("duration = %v, want %v", txt.Duration, tl.ToTime(minWidth))
			}
			if txt.Duration <= 0 {
				t.Error("duration not positive")
			}
		})
	}
}

func TestResizeRightEdgeKeepsStart(t *testing.T) {
	tl, _ := withVideo(t, 20)
	txt := addText(t, tl, 2, 3)

	tl.BeginResize(txt.ID, EdgeRight, 500)
	tl.UpdateResize(750)
	tl.EndResize()
	if txt.Start != 2 || math.Abs(txt.Duration-5.5) > eps {
		t.Errorf("timing = %v/%v, want 2/5.5", txt.Start, txt.Duration)
	}
}

func TestGestureExclusive(t *testing.T) {
	tl, _ := withVideo(t, 20)
	a := addText(t, tl, 1, 1)
	b := addText(t, tl, 5, 1)

	if err := tl.BeginDrag(a.ID, 100); err != nil {
		t.Fatalf("begin drag: %v", err)
	}
	if err := tl.BeginResize(b.ID, EdgeRight, 600); !errors.Is(err, ErrGestureActive) {
		t.Errorf("resize during drag err = %v, want ErrGestureActive", err)
	}
	if err := tl.BeginDrag(b.ID, 500); !errors.Is(err, ErrGestureActive) {
		t.Errorf("second drag err = %v, want ErrGestureActive", err)
	}
	if err := tl.UpdateResize(10); !errors.Is(err, ErrNoGesture) {
		t.Errorf("update resize during drag err = %v, want ErrNoGesture", err)
	}
	if g, ok := tl.Gesture().(Dragging); !ok || g.Item != a.ID {
		t.Errorf("gesture = %#v, want drag of a", tl.Gesture())
	}
}

func TestGestureErrors(t *testing.T) {
	tl, _ := withVideo(t, 20)
	txt := addText(t, tl, 1, 1)

	if err := tl.EndDrag(); !errors.Is(err, ErrNoGesture) {
		t.Errorf("EndDrag idle err = %v", err)
	}
	if err := tl.UpdateDrag(5); !errors.Is(err, ErrNoGesture) {
		t.Errorf("UpdateDrag idle err = %v", err)
	}
	if err := tl.EndResize(); !errors.Is(err, ErrNoGesture) {
		t.Errorf("EndResize idle err = %v", err)
	}
	if err := tl.BeginDrag("missing", 0); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("BeginDrag unknown err = %v", err)
	}
	if err := tl.BeginResize(txt.ID, Edge("top"), 0); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("BeginResize bad edge err = %v", err)
	}
}

func TestCancelGesture(t *testing.T) {
	tl, _ := withVideo(t, 20)
	txt := addText(t, tl, 2, 2)
	rec := newRecorder()
	tl.Subscribe(rec)

	tl.BeginResize(txt.ID, EdgeRight, 400)
	tl.UpdateResize(900)
	tl.CancelGesture()
	if txt.Duration != 2 {
		t.Errorf("duration = %v after cancel, want 2", txt.Duration)
	}
	if len(rec.retimed) != 0 {
		t.Error("cancel sent a retimed notification")
	}
	g, _ := tl.Geometry(txt.ID)
	if g.Width != 200 {
		t.Errorf("width = %v after cancel, want 200", g.Width)
	}
}

func TestZoomDuringResize(t *testing.T) {
	tl, _ := withVideo(t, 20)
	txt := addText(t, tl, 2, 2)

	tl.BeginResize(txt.ID, EdgeRight, 400)
	tl.UpdateResize(500)
	tl.SetZoom(2)

	g, _ := tl.Geometry(txt.ID)
	if g.Left != 400 || g.Width != 600 {
		t.Errorf("geometry after zoom = %+v, want left 400 width 600", g)
	}
	tl.EndResize()
	if math.Abs(txt.Duration-3) > eps {
		t.Errorf("duration = %v, want 3", txt.Duration)
	}
}

func TestHitTest(t *testing.T) {
	tl, _ := withVideo(t, 20)
	a := addText(t, tl, 1, 4)
	b := addText(t, tl, 3, 4)

	if got, ok := tl.HitTest(KindText, 350); !ok || got.ID != b.ID {
		t.Errorf("overlap hit = %v, want later item", got)
	}
	if got, ok := tl.HitTest(KindText, 150); !ok || got.ID != a.ID {
		t.Errorf("hit = %v, want first item", got)
	}
	if _, ok := tl.HitTest(KindText, 1500); ok {
		t.Error("hit past every item")
	}
}

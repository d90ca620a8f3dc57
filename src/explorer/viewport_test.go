package explorer

import "testing"

func TestViewportSync(t *testing.T) {
	v := NewViewport(800)
	v.SetAnchors(0, 1000)

	if !v.Pan(100) {
		t.Fatal("pan should be handled")
	}

	expected := ViewportState{Height: 800, PanY: 100, ScrollTop: 300, ScrollExtent: 1800}
	if s := v.State(); s != expected {
		t.Fatalf("expected %v, got %v", expected, s)
	}

	// the scrollbar echoes the value it was given
	if v.Scroll(300) {
		t.Fatal("the echo of a programmatic scroll should be swallowed")
	}

	if !v.Scroll(350) {
		t.Fatal("scroll should be handled")
	}
	if s := v.State(); s.PanY != 50 {
		t.Fatalf("pan should follow the scrollbar, got %v", s.PanY)
	}
	if v.Pan(50) {
		t.Fatal("the echo of a programmatic pan should be swallowed")
	}
	if !v.Pan(50) {
		t.Fatal("an echo is swallowed only once")
	}

	if got := v.PanFromScroll(v.ScrollFromPan(123)); got != 123 {
		t.Fatalf("mapping should round trip, got %v", got)
	}
}

func TestViewportAnchors(t *testing.T) {
	v := NewViewport(800)
	v.SetAnchors(0, 1000)
	v.Pan(0)

	// content added above moves the scrollbar, not the canvas
	v.SetAnchors(-500, 1000)
	s := v.State()
	if s.PanY != 0 || s.ScrollTop != 900 || s.ScrollExtent != 2300 {
		t.Fatalf("unexpected state %v", s)
	}
}

func TestViewportThresholds(t *testing.T) {
	v := NewViewport(800)
	v.SetAnchors(0, 1000)

	v.Pan(-100)
	if v.NeedsOlder(1000) || v.NeedsNewer() {
		t.Fatal("nothing should be needed inside the content")
	}

	v.Pan(-300)
	if !v.NeedsOlder(1000) {
		t.Fatal("the lower edge passed the bottom frontier")
	}

	v.Pan(10)
	if !v.NeedsNewer() {
		t.Fatal("the upper edge passed the top anchor")
	}
}

func TestViewportStep(t *testing.T) {
	v := NewViewport(800)
	v.SetAnchors(0, 1000)

	if !v.Step(false, false) || v.State().PanY != -StepSize {
		t.Fatal("stepping down should always move")
	}
	if !v.Step(true, false) || v.State().PanY != 0 {
		t.Fatal("stepping up should move back")
	}
	if v.Step(true, false) {
		t.Fatal("stepping up should stop at the top anchor")
	}

	// at the live edge the top unit may come down to the middle
	moves := 0
	for v.Step(true, true) {
		moves++
		if moves > 100 {
			t.Fatal("stepping up should stop")
		}
	}
	if moves != 16 || v.State().PanY != 400 {
		t.Fatalf("expected 16 moves to pan 400, got %d to %v", moves, v.State().PanY)
	}
}

func TestViewportCenter(t *testing.T) {
	v := NewViewport(600)
	v.SetAnchors(0, 5000)

	v.Center(2000)
	y1, y2 := v.Extent()
	if (y1+y2)/2 != 2000 {
		t.Fatalf("2000 should be centered, got %v..%v", y1, y2)
	}
	if v.Pan(v.State().PanY) {
		t.Fatal("the echo of a centering should be swallowed")
	}

	v.Follow(100)
	if y, _ := v.Extent(); y != y1-100 {
		t.Fatalf("follow should move the view up by 100, got %v", y)
	}
}

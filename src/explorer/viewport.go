package explorer

// StepSize is the vertical distance of one wheel or keyboard step.
const StepSize = 25

// ViewportState is the part of the viewport the host applies to its canvas
// and scrollbar.
type ViewportState struct {
	Height       float64 `json:"height"`
	PanY         float64 `json:"pan_y"`
	ScrollTop    float64 `json:"scroll_top"`
	ScrollExtent float64 `json:"scroll_extent"`
}

// Viewport keeps the vertical pan of the canvas and the scrollTop of the
// scrollbar in sync:
//
//	scrollTop = (height/2 - topAnchorY) - panY
//
// Model coordinates visible on the canvas are [-panY, -panY+height].
type Viewport struct {
	height    float64
	panY      float64
	scrollTop float64

	topAnchorY    float64
	bottomAnchorY float64

	// values pushed to the host, whose echo must not be handled again
	panEcho    *float64
	scrollEcho *float64
}

// NewViewport creates a Viewport of the given height.
func NewViewport(height float64) *Viewport {
	return &Viewport{height: height}
}

// State returns the current state.
func (v *Viewport) State() ViewportState {
	return ViewportState{
		Height:       v.height,
		PanY:         v.panY,
		ScrollTop:    v.scrollTop,
		ScrollExtent: v.bottomAnchorY - v.topAnchorY + v.height,
	}
}

// Extent returns the model y range visible on the canvas.
func (v *Viewport) Extent() (y1, y2 float64) {
	return -v.panY, -v.panY + v.height
}

// ScrollFromPan maps a pan position to a scrollTop.
func (v *Viewport) ScrollFromPan(panY float64) float64 {
	return (v.height/2 - v.topAnchorY) - panY
}

// PanFromScroll maps a scrollTop to a pan position.
func (v *Viewport) PanFromScroll(scrollTop float64) float64 {
	return (v.height/2 - v.topAnchorY) - scrollTop
}

// SetAnchors records the y of the topmost and bottommost loaded units. The
// canvas does not move; the scrollbar follows.
func (v *Viewport) SetAnchors(top, bottom float64) {
	v.topAnchorY = top
	v.bottomAnchorY = bottom
	v.followPan()
}

// Pan handles a pan of the canvas. It returns false when the pan is the echo
// of a value set by the Viewport itself.
func (v *Viewport) Pan(panY float64) bool {
	if v.panEcho != nil && *v.panEcho == panY {
		v.panEcho = nil
		return false
	}
	v.panEcho = nil
	v.panY = panY
	v.followPan()
	return true
}

// Scroll handles a move of the scrollbar. It returns false when the scroll is
// the echo of a value set by the Viewport itself.
func (v *Viewport) Scroll(scrollTop float64) bool {
	if v.scrollEcho != nil && *v.scrollEcho == scrollTop {
		v.scrollEcho = nil
		return false
	}
	v.scrollEcho = nil
	v.scrollTop = scrollTop
	v.followScroll()
	return true
}

// Resize changes the height of the viewport.
func (v *Viewport) Resize(height float64) {
	v.height = height
	v.followPan()
}

// Center pans the canvas so that y sits in the middle of the viewport.
func (v *Viewport) Center(y float64) {
	v.panY = v.height/2 - y
	v.followPan()
	v.echoPan()
}

// Follow shifts the canvas by dy, used to keep the view on the live edge when
// units are added above it.
func (v *Viewport) Follow(dy float64) {
	v.panY += dy
	v.followPan()
	v.echoPan()
}

// Step moves the canvas by one step. Stepping down always moves. Stepping up
// moves unless the top of the loaded content is reached: at the live edge the
// topmost unit may come down to the middle of the viewport, otherwise only to
// its upper edge. It returns false when it did not move.
func (v *Viewport) Step(up bool, atLiveEdge bool) bool {
	if !up {
		v.panY -= StepSize
		v.followPan()
		v.echoPan()
		return true
	}

	y1, y2 := v.Extent()
	if (atLiveEdge && y2-v.height/2 > v.topAnchorY+20) || (!atLiveEdge && y1 > v.topAnchorY) {
		v.panY += StepSize
		v.followPan()
		v.echoPan()
		return true
	}
	return false
}

// NeedsOlder reports whether the lower edge of the viewport passed below the
// bottom frontier.
func (v *Viewport) NeedsOlder(bottomFrontier float64) bool {
	_, y2 := v.Extent()
	return bottomFrontier < y2
}

// NeedsNewer reports whether the upper edge of the viewport passed above the
// topmost loaded unit.
func (v *Viewport) NeedsNewer() bool {
	y1, _ := v.Extent()
	return y1 < v.topAnchorY
}

func (v *Viewport) followPan() {
	v.scrollTop = v.ScrollFromPan(v.panY)
	v.echoScroll()
}

func (v *Viewport) followScroll() {
	v.panY = v.PanFromScroll(v.scrollTop)
	v.echoPan()
}

func (v *Viewport) echoScroll() {
	s := v.scrollTop
	v.scrollEcho = &s
}

func (v *Viewport) echoPan() {
	p := v.panY
	v.panEcho = &p
}

package explorer

import (
	"fmt"

	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/common"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/graph"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/layout"
	"github.com/intervalue1/intervalue-explorer-1.0-testnet/src/ledger"
	"github.com/sirupsen/logrus"
)

// MinRetainedPages is the smallest MaxRetained, in pages of Limit units. The
// page being applied and the page in view are never evicted.
const MinRetainedPages = 2

// Config holds the parameters of an Explorer.
type Config struct {
	// Limit is the number of units requested per window page.
	Limit int
	// MaxRetained caps the number of loaded units. 0 disables eviction, other
	// values are raised to at least two pages.
	MaxRetained int
	// ViewportHeight is the initial height of the viewport.
	ViewportHeight float64
	// Layout configures the layered layout of each slice.
	Layout layout.Options
}

// DefaultConfig returns the default Explorer configuration.
func DefaultConfig() Config {
	return Config{
		Limit:          ledger.DefaultLimit,
		ViewportHeight: 800,
		Layout:         layout.DefaultOptions(),
	}
}

// Explorer is the state of one exploration session. It merges ledger slices
// into the window, places them, keeps the boundary and the viewport
// consistent, and decides which ledger requests to issue next. It does no
// I/O: inputs come in through Start, Handle and Apply, and every call returns
// the events to render and the requests to run. It is not safe for concurrent
// use.
type Explorer struct {
	conf Config

	window   *Window
	placer   *Placer
	boundary *Boundary
	viewport *Viewport

	initial tracker
	older   tracker
	newer   tracker

	// epoch is incremented by every navigation, responses to requests of a
	// previous epoch are stale.
	epoch uint64

	followingTip bool
	pendingTip   bool

	// highlight is the unit to center once the window around it is loaded.
	highlight string
	selected  string

	address        string
	addressCursor  ledger.Cursor
	addressEnd     bool
	addressPending bool

	logger *logrus.Entry
}

// NewExplorer creates an Explorer with an empty window.
func NewExplorer(conf Config, logger *logrus.Entry) *Explorer {
	if conf.Limit <= 0 {
		conf.Limit = ledger.DefaultLimit
	}
	if conf.Layout == (layout.Options{}) {
		conf.Layout = layout.DefaultOptions()
	}
	if conf.MaxRetained > 0 && conf.MaxRetained < MinRetainedPages*conf.Limit {
		logger.WithFields(logrus.Fields{
			"max_retained": conf.MaxRetained,
			"limit":        conf.Limit,
		}).Warn("MaxRetained raised to two pages")
		conf.MaxRetained = MinRetainedPages * conf.Limit
	}

	return &Explorer{
		conf:     conf,
		window:   NewWindow(),
		placer:   NewPlacer(),
		boundary: NewBoundary(logger),
		viewport: NewViewport(conf.ViewportHeight),
		logger:   logger,
	}
}

// Window returns the window store.
func (e *Explorer) Window() *Window {
	return e.window
}

// Placer returns the render positions of the loaded units.
func (e *Explorer) Placer() *Placer {
	return e.placer
}

// Boundary returns the phantom manager.
func (e *Explorer) Boundary() *Boundary {
	return e.boundary
}

// Viewport returns the viewport.
func (e *Explorer) Viewport() *Viewport {
	return e.viewport
}

// FollowingTip reports whether new tips are merged as they arrive.
func (e *Explorer) FollowingTip() bool {
	return e.followingTip
}

// Epoch returns the current navigation epoch.
func (e *Explorer) Epoch() uint64 {
	return e.epoch
}

// Loading reports whether an initial window is awaited.
func (e *Explorer) Loading() bool {
	return e.initial.state == Requested
}

// Selected returns the highlighted unit.
func (e *Explorer) Selected() string {
	return e.selected
}

// State reports whether an older or newer request is in flight. It is either
// Idle or Requested, see Settled for how the last requests ended.
func (e *Explorer) State() (older, newer RequestState) {
	return e.older.state, e.newer.state
}

// Settled returns how the last older and newer requests ended, Applied or
// Failed, or Idle when none has settled since the last navigation.
func (e *Explorer) Settled() (older, newer RequestState) {
	return e.older.last, e.newer.last
}

// Start navigates to an anchor. The current window stays displayed until the
// new one arrives.
func (e *Explorer) Start(anchor graph.Anchor) Outcome {
	e.epoch++
	e.older.reset()
	e.newer.reset()
	e.initial.reset()
	e.pendingTip = false

	seq, _ := e.initial.begin()

	e.logger.WithFields(logrus.Fields{
		"anchor": anchor.String(),
		"epoch":  e.epoch,
	}).Debug("Start")

	out := Outcome{}
	out.request(Request{
		Kind:      WindowRequest,
		Direction: graph.Initial,
		Anchor:    anchor,
		Limit:     e.conf.Limit,
		Epoch:     e.epoch,
		Seq:       seq,
	})
	return out
}

// Handle processes a command from the host.
func (e *Explorer) Handle(cmd Command) Outcome {
	switch c := cmd.(type) {
	case RequestOlder:
		return e.requestOlder()
	case RequestNewer:
		return e.requestNewer(false)
	case RequestTip:
		return e.Tip()
	case NavigateTo:
		return e.navigate(c.Target)
	case HighlightAndCenter:
		return e.highlightAndCenter(c.Unit)
	case Pan:
		if !e.viewport.Pan(c.Y) {
			return Outcome{}
		}
		return e.checkThresholds()
	case Scroll:
		if !e.viewport.Scroll(c.Top) {
			return Outcome{}
		}
		return e.checkThresholds()
	case Step:
		return e.step(c.Up)
	case Resize:
		e.viewport.Resize(c.Height)
		out := e.checkThresholds()
		out.Viewport = e.viewportState()
		return out
	case MoreTransactions:
		return e.moreTransactions()
	default:
		e.logger.WithField("command", fmt.Sprintf("%T", cmd)).Warn("Unknown command")
		return Outcome{}
	}
}

// Tip handles a notice that the ledger has new units. It is ignored unless
// the window follows the tip. Notices arriving while a newer request is in
// flight are coalesced into one follow-up request.
func (e *Explorer) Tip() Outcome {
	if !e.followingTip || e.Loading() {
		return Outcome{}
	}
	if e.window.Empty() {
		return e.Start(graph.LastAnchor())
	}
	return e.requestNewer(true)
}

// Stability marks the loaded units which became stable. Units that are not
// loaded are ignored.
func (e *Explorer) Stability(units []graph.StableUnit) Outcome {
	out := Outcome{}
	applied := e.window.MarkStable(units)
	if len(applied) > 0 {
		out.emit(&StabilityEvent{Units: applied})
	}
	return out
}

// CheckStability requests the stability of the loaded units which are not
// stable yet.
func (e *Explorer) CheckStability() Outcome {
	out := Outcome{}
	notStable := e.window.NotStable()
	if len(notStable) == 0 {
		return out
	}
	out.request(Request{
		Kind:      StabilityRequest,
		NotStable: notStable,
		Epoch:     e.epoch,
	})
	return out
}

// Apply processes the response to a request.
func (e *Explorer) Apply(resp Response) Outcome {
	req := resp.Request

	if req.Kind != StabilityRequest && req.Epoch != e.epoch {
		e.stale(req)
		return Outcome{}
	}

	switch req.Kind {
	case WindowRequest:
		return e.applyWindow(resp)
	case UnitRequest:
		return e.applyUnit(resp)
	case AddressRequest:
		return e.applyAddress(resp)
	case StabilityRequest:
		if resp.Err != nil {
			e.logger.WithError(resp.Err).Error("Checking stability")
			return Outcome{}
		}
		return e.Stability(resp.Stable)
	default:
		return Outcome{}
	}
}

func (e *Explorer) stale(req Request) {
	err := common.NewExplorerErr("Response", common.StaleResponse,
		fmt.Sprintf("%s/%s/%d/%d", req.Kind, req.Direction, req.Epoch, req.Seq))
	e.logger.WithError(err).Debug("Dropping response")
}

func (e *Explorer) trackerOf(dir graph.Direction) *tracker {
	switch dir {
	case graph.Older:
		return &e.older
	case graph.Newer:
		return &e.newer
	default:
		return &e.initial
	}
}

func (e *Explorer) applyWindow(resp Response) Outcome {
	req := resp.Request
	t := e.trackerOf(req.Direction)

	current, queued := t.settle(req.Seq, resp.Err == nil && resp.Slice != nil)
	if !current {
		e.stale(req)
		return Outcome{}
	}

	out := Outcome{}

	if resp.Err != nil || resp.Slice == nil {
		out.merge(e.windowFailed(req, resp.Err))
		out.merge(e.replay(req.Direction, queued))
		return out
	}

	slice := resp.Slice
	anchor := req.Anchor

	if slice.NotFound {
		out.emit(e.notFound(anchor))
		anchor = graph.LastAnchor()
		e.highlight = ""
	}

	if req.Direction == graph.Initial {
		e.older.reset()
		e.newer.reset()
		e.pendingTip = false
	}

	out.merge(e.extend(slice, req, anchor))

	if len(resp.Stable) > 0 {
		out.merge(e.Stability(resp.Stable))
	}

	if e.highlight != "" && e.window.Has(e.highlight) {
		unit := e.highlight
		e.highlight = ""
		out.merge(e.highlightAndCenter(unit))
	}

	out.merge(e.replay(req.Direction, queued))
	out.merge(e.checkThresholds())

	return out
}

// replay issues the trigger that arrived while a request was in flight.
func (e *Explorer) replay(dir graph.Direction, queued bool) Outcome {
	if dir == graph.Newer && e.pendingTip {
		e.pendingTip = false
		return e.requestNewer(true)
	}
	if queued {
		return e.checkThresholds()
	}
	return Outcome{}
}

func (e *Explorer) windowFailed(req Request, err error) Outcome {
	out := Outcome{}

	if req.Direction == graph.Initial && common.IsExplorer(err, common.NotFound) {
		out.emit(e.notFound(req.Anchor))
		e.highlight = ""
		if e.window.Empty() {
			out.merge(e.Start(graph.LastAnchor()))
		}
		return out
	}

	e.logger.WithFields(logrus.Fields{
		"direction": req.Direction.String(),
		"anchor":    req.Anchor.String(),
	}).WithError(err).Error("Fetching window")

	return out
}

func (e *Explorer) notFound(anchor graph.Anchor) *NavigateEvent {
	msg := "Unit not found"
	target := anchor.Unit
	if anchor.Kind == graph.AnchorAddress {
		msg = "Address not found"
		target = anchor.Address
	}
	return &NavigateEvent{
		Target:   target,
		NotFound: true,
		Message:  msg,
		Viewport: e.viewport.State(),
	}
}

// extend runs a slice through the pipeline: merge, layout, placement,
// eviction, boundary reconciliation and viewport anchoring.
func (e *Explorer) extend(slice *graph.Slice, req Request, anchor graph.Anchor) Outcome {
	dir := req.Direction
	out := Outcome{}

	if dir == graph.Initial {
		e.placer.Reset()
		e.boundary.Reset()
	}

	oldTop, _ := e.placer.Frontiers()
	y1, _ := e.viewport.Extent()
	atTop := e.placer.Len() > 0 && y1 <= oldTop
	noMoreOlder, noMoreNewer := e.window.NoMoreOlder, e.window.NoMoreNewer

	delta := e.window.Merge(slice.Nodes, slice.Edges, dir)

	switch dir {
	case graph.Initial:
		if anchor.Kind == graph.AnchorNone {
			e.window.NoMoreNewer = true
		}
		e.followingTip = e.window.NoMoreNewer
	case graph.Newer:
		if len(slice.Nodes) < req.Limit {
			e.window.NoMoreNewer = true
		}
		if e.window.NoMoreNewer {
			e.followingTip = true
		}
	}

	e.endOfData(noMoreOlder, noMoreNewer)

	local, err := layout.Compute(delta.Nodes, delta.Edges, e.conf.Layout)
	if err != nil {
		e.logger.WithError(err).Error("Computing layout")
		local = layout.Column(delta.Nodes, e.conf.Layout)
	}
	positions, resolved := e.placer.Place(delta.Nodes, local, dir, e.boundary)

	removed, removedEdges := e.evict(dir, len(delta.Nodes))

	top, bottom := e.placer.Frontiers()
	edges, created := e.boundary.Reconcile(e.window.Edges(), e.placer, top, bottom)
	e.viewport.SetAnchors(top, bottom)

	switch {
	case dir == graph.Initial:
		e.viewport.Center(top + e.viewport.height/2 - WindowGap)
		out.Viewport = e.viewportState()
	case req.Tip && atTop && top < oldTop:
		e.viewport.Follow(oldTop - top)
		out.Viewport = e.viewportState()
	}

	e.logger.WithFields(logrus.Fields{
		"direction": dir.String(),
		"nodes":     len(delta.Nodes),
		"edges":     len(edges),
		"phantoms":  len(created),
		"resolved":  len(resolved),
		"evicted":   len(removed),
		"first":     e.window.FirstOrdinal,
		"last":      e.window.LastOrdinal,
	}).Debug("Extend")

	kind := EventInitial
	switch {
	case dir == graph.Older:
		kind = EventOlder
	case dir == graph.Newer && req.Tip:
		kind = EventTip
	case dir == graph.Newer:
		kind = EventNewer
	}

	changed := dir == graph.Initial ||
		len(delta.Nodes) > 0 ||
		len(edges) > 0 ||
		len(removed) > 0 ||
		noMoreOlder != e.window.NoMoreOlder ||
		noMoreNewer != e.window.NoMoreNewer
	if !changed {
		return out
	}

	out.emit(&WindowEvent{
		Kind:         kind,
		Nodes:        delta.Nodes,
		Positions:    positions,
		Edges:        edges,
		Phantoms:     e.boundary.Phantoms(),
		Resolved:     resolved,
		Removed:      removed,
		RemovedEdges: removedEdges,
		Viewport:     e.viewport.State(),
		FirstOrdinal: e.window.FirstOrdinal,
		LastOrdinal:  e.window.LastOrdinal,
		NoMoreOlder:  e.window.NoMoreOlder,
		NoMoreNewer:  e.window.NoMoreNewer,
	})

	return out
}

// endOfData logs the ends of the ledger reached by the last merge, given the
// terminal flags from before it.
func (e *Explorer) endOfData(noMoreOlder, noMoreNewer bool) {
	if !noMoreOlder && e.window.NoMoreOlder {
		err := common.NewExplorerErr("Window", common.EndOfData, graph.Older.String())
		e.logger.WithError(err).Debug("Genesis reached")
	}
	if !noMoreNewer && e.window.NoMoreNewer {
		err := common.NewExplorerErr("Window", common.EndOfData, graph.Newer.String())
		e.logger.WithError(err).Debug("Live edge reached")
	}
}

// evict trims the window back to MaxRetained units, dropping the end
// opposite to the extension. The added units are never evicted. Evicted
// units which are still referenced by a remaining edge become phantoms.
func (e *Explorer) evict(dir graph.Direction, added int) ([]string, []graph.EdgeKey) {
	if e.conf.MaxRetained <= 0 || dir == graph.Initial || e.window.Len() <= e.conf.MaxRetained {
		return nil, nil
	}

	over := e.window.Len() - e.conf.MaxRetained
	if old := e.window.Len() - added; over > old {
		over = old
	}
	if over <= 0 {
		return nil, nil
	}

	var evicted []graph.Node
	top := dir == graph.Older
	if top {
		evicted = e.window.EvictNewest(over)
		e.window.NoMoreNewer = false
		e.followingTip = false
	} else {
		evicted = e.window.EvictOldest(over)
		e.window.NoMoreOlder = false
	}

	removed := make([]string, 0, len(evicted))
	seen := make(map[string]bool, len(evicted))
	for _, n := range evicted {
		pos, _ := e.placer.Remove(n.ID)
		e.boundary.Adopt(n.ID, pos.X, top)
		removed = append(removed, n.ID)
		seen[n.ID] = true
	}
	e.placer.Shrink()

	dropped := e.window.Prune()
	for _, id := range e.boundary.Sweep(e.window.Edges(), dropped) {
		if !seen[id] {
			removed = append(removed, id)
		}
	}

	if e.selected != "" && seen[e.selected] {
		e.selected = ""
	}

	return removed, dropped
}

func (e *Explorer) requestOlder() Outcome {
	out := Outcome{}
	if e.window.Empty() || e.Loading() || e.window.NoMoreOlder {
		return out
	}
	seq, ok := e.older.begin()
	if !ok {
		return out
	}
	out.request(e.windowRequest(graph.Older, e.window.LastOrdinal, seq, false))
	return out
}

func (e *Explorer) requestNewer(tip bool) Outcome {
	out := Outcome{}
	if e.window.Empty() || e.Loading() || (!tip && e.window.NoMoreNewer) {
		return out
	}
	seq, ok := e.newer.begin()
	if !ok {
		if tip {
			e.pendingTip = true
		}
		return out
	}
	out.request(e.windowRequest(graph.Newer, e.window.FirstOrdinal, seq, tip))
	return out
}

func (e *Explorer) windowRequest(dir graph.Direction, ordinal int64, seq uint64, tip bool) Request {
	return Request{
		Kind:      WindowRequest,
		Direction: dir,
		Anchor:    graph.OrdinalAnchor(ordinal),
		Limit:     e.conf.Limit,
		Tip:       tip,
		NotStable: e.window.NotStable(),
		Epoch:     e.epoch,
		Seq:       seq,
	}
}

// checkThresholds requests older or newer units when the viewport passed the
// edges of the loaded content.
func (e *Explorer) checkThresholds() Outcome {
	out := Outcome{}
	if e.window.Empty() || e.Loading() {
		return out
	}

	_, bottom := e.placer.Frontiers()
	if !e.window.NoMoreOlder && e.viewport.NeedsOlder(bottom) {
		out.merge(e.requestOlder())
	}
	if !e.window.NoMoreNewer && e.viewport.NeedsNewer() {
		out.merge(e.requestNewer(false))
	}
	return out
}

func (e *Explorer) step(up bool) Outcome {
	out := Outcome{}
	if e.viewport.Step(up, e.window.NoMoreNewer) {
		out.Viewport = e.viewportState()
		out.merge(e.checkThresholds())
		return out
	}
	if up && !e.window.NoMoreNewer {
		out.merge(e.requestNewer(false))
	}
	return out
}

func (e *Explorer) navigate(target string) Outcome {
	anchor, err := graph.ParseTarget(target)
	if err != nil {
		out := Outcome{}
		out.emit(&NavigateEvent{
			Target:   target,
			NotFound: true,
			Message:  "Please enter a unit or address",
			Viewport: e.viewport.State(),
		})
		return out
	}

	if anchor.Kind == graph.AnchorAddress {
		e.address = anchor.Address
		e.addressCursor = ledger.FirstCursor()
		e.addressEnd = false
		e.addressPending = false
		return e.moreTransactions()
	}

	return e.highlightAndCenter(anchor.Unit)
}

// highlightAndCenter centers a loaded unit and requests its details. A unit
// which is not loaded is navigated to first.
func (e *Explorer) highlightAndCenter(unit string) Outcome {
	pos, ok := e.placer.Position(unit)
	if !ok {
		e.highlight = unit
		return e.Start(graph.UnitAnchor(unit))
	}

	e.selected = unit
	e.viewport.Center(pos.Y)

	out := Outcome{}
	out.Viewport = e.viewportState()
	out.emit(&NavigateEvent{
		Target:   unit,
		Center:   &pos,
		Viewport: e.viewport.State(),
	})
	out.request(Request{
		Kind:  UnitRequest,
		Unit:  unit,
		Epoch: e.epoch,
	})
	out.merge(e.checkThresholds())
	return out
}

func (e *Explorer) applyUnit(resp Response) Outcome {
	out := Outcome{}
	unit := resp.Request.Unit
	if unit != e.selected {
		e.stale(resp.Request)
		return out
	}

	if resp.Err != nil {
		if !common.IsExplorer(resp.Err, common.NotFound) {
			e.logger.WithError(resp.Err).Error("Fetching unit")
		}
		out.emit(&NavigateEvent{
			Target:   unit,
			NotFound: true,
			Message:  "Unit not found",
			Viewport: e.viewport.State(),
		})
		return out
	}

	ev := &NavigateEvent{
		Target:   unit,
		Unit:     resp.Unit,
		Viewport: e.viewport.State(),
	}
	if pos, ok := e.placer.Position(unit); ok {
		ev.Center = &pos
	}
	out.emit(ev)
	return out
}

func (e *Explorer) moreTransactions() Outcome {
	out := Outcome{}
	if e.address == "" || e.addressEnd || e.addressPending {
		return out
	}
	e.addressPending = true
	out.request(Request{
		Kind:    AddressRequest,
		Address: e.address,
		Cursor:  e.addressCursor,
		Epoch:   e.epoch,
	})
	return out
}

func (e *Explorer) applyAddress(resp Response) Outcome {
	out := Outcome{}
	req := resp.Request
	if req.Address != e.address || req.Cursor != e.addressCursor || !e.addressPending {
		e.stale(req)
		return out
	}
	e.addressPending = false

	if resp.Err != nil {
		if !common.IsExplorer(resp.Err, common.NotFound) {
			e.logger.WithError(resp.Err).Error("Fetching address")
		}
		e.address = ""
		out.emit(e.notFound(graph.AddressAnchor(req.Address)))
		return out
	}

	e.addressCursor = resp.Activity.Cursor
	e.addressEnd = resp.Activity.End

	out.emit(&NavigateEvent{
		Target:   req.Address,
		Address:  resp.Activity,
		Viewport: e.viewport.State(),
	})
	return out
}

func (e *Explorer) viewportState() *ViewportState {
	s := e.viewport.State()
	return &s
}
